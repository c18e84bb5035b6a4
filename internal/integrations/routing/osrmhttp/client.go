package osrmhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/BearBump/FreightLink/internal/derr"
	"github.com/BearBump/FreightLink/internal/integrations/routing"
	"github.com/BearBump/FreightLink/internal/models"
	"github.com/pkg/errors"
)

type Client struct {
	baseURL string
	httpc   *http.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}
	return &Client{
		baseURL: baseURL,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type osrmResp struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

func (c *Client) Route(ctx context.Context, from, to models.GeoPoint) (routing.Result, error) {
	// OSRM принимает координаты в порядке lon,lat.
	url := fmt.Sprintf("%s/route/v1/driving/%.6f,%.6f;%.6f,%.6f?overview=false",
		c.baseURL, from.Lon, from.Lat, to.Lon, to.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return routing.Result{}, errors.Wrap(err, "new request")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return routing.Result{}, derr.External(err, "osrm request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return routing.Result{}, derr.Externalf(nil, "osrm http %d", resp.StatusCode)
	}

	var r osrmResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return routing.Result{}, derr.External(err, "osrm decode")
	}
	if r.Code != "Ok" || len(r.Routes) == 0 {
		return routing.Result{}, derr.Externalf(nil, "osrm code=%s routes=%d", r.Code, len(r.Routes))
	}

	return routing.Result{
		DistanceKm:  r.Routes[0].Distance / 1000.0,
		DurationSec: int64(r.Routes[0].Duration),
	}, nil
}
