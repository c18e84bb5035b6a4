package plannerhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/BearBump/FreightLink/internal/authctx"
	"github.com/BearBump/FreightLink/internal/derr"
	"github.com/BearBump/FreightLink/internal/integrations/plannerclient"
	"github.com/pkg/errors"
)

type Client struct {
	baseURL string
	httpc   *http.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8081"
	}
	return &Client{
		baseURL: baseURL,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) GetLeg(ctx context.Context, legID uint64) (plannerclient.Leg, error) {
	var leg plannerclient.Leg
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/legs/%d", legID), nil, &leg)
	return leg, err
}

func (c *Client) StartLeg(ctx context.Context, legID uint64) (plannerclient.Leg, error) {
	var leg plannerclient.Leg
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/legs/%d/start", legID), struct{}{}, &leg)
	return leg, err
}

type finishReq struct {
	TraveledKm float64 `json:"traveled_km"`
}

func (c *Client) FinishLeg(ctx context.Context, legID uint64, traveledKm float64) (plannerclient.Leg, error) {
	var leg plannerclient.Leg
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/legs/%d/finish", legID), finishReq{TraveledKm: traveledKm}, &leg)
	return leg, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	authctx.Decorate(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return derr.External(err, "planner request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return statusToErr(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return derr.External(err, "planner decode")
	}
	return nil
}

type errResp struct {
	Error string `json:"error"`
}

func statusToErr(resp *http.Response) error {
	var e errResp
	_ = json.NewDecoder(resp.Body).Decode(&e)
	msg := e.Error
	if msg == "" {
		msg = fmt.Sprintf("planner http %d", resp.StatusCode)
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return derr.NotFound("%s", msg)
	case http.StatusConflict:
		return derr.Conflict("%s", msg)
	case http.StatusBadRequest:
		return derr.InvalidState("%s", msg)
	default:
		return derr.Externalf(nil, "planner http %d: %s", resp.StatusCode, msg)
	}
}
