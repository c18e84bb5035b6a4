package fleethttp

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
	"github.com/BearBump/FreightLink/internal/integrations/fleetclient"
	"github.com/pkg/errors"
)

type Client struct {
	baseURL string
	httpc   *http.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8082"
	}
	return &Client{
		baseURL: baseURL,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) VehicleProfile(ctx context.Context, ref string) (fleetclient.VehicleProfile, error) {
	var p fleetclient.VehicleProfile
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/vehicles/%s/profile", ref), nil, &p)
	return p, err
}

type reserveReq struct {
	LegID        uint64     `json:"leg_id"`
	PlannedEndAt *time.Time `json:"planned_end_at,omitempty"`
}

func (c *Client) ReserveLeg(ctx context.Context, ref string, legID uint64, plannedEnd *time.Time) error {
	body := reserveReq{LegID: legID, PlannedEndAt: plannedEnd}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/vehicles/%s/reservations", ref), body, nil)
}

func (c *Client) ReleaseReservation(ctx context.Context, ref string, legID uint64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/vehicles/%s/reservations/%d", ref, legID), nil, nil)
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
		return derr.External(err, "fleet request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return statusToErr(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return derr.External(err, "fleet decode")
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
		msg = fmt.Sprintf("fleet http %d", resp.StatusCode)
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return derr.NotFound("%s", msg)
	case http.StatusConflict:
		return derr.Conflict("%s", msg)
	case http.StatusBadRequest:
		return derr.InvalidState("%s", msg)
	default:
		return derr.Externalf(nil, "fleet http %d: %s", resp.StatusCode, msg)
	}
}
