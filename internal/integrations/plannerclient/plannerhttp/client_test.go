package plannerhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BearBump/FreightLink/internal/authctx"
	"github.com/BearBump/FreightLink/internal/derr"
	"github.com/stretchr/testify/require"
)

func TestClient_GetLeg(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/legs/42", r.URL.Path)
		w.Write([]byte(`{"id":42,"route_id":7,"sequence_index":1,"state":"ASSIGNED","vehicle_ref":"AB123CD","estimated_km":310.5}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	leg, err := c.GetLeg(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, uint64(42), leg.ID)
	require.Equal(t, "ASSIGNED", leg.State)
	require.Equal(t, "AB123CD", leg.VehicleRef)
	require.Equal(t, 310.5, leg.EstimatedKm)
}

func TestClient_FinishLeg_ForwardsTokenAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/legs/42/finish", r.URL.Path)
		require.Equal(t, "Bearer tkn", r.Header.Get("Authorization"))
		var body struct {
			TraveledKm float64 `json:"traveled_km"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, 320.0, body.TraveledKm)
		w.Write([]byte(`{"id":42,"state":"FINISHED","traveled_km":320,"real_cost":9870.4}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := authctx.WithToken(context.Background(), "tkn")
	leg, err := c.FinishLeg(ctx, 42, 320)
	require.NoError(t, err)
	require.Equal(t, "FINISHED", leg.State)
	require.Equal(t, 9870.4, leg.RealCost)
}

func TestClient_StartLeg_InvalidState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"leg 42 is not assigned"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.StartLeg(context.Background(), 42)
	require.Error(t, err)
	require.Equal(t, derr.KindConflict, derr.KindOf(err))
}

func TestClient_GetLeg_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"leg 99 not found"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.GetLeg(context.Background(), 99)
	require.Error(t, err)
	require.Equal(t, derr.KindNotFound, derr.KindOf(err))
}
