package fleethttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BearBump/FreightLink/internal/authctx"
	"github.com/BearBump/FreightLink/internal/derr"
	"github.com/stretchr/testify/require"
)

func TestClient_VehicleProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/vehicles/AB123CD/profile", r.URL.Path)
		require.Equal(t, "Bearer tkn", r.Header.Get("Authorization"))
		w.Write([]byte(`{"ref":"AB123CD","fuel_per_100km":30,"cost_per_km":12.5}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	ctx := authctx.WithToken(context.Background(), "tkn")
	p, err := c.VehicleProfile(ctx, "AB123CD")
	require.NoError(t, err)
	require.Equal(t, "AB123CD", p.Ref)
	require.Equal(t, 30.0, p.FuelPer100Km)
	require.Equal(t, 12.5, p.CostPerKm)
}

func TestClient_ReserveLeg(t *testing.T) {
	end := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/vehicles/AB123CD/reservations", r.URL.Path)
		var body struct {
			LegID        uint64     `json:"leg_id"`
			PlannedEndAt *time.Time `json:"planned_end_at"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, uint64(42), body.LegID)
		require.NotNil(t, body.PlannedEndAt)
		require.True(t, body.PlannedEndAt.Equal(end))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := New(srv.URL)
	require.NoError(t, c.ReserveLeg(context.Background(), "AB123CD", 42, &end))
}

func TestClient_ReserveLeg_Conflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"vehicle AB123CD is in maintenance"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.ReserveLeg(context.Background(), "AB123CD", 42, nil)
	require.Error(t, err)
	require.Equal(t, derr.KindConflict, derr.KindOf(err))
	require.Contains(t, err.Error(), "maintenance")
}

func TestClient_ReleaseReservation_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/vehicles/AB123CD/reservations/42", r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.ReleaseReservation(context.Background(), "AB123CD", 42)
	require.Error(t, err)
	require.Equal(t, derr.KindExternal, derr.KindOf(err))
}
