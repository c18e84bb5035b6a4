package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/BearBump/FreightLink/internal/derr"
	"github.com/BearBump/FreightLink/internal/models"
	"github.com/BearBump/FreightLink/internal/services/legs"
	"github.com/BearBump/FreightLink/internal/services/routes"
	"github.com/stretchr/testify/require"
)

type stubLegs struct{}

func (stubLegs) GetLeg(context.Context, uint64) (*models.Leg, error) {
	return nil, derr.NotFound("no legs here")
}
func (stubLegs) ListPending(context.Context, int) ([]*models.Leg, error) {
	return []*models.Leg{}, nil
}
func (stubLegs) Assign(context.Context, uint64, string, *time.Time, *time.Time) (*models.Leg, error) {
	return nil, derr.NotFound("no legs here")
}
func (stubLegs) AssignConsecutive(context.Context, string, []legs.ConsecutiveAssignment) ([]*models.Leg, error) {
	return nil, derr.NotFound("no legs here")
}
func (stubLegs) Reassign(context.Context, uint64, string, *time.Time, *time.Time) (*models.Leg, error) {
	return nil, derr.NotFound("no legs here")
}
func (stubLegs) Start(context.Context, uint64) (*models.Leg, error) {
	return nil, derr.NotFound("no legs here")
}
func (stubLegs) Finish(context.Context, uint64, float64) (*models.Leg, error) {
	return nil, derr.NotFound("no legs here")
}

type stubRoutes struct{}

func (stubRoutes) Plan(context.Context, routes.PlanRequest) (*routes.PlanResult, error) {
	return nil, derr.NotFound("no routes here")
}
func (stubRoutes) GetRoute(context.Context, uint64) (*routes.PlanResult, error) {
	return nil, derr.NotFound("no routes here")
}
func (stubRoutes) Quote(context.Context, models.GeoPoint, []uint64, models.GeoPoint) (*routes.Quote, error) {
	return &routes.Quote{}, nil
}
func (stubRoutes) PreviewAlternatives(context.Context, routes.PlanRequest) ([]routes.Alternative, error) {
	return nil, nil
}

func TestRunPlannerAPI_ServesAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- runPlannerAPI(ctx, plannerAPIOpts{
			httpAddr: "127.0.0.1:0",
			onListen: func(addr string) { addrCh <- addr },
		}, stubLegs{}, stubRoutes{})
	}()

	addr := <-addrCh

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + addr + "/legs/42")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	select {
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting server to stop")
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	}
}
