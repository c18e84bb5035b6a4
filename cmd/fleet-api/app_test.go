package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/BearBump/FreightLink/internal/derr"
	"github.com/BearBump/FreightLink/internal/integrations/plannerclient"
	"github.com/BearBump/FreightLink/internal/models"
	"github.com/stretchr/testify/require"
)

type stubFleet struct{}

func (stubFleet) RegisterVehicle(context.Context, models.VehicleCreateInput) (*models.Vehicle, error) {
	return nil, derr.NotFound("empty fleet")
}
func (stubFleet) GetVehicle(context.Context, string) (*models.Vehicle, error) {
	return nil, derr.NotFound("empty fleet")
}
func (stubFleet) ListByCarrier(context.Context, uint64) ([]*models.Vehicle, error) {
	return []*models.Vehicle{}, nil
}
func (stubFleet) Reserve(context.Context, string, uint64, *time.Time) (*models.Vehicle, error) {
	return nil, derr.NotFound("empty fleet")
}
func (stubFleet) ReleaseReservation(context.Context, string, uint64) (*models.Vehicle, error) {
	return nil, derr.NotFound("empty fleet")
}
func (stubFleet) SetMaintenance(context.Context, string, bool) (*models.Vehicle, error) {
	return nil, derr.NotFound("empty fleet")
}
func (stubFleet) IsAvailableAt(context.Context, string, time.Time) (bool, error) {
	return false, derr.NotFound("empty fleet")
}
func (stubFleet) SearchAvailable(context.Context, time.Time, float64, float64) ([]*models.Vehicle, error) {
	return []*models.Vehicle{}, nil
}

type stubDispatch struct{}

func (stubDispatch) Start(context.Context, uint64) (plannerclient.Leg, error) {
	return plannerclient.Leg{}, derr.NotFound("no legs")
}
func (stubDispatch) Finish(context.Context, uint64, float64) (plannerclient.Leg, error) {
	return plannerclient.Leg{}, derr.NotFound("no legs")
}

type recordingHandler struct {
	got chan []byte
}

func (h *recordingHandler) OnLegEvent(_ context.Context, _, value []byte) error {
	h.got <- value
	return nil
}

type scriptedConsumer struct {
	messages [][]byte
}

func (c scriptedConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for _, m := range c.messages {
		if err := handler(nil, m); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRunFleetAPI_ServesAndConsumes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := &recordingHandler{got: make(chan []byte, 1)}
	cons := scriptedConsumer{messages: [][]byte{[]byte(`{"type":"leg.finished","leg_id":10}`)}}

	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- runFleetAPI(ctx, fleetAPIOpts{
			httpAddr:      "127.0.0.1:0",
			topic:         "t",
			consumerGroup: "g",
			onListen:      func(addr string) { addrCh <- addr },
		}, stubFleet{}, stubDispatch{}, events, cons)
	}()

	addr := <-addrCh

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + addr + "/vehicles/TRK-404")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	select {
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting consumed event")
	case raw := <-events.got:
		require.Contains(t, string(raw), "leg.finished")
	}

	cancel()
	select {
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting server to stop")
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	}
}
