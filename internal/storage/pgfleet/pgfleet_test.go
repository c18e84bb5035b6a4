package pgfleet

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/FreightLink/internal/derr"
	"github.com/BearBump/FreightLink/internal/models"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPGFleet_RepoFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("testcontainers test, skipped in -short")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "fleet_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/fleet_test?sslmode=disable"
	st, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	carrier := &models.Carrier{Name: "TransNorte", Active: true}
	require.NoError(t, st.CreateCarrier(ctx, carrier))
	require.NotZero(t, carrier.ID)

	require.NoError(t, st.SetCarrierActive(ctx, carrier.ID, false))
	gotCarrier, err := st.GetCarrier(ctx, carrier.ID)
	require.NoError(t, err)
	require.False(t, gotCarrier.Active)
	require.NoError(t, st.SetCarrierActive(ctx, carrier.ID, true))

	err = st.SetCarrierActive(ctx, 9999, false)
	require.Error(t, err)
	require.Equal(t, derr.KindNotFound, derr.KindOf(err))

	v1 := &models.Vehicle{
		Ref: "AB123CD", CarrierID: carrier.ID,
		WeightCapacityKg: 20000, VolumeCapacityM3: 60,
		FuelPer100Km: 30, CostPerKm: 12.5,
		State: models.VehicleStateAvailable,
	}
	require.NoError(t, st.CreateVehicle(ctx, v1))
	require.NotZero(t, v1.ID)

	// дубль ref -> Conflict
	dup := &models.Vehicle{Ref: "AB123CD", CarrierID: carrier.ID, State: models.VehicleStateAvailable}
	err = st.CreateVehicle(ctx, dup)
	require.Error(t, err)
	require.Equal(t, derr.KindConflict, derr.KindOf(err))

	v2 := &models.Vehicle{
		Ref: "EF456GH", CarrierID: carrier.ID,
		WeightCapacityKg: 5000, VolumeCapacityM3: 20,
		FuelPer100Km: 18, CostPerKm: 8,
		State: models.VehicleStateAvailable,
	}
	require.NoError(t, st.CreateVehicle(ctx, v2))

	got, err := st.GetVehicleByRef(ctx, "AB123CD")
	require.NoError(t, err)
	require.Equal(t, v1.ID, got.ID)
	require.Empty(t, got.QueuedLegIDs)

	_, err = st.GetVehicleByRef(ctx, "XX000XX")
	require.Error(t, err)
	require.Equal(t, derr.KindNotFound, derr.KindOf(err))

	// фильтр по грузоподъёмности
	avail, err := st.ListAvailableVehicles(ctx, time.Now().UTC(), 10000, 30)
	require.NoError(t, err)
	require.Len(t, avail, 1)
	require.Equal(t, "AB123CD", avail[0].Ref)

	// мутация под FOR UPDATE: ставим плечо в очередь
	mutated, err := st.MutateVehicle(ctx, "AB123CD", func(v *models.Vehicle, carrierHasEnRoute bool) error {
		require.False(t, carrierHasEnRoute)
		v.QueuedLegIDs = append(v.QueuedLegIDs, 42)
		v.State = models.VehicleStateAssigned
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, mutated.QueuedLegIDs)

	// соседняя машина перевозчика видит чужое исполнение
	_, err = st.MutateVehicle(ctx, "AB123CD", func(v *models.Vehicle, _ bool) error {
		legID := uint64(42)
		v.QueuedLegIDs = nil
		v.CurrentLegID = &legID
		v.State = models.VehicleStateEnRoute
		return nil
	})
	require.NoError(t, err)

	_, err = st.MutateVehicle(ctx, "EF456GH", func(v *models.Vehicle, carrierHasEnRoute bool) error {
		require.True(t, carrierHasEnRoute)
		return nil
	})
	require.NoError(t, err)

	// ошибка из fn откатывает изменения
	_, err = st.MutateVehicle(ctx, "EF456GH", func(v *models.Vehicle, _ bool) error {
		v.TotalKm = 999999
		return derr.Conflict("no")
	})
	require.Error(t, err)
	after, err := st.GetVehicleByRef(ctx, "EF456GH")
	require.NoError(t, err)
	require.Zero(t, after.TotalKm)

	byCarrier, err := st.ListVehiclesByCarrier(ctx, carrier.ID)
	require.NoError(t, err)
	require.Len(t, byCarrier, 2)

	// два конкурентных beginNext по разным машинам одного перевозчика:
	// замок на строке перевозчика пропускает ровно одного
	_, err = st.MutateVehicle(ctx, "AB123CD", func(v *models.Vehicle, _ bool) error {
		v.CurrentLegID = nil
		v.State = models.VehicleStateAvailable
		return nil
	})
	require.NoError(t, err)

	begin := func(ref string, legID uint64) error {
		_, mErr := st.MutateVehicle(ctx, ref, func(v *models.Vehicle, carrierHasEnRoute bool) error {
			if carrierHasEnRoute {
				return derr.Conflict("carrier %d already has a vehicle en route", v.CarrierID)
			}
			v.CurrentLegID = &legID
			v.State = models.VehicleStateEnRoute
			return nil
		})
		return mErr
	}

	results := make(chan error, 2)
	go func() { results <- begin("AB123CD", 101) }()
	go func() { results <- begin("EF456GH", 102) }()

	successes := 0
	for i := 0; i < 2; i++ {
		if mErr := <-results; mErr != nil {
			require.Equal(t, derr.KindConflict, derr.KindOf(mErr))
		} else {
			successes++
		}
	}
	require.Equal(t, 1, successes)
}
