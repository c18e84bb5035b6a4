package pglogistics

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/FreightLink/internal/models"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPGLogistics_RepoFlow(t *testing.T) {
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
			"POSTGRES_DB":       "freightlink_test",
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

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/freightlink_test?sslmode=disable"
	st, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	tariff := &models.Tariff{BaseRatePerKm: 100, FuelPricePerLiter: 50}
	require.NoError(t, st.CreateTariff(ctx, tariff))
	require.NotZero(t, tariff.ID)

	depot := &models.Depot{Name: "Hub Central", Lat: -34.6, Lon: -58.4, DailyDwellCost: 500}
	require.NoError(t, st.CreateDepot(ctx, depot))

	route := &models.Route{ShipmentRef: "SHP-100", TotalDistanceKm: 420}
	legs := []*models.Leg{
		{SequenceIndex: 0, DestinationDepotID: &depot.ID, TariffID: tariff.ID, Type: models.LegTypePickupToDepot, EstimatedKm: 120, EstimatedCost: 12000},
		{SequenceIndex: 1, OriginDepotID: &depot.ID, TariffID: tariff.ID, Type: models.LegTypeDepotToDelivery, EstimatedKm: 300, EstimatedCost: 30000},
	}
	require.NoError(t, st.CreateRouteWithLegs(ctx, route, legs))
	require.NotZero(t, route.ID)
	require.Equal(t, 2, route.LegCount)
	require.NotZero(t, legs[0].ID)
	require.Equal(t, models.LegStateEstimated, legs[0].State)

	// идемпотентный поиск по shipment_ref
	got, err := st.GetRouteByShipmentRef(ctx, "SHP-100")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, route.ID, got.ID)

	missing, err := st.GetRouteByShipmentRef(ctx, "SHP-NOPE")
	require.NoError(t, err)
	require.Nil(t, missing)

	ordered, err := st.ListRouteLegs(ctx, route.ID)
	require.NoError(t, err)
	require.Len(t, ordered, 2)
	require.Equal(t, 0, ordered[0].SequenceIndex)
	require.Equal(t, 1, ordered[1].SequenceIndex)

	pending, err := st.ListPendingLegs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	// условные переходы: второй такой же апдейт не проходит
	plannedStart := time.Now().UTC().Add(time.Hour)
	plannedEnd := plannedStart.Add(4 * time.Hour)
	ok, err := st.MarkLegAssigned(ctx, legs[0].ID, "AB123CD", models.LegStateEstimated, &plannedStart, &plannedEnd)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = st.MarkLegAssigned(ctx, legs[0].ID, "ZZ999ZZ", models.LegStateEstimated, nil, nil)
	require.NoError(t, err)
	require.False(t, ok)

	startAt := time.Now().UTC()
	ok, err = st.MarkLegStarted(ctx, legs[0].ID, startAt)
	require.NoError(t, err)
	require.True(t, ok)

	// старт без назначения не проходит
	ok, err = st.MarkLegStarted(ctx, legs[1].ID, startAt)
	require.NoError(t, err)
	require.False(t, ok)

	// назначенное и исполняемое плечо всё ещё pending
	pending, err = st.ListPendingLegs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, models.LegStateInProgress, pending[0].State)

	ok, err = st.MarkLegFinished(ctx, legs[0].ID, LegFinishUpdate{
		TraveledKm: 125, RealCost: 13000, RealDurationSec: 7200, RealEndAt: startAt.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	require.True(t, ok)

	l, err := st.GetLeg(ctx, legs[0].ID)
	require.NoError(t, err)
	require.Equal(t, models.LegStateFinished, l.State)
	require.Equal(t, 125.0, l.TraveledKm)
	require.Equal(t, "AB123CD", l.VehicleRef)
	require.NotNil(t, l.RealEndAt)
	require.NotNil(t, l.PlannedStartAt)
	require.WithinDuration(t, plannedEnd, *l.PlannedEndAt, time.Second)

	// FINISHED уходит из pending
	pending, err = st.ListPendingLegs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, legs[1].ID, pending[0].ID)

	n, err := st.CountUnfinishedLegs(ctx, route.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	cost, dur, err := st.SumRouteActuals(ctx, route.ID)
	require.NoError(t, err)
	require.Equal(t, 13000.0, cost)
	require.Equal(t, 7200.0, dur)
}
