package routes

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/FreightLink/internal/derr"
	"github.com/BearBump/FreightLink/internal/integrations/routing"
	"github.com/BearBump/FreightLink/internal/models"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	routes  map[string]*models.Route
	legs    map[uint64][]*models.Leg
	tariffs map[uint64]*models.Tariff
	depots  map[uint64]*models.Depot
	nextID  uint64

	// raceWinner моделирует конкурирующий Plan, закоммитивший маршрут между
	// проверкой существования и вставкой: create вернёт Conflict, а повторное
	// чтение по shipment_ref увидит победителя.
	raceWinner *models.Route
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		routes:  map[string]*models.Route{},
		legs:    map[uint64][]*models.Leg{},
		tariffs: map[uint64]*models.Tariff{},
		depots:  map[uint64]*models.Depot{},
	}
}

func (f *fakeRepo) GetRouteByShipmentRef(ctx context.Context, ref string) (*models.Route, error) {
	return f.routes[ref], nil
}

func (f *fakeRepo) GetRoute(ctx context.Context, id uint64) (*models.Route, error) {
	for _, r := range f.routes {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, derr.NotFound("route %d not found", id)
}

func (f *fakeRepo) CreateRouteWithLegs(ctx context.Context, route *models.Route, legs []*models.Leg) error {
	if f.raceWinner != nil {
		f.routes[f.raceWinner.ShipmentRef] = f.raceWinner
		return derr.Conflict("route for shipment %s already exists", route.ShipmentRef)
	}
	f.nextID++
	route.ID = f.nextID
	route.LegCount = len(legs)
	for _, l := range legs {
		f.nextID++
		l.ID = f.nextID
		l.RouteID = route.ID
		l.State = models.LegStateEstimated
	}
	f.routes[route.ShipmentRef] = route
	f.legs[route.ID] = legs
	return nil
}

func (f *fakeRepo) ListRouteLegs(ctx context.Context, routeID uint64) ([]*models.Leg, error) {
	return f.legs[routeID], nil
}

func (f *fakeRepo) GetTariff(ctx context.Context, id uint64) (*models.Tariff, error) {
	t, ok := f.tariffs[id]
	if !ok {
		return nil, derr.NotFound("tariff %d not found", id)
	}
	return t, nil
}

func (f *fakeRepo) CurrentTariff(ctx context.Context, at time.Time) (*models.Tariff, error) {
	for _, t := range f.tariffs {
		return t, nil
	}
	return nil, derr.NotFound("no tariff")
}

func (f *fakeRepo) GetDepotsByIDs(ctx context.Context, ids []uint64) ([]*models.Depot, error) {
	out := make([]*models.Depot, 0, len(ids))
	for _, id := range ids {
		d, ok := f.depots[id]
		if !ok {
			return nil, derr.NotFound("depot %d not found", id)
		}
		out = append(out, d)
	}
	return out, nil
}

// fakeRouter считает 100 км и час на каждую пару точек.
type fakeRouter struct {
	calls int
	err   error
	zero  bool
}

func (r *fakeRouter) Route(ctx context.Context, from, to models.GeoPoint) (routing.Result, error) {
	r.calls++
	if r.err != nil {
		return routing.Result{}, r.err
	}
	if r.zero {
		return routing.Result{}, nil
	}
	return routing.Result{DistanceKm: 100, DurationSec: 3600}, nil
}

func seed(f *fakeRepo) {
	f.tariffs[1] = &models.Tariff{ID: 1, BaseRatePerKm: 100, FuelPricePerLiter: 50}
	f.depots[5] = &models.Depot{ID: 5, Name: "Hub A", Lat: 1, Lon: 1}
	f.depots[6] = &models.Depot{ID: 6, Name: "Hub B", Lat: 2, Lon: 2}
}

func TestPlan(t *testing.T) {
	f := newFakeRepo()
	seed(f)
	router := &fakeRouter{}
	svc := New(f, router, nil)
	ctx := context.Background()

	res, err := svc.Plan(ctx, PlanRequest{
		ShipmentRef: "SHP-1",
		Origin:      models.GeoPoint{Lat: 0, Lon: 0},
		Destination: models.GeoPoint{Lat: 3, Lon: 3},
		DepotIDs:    []uint64{5, 6},
		TariffID:    1,
	})
	require.NoError(t, err)
	require.False(t, res.AlreadyPlanned)
	require.Len(t, res.Legs, 3)
	require.Equal(t, 3, router.calls)

	// типы плеч по цепочке
	require.Equal(t, models.LegTypePickupToDepot, res.Legs[0].Type)
	require.Equal(t, models.LegTypeDepotToDepot, res.Legs[1].Type)
	require.Equal(t, models.LegTypeDepotToDelivery, res.Legs[2].Type)
	require.Equal(t, 0, res.Legs[0].SequenceIndex)
	require.Equal(t, 2, res.Legs[2].SequenceIndex)

	// суммы сходятся с плечами
	require.InDelta(t, 300, res.TotalDistanceKm, 1e-9)
	require.InDelta(t, 30000, res.TotalCost, 1e-9)
	require.InDelta(t, 3*3600, res.TotalDurationSec, 1e-9)
	require.InDelta(t, res.Legs[0].EstimatedCost+res.Legs[1].EstimatedCost+res.Legs[2].EstimatedCost, res.TotalCost, 1e-9)
	require.Equal(t, models.LegStateEstimated, res.Legs[0].State)
}

func TestPlan_Idempotent(t *testing.T) {
	f := newFakeRepo()
	seed(f)
	router := &fakeRouter{}
	svc := New(f, router, nil)
	ctx := context.Background()

	req := PlanRequest{
		ShipmentRef: "SHP-1",
		Destination: models.GeoPoint{Lat: 3, Lon: 3},
		DepotIDs:    []uint64{5},
		TariffID:    1,
	}
	first, err := svc.Plan(ctx, req)
	require.NoError(t, err)

	second, err := svc.Plan(ctx, req)
	require.NoError(t, err)
	require.True(t, second.AlreadyPlanned)
	require.Equal(t, first.Route.ID, second.Route.ID)
	require.Len(t, second.Legs, len(first.Legs))
	for i := range first.Legs {
		require.Equal(t, first.Legs[i].ID, second.Legs[i].ID)
	}
	// роутер не дёргался повторно
	require.Equal(t, 2, router.calls)
}

func TestPlan_ConcurrentDuplicateReturnsWinner(t *testing.T) {
	f := newFakeRepo()
	seed(f)
	svc := New(f, &fakeRouter{}, nil)

	winner := &models.Route{ID: 77, ShipmentRef: "SHP-1", LegCount: 0}
	f.raceWinner = winner

	res, err := svc.Plan(context.Background(), PlanRequest{
		ShipmentRef: "SHP-1",
		Destination: models.GeoPoint{Lat: 3, Lon: 3},
		DepotIDs:    []uint64{5},
		TariffID:    1,
	})
	require.NoError(t, err)
	require.True(t, res.AlreadyPlanned)
	require.Equal(t, winner.ID, res.Route.ID)
}

func TestPlan_DirectNoDepots(t *testing.T) {
	f := newFakeRepo()
	seed(f)
	svc := New(f, &fakeRouter{}, nil)

	res, err := svc.Plan(context.Background(), PlanRequest{
		ShipmentRef: "SHP-2",
		Destination: models.GeoPoint{Lat: 3, Lon: 3},
		TariffID:    1,
	})
	require.NoError(t, err)
	require.Len(t, res.Legs, 1)
	require.Equal(t, models.LegTypePickupToDelivery, res.Legs[0].Type)
}

func TestPlan_RoutingFailures(t *testing.T) {
	f := newFakeRepo()
	seed(f)
	ctx := context.Background()

	svc := New(f, &fakeRouter{err: derr.External(nil, "osrm down")}, nil)
	_, err := svc.Plan(ctx, PlanRequest{ShipmentRef: "SHP-3", TariffID: 1})
	require.Equal(t, derr.KindExternal, derr.KindOf(err))

	// нулевая дистанция трактуется как сбой роутера
	svc = New(f, &fakeRouter{zero: true}, nil)
	_, err = svc.Plan(ctx, PlanRequest{ShipmentRef: "SHP-3", TariffID: 1})
	require.Equal(t, derr.KindExternal, derr.KindOf(err))

	_, err = svc.Plan(ctx, PlanRequest{ShipmentRef: "", TariffID: 1})
	require.Equal(t, derr.KindInvalidState, derr.KindOf(err))
}

func TestQuoteAndPreview(t *testing.T) {
	f := newFakeRepo()
	seed(f)
	svc := New(f, &fakeRouter{}, nil)
	ctx := context.Background()

	q, err := svc.Quote(ctx, models.GeoPoint{}, []uint64{5}, models.GeoPoint{Lat: 3, Lon: 3})
	require.NoError(t, err)
	require.Equal(t, 2, q.Segments)
	require.InDelta(t, 200, q.TotalDistanceKm, 1e-9)

	alts, err := svc.PreviewAlternatives(ctx, PlanRequest{
		Destination: models.GeoPoint{Lat: 3, Lon: 3},
		DepotIDs:    []uint64{5},
		TariffID:    1,
	})
	require.NoError(t, err)
	require.Len(t, alts, 2)
	require.InDelta(t, 20000, alts[0].TotalCost, 1e-9)
	require.InDelta(t, 20000*1.15, alts[1].TotalCost, 1e-9)
	require.InDelta(t, alts[0].TotalDurationSec*1.20, alts[1].TotalDurationSec, 1e-9)

	// ничего не сохранилось
	require.Empty(t, f.routes)
}
