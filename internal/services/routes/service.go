package routes

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/FreightLink/internal/derr"
	"github.com/BearBump/FreightLink/internal/integrations/routing"
	"github.com/BearBump/FreightLink/internal/metrics"
	"github.com/BearBump/FreightLink/internal/models"
)

type Repository interface {
	GetRouteByShipmentRef(ctx context.Context, shipmentRef string) (*models.Route, error)
	CreateRouteWithLegs(ctx context.Context, route *models.Route, legs []*models.Leg) error
	ListRouteLegs(ctx context.Context, routeID uint64) ([]*models.Leg, error)
	GetRoute(ctx context.Context, id uint64) (*models.Route, error)
	GetTariff(ctx context.Context, id uint64) (*models.Tariff, error)
	CurrentTariff(ctx context.Context, t time.Time) (*models.Tariff, error)
	GetDepotsByIDs(ctx context.Context, ids []uint64) ([]*models.Depot, error)
}

type Service struct {
	repo   Repository
	router routing.Client
	log    *slog.Logger
}

func New(repo Repository, router routing.Client, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, router: router, log: log}
}

type PlanRequest struct {
	ShipmentRef string
	Origin      models.GeoPoint
	Destination models.GeoPoint
	DepotIDs    []uint64
	// TariffID == 0 — берём действующий на момент планирования.
	TariffID uint64
}

type PlanResult struct {
	Route            *models.Route
	Legs             []*models.Leg
	TotalDistanceKm  float64
	TotalCost        float64
	TotalDurationSec float64
	// AlreadyPlanned: маршрут для этого груза существовал, вернули как есть.
	AlreadyPlanned bool
}

// Plan идемпотентен по shipmentRef: повторный вызов возвращает уже
// построенный маршрут, не трогая роутер.
func (s *Service) Plan(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	ref := strings.TrimSpace(req.ShipmentRef)
	if ref == "" {
		return nil, derr.InvalidState("shipment ref is required")
	}

	existing, err := s.repo.GetRouteByShipmentRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		res, err := s.loadResult(ctx, existing)
		if err != nil {
			return nil, err
		}
		res.AlreadyPlanned = true
		return res, nil
	}

	tariff, err := s.resolveTariff(ctx, req.TariffID)
	if err != nil {
		return nil, err
	}

	segs, err := s.walk(ctx, req.Origin, req.DepotIDs, req.Destination)
	if err != nil {
		return nil, err
	}

	res := &PlanResult{Route: &models.Route{ShipmentRef: ref}}
	for i, seg := range segs {
		leg := &models.Leg{
			SequenceIndex:        i,
			OriginDepotID:        seg.fromDepotID,
			DestinationDepotID:   seg.toDepotID,
			TariffID:             tariff.ID,
			Type:                 legType(seg),
			EstimatedKm:          seg.distanceKm,
			EstimatedCost:        seg.distanceKm * tariff.BaseRatePerKm,
			EstimatedDurationSec: float64(seg.durationSec),
		}
		res.Legs = append(res.Legs, leg)
		res.TotalDistanceKm += leg.EstimatedKm
		res.TotalCost += leg.EstimatedCost
		res.TotalDurationSec += leg.EstimatedDurationSec
	}
	res.Route.TotalDistanceKm = res.TotalDistanceKm

	if err := s.repo.CreateRouteWithLegs(ctx, res.Route, res.Legs); err != nil {
		// конкурирующий Plan того же груза успел первым — отдаём его маршрут
		if derr.KindOf(err) == derr.KindConflict {
			winner, gErr := s.repo.GetRouteByShipmentRef(ctx, ref)
			if gErr == nil && winner != nil {
				res, lErr := s.loadResult(ctx, winner)
				if lErr != nil {
					return nil, lErr
				}
				res.AlreadyPlanned = true
				return res, nil
			}
		}
		return nil, err
	}
	s.log.Info("route planned", "shipment_ref", ref, "legs", len(res.Legs), "total_km", res.TotalDistanceKm)
	return res, nil
}

func (s *Service) GetRoute(ctx context.Context, id uint64) (*PlanResult, error) {
	route, err := s.repo.GetRoute(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.loadResult(ctx, route)
}

type Quote struct {
	TotalDistanceKm  float64
	TotalDurationSec float64
	Segments         int
}

// Quote — расстояние и время по цепочке без сохранения чего-либо.
func (s *Service) Quote(ctx context.Context, origin models.GeoPoint, depotIDs []uint64, destination models.GeoPoint) (*Quote, error) {
	segs, err := s.walk(ctx, origin, depotIDs, destination)
	if err != nil {
		return nil, err
	}
	q := &Quote{Segments: len(segs)}
	for _, seg := range segs {
		q.TotalDistanceKm += seg.distanceKm
		q.TotalDurationSec += float64(seg.durationSec)
	}
	return q, nil
}

const (
	altCostFactor     = 1.15
	altDurationFactor = 1.20
)

type Alternative struct {
	Label            string
	TotalDistanceKm  float64
	TotalCost        float64
	TotalDurationSec float64
}

// PreviewAlternatives — базовый вариант плюс один "запасной" с фиксированной
// надбавкой. Эвристика-заглушка вместо настоящего альтернативного роутинга;
// ничего не сохраняет.
func (s *Service) PreviewAlternatives(ctx context.Context, req PlanRequest) ([]Alternative, error) {
	tariff, err := s.resolveTariff(ctx, req.TariffID)
	if err != nil {
		return nil, err
	}
	q, err := s.Quote(ctx, req.Origin, req.DepotIDs, req.Destination)
	if err != nil {
		return nil, err
	}

	base := Alternative{
		Label:            "primary",
		TotalDistanceKm:  q.TotalDistanceKm,
		TotalCost:        q.TotalDistanceKm * tariff.BaseRatePerKm,
		TotalDurationSec: q.TotalDurationSec,
	}
	alt := Alternative{
		Label:            "fallback",
		TotalDistanceKm:  q.TotalDistanceKm,
		TotalCost:        base.TotalCost * altCostFactor,
		TotalDurationSec: base.TotalDurationSec * altDurationFactor,
	}
	return []Alternative{base, alt}, nil
}

type segment struct {
	fromDepotID *uint64
	toDepotID   *uint64
	distanceKm  float64
	durationSec int64
}

// walk обходит цепочку origin → депо... → destination, по одному вызову
// роутера на пару соседних точек.
func (s *Service) walk(ctx context.Context, origin models.GeoPoint, depotIDs []uint64, destination models.GeoPoint) ([]segment, error) {
	depots, err := s.repo.GetDepotsByIDs(ctx, depotIDs)
	if err != nil {
		return nil, err
	}

	type point struct {
		geo     models.GeoPoint
		depotID *uint64
	}
	points := make([]point, 0, len(depots)+2)
	points = append(points, point{geo: origin})
	for _, d := range depots {
		id := d.ID
		points = append(points, point{geo: models.GeoPoint{Lat: d.Lat, Lon: d.Lon}, depotID: &id})
	}
	points = append(points, point{geo: destination})

	segs := make([]segment, 0, len(points)-1)
	for i := 0; i+1 < len(points); i++ {
		r, err := s.router.Route(ctx, points[i].geo, points[i+1].geo)
		if err != nil {
			metrics.CrossServiceFailures.WithLabelValues("routing").Inc()
			return nil, err
		}
		if r.DistanceKm <= 0 {
			metrics.CrossServiceFailures.WithLabelValues("routing").Inc()
			return nil, derr.Externalf(nil, "routing returned empty segment %d", i)
		}
		segs = append(segs, segment{
			fromDepotID: points[i].depotID,
			toDepotID:   points[i+1].depotID,
			distanceKm:  r.DistanceKm,
			durationSec: r.DurationSec,
		})
	}
	return segs, nil
}

func legType(seg segment) string {
	switch {
	case seg.fromDepotID == nil && seg.toDepotID == nil:
		return models.LegTypePickupToDelivery
	case seg.fromDepotID == nil:
		return models.LegTypePickupToDepot
	case seg.toDepotID == nil:
		return models.LegTypeDepotToDelivery
	default:
		return models.LegTypeDepotToDepot
	}
}

func (s *Service) resolveTariff(ctx context.Context, id uint64) (*models.Tariff, error) {
	if id != 0 {
		return s.repo.GetTariff(ctx, id)
	}
	return s.repo.CurrentTariff(ctx, time.Now().UTC())
}

func (s *Service) loadResult(ctx context.Context, route *models.Route) (*PlanResult, error) {
	legs, err := s.repo.ListRouteLegs(ctx, route.ID)
	if err != nil {
		return nil, err
	}
	res := &PlanResult{Route: route, Legs: legs}
	for _, l := range legs {
		res.TotalDistanceKm += l.EstimatedKm
		res.TotalCost += l.EstimatedCost
		res.TotalDurationSec += l.EstimatedDurationSec
	}
	return res, nil
}
