package legs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/FreightLink/internal/broker/messages"
	"github.com/BearBump/FreightLink/internal/cache"
	"github.com/BearBump/FreightLink/internal/derr"
	"github.com/BearBump/FreightLink/internal/integrations/fleetclient"
	"github.com/BearBump/FreightLink/internal/metrics"
	"github.com/BearBump/FreightLink/internal/models"
	"github.com/BearBump/FreightLink/internal/pricing"
	"github.com/BearBump/FreightLink/internal/storage/pglogistics"
	"github.com/google/uuid"
)

type Repository interface {
	GetLeg(ctx context.Context, id uint64) (*models.Leg, error)
	GetRoute(ctx context.Context, id uint64) (*models.Route, error)
	ListRouteLegs(ctx context.Context, routeID uint64) ([]*models.Leg, error)
	ListPendingLegs(ctx context.Context, limit int) ([]*models.Leg, error)
	MarkLegAssigned(ctx context.Context, legID uint64, vehicleRef, fromState string, plannedStart, plannedEnd *time.Time) (bool, error)
	MarkLegStarted(ctx context.Context, legID uint64, startAt time.Time) (bool, error)
	MarkLegFinished(ctx context.Context, legID uint64, upd pglogistics.LegFinishUpdate) (bool, error)
	CountUnfinishedLegs(ctx context.Context, routeID uint64) (int, error)
	SumRouteActuals(ctx context.Context, routeID uint64) (cost float64, durationSec float64, err error)
	GetTariff(ctx context.Context, id uint64) (*models.Tariff, error)
	GetDepot(ctx context.Context, id uint64) (*models.Depot, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Guard отсекает параллельные ретраи назначения по ключу (legID, ref).
type Guard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type Service struct {
	repo       Repository
	fleet      fleetclient.Client
	cache      cache.BytesCache
	profileTTL time.Duration
	producer   Producer
	topic      string
	guard      Guard
	guardTTL   time.Duration
	log        *slog.Logger
}

func New(repo Repository, fleet fleetclient.Client, c cache.BytesCache, profileTTL time.Duration,
	producer Producer, topic string, guard Guard, guardTTL time.Duration, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:       repo,
		fleet:      fleet,
		cache:      c,
		profileTTL: profileTTL,
		producer:   producer,
		topic:      topic,
		guard:      guard,
		guardTTL:   guardTTL,
		log:        log,
	}
}

func (s *Service) GetLeg(ctx context.Context, id uint64) (*models.Leg, error) {
	return s.repo.GetLeg(ctx, id)
}

func (s *Service) ListPending(ctx context.Context, limit int) ([]*models.Leg, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return s.repo.ListPendingLegs(ctx, limit)
}

// Assign — планировщицкая половина оркестрации назначения: сперва локальный
// переход ESTIMATED→ASSIGNED, затем резерв на стороне флота. Отката при
// сбое резерва нет: машина без брони хуже, чем бронь без записи у нас.
func (s *Service) Assign(ctx context.Context, legID uint64, vehicleRef string, plannedStart, plannedEnd *time.Time) (*models.Leg, error) {
	vehicleRef = strings.ToUpper(strings.TrimSpace(vehicleRef))
	if vehicleRef == "" {
		return nil, derr.InvalidState("vehicle ref is required")
	}

	leg, err := s.repo.GetLeg(ctx, legID)
	if err != nil {
		return nil, err
	}
	// ретрай после частичного успеха: уже назначено на ту же машину
	if leg.State == models.LegStateAssigned && leg.VehicleRef == vehicleRef {
		return leg, nil
	}
	if leg.State != models.LegStateEstimated {
		return nil, derr.InvalidState("leg %d is %s, cannot assign", legID, leg.State)
	}

	guardKey := fmt.Sprintf("assign:%d:%s", legID, vehicleRef)
	if s.guard != nil {
		ok, err := s.guard.Acquire(ctx, guardKey, s.guardTTL)
		if err != nil {
			s.log.Warn("assign guard unavailable", "leg_id", legID, "err", err)
		} else if !ok {
			return nil, derr.Conflict("assignment of leg %d to %s is already in flight", legID, vehicleRef)
		}
	}

	ok, err := s.repo.MarkLegAssigned(ctx, legID, vehicleRef, models.LegStateEstimated, plannedStart, plannedEnd)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, derr.InvalidState("leg %d changed state concurrently", legID)
	}
	metrics.LegTransitions.WithLabelValues("assign").Inc()

	if err := s.fleet.ReserveLeg(ctx, vehicleRef, legID, plannedEnd); err != nil {
		metrics.CrossServiceFailures.WithLabelValues("fleet").Inc()
		if s.guard != nil {
			_ = s.guard.Release(ctx, guardKey)
		}
		s.log.Error("fleet reservation failed after local assign", "leg_id", legID, "vehicle_ref", vehicleRef, "err", err)
		if derr.KindOf(err) != derr.KindInternal {
			return nil, err
		}
		return nil, derr.External(err, "reserve leg on fleet")
	}

	return s.repo.GetLeg(ctx, legID)
}

type ConsecutiveAssignment struct {
	LegID        uint64
	PlannedStart time.Time
	PlannedEnd   time.Time
}

// AssignConsecutive назначает одну машину на несколько плеч подряд.
// Окна должны быть валидны и строго упорядочены без пересечений.
func (s *Service) AssignConsecutive(ctx context.Context, vehicleRef string, items []ConsecutiveAssignment) ([]*models.Leg, error) {
	if len(items) == 0 {
		return nil, derr.InvalidState("no legs to assign")
	}
	for i, it := range items {
		if !it.PlannedStart.Before(it.PlannedEnd) {
			return nil, derr.InvalidState("leg %d window is empty or inverted", it.LegID)
		}
		if i > 0 && items[i-1].PlannedEnd.After(it.PlannedStart) {
			return nil, derr.InvalidState("leg %d window overlaps the previous one", it.LegID)
		}
	}

	out := make([]*models.Leg, 0, len(items))
	for _, it := range items {
		start, end := it.PlannedStart, it.PlannedEnd
		leg, err := s.Assign(ctx, it.LegID, vehicleRef, &start, &end)
		if err != nil {
			return out, err
		}
		out = append(out, leg)
	}
	return out, nil
}

// Reassign меняет машину у ещё не начатого плеча. Старую бронь снимаем
// по возможности; новую ставим как в Assign, без отката.
func (s *Service) Reassign(ctx context.Context, legID uint64, newVehicleRef string, plannedStart, plannedEnd *time.Time) (*models.Leg, error) {
	newVehicleRef = strings.ToUpper(strings.TrimSpace(newVehicleRef))
	if newVehicleRef == "" {
		return nil, derr.InvalidState("vehicle ref is required")
	}

	leg, err := s.repo.GetLeg(ctx, legID)
	if err != nil {
		return nil, err
	}
	if leg.State != models.LegStateEstimated && leg.State != models.LegStateAssigned {
		return nil, derr.Conflict("leg %d is %s, too late to reassign", legID, leg.State)
	}

	oldRef := leg.VehicleRef
	ok, err := s.repo.MarkLegAssigned(ctx, legID, newVehicleRef, leg.State, plannedStart, plannedEnd)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, derr.Conflict("leg %d changed state concurrently", legID)
	}
	metrics.LegTransitions.WithLabelValues("reassign").Inc()

	if oldRef != "" && oldRef != newVehicleRef {
		if err := s.fleet.ReleaseReservation(ctx, oldRef, legID); err != nil {
			metrics.CrossServiceFailures.WithLabelValues("fleet").Inc()
			s.log.Warn("release of old reservation failed", "leg_id", legID, "vehicle_ref", oldRef, "err", err)
		}
	}

	if err := s.fleet.ReserveLeg(ctx, newVehicleRef, legID, plannedEnd); err != nil {
		metrics.CrossServiceFailures.WithLabelValues("fleet").Inc()
		s.log.Error("fleet reservation failed after reassign", "leg_id", legID, "vehicle_ref", newVehicleRef, "err", err)
		if derr.KindOf(err) != derr.KindInternal {
			return nil, err
		}
		return nil, derr.External(err, "reserve leg on fleet")
	}

	return s.repo.GetLeg(ctx, legID)
}

// CanStart проверяет последовательность: все предыдущие плечи маршрута
// должны быть FINISHED.
func (s *Service) CanStart(ctx context.Context, legID uint64) error {
	leg, err := s.repo.GetLeg(ctx, legID)
	if err != nil {
		return err
	}
	all, err := s.repo.ListRouteLegs(ctx, leg.RouteID)
	if err != nil {
		return err
	}
	for _, prior := range all {
		if prior.SequenceIndex >= leg.SequenceIndex {
			break
		}
		if prior.State != models.LegStateFinished {
			return derr.InvalidState("must finish leg %d first", prior.ID)
		}
	}
	return nil
}

func (s *Service) Start(ctx context.Context, legID uint64) (*models.Leg, error) {
	leg, err := s.repo.GetLeg(ctx, legID)
	if err != nil {
		return nil, err
	}
	if leg.State != models.LegStateAssigned {
		return nil, derr.InvalidState("leg %d is %s, cannot start", legID, leg.State)
	}
	if err := s.CanStart(ctx, legID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ok, err := s.repo.MarkLegStarted(ctx, legID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, derr.InvalidState("leg %d changed state concurrently", legID)
	}
	metrics.LegTransitions.WithLabelValues("start").Inc()

	leg, err = s.repo.GetLeg(ctx, legID)
	if err != nil {
		return nil, err
	}

	route, rErr := s.repo.GetRoute(ctx, leg.RouteID)
	if rErr == nil {
		s.publish(ctx, route.ShipmentRef, messages.LegStarted{
			EventID:         uuid.NewString(),
			Type:            messages.TypeLegStarted,
			LegID:           leg.ID,
			ShipmentRef:     route.ShipmentRef,
			VehicleRef:      leg.VehicleRef,
			SuggestedStatus: "IN_TRANSIT",
			OccurredAt:      now,
		})
	}
	return leg, nil
}

// Finish закрывает плечо: фактическая стоимость и длительность, события.
// Сбой обращения за профилем машины не валит операцию — переходим на
// тарифную ставку и оставляем след в логе.
func (s *Service) Finish(ctx context.Context, legID uint64, traveledKm float64) (*models.Leg, error) {
	leg, err := s.repo.GetLeg(ctx, legID)
	if err != nil {
		return nil, err
	}
	if leg.State != models.LegStateInProgress {
		return nil, derr.InvalidState("leg %d is %s, cannot finish", legID, leg.State)
	}
	if traveledKm <= 0 {
		traveledKm = leg.EstimatedKm
	}

	now := time.Now().UTC()
	var durationSec float64
	if leg.RealStartAt != nil {
		durationSec = pricing.DurationSeconds(*leg.RealStartAt, &now, now)
	}

	tariff, err := s.repo.GetTariff(ctx, leg.TariffID)
	if err != nil {
		return nil, err
	}
	rates := pricing.TariffRates{
		BaseRatePerKm:     tariff.BaseRatePerKm,
		FuelPricePerLiter: tariff.FuelPricePerLiter,
		SurchargePercent:  tariff.SurchargePercent,
	}

	tb := pricing.TransportCost(traveledKm, rates, s.vehicleProfile(ctx, leg.VehicleRef))
	if tb.UsedFallback {
		s.log.Warn("vehicle profile unavailable, tariff-only cost", "leg_id", legID, "vehicle_ref", leg.VehicleRef)
	}
	cost := tb.Cost

	endLocation := "Final Destination"
	if leg.EndsAtDepot() {
		depot, dErr := s.repo.GetDepot(ctx, *leg.DestinationDepotID)
		if dErr != nil {
			return nil, dErr
		}
		endLocation = depot.Name

		nextStart := s.successorStart(ctx, leg)
		days := pricing.DwellDays(now, nextStart)
		cost += pricing.DwellCost(days, depot.DailyDwellCost)
	}

	ok, err := s.repo.MarkLegFinished(ctx, legID, pglogistics.LegFinishUpdate{
		TraveledKm:      traveledKm,
		RealCost:        cost,
		RealDurationSec: durationSec,
		RealEndAt:       now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, derr.InvalidState("leg %d changed state concurrently", legID)
	}
	metrics.LegTransitions.WithLabelValues("finish").Inc()

	route, rErr := s.repo.GetRoute(ctx, leg.RouteID)
	if rErr == nil {
		suggested := "AT_DEPOT"
		if !leg.EndsAtDepot() {
			suggested = "DELIVERED"
		}
		s.publish(ctx, route.ShipmentRef, messages.LegFinished{
			EventID:          uuid.NewString(),
			Type:             messages.TypeLegFinished,
			LegID:            leg.ID,
			ShipmentRef:      route.ShipmentRef,
			VehicleRef:       leg.VehicleRef,
			TraveledKm:       traveledKm,
			RealCost:         cost,
			RealDurationSec:  int64(durationSec),
			EndLocation:      endLocation,
			FinalDestination: !leg.EndsAtDepot(),
			SuggestedStatus:  suggested,
			OccurredAt:       now,
		})

		unfinished, cErr := s.repo.CountUnfinishedLegs(ctx, leg.RouteID)
		if cErr == nil && unfinished == 0 {
			totalCost, totalDur, sErr := s.repo.SumRouteActuals(ctx, leg.RouteID)
			if sErr == nil {
				s.publish(ctx, route.ShipmentRef, messages.RouteCompleted{
					EventID:              uuid.NewString(),
					Type:                 messages.TypeRouteCompleted,
					RouteID:              route.ID,
					ShipmentRef:          route.ShipmentRef,
					TotalRealCost:        totalCost,
					TotalRealDurationSec: int64(totalDur),
					OccurredAt:           now,
				})
			}
		}
	}

	return s.repo.GetLeg(ctx, legID)
}

// successorStart — фактический старт плеча, уходящего с депо, на котором
// закончилось это. Плановый старт не считается: пока преемник реально не
// выехал, конец простоя неизвестен и тарифицируется минимум в один день.
func (s *Service) successorStart(ctx context.Context, leg *models.Leg) *time.Time {
	if leg.DestinationDepotID == nil {
		return nil
	}
	all, err := s.repo.ListRouteLegs(ctx, leg.RouteID)
	if err != nil {
		return nil
	}
	for _, l := range all {
		if l.OriginDepotID != nil && *l.OriginDepotID == *leg.DestinationDepotID && l.RealStartAt != nil {
			return l.RealStartAt
		}
	}
	return nil
}

func (s *Service) vehicleProfile(ctx context.Context, ref string) *pricing.VehicleProfile {
	if ref == "" {
		return nil
	}
	key := "vehicle-profile:" + ref

	if s.cache != nil && s.profileTTL > 0 {
		if b, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var p pricing.VehicleProfile
			if json.Unmarshal(b, &p) == nil {
				return &p
			}
		}
	}

	remote, err := s.fleet.VehicleProfile(ctx, ref)
	if err != nil {
		metrics.CrossServiceFailures.WithLabelValues("fleet").Inc()
		s.log.Warn("vehicle profile lookup failed", "vehicle_ref", ref, "err", err)
		return nil
	}
	p := pricing.VehicleProfile{FuelPer100Km: remote.FuelPer100Km, CostPerKm: remote.CostPerKm}

	if s.cache != nil && s.profileTTL > 0 {
		if b, err := json.Marshal(p); err == nil {
			if err := s.cache.Set(ctx, key, b, s.profileTTL); err != nil {
				s.log.Warn("profile cache set failed", "vehicle_ref", ref, "err", err)
			}
		}
	}
	return &p
}

// publish — best effort: события информационные, операцию не валят.
func (s *Service) publish(ctx context.Context, key string, msg any) {
	if s.producer == nil {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("marshal event", "err", err)
		return
	}
	if err := s.producer.Publish(ctx, s.topic, []byte(key), b); err != nil {
		s.log.Warn("publish event failed", "topic", s.topic, "err", err)
		return
	}
	if env := envelopeType(b); env != "" {
		metrics.EventsPublished.WithLabelValues(env).Inc()
	}
}

func envelopeType(b []byte) string {
	var env messages.Envelope
	if json.Unmarshal(b, &env) != nil {
		return ""
	}
	return env.Type
}
