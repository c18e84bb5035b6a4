package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/FreightLink/internal/broker/messages"
	"github.com/BearBump/FreightLink/internal/derr"
	"github.com/BearBump/FreightLink/internal/integrations/plannerclient"
	"github.com/BearBump/FreightLink/internal/metrics"
	"github.com/BearBump/FreightLink/internal/models"
)

// FleetOps — локальная половина оркестрации (очередь машин).
type FleetOps interface {
	GetVehicle(ctx context.Context, ref string) (*models.Vehicle, error)
	BeginNext(ctx context.Context, ref string, legID uint64) (*models.Vehicle, error)
	Release(ctx context.Context, ref string, legID uint64, distanceKm float64) (*models.Vehicle, error)
}

// Service — флотовая сторона кросс-сервисной оркестрации исполнения плеча.
// Двухфазного коммита нет: порядок вызовов выбран так, чтобы отказ в
// середине оставлял систему в наименее опасном состоянии.
type Service struct {
	fleet   FleetOps
	planner plannerclient.Client
	log     *slog.Logger
}

func New(fleet FleetOps, planner plannerclient.Client, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{fleet: fleet, planner: planner, log: log}
}

// Start: читаем плечо у планировщика, снимаем голову очереди локально,
// затем стартуем плечо у планировщика. Отказ планировщика после локальной
// мутации — известное окно рассинхрона: машина уже EN_ROUTE, плечо ещё
// ASSIGNED. Фиксируем метрикой, чинится вручную или консьюмером событий.
func (s *Service) Start(ctx context.Context, legID uint64) (plannerclient.Leg, error) {
	leg, err := s.planner.GetLeg(ctx, legID)
	if err != nil {
		return plannerclient.Leg{}, err
	}
	if leg.VehicleRef == "" {
		return plannerclient.Leg{}, derr.InvalidState("leg %d has no vehicle assigned", legID)
	}

	if _, err := s.fleet.BeginNext(ctx, leg.VehicleRef, legID); err != nil {
		return plannerclient.Leg{}, err
	}

	started, err := s.planner.StartLeg(ctx, legID)
	if err != nil {
		metrics.CrossServiceFailures.WithLabelValues("planner").Inc()
		metrics.ReconcileNeeded.Inc()
		s.log.Error("planner start failed after local begin, states diverged",
			"leg_id", legID, "vehicle_ref", leg.VehicleRef, "err", err)
		return plannerclient.Leg{}, err
	}
	return started, nil
}

// Finish: сперва finish у планировщика — стоимость и сигнал о завершении
// маршрута должны состояться до освобождения машины. Неудавшийся finish
// машину не освобождает никогда.
func (s *Service) Finish(ctx context.Context, legID uint64, traveledKm float64) (plannerclient.Leg, error) {
	leg, err := s.planner.GetLeg(ctx, legID)
	if err != nil {
		return plannerclient.Leg{}, err
	}
	if leg.VehicleRef == "" {
		return plannerclient.Leg{}, derr.InvalidState("leg %d has no vehicle assigned", legID)
	}

	finished, err := s.planner.FinishLeg(ctx, legID, traveledKm)
	if err != nil {
		metrics.CrossServiceFailures.WithLabelValues("planner").Inc()
		return plannerclient.Leg{}, err
	}

	km := finished.TraveledKm
	if km <= 0 {
		km = traveledKm
	}
	if _, err := s.fleet.Release(ctx, leg.VehicleRef, legID, km); err != nil {
		metrics.ReconcileNeeded.Inc()
		s.log.Error("vehicle release failed after planner finish, states diverged",
			"leg_id", legID, "vehicle_ref", leg.VehicleRef, "err", err)
		return finished, err
	}
	return finished, nil
}

// OnLegEvent — обработчик топика событий плеч. Ловит рассинхрон из окна
// Finish: планировщик уже закрыл плечо, а машина всё ещё числится его
// исполнителем. Ошибок наружу не отдаёт, чтобы не блокировать партицию.
func (s *Service) OnLegEvent(ctx context.Context, key, value []byte) error {
	var env messages.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		s.log.Warn("malformed leg event", "err", err)
		return nil
	}
	if env.Type != messages.TypeLegFinished {
		return nil
	}

	var msg messages.LegFinished
	if err := json.Unmarshal(value, &msg); err != nil {
		s.log.Warn("malformed leg.finished event", "err", err)
		return nil
	}
	if msg.VehicleRef == "" {
		return nil
	}

	v, err := s.fleet.GetVehicle(ctx, msg.VehicleRef)
	if derr.IsKind(err, derr.KindNotFound) {
		return nil
	}
	if err != nil {
		s.log.Warn("vehicle lookup for leg event failed", "vehicle_ref", msg.VehicleRef, "err", err)
		return nil
	}

	if v.CurrentLegID != nil && *v.CurrentLegID == msg.LegID {
		metrics.ReconcileNeeded.Inc()
		s.log.Warn("vehicle still executing a finished leg",
			"vehicle_ref", v.Ref, "leg_id", msg.LegID, "finished_at", msg.OccurredAt.Format(time.RFC3339))
	}
	return nil
}
