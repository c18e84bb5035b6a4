package fleet

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/FreightLink/internal/derr"
	"github.com/BearBump/FreightLink/internal/metrics"
	"github.com/BearBump/FreightLink/internal/models"
)

type Repository interface {
	GetCarrier(ctx context.Context, id uint64) (*models.Carrier, error)
	CreateVehicle(ctx context.Context, v *models.Vehicle) error
	GetVehicleByRef(ctx context.Context, ref string) (*models.Vehicle, error)
	ListVehiclesByCarrier(ctx context.Context, carrierID uint64) ([]*models.Vehicle, error)
	ListAvailableVehicles(ctx context.Context, at time.Time, minWeightKg, minVolumeM3 float64) ([]*models.Vehicle, error)
	MutateVehicle(ctx context.Context, ref string, fn func(v *models.Vehicle, carrierHasEnRoute bool) error) (*models.Vehicle, error)
}

type Service struct {
	repo Repository
	log  *slog.Logger
}

func New(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log}
}

// DeriveState — статус машины как чистая функция от очереди.
// MAINTENANCE перекрывает всё; исполнение перекрывает очередь.
func DeriveState(queueLen int, executing, maintenance bool) string {
	switch {
	case maintenance:
		return models.VehicleStateMaintenance
	case executing:
		return models.VehicleStateEnRoute
	case queueLen == 0:
		return models.VehicleStateAvailable
	case queueLen == 1:
		return models.VehicleStateAssigned
	default:
		return models.VehicleStateScheduled
	}
}

func (s *Service) RegisterVehicle(ctx context.Context, in models.VehicleCreateInput) (*models.Vehicle, error) {
	ref := strings.ToUpper(strings.TrimSpace(in.Ref))
	if ref == "" {
		return nil, derr.InvalidState("vehicle ref is required")
	}
	if in.WeightCapacityKg <= 0 {
		return nil, derr.InvalidState("weight capacity must be > 0")
	}
	if in.VolumeCapacityM3 <= 0 {
		return nil, derr.InvalidState("volume capacity must be > 0")
	}
	if in.FuelPer100Km <= 0 {
		return nil, derr.InvalidState("fuel consumption must be > 0")
	}
	if in.CostPerKm <= 0 {
		return nil, derr.InvalidState("cost per km must be > 0")
	}

	carrier, err := s.repo.GetCarrier(ctx, in.CarrierID)
	if err != nil {
		return nil, err
	}
	if !carrier.Active {
		return nil, derr.Conflict("carrier %d is not active", carrier.ID)
	}

	v := &models.Vehicle{
		Ref:              ref,
		CarrierID:        in.CarrierID,
		WeightCapacityKg: in.WeightCapacityKg,
		VolumeCapacityM3: in.VolumeCapacityM3,
		FuelPer100Km:     in.FuelPer100Km,
		CostPerKm:        in.CostPerKm,
		State:            DeriveState(0, false, false),
	}
	if err := s.repo.CreateVehicle(ctx, v); err != nil {
		return nil, err
	}
	s.log.Info("vehicle registered", "ref", v.Ref, "carrier_id", v.CarrierID)
	return v, nil
}

func (s *Service) GetVehicle(ctx context.Context, ref string) (*models.Vehicle, error) {
	return s.repo.GetVehicleByRef(ctx, strings.ToUpper(strings.TrimSpace(ref)))
}

func (s *Service) ListByCarrier(ctx context.Context, carrierID uint64) ([]*models.Vehicle, error) {
	if _, err := s.repo.GetCarrier(ctx, carrierID); err != nil {
		return nil, err
	}
	return s.repo.ListVehiclesByCarrier(ctx, carrierID)
}

// Reserve ставит плечо в хвост очереди машины. Повтор с тем же legID —
// no-op: ретраи оркестратора идемпотентны по (legID, ref).
func (s *Service) Reserve(ctx context.Context, ref string, legID uint64, plannedEnd *time.Time) (*models.Vehicle, error) {
	return s.mutate(ctx, ref, func(v *models.Vehicle, carrierHasEnRoute bool) error {
		for _, id := range v.QueuedLegIDs {
			if id == legID {
				return nil
			}
		}
		if v.Maintenance || v.CurrentLegID != nil {
			return derr.Conflict("vehicle %s is %s", v.Ref, v.State)
		}
		if carrierHasEnRoute {
			return derr.Conflict("carrier %d already has a vehicle en route", v.CarrierID)
		}

		v.QueuedLegIDs = append(v.QueuedLegIDs, legID)
		v.State = DeriveState(len(v.QueuedLegIDs), false, false)
		if plannedEnd != nil && (v.NextFreeAt == nil || plannedEnd.After(*v.NextFreeAt)) {
			v.NextFreeAt = plannedEnd
		}
		return nil
	})
}

// BeginNext снимает голову очереди и отдаёт её в исполнение.
// Очередь строго FIFO: чужой legID — Conflict, даже если он в очереди.
func (s *Service) BeginNext(ctx context.Context, ref string, legID uint64) (*models.Vehicle, error) {
	return s.mutate(ctx, ref, func(v *models.Vehicle, carrierHasEnRoute bool) error {
		if v.State != models.VehicleStateAssigned && v.State != models.VehicleStateScheduled {
			return derr.Conflict("vehicle %s is %s, nothing to begin", v.Ref, v.State)
		}
		if len(v.QueuedLegIDs) == 0 || v.QueuedLegIDs[0] != legID {
			return derr.Conflict("leg %d is not at the head of vehicle %s queue", legID, v.Ref)
		}
		if carrierHasEnRoute {
			return derr.Conflict("carrier %d already has a vehicle en route", v.CarrierID)
		}

		head := v.QueuedLegIDs[0]
		v.QueuedLegIDs = v.QueuedLegIDs[1:]
		v.CurrentLegID = &head
		v.State = DeriveState(len(v.QueuedLegIDs), true, false)
		return nil
	})
}

// Release завершает исполняемое плечо: пробег в копилку, статус из
// остатка очереди. Повторный release того же плеча — Conflict.
func (s *Service) Release(ctx context.Context, ref string, legID uint64, distanceKm float64) (*models.Vehicle, error) {
	return s.mutate(ctx, ref, func(v *models.Vehicle, _ bool) error {
		if v.CurrentLegID == nil || v.State != models.VehicleStateEnRoute {
			return derr.Conflict("vehicle %s is not en route", v.Ref)
		}
		if *v.CurrentLegID != legID {
			return derr.Conflict("vehicle %s is executing leg %d, not %d", v.Ref, *v.CurrentLegID, legID)
		}

		v.CurrentLegID = nil
		v.TotalKm += distanceKm
		v.State = DeriveState(len(v.QueuedLegIDs), false, v.Maintenance)
		if len(v.QueuedLegIDs) == 0 {
			v.NextFreeAt = nil
		}
		return nil
	})
}

// ReleaseReservation убирает ещё не начатое плечо из очереди
// (переназначение на другую машину).
func (s *Service) ReleaseReservation(ctx context.Context, ref string, legID uint64) (*models.Vehicle, error) {
	return s.mutate(ctx, ref, func(v *models.Vehicle, _ bool) error {
		idx := -1
		for i, id := range v.QueuedLegIDs {
			if id == legID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return derr.Conflict("leg %d is not queued on vehicle %s", legID, v.Ref)
		}

		v.QueuedLegIDs = append(v.QueuedLegIDs[:idx], v.QueuedLegIDs[idx+1:]...)
		v.State = DeriveState(len(v.QueuedLegIDs), v.CurrentLegID != nil, v.Maintenance)
		if len(v.QueuedLegIDs) == 0 && v.CurrentLegID == nil {
			v.NextFreeAt = nil
		}
		return nil
	})
}

// SetMaintenance допустим только из AVAILABLE и обратно.
func (s *Service) SetMaintenance(ctx context.Context, ref string, on bool) (*models.Vehicle, error) {
	return s.mutate(ctx, ref, func(v *models.Vehicle, _ bool) error {
		if on && v.State != models.VehicleStateAvailable {
			return derr.Conflict("vehicle %s is %s, cannot enter maintenance", v.Ref, v.State)
		}
		if !on && v.State != models.VehicleStateMaintenance {
			return derr.Conflict("vehicle %s is not in maintenance", v.Ref)
		}

		v.Maintenance = on
		v.State = DeriveState(len(v.QueuedLegIDs), v.CurrentLegID != nil, on)
		return nil
	})
}

// IsAvailableAt: MAINTENANCE — всегда false; иначе свободна, если
// next_free_at не задан или не позже when.
func (s *Service) IsAvailableAt(ctx context.Context, ref string, when time.Time) (bool, error) {
	v, err := s.GetVehicle(ctx, ref)
	if err != nil {
		return false, err
	}
	if v.Maintenance {
		return false, nil
	}
	return v.NextFreeAt == nil || !v.NextFreeAt.After(when), nil
}

func (s *Service) SearchAvailable(ctx context.Context, at time.Time, minWeightKg, minVolumeM3 float64) ([]*models.Vehicle, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return s.repo.ListAvailableVehicles(ctx, at, minWeightKg, minVolumeM3)
}

func (s *Service) mutate(ctx context.Context, ref string, fn func(v *models.Vehicle, carrierHasEnRoute bool) error) (*models.Vehicle, error) {
	v, err := s.repo.MutateVehicle(ctx, strings.ToUpper(strings.TrimSpace(ref)), fn)
	if derr.IsKind(err, derr.KindConflict) {
		metrics.QueueConflicts.Inc()
	}
	return v, err
}
