package pglogistics

import (
	"context"
	"time"

	"github.com/BearBump/FreightLink/internal/derr"
	"github.com/BearBump/FreightLink/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const legColumns = `
  id, route_id, sequence_index,
  origin_depot_id, destination_depot_id, tariff_id,
  type, state,
  estimated_km, traveled_km,
  estimated_cost, real_cost,
  estimated_duration_sec, real_duration_sec,
  planned_start_at, planned_end_at, real_start_at, real_end_at,
  vehicle_ref, created_at, updated_at`

func scanLeg(row pgx.Row) (*models.Leg, error) {
	var l models.Leg
	if err := row.Scan(
		&l.ID, &l.RouteID, &l.SequenceIndex,
		&l.OriginDepotID, &l.DestinationDepotID, &l.TariffID,
		&l.Type, &l.State,
		&l.EstimatedKm, &l.TraveledKm,
		&l.EstimatedCost, &l.RealCost,
		&l.EstimatedDurationSec, &l.RealDurationSec,
		&l.PlannedStartAt, &l.PlannedEndAt, &l.RealStartAt, &l.RealEndAt,
		&l.VehicleRef, &l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &l, nil
}

func scanLegs(rows pgx.Rows) ([]*models.Leg, error) {
	var out []*models.Leg
	for rows.Next() {
		l, err := scanLeg(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan leg")
		}
		out = append(out, l)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) GetLeg(ctx context.Context, id uint64) (*models.Leg, error) {
	l, err := scanLeg(s.db.QueryRow(ctx, `SELECT `+legColumns+` FROM legs WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, derr.NotFound("leg %d not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select leg")
	}
	return l, nil
}

// ListPendingLegs — незавершённые плечи в порядке маршрута: всё, что ещё
// не FINISHED, включая назначенные и исполняемые.
func (s *Storage) ListPendingLegs(ctx context.Context, limit int) ([]*models.Leg, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+legColumns+`
FROM legs
WHERE state <> $1
ORDER BY route_id ASC, sequence_index ASC
LIMIT $2
`, models.LegStateFinished, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select pending legs")
	}
	defer rows.Close()

	return scanLegs(rows)
}

// MarkLegAssigned переводит плечо в ASSIGNED условным апдейтом:
// fromState фиксирует состояние, от которого уходим; конкурирующий
// переход получает false без ошибки.
func (s *Storage) MarkLegAssigned(ctx context.Context, legID uint64, vehicleRef, fromState string, plannedStart, plannedEnd *time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE legs
SET vehicle_ref = $2, state = $3,
    planned_start_at = COALESCE($5, planned_start_at),
    planned_end_at = COALESCE($6, planned_end_at),
    updated_at = now()
WHERE id = $1 AND state = $4
`, legID, vehicleRef, models.LegStateAssigned, fromState, plannedStart, plannedEnd)
	if err != nil {
		return false, errors.Wrap(err, "update leg assigned")
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Storage) MarkLegStarted(ctx context.Context, legID uint64, startAt time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE legs
SET state = $2, real_start_at = $3, updated_at = now()
WHERE id = $1 AND state = $4
`, legID, models.LegStateInProgress, startAt.UTC(), models.LegStateAssigned)
	if err != nil {
		return false, errors.Wrap(err, "update leg started")
	}
	return tag.RowsAffected() == 1, nil
}

type LegFinishUpdate struct {
	TraveledKm      float64
	RealCost        float64
	RealDurationSec float64
	RealEndAt       time.Time
}

func (s *Storage) MarkLegFinished(ctx context.Context, legID uint64, upd LegFinishUpdate) (bool, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE legs
SET state = $2, traveled_km = $3, real_cost = $4, real_duration_sec = $5,
    real_end_at = $6, updated_at = now()
WHERE id = $1 AND state = $7
`, legID, models.LegStateFinished, upd.TraveledKm, upd.RealCost, upd.RealDurationSec,
		upd.RealEndAt.UTC(), models.LegStateInProgress)
	if err != nil {
		return false, errors.Wrap(err, "update leg finished")
	}
	return tag.RowsAffected() == 1, nil
}

// CountUnfinishedLegs — сколько плеч маршрута ещё не FINISHED.
func (s *Storage) CountUnfinishedLegs(ctx context.Context, routeID uint64) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
SELECT COUNT(*) FROM legs WHERE route_id = $1 AND state <> $2
`, routeID, models.LegStateFinished).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "count unfinished legs")
	}
	return n, nil
}

// SumRouteActuals — суммарные факт. стоимость и длительность по маршруту.
func (s *Storage) SumRouteActuals(ctx context.Context, routeID uint64) (cost float64, durationSec float64, err error) {
	err = s.db.QueryRow(ctx, `
SELECT COALESCE(SUM(real_cost), 0), COALESCE(SUM(real_duration_sec), 0)
FROM legs WHERE route_id = $1
`, routeID).Scan(&cost, &durationSec)
	if err != nil {
		return 0, 0, errors.Wrap(err, "sum route actuals")
	}
	return cost, durationSec, nil
}
