package pglogistics

import (
	"context"
	"time"

	"github.com/BearBump/FreightLink/internal/derr"
	"github.com/BearBump/FreightLink/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

// CreateRouteWithLegs пишет маршрут и все его плечи одной транзакцией.
// ID проставляются в переданные структуры.
func (s *Storage) CreateRouteWithLegs(ctx context.Context, route *models.Route, legs []*models.Leg) error {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
INSERT INTO routes (shipment_ref, leg_count, total_distance_km, created_at)
VALUES ($1,$2,$3,$4)
RETURNING id
`, route.ShipmentRef, len(legs), route.TotalDistanceKm, now).Scan(&route.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return derr.Conflict("route for shipment %s already exists", route.ShipmentRef)
	}
	if err != nil {
		return errors.Wrap(err, "insert route")
	}
	route.LegCount = len(legs)
	route.CreatedAt = now

	for _, l := range legs {
		l.RouteID = route.ID
		l.State = models.LegStateEstimated
		err := tx.QueryRow(ctx, `
INSERT INTO legs (
  route_id, sequence_index, origin_depot_id, destination_depot_id, tariff_id,
  type, state, estimated_km, estimated_cost, estimated_duration_sec,
  planned_start_at, planned_end_at, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)
RETURNING id
`, l.RouteID, l.SequenceIndex, l.OriginDepotID, l.DestinationDepotID, l.TariffID,
			l.Type, l.State, l.EstimatedKm, l.EstimatedCost, l.EstimatedDurationSec,
			l.PlannedStartAt, l.PlannedEndAt, now).Scan(&l.ID)
		if err != nil {
			return errors.Wrap(err, "insert leg")
		}
		l.CreatedAt = now
		l.UpdatedAt = now
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func (s *Storage) GetRoute(ctx context.Context, id uint64) (*models.Route, error) {
	return s.getRoute(ctx, `WHERE id = $1`, id)
}

// GetRouteByShipmentRef возвращает nil, nil если маршрута для груза ещё нет.
func (s *Storage) GetRouteByShipmentRef(ctx context.Context, shipmentRef string) (*models.Route, error) {
	r, err := s.getRoute(ctx, `WHERE shipment_ref = $1`, shipmentRef)
	if derr.IsKind(err, derr.KindNotFound) {
		return nil, nil
	}
	return r, err
}

func (s *Storage) getRoute(ctx context.Context, where string, arg any) (*models.Route, error) {
	var r models.Route
	err := s.db.QueryRow(ctx, `
SELECT id, shipment_ref, leg_count, total_distance_km, created_at
FROM routes `+where, arg).Scan(&r.ID, &r.ShipmentRef, &r.LegCount, &r.TotalDistanceKm, &r.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, derr.NotFound("route %v not found", arg)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select route")
	}
	return &r, nil
}

// ListRouteLegs возвращает плечи маршрута в порядке исполнения.
func (s *Storage) ListRouteLegs(ctx context.Context, routeID uint64) ([]*models.Leg, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+legColumns+`
FROM legs
WHERE route_id = $1
ORDER BY sequence_index ASC
`, routeID)
	if err != nil {
		return nil, errors.Wrap(err, "select route legs")
	}
	defer rows.Close()

	return scanLegs(rows)
}
