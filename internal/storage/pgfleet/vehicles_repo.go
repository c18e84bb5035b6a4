package pgfleet

import (
	"context"
	"time"

	"github.com/BearBump/FreightLink/internal/derr"
	"github.com/BearBump/FreightLink/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
)

const vehicleColumns = `
  id, ref, carrier_id,
  weight_capacity_kg, volume_capacity_m3,
  fuel_per_100km, cost_per_km, total_km,
  state, queued_leg_ids, current_leg_id, next_free_at, maintenance,
  created_at, updated_at`

func scanVehicle(row pgx.Row) (*models.Vehicle, error) {
	var v models.Vehicle
	var queued []int64
	if err := row.Scan(
		&v.ID, &v.Ref, &v.CarrierID,
		&v.WeightCapacityKg, &v.VolumeCapacityM3,
		&v.FuelPer100Km, &v.CostPerKm, &v.TotalKm,
		&v.State, &queued, &v.CurrentLegID, &v.NextFreeAt, &v.Maintenance,
		&v.CreatedAt, &v.UpdatedAt,
	); err != nil {
		return nil, err
	}
	v.QueuedLegIDs = make([]uint64, 0, len(queued))
	for _, id := range queued {
		v.QueuedLegIDs = append(v.QueuedLegIDs, uint64(id))
	}
	return &v, nil
}

func queuedToDB(ids []uint64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		out = append(out, int64(id))
	}
	return out
}

func (s *Storage) CreateVehicle(ctx context.Context, v *models.Vehicle) error {
	now := time.Now().UTC()
	err := s.db.QueryRow(ctx, `
INSERT INTO vehicles (
  ref, carrier_id, weight_capacity_kg, volume_capacity_m3,
  fuel_per_100km, cost_per_km, state, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
RETURNING id
`, v.Ref, v.CarrierID, v.WeightCapacityKg, v.VolumeCapacityM3,
		v.FuelPer100Km, v.CostPerKm, v.State, now).Scan(&v.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return derr.Conflict("vehicle %s already registered", v.Ref)
		}
		return errors.Wrap(err, "insert vehicle")
	}
	v.CreatedAt = now
	v.UpdatedAt = now
	return nil
}

func (s *Storage) GetVehicleByRef(ctx context.Context, ref string) (*models.Vehicle, error) {
	v, err := scanVehicle(s.db.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE ref = $1`, ref))
	if err == pgx.ErrNoRows {
		return nil, derr.NotFound("vehicle %s not found", ref)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select vehicle")
	}
	return v, nil
}

func (s *Storage) ListVehiclesByCarrier(ctx context.Context, carrierID uint64) ([]*models.Vehicle, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+vehicleColumns+` FROM vehicles WHERE carrier_id = $1 ORDER BY ref ASC
`, carrierID)
	if err != nil {
		return nil, errors.Wrap(err, "select carrier vehicles")
	}
	defer rows.Close()

	return scanVehicles(rows)
}

// ListAvailableVehicles — машины, способные взять груз massKg/volumeM3 и
// свободные к моменту at (пустая очередь либо next_free_at <= at).
func (s *Storage) ListAvailableVehicles(ctx context.Context, at time.Time, minWeightKg, minVolumeM3 float64) ([]*models.Vehicle, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+vehicleColumns+`
FROM vehicles
WHERE maintenance = FALSE
  AND current_leg_id IS NULL
  AND weight_capacity_kg >= $2
  AND volume_capacity_m3 >= $3
  AND (next_free_at IS NULL OR next_free_at <= $1)
ORDER BY cost_per_km ASC, ref ASC
`, at.UTC(), minWeightKg, minVolumeM3)
	if err != nil {
		return nil, errors.Wrap(err, "select available vehicles")
	}
	defer rows.Close()

	return scanVehicles(rows)
}

func scanVehicles(rows pgx.Rows) ([]*models.Vehicle, error) {
	var out []*models.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan vehicle")
		}
		out = append(out, v)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// MutateVehicle выполняет fn под SELECT ... FOR UPDATE по строке машины
// и пишет обратно всё изменяемое состояние. carrierHasEnRoute говорит,
// исполняет ли сейчас плечо другая машина того же перевозчика; перед
// проверкой берётся замок на строку перевозчика, иначе две транзакции по
// разным машинам одного перевозчика не видят незакоммиченный current_leg_id
// друг друга и обе уходят EN_ROUTE. Ошибка из fn откатывает транзакцию.
func (s *Storage) MutateVehicle(ctx context.Context, ref string, fn func(v *models.Vehicle, carrierHasEnRoute bool) error) (*models.Vehicle, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	v, err := scanVehicle(tx.QueryRow(ctx, `
SELECT `+vehicleColumns+` FROM vehicles WHERE ref = $1 FOR UPDATE
`, ref))
	if err == pgx.ErrNoRows {
		return nil, derr.NotFound("vehicle %s not found", ref)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select vehicle for update")
	}

	var carrierID uint64
	err = tx.QueryRow(ctx, `
SELECT id FROM carriers WHERE id = $1 FOR UPDATE
`, v.CarrierID).Scan(&carrierID)
	if err != nil {
		return nil, errors.Wrap(err, "lock carrier")
	}

	var carrierHasEnRoute bool
	err = tx.QueryRow(ctx, `
SELECT EXISTS (
  SELECT 1 FROM vehicles
  WHERE carrier_id = $1 AND id <> $2 AND current_leg_id IS NOT NULL
)
`, v.CarrierID, v.ID).Scan(&carrierHasEnRoute)
	if err != nil {
		return nil, errors.Wrap(err, "check carrier en route")
	}

	if err := fn(v, carrierHasEnRoute); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
UPDATE vehicles
SET state = $2, queued_leg_ids = $3, current_leg_id = $4,
    next_free_at = $5, maintenance = $6, total_km = $7, updated_at = now()
WHERE id = $1
`, v.ID, v.State, queuedToDB(v.QueuedLegIDs), v.CurrentLegID, v.NextFreeAt, v.Maintenance, v.TotalKm)
	if err != nil {
		return nil, errors.Wrap(err, "update vehicle")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return v, nil
}
