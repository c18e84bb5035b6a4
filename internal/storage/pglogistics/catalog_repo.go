package pglogistics

import (
	"context"
	"time"

	"github.com/BearBump/FreightLink/internal/derr"
	"github.com/BearBump/FreightLink/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Storage) CreateTariff(ctx context.Context, t *models.Tariff) error {
	if t.EffectiveFrom.IsZero() {
		t.EffectiveFrom = time.Now().UTC()
	}
	err := s.db.QueryRow(ctx, `
INSERT INTO tariffs (base_rate_per_km, fuel_price_per_liter, surcharge_percent, effective_from)
VALUES ($1,$2,$3,$4)
RETURNING id
`, t.BaseRatePerKm, t.FuelPricePerLiter, t.SurchargePercent, t.EffectiveFrom).Scan(&t.ID)
	return errors.Wrap(err, "insert tariff")
}

func (s *Storage) GetTariff(ctx context.Context, id uint64) (*models.Tariff, error) {
	var t models.Tariff
	err := s.db.QueryRow(ctx, `
SELECT id, base_rate_per_km, fuel_price_per_liter, surcharge_percent, effective_from
FROM tariffs WHERE id = $1
`, id).Scan(&t.ID, &t.BaseRatePerKm, &t.FuelPricePerLiter, &t.SurchargePercent, &t.EffectiveFrom)
	if err == pgx.ErrNoRows {
		return nil, derr.NotFound("tariff %d not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select tariff")
	}
	return &t, nil
}

// CurrentTariff — последний тариф, действующий на момент t.
func (s *Storage) CurrentTariff(ctx context.Context, t time.Time) (*models.Tariff, error) {
	var tf models.Tariff
	err := s.db.QueryRow(ctx, `
SELECT id, base_rate_per_km, fuel_price_per_liter, surcharge_percent, effective_from
FROM tariffs
WHERE effective_from <= $1
ORDER BY effective_from DESC
LIMIT 1
`, t.UTC()).Scan(&tf.ID, &tf.BaseRatePerKm, &tf.FuelPricePerLiter, &tf.SurchargePercent, &tf.EffectiveFrom)
	if err == pgx.ErrNoRows {
		return nil, derr.NotFound("no tariff effective at %s", t.UTC().Format(time.RFC3339))
	}
	if err != nil {
		return nil, errors.Wrap(err, "select current tariff")
	}
	return &tf, nil
}

func (s *Storage) CreateDepot(ctx context.Context, d *models.Depot) error {
	err := s.db.QueryRow(ctx, `
INSERT INTO depots (name, address, lat, lon, daily_dwell_cost)
VALUES ($1,$2,$3,$4,$5)
RETURNING id
`, d.Name, d.Address, d.Lat, d.Lon, d.DailyDwellCost).Scan(&d.ID)
	return errors.Wrap(err, "insert depot")
}

func (s *Storage) GetDepot(ctx context.Context, id uint64) (*models.Depot, error) {
	var d models.Depot
	err := s.db.QueryRow(ctx, `
SELECT id, name, address, lat, lon, daily_dwell_cost
FROM depots WHERE id = $1
`, id).Scan(&d.ID, &d.Name, &d.Address, &d.Lat, &d.Lon, &d.DailyDwellCost)
	if err == pgx.ErrNoRows {
		return nil, derr.NotFound("depot %d not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select depot")
	}
	return &d, nil
}

// GetDepotsByIDs возвращает депо в том порядке, в котором пришли id.
func (s *Storage) GetDepotsByIDs(ctx context.Context, ids []uint64) ([]*models.Depot, error) {
	if len(ids) == 0 {
		return []*models.Depot{}, nil
	}

	rows, err := s.db.Query(ctx, `
SELECT id, name, address, lat, lon, daily_dwell_cost
FROM depots WHERE id = ANY($1)
`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "select depots")
	}
	defer rows.Close()

	byID := make(map[uint64]*models.Depot, len(ids))
	for rows.Next() {
		var d models.Depot
		if err := rows.Scan(&d.ID, &d.Name, &d.Address, &d.Lat, &d.Lon, &d.DailyDwellCost); err != nil {
			return nil, errors.Wrap(err, "scan depot")
		}
		byID[d.ID] = &d
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	out := make([]*models.Depot, 0, len(ids))
	for _, id := range ids {
		d, ok := byID[id]
		if !ok {
			return nil, derr.NotFound("depot %d not found", id)
		}
		out = append(out, d)
	}
	return out, nil
}
