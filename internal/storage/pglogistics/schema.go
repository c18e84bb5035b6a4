package pglogistics

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS tariffs (
  id BIGSERIAL PRIMARY KEY,
  base_rate_per_km DOUBLE PRECISION NOT NULL,
  fuel_price_per_liter DOUBLE PRECISION NOT NULL,
  surcharge_percent DOUBLE PRECISION NULL,
  effective_from TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS depots (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  address TEXT NOT NULL DEFAULT '',
  lat DOUBLE PRECISION NOT NULL,
  lon DOUBLE PRECISION NOT NULL,
  daily_dwell_cost DOUBLE PRECISION NOT NULL DEFAULT 0
)`,
		`
CREATE TABLE IF NOT EXISTS routes (
  id BIGSERIAL PRIMARY KEY,
  shipment_ref TEXT NOT NULL,
  leg_count INT NOT NULL,
  total_distance_km DOUBLE PRECISION NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  UNIQUE (shipment_ref)
)`,
		`
CREATE TABLE IF NOT EXISTS legs (
  id BIGSERIAL PRIMARY KEY,
  route_id BIGINT NOT NULL REFERENCES routes(id) ON DELETE CASCADE,
  sequence_index INT NOT NULL,
  origin_depot_id BIGINT NULL REFERENCES depots(id),
  destination_depot_id BIGINT NULL REFERENCES depots(id),
  tariff_id BIGINT NOT NULL REFERENCES tariffs(id),
  type TEXT NOT NULL,
  state TEXT NOT NULL,
  estimated_km DOUBLE PRECISION NOT NULL,
  traveled_km DOUBLE PRECISION NOT NULL DEFAULT 0,
  estimated_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
  real_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
  estimated_duration_sec DOUBLE PRECISION NOT NULL DEFAULT 0,
  real_duration_sec DOUBLE PRECISION NOT NULL DEFAULT 0,
  planned_start_at TIMESTAMPTZ NULL,
  planned_end_at TIMESTAMPTZ NULL,
  real_start_at TIMESTAMPTZ NULL,
  real_end_at TIMESTAMPTZ NULL,
  vehicle_ref TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (route_id, sequence_index)
)`,
		`CREATE INDEX IF NOT EXISTS idx_legs_route_id ON legs(route_id)`,
		`CREATE INDEX IF NOT EXISTS idx_legs_state ON legs(state)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
