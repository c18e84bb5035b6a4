package pgfleet

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS carriers (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS vehicles (
  id BIGSERIAL PRIMARY KEY,
  ref TEXT NOT NULL,
  carrier_id BIGINT NOT NULL REFERENCES carriers(id),
  weight_capacity_kg DOUBLE PRECISION NOT NULL,
  volume_capacity_m3 DOUBLE PRECISION NOT NULL,
  fuel_per_100km DOUBLE PRECISION NOT NULL,
  cost_per_km DOUBLE PRECISION NOT NULL,
  total_km DOUBLE PRECISION NOT NULL DEFAULT 0,
  state TEXT NOT NULL,
  queued_leg_ids BIGINT[] NOT NULL DEFAULT '{}',
  current_leg_id BIGINT NULL,
  next_free_at TIMESTAMPTZ NULL,
  maintenance BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (ref)
)`,
		`CREATE INDEX IF NOT EXISTS idx_vehicles_carrier_id ON vehicles(carrier_id)`,
		`CREATE INDEX IF NOT EXISTS idx_vehicles_state ON vehicles(state)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
