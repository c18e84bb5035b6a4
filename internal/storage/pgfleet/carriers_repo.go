package pgfleet

import (
	"context"
	"time"

	"github.com/BearBump/FreightLink/internal/derr"
	"github.com/BearBump/FreightLink/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Storage) CreateCarrier(ctx context.Context, c *models.Carrier) error {
	now := time.Now().UTC()
	err := s.db.QueryRow(ctx, `
INSERT INTO carriers (name, active, created_at)
VALUES ($1,$2,$3)
RETURNING id
`, c.Name, c.Active, now).Scan(&c.ID)
	if err != nil {
		return errors.Wrap(err, "insert carrier")
	}
	c.CreatedAt = now
	return nil
}

func (s *Storage) GetCarrier(ctx context.Context, id uint64) (*models.Carrier, error) {
	var c models.Carrier
	err := s.db.QueryRow(ctx, `
SELECT id, name, active, created_at FROM carriers WHERE id = $1
`, id).Scan(&c.ID, &c.Name, &c.Active, &c.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, derr.NotFound("carrier %d not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select carrier")
	}
	return &c, nil
}

func (s *Storage) SetCarrierActive(ctx context.Context, id uint64, active bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE carriers SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return errors.Wrap(err, "update carrier")
	}
	if tag.RowsAffected() == 0 {
		return derr.NotFound("carrier %d not found", id)
	}
	return nil
}
