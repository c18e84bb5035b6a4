package routing

import (
	"context"

	"github.com/BearBump/FreightLink/internal/models"
)

type Result struct {
	DistanceKm  float64
	DurationSec int64
}

// Client — внешний роутер, который считает расстояние и время в пути
// между двумя точками по дорожной сети.
type Client interface {
	Route(ctx context.Context, from, to models.GeoPoint) (Result, error)
}
