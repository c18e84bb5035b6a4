package fake

import (
	"context"
	"testing"

	"github.com/BearBump/FreightLink/internal/models"
	"github.com/stretchr/testify/require"
)

func TestFakeClient_Deterministic(t *testing.T) {
	f := New()
	from := models.GeoPoint{Lat: -34.6037, Lon: -58.3816}
	to := models.GeoPoint{Lat: -32.9468, Lon: -60.6393}

	r1, err := f.Route(context.Background(), from, to)
	require.NoError(t, err)
	r2, err := f.Route(context.Background(), from, to)
	require.NoError(t, err)

	require.Equal(t, r1, r2)
	require.Greater(t, r1.DistanceKm, 200.0)
	require.Greater(t, r1.DurationSec, int64(0))
}

func TestFakeClient_ZeroDistance(t *testing.T) {
	f := New()
	p := models.GeoPoint{Lat: 10, Lon: 10}
	r, err := f.Route(context.Background(), p, p)
	require.NoError(t, err)
	require.InDelta(t, 0, r.DistanceKm, 1e-9)
}
