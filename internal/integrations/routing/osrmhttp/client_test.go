package osrmhttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BearBump/FreightLink/internal/derr"
	"github.com/BearBump/FreightLink/internal/models"
	"github.com/stretchr/testify/require"
)

func TestClient_Route(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, "/route/v1/driving/")
		// порядок в URL: lon,lat
		require.Contains(t, r.URL.Path, "-58.381600,-34.603700;-60.639300,-32.946800")
		w.Write([]byte(`{"code":"Ok","routes":[{"distance":301540.2,"duration":13225.7}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	res, err := c.Route(context.Background(),
		models.GeoPoint{Lat: -34.6037, Lon: -58.3816},
		models.GeoPoint{Lat: -32.9468, Lon: -60.6393},
	)
	require.NoError(t, err)
	require.InDelta(t, 301.5402, res.DistanceKm, 1e-6)
	require.Equal(t, int64(13225), res.DurationSec)
}

func TestClient_Route_NoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"NoRoute","routes":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Route(context.Background(), models.GeoPoint{}, models.GeoPoint{})
	require.Error(t, err)
	require.Equal(t, derr.KindExternal, derr.KindOf(err))
}

func TestClient_Route_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Route(context.Background(), models.GeoPoint{}, models.GeoPoint{})
	require.Error(t, err)
	require.Equal(t, derr.KindExternal, derr.KindOf(err))
}
