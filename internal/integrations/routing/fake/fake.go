package fake

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/BearBump/FreightLink/internal/integrations/routing"
	"github.com/BearBump/FreightLink/internal/models"
)

// FakeClient — детерминированная заглушка роутера для локальной разработки.
// Расстояние берём по большому кругу с "дорожным" коэффициентом,
// зависящим от пары точек, чтобы маршруты были стабильны между запусками.
type FakeClient struct{}

func New() *FakeClient { return &FakeClient{} }

const avgSpeedKmh = 70.0

func (f *FakeClient) Route(ctx context.Context, from, to models.GeoPoint) (routing.Result, error) {
	km := haversineKm(from, to)

	h := fnv.New32a()
	_, _ = h.Write([]byte{byte(int(from.Lat * 100)), byte(int(from.Lon * 100)), byte(int(to.Lat * 100)), byte(int(to.Lon * 100))})
	// коэффициент извилистости дороги 1.10..1.35
	factor := 1.10 + float64(h.Sum32()%26)/100.0

	km *= factor
	return routing.Result{
		DistanceKm:  km,
		DurationSec: int64(km / avgSpeedKmh * 3600),
	}, nil
}

func haversineKm(a, b models.GeoPoint) float64 {
	const earthRadiusKm = 6371.0
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	s := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))
}
