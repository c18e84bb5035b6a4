package fleetclient

import (
	"context"
	"time"
)

// VehicleProfile — расходные характеристики машины, нужные планировщику
// для расчёта фактической стоимости плеча.
type VehicleProfile struct {
	Ref          string  `json:"ref"`
	FuelPer100Km float64 `json:"fuel_per_100km"`
	CostPerKm    float64 `json:"cost_per_km"`
}

// Client — вызовы планировщика во флот-сервис.
type Client interface {
	VehicleProfile(ctx context.Context, ref string) (VehicleProfile, error)
	ReserveLeg(ctx context.Context, ref string, legID uint64, plannedEnd *time.Time) error
	ReleaseReservation(ctx context.Context, ref string, legID uint64) error
}
