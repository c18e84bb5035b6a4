package plannerclient

import (
	"context"
	"time"
)

// Leg — проекция плеча маршрута, как её отдаёт планировщик.
// Флоту из неё нужны статус, машина и плановые сроки.
type Leg struct {
	ID            uint64     `json:"id"`
	RouteID       uint64     `json:"route_id"`
	SequenceIndex int        `json:"sequence_index"`
	State         string     `json:"state"`
	Type          string     `json:"type"`
	VehicleRef    string     `json:"vehicle_ref"`
	EstimatedKm   float64    `json:"estimated_km"`
	TraveledKm    float64    `json:"traveled_km"`
	RealCost      float64    `json:"real_cost"`
	PlannedEndAt  *time.Time `json:"planned_end_at"`
}

// Client — вызовы флот-сервиса в планировщик.
type Client interface {
	GetLeg(ctx context.Context, legID uint64) (Leg, error)
	StartLeg(ctx context.Context, legID uint64) (Leg, error)
	FinishLeg(ctx context.Context, legID uint64, traveledKm float64) (Leg, error)
}
