package messages

import "time"

// Типы событий в топике плеч. Консьюмеры различают их по полю Type.
const (
	TypeLegStarted     = "leg.started"
	TypeLegFinished    = "leg.finished"
	TypeRouteCompleted = "route.completed"
)

// Envelope — минимальная обёртка для диспетчеризации по типу события.
type Envelope struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
}

type LegStarted struct {
	EventID         string    `json:"event_id"`
	Type            string    `json:"type"`
	LegID           uint64    `json:"leg_id"`
	ShipmentRef     string    `json:"shipment_ref"`
	VehicleRef      string    `json:"vehicle_ref"`
	SuggestedStatus string    `json:"suggested_status"`
	OccurredAt      time.Time `json:"occurred_at"`
}

type LegFinished struct {
	EventID          string    `json:"event_id"`
	Type             string    `json:"type"`
	LegID            uint64    `json:"leg_id"`
	ShipmentRef      string    `json:"shipment_ref"`
	VehicleRef       string    `json:"vehicle_ref"`
	TraveledKm       float64   `json:"traveled_km"`
	RealCost         float64   `json:"real_cost"`
	RealDurationSec  int64     `json:"real_duration_sec"`
	EndLocation      string    `json:"end_location"`
	FinalDestination bool      `json:"final_destination"`
	SuggestedStatus  string    `json:"suggested_status"`
	OccurredAt       time.Time `json:"occurred_at"`
}

type RouteCompleted struct {
	EventID              string    `json:"event_id"`
	Type                 string    `json:"type"`
	RouteID              uint64    `json:"route_id"`
	ShipmentRef          string    `json:"shipment_ref"`
	TotalRealCost        float64   `json:"total_real_cost"`
	TotalRealDurationSec int64     `json:"total_real_duration_sec"`
	OccurredAt           time.Time `json:"occurred_at"`
}
