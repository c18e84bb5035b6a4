package models

import "time"

// Статусы плеча маршрута (leg). Переходы только вперёд, без пропусков.
const (
	LegStateEstimated  = "ESTIMATED"
	LegStateAssigned   = "ASSIGNED"
	LegStateInProgress = "IN_PROGRESS"
	LegStateFinished   = "FINISHED"
)

// Типы плеч по точкам начала/конца.
const (
	LegTypePickupToDepot    = "PICKUP_DEPOT"
	LegTypeDepotToDepot     = "DEPOT_DEPOT"
	LegTypeDepotToDelivery  = "DEPOT_DELIVERY"
	LegTypePickupToDelivery = "PICKUP_DELIVERY"
)

type Route struct {
	ID              uint64
	ShipmentRef     string
	LegCount        int
	TotalDistanceKm float64
	CreatedAt       time.Time
}

// Leg — одно плечо маршрута, единица исполнения. VehicleRef — внешний идентификатор
// из флот-сервиса (строка, не FK: машина живёт в другой БД).
type Leg struct {
	ID            uint64
	RouteID       uint64
	SequenceIndex int

	OriginDepotID      *uint64
	DestinationDepotID *uint64
	TariffID           uint64

	Type  string
	State string

	EstimatedKm float64
	TraveledKm  float64

	EstimatedCost float64
	RealCost      float64

	EstimatedDurationSec float64
	RealDurationSec      float64

	PlannedStartAt *time.Time
	PlannedEndAt   *time.Time
	RealStartAt    *time.Time
	RealEndAt      *time.Time

	VehicleRef string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EndsAtDepot — плечо заканчивается на депо (иначе — финальная доставка).
func (l *Leg) EndsAtDepot() bool {
	return l.DestinationDepotID != nil
}

type Tariff struct {
	ID                uint64
	BaseRatePerKm     float64
	FuelPricePerLiter float64
	// Процент надбавки поверх топлива (обслуживание, страховка, водитель).
	// nil трактуется как 0.
	SurchargePercent *float64
	EffectiveFrom    time.Time
}

type Depot struct {
	ID             uint64
	Name           string
	Address        string
	Lat            float64
	Lon            float64
	DailyDwellCost float64
}

type GeoPoint struct {
	Lat float64
	Lon float64
}
