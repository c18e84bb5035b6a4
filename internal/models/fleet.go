package models

import "time"

// Статусы машины. Производные от очереди (см. fleet.DeriveState),
// кроме MAINTENANCE, который выставляется явно.
const (
	VehicleStateAvailable   = "AVAILABLE"
	VehicleStateAssigned    = "ASSIGNED"
	VehicleStateScheduled   = "SCHEDULED"
	VehicleStateEnRoute     = "EN_ROUTE"
	VehicleStateMaintenance = "MAINTENANCE"
)

// Vehicle — машина флота. Ref — внешний идентификатор (госномер),
// под ним её знает планировщик. QueuedLegIDs — FIFO плеч, назначенных
// но не начатых; CurrentLegID — исполняемое плечо (не больше одного).
type Vehicle struct {
	ID        uint64
	Ref       string
	CarrierID uint64

	WeightCapacityKg float64
	VolumeCapacityM3 float64
	FuelPer100Km     float64
	CostPerKm        float64
	TotalKm          float64

	State        string
	QueuedLegIDs []uint64
	CurrentLegID *uint64
	NextFreeAt   *time.Time
	Maintenance  bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Carrier — перевозчик (человек/компания). На всех его машинах
// одновременно может исполняться максимум одно плечо.
type Carrier struct {
	ID        uint64
	Name      string
	Active    bool
	CreatedAt time.Time
}

type VehicleCreateInput struct {
	Ref              string
	CarrierID        uint64
	WeightCapacityKg float64
	VolumeCapacityM3 float64
	FuelPer100Km     float64
	CostPerKm        float64
}
