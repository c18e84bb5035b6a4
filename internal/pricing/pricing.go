// Package pricing — чистые расчёты стоимости и длительности плеча.
// Никакого I/O: все данные (тариф, профиль машины, депо) приносит вызывающий.
package pricing

import (
	"math"
	"time"
)

// VehicleProfile — расходная часть машины, получаемая из флот-сервиса.
type VehicleProfile struct {
	FuelPer100Km float64
	CostPerKm    float64
}

// TariffRates — срез тарифа, нужный расчёту.
type TariffRates struct {
	BaseRatePerKm     float64
	FuelPricePerLiter float64
	SurchargePercent  *float64
}

// TransportBreakdown — разбор транспортной составляющей стоимости.
type TransportBreakdown struct {
	FuelLiters      float64
	FuelCost        float64
	SurchargeFactor float64
	Cost            float64
	// UsedFallback: профиль машины недоступен, взята базовая ставка тарифа.
	UsedFallback bool
}

// TransportCost считает транспортную часть: литры по профилю машины,
// топливо по тарифу, надбавка процентом. Без профиля — km * базовая ставка.
func TransportCost(distanceKm float64, t TariffRates, prof *VehicleProfile) TransportBreakdown {
	if prof == nil {
		return TransportBreakdown{
			SurchargeFactor: 1,
			Cost:            distanceKm * t.BaseRatePerKm,
			UsedFallback:    true,
		}
	}

	liters := distanceKm * (prof.FuelPer100Km / 100.0)
	fuelCost := liters * t.FuelPricePerLiter

	pct := 0.0
	if t.SurchargePercent != nil {
		pct = *t.SurchargePercent
	}
	factor := 1 + pct/100.0

	return TransportBreakdown{
		FuelLiters:      liters,
		FuelCost:        fuelCost,
		SurchargeFactor: factor,
		Cost:            fuelCost * factor,
	}
}

// DwellDays — целые дни простоя на депо между концом этого плеча и
// стартом следующего. Если следующий старт ещё неизвестен, берём минимум
// в один день (скорректируется, когда следующее плечо реально начнётся).
func DwellDays(realEnd time.Time, nextStart *time.Time) int64 {
	if nextStart == nil {
		return 1
	}
	days := int64(nextStart.Sub(realEnd).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// DwellCost — стоимость простоя: дни * суточная ставка депо.
func DwellCost(days int64, dailyRate float64) float64 {
	return float64(days) * dailyRate
}

// DurationSeconds — фактическая длительность плеча в секундах.
// Если конец ещё не известен, считаем до now (только для оценок на лету,
// как финальное значение не сохраняется).
func DurationSeconds(start time.Time, end *time.Time, now time.Time) float64 {
	to := now
	if end != nil {
		to = *end
	}
	return math.Floor(to.Sub(start).Seconds())
}
