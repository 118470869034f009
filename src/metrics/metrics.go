// Package metrics derives normalized energy metrics from cumulative energy counters.
// All functions are pure and work in kWh unless stated otherwise.
package metrics

import "math"

// TreeAbsorptionKg is the CO2 absorbed by one tree seedling grown for ten years (kg)
const TreeAbsorptionKg = 60.0

// DefaultCO2Factor is the CO2 avoided per self-consumed kWh of production (kg/kWh)
const DefaultCO2Factor = 0.4

// WhToKWh converts watt-hours to kilowatt-hours
func WhToKWh(wh float64) float64 {
	return wh / 1000
}

// CalculateSelfConsumption returns the share of production that was not sold
// to the grid, in percent and clamped to [0, 100].
// Returns nil when production is not positive or an input is not finite.
func CalculateSelfConsumption(gridSell, production float64) *float64 {
	return ratioPercent(gridSell, production)
}

// CalculateAutarchy returns the share of consumption that was not bought
// from the grid, in percent and clamped to [0, 100].
// Returns nil when consumption is not positive or an input is not finite.
func CalculateAutarchy(gridBuy, consumption float64) *float64 {
	return ratioPercent(gridBuy, consumption)
}

// ratioPercent computes (1 - part/total) * 100 clamped to [0, 100]
func ratioPercent(part, total float64) *float64 {
	if !isFinite(part) || !isFinite(total) || total <= 0 {
		return nil
	}
	result := (1 - part/total) * 100
	result = max(0, min(result, 100))
	return &result
}

// CalculateCO2EmissionsSaved returns the CO2 avoided (kg) by self-consuming production.
//
// The self-consumed energy is production scaled by selfConsumptionRate (0..1),
// capped at what was not sold to the grid and floored at zero. For consistent
// inputs (rate = 1 - gridSell/production) both bounds are equal.
func CalculateCO2EmissionsSaved(production, selfConsumptionRate, gridSell, co2Factor float64) float64 {
	selfConsumed := min(production*selfConsumptionRate, production-gridSell)
	selfConsumed = max(0, selfConsumed)
	return max(0, selfConsumed*co2Factor)
}

// CalculateTreesPlanted returns the number of trees that would absorb co2Kg
func CalculateTreesPlanted(co2Kg float64) float64 {
	return max(0, co2Kg) / TreeAbsorptionKg
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
