package widget

import (
	"github.com/ryansname/savedemissions/src/channel"
	"github.com/ryansname/savedemissions/src/metrics"
)

// SavedEmissions shows the self-consumption ratio, the CO2 emissions avoided by
// self-consumed production and the equivalent number of trees planted
type SavedEmissions struct {
	co2Factor float64

	selfConsumption   *float64 // %
	co2EmissionsSaved *float64 // kg
	treesPlanted      *float64
}

// NewSavedEmissions creates the widget with the given CO2 factor (kg per kWh)
func NewSavedEmissions(co2Factor float64) *SavedEmissions {
	return &SavedEmissions{co2Factor: co2Factor}
}

// ID implements Presenter
func (w *SavedEmissions) ID() string {
	return "saved_emissions"
}

// Name implements Presenter
func (w *SavedEmissions) Name() string {
	return "Saved Emissions"
}

// ChannelAddresses implements Widget
func (w *SavedEmissions) ChannelAddresses() []channel.Address {
	return []channel.Address{
		channel.GridSellActiveEnergy,
		channel.ProductionActiveEnergy,
	}
}

// OnCurrentData implements Widget
func (w *SavedEmissions) OnCurrentData(data channel.CurrentData) {
	gridSell := metrics.WhToKWh(data.ValueOrZero(channel.GridSellActiveEnergy))
	production := metrics.WhToKWh(data.ValueOrZero(channel.ProductionActiveEnergy))

	w.selfConsumption = metrics.CalculateSelfConsumption(gridSell, production)

	if production <= 0 || w.selfConsumption == nil {
		w.co2EmissionsSaved = nil
		w.treesPlanted = nil
		return
	}

	rate := *w.selfConsumption / 100
	co2 := metrics.CalculateCO2EmissionsSaved(production, rate, gridSell, w.co2Factor)
	trees := metrics.CalculateTreesPlanted(co2)
	w.co2EmissionsSaved = &co2
	w.treesPlanted = &trees
}

// SelfConsumption returns the self-consumption ratio in percent, or nil
func (w *SavedEmissions) SelfConsumption() *float64 {
	return copyValue(w.selfConsumption)
}

// CO2EmissionsSaved returns the avoided emissions in kg, or nil
func (w *SavedEmissions) CO2EmissionsSaved() *float64 {
	return copyValue(w.co2EmissionsSaved)
}

// TreesPlanted returns the equivalent number of trees planted, or nil
func (w *SavedEmissions) TreesPlanted() *float64 {
	return copyValue(w.treesPlanted)
}

// Readings implements Presenter
func (w *SavedEmissions) Readings() []Reading {
	return []Reading{
		{
			Key:       "self_consumption",
			Name:      "Self Consumption",
			Unit:      "%",
			Precision: 0,
			Value:     w.SelfConsumption(),
		},
		{
			Key:       "co2_emissions_saved",
			Name:      "CO2 Emissions Saved",
			Unit:      "kg",
			Class:     "weight",
			Precision: 1,
			Value:     w.CO2EmissionsSaved(),
		},
		{
			Key:       "trees_planted",
			Name:      "Trees Planted",
			Precision: 1,
			Value:     w.TreesPlanted(),
		},
	}
}
