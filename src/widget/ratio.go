package widget

import (
	"github.com/ryansname/savedemissions/src/channel"
	"github.com/ryansname/savedemissions/src/metrics"
)

// SelfConsumption shows the share of production that was consumed on site
type SelfConsumption struct {
	value *float64
}

// NewSelfConsumption creates a SelfConsumption widget
func NewSelfConsumption() *SelfConsumption {
	return &SelfConsumption{}
}

func (w *SelfConsumption) ID() string   { return "self_consumption" }
func (w *SelfConsumption) Name() string { return "Self Consumption" }

func (w *SelfConsumption) ChannelAddresses() []channel.Address {
	return []channel.Address{
		channel.GridSellActiveEnergy,
		channel.ProductionActiveEnergy,
	}
}

func (w *SelfConsumption) OnCurrentData(data channel.CurrentData) {
	w.value = metrics.CalculateSelfConsumption(
		metrics.WhToKWh(data.ValueOrZero(channel.GridSellActiveEnergy)),
		metrics.WhToKWh(data.ValueOrZero(channel.ProductionActiveEnergy)),
	)
}

func (w *SelfConsumption) Readings() []Reading {
	return []Reading{
		{Key: "percentage", Name: "Self Consumption", Unit: "%", Value: copyValue(w.value)},
	}
}

// Autarchy shows the share of consumption that was covered without buying from the grid
type Autarchy struct {
	value *float64
}

// NewAutarchy creates an Autarchy widget
func NewAutarchy() *Autarchy {
	return &Autarchy{}
}

func (w *Autarchy) ID() string   { return "autarchy" }
func (w *Autarchy) Name() string { return "Autarchy" }

func (w *Autarchy) ChannelAddresses() []channel.Address {
	return []channel.Address{
		channel.GridBuyActiveEnergy,
		channel.ConsumptionActiveEnergy,
	}
}

func (w *Autarchy) OnCurrentData(data channel.CurrentData) {
	w.value = metrics.CalculateAutarchy(
		metrics.WhToKWh(data.ValueOrZero(channel.GridBuyActiveEnergy)),
		metrics.WhToKWh(data.ValueOrZero(channel.ConsumptionActiveEnergy)),
	)
}

func (w *Autarchy) Readings() []Reading {
	return []Reading{
		{Key: "percentage", Name: "Autarchy", Unit: "%", Value: copyValue(w.value)},
	}
}
