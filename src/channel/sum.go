package channel

// Cumulative energy counters of the _sum component, in Wh
var (
	GridBuyActiveEnergy     = NewAddress(Sum, "GridBuyActiveEnergy")
	GridSellActiveEnergy    = NewAddress(Sum, "GridSellActiveEnergy")
	ProductionActiveEnergy  = NewAddress(Sum, "ProductionActiveEnergy")
	ConsumptionActiveEnergy = NewAddress(Sum, "ConsumptionActiveEnergy")
)
