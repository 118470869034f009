package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryansname/savedemissions/src/channel"
	"github.com/ryansname/savedemissions/src/metrics"
	"github.com/ryansname/savedemissions/src/widget"
)

type sinkUpdate struct {
	id       string
	name     string
	readings []widget.Reading
}

// fakeSink records every update it receives
type fakeSink struct {
	updates chan sinkUpdate
}

func newFakeSink() *fakeSink {
	return &fakeSink{updates: make(chan sinkUpdate, 10)}
}

func (f *fakeSink) Update(id, name string, readings []widget.Reading) {
	f.updates <- sinkUpdate{id: id, name: name, readings: readings}
}

func (f *fakeSink) next(t *testing.T) sinkUpdate {
	t.Helper()
	select {
	case u := <-f.updates:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("no update received")
		return sinkUpdate{}
	}
}

func allWidgets() []widget.Presenter {
	return []widget.Presenter{
		widget.NewSavedEmissions(metrics.DefaultCO2Factor),
		widget.NewSelfConsumption(),
		widget.NewAutarchy(),
	}
}

func TestBindWidgets(t *testing.T) {
	bound := bindWidgets(allWidgets())
	require.Len(t, bound, 3)
	assert.Equal(t, "saved_emissions", bound[0].ID())
	assert.Equal(t, []channel.Address{channel.GridSellActiveEnergy, channel.ProductionActiveEnergy}, bound[0].channels)

	assert.Equal(t, []channel.Address{
		channel.ConsumptionActiveEnergy,
		channel.GridBuyActiveEnergy,
		channel.GridSellActiveEnergy,
		channel.ProductionActiveEnergy,
	}, expectedChannels(bound))
}

func TestWidgetWorker_PublishesReadingsEveryTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dataChan := make(chan channel.CurrentData)
	sinkA, sinkB := newFakeSink(), newFakeSink()
	bound := bindWidgets([]widget.Presenter{widget.NewSavedEmissions(0.4)})[0]
	go widgetWorker(ctx, dataChan, bound, []ReadingsSink{sinkA, sinkB})

	// 10 kWh produced, 2 kWh sold: 80% self consumed
	// CO2 = 10 * 0.8 * 0.4 = 3.2 kg
	dataChan <- channel.NewCurrentData(map[channel.Address]float64{
		channel.ProductionActiveEnergy: 10000,
		channel.GridSellActiveEnergy:   2000,
	})

	u := sinkA.next(t)
	assert.Equal(t, "saved_emissions", u.id)
	assert.Equal(t, "Saved Emissions", u.name)
	require.Len(t, u.readings, 3)
	require.NotNil(t, u.readings[0].Value)
	assert.InDelta(t, 80.0, *u.readings[0].Value, 1e-9)
	require.NotNil(t, u.readings[1].Value)
	assert.InDelta(t, 3.2, *u.readings[1].Value, 1e-9)
	sinkB.next(t)

	// Missing channels count as zero, so nothing is produced
	dataChan <- channel.NewCurrentData(nil)
	u = sinkA.next(t)
	assert.Nil(t, u.readings[0].Value)
	assert.Nil(t, u.readings[1].Value)
	assert.Nil(t, u.readings[2].Value)
}

func TestWidgetWorker_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		widgetWorker(ctx, make(chan channel.CurrentData), bindWidgets(allWidgets())[2], nil)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("widget worker did not stop")
	}
}
