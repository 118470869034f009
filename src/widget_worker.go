package main

import (
	"context"

	"github.com/ryansname/savedemissions/src/channel"
	"github.com/ryansname/savedemissions/src/widget"
)

// ReadingsSink receives a copy of a widget's readings after every tick
type ReadingsSink interface {
	Update(id, name string, readings []widget.Reading)
}

// boundWidget is a widget with the channels it declared at start-up
type boundWidget struct {
	widget.Presenter
	channels []channel.Address
}

// bindWidgets asks every widget for its channels exactly once
func bindWidgets(widgets []widget.Presenter) []boundWidget {
	bound := make([]boundWidget, 0, len(widgets))
	for _, w := range widgets {
		bound = append(bound, boundWidget{Presenter: w, channels: w.ChannelAddresses()})
	}
	return bound
}

// expectedChannels returns the union of the channels of all bound widgets
func expectedChannels(bound []boundWidget) []channel.Address {
	declared := make([][]channel.Address, 0, len(bound))
	for _, b := range bound {
		declared = append(declared, b.channels)
	}
	return widget.ChannelSet(declared...)
}

// widgetWorker drives a single widget. It is the only caller of OnCurrentData
// for that widget, so ticks are processed strictly one after another.
func widgetWorker(ctx context.Context, dataChan <-chan channel.CurrentData, w boundWidget, sinks []ReadingsSink) {
	logger.Infof("%s widget worker started", w.Name())

	for {
		select {
		case data := <-dataChan:
			if missing := missingChannels(data, w.channels); len(missing) > 0 {
				logger.Debugf("%s: %d channel(s) missing, treating as 0: %v", w.Name(), len(missing), missing)
			}

			w.OnCurrentData(data)

			readings := w.Readings()
			for _, sink := range sinks {
				sink.Update(w.ID(), w.Name(), readings)
			}

		case <-ctx.Done():
			logger.Infof("%s widget worker stopped", w.Name())
			return
		}
	}
}
