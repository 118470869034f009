package main

import (
	"context"

	"github.com/ryansname/savedemissions/src/channel"
)

// broadcastWorker receives CurrentData and fans out to every widget worker.
// A full downstream channel drops that tick for that worker only.
func broadcastWorker(ctx context.Context, inputChan <-chan channel.CurrentData, outputChans []chan<- channel.CurrentData) {
	for {
		select {
		case data := <-inputChan:
			for i, ch := range outputChans {
				select {
				case ch <- data:
				case <-ctx.Done():
					return
				default:
					logger.Warnf("Downstream worker %d channel full, dropping update", i)
				}
			}

		case <-ctx.Done():
			return
		}
	}
}
