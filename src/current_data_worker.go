package main

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ryansname/savedemissions/src/channel"
)

// SensorMessage represents an MQTT message for a subscribed channel
type SensorMessage struct {
	Channel channel.Address
	Value   string
}

// currentDataState keeps the latest value of every channel between ticks
type currentDataState struct {
	expected []channel.Address
	values   map[channel.Address]float64
}

func newCurrentDataState(expected []channel.Address) *currentDataState {
	return &currentDataState{
		expected: expected,
		values:   make(map[channel.Address]float64, len(expected)),
	}
}

// apply stores the value of a message. Non-numeric payloads are rejected and
// leave the previous value in place.
func (s *currentDataState) apply(msg SensorMessage) error {
	value, err := strconv.ParseFloat(strings.TrimSpace(msg.Value), 64)
	if err != nil {
		return errors.Wrapf(err, "channel %s", msg.Channel)
	}
	s.values[msg.Channel] = value
	return nil
}

// missing returns the expected channels that have not produced a value yet
func (s *currentDataState) missing() []channel.Address {
	var out []channel.Address
	for _, a := range s.expected {
		if _, ok := s.values[a]; !ok {
			out = append(out, a)
		}
	}
	return out
}

// complete reports whether every expected channel has produced a value
func (s *currentDataState) complete() bool {
	return len(s.missing()) == 0
}

// snapshot returns an immutable copy of the current values
func (s *currentDataState) snapshot() channel.CurrentData {
	return channel.NewCurrentData(s.values)
}

// currentDataWorker receives channel values and emits a CurrentData snapshot per tick.
// Snapshots start once every expected channel has a value, or once startupGrace has
// passed; missing channels are then absent from the snapshot. Ticks are debounced.
func currentDataWorker(
	ctx context.Context,
	msgChan <-chan SensorMessage,
	outputChan chan<- channel.CurrentData,
	expected []channel.Address,
	startupGrace time.Duration,
	debounce time.Duration,
) {
	state := newCurrentDataState(expected)

	// Ready state tracking
	ready := false
	allReceived := false
	startupCheckTicker := time.NewTicker(30 * time.Second)
	defer startupCheckTicker.Stop()

	graceTimer := time.NewTimer(startupGrace)
	defer graceTimer.Stop()

	// Debouncing state
	var lastSendTime time.Time
	var debounceTimer *time.Timer
	var debounceTimerC <-chan time.Time

	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	send := func() bool {
		select {
		case outputChan <- state.snapshot():
			lastSendTime = time.Now()
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case msg := <-msgChan:
			if err := state.apply(msg); err != nil {
				logger.Warnf("Dropping non-numeric value %q: %v", msg.Value, err)
				continue
			}

			if !allReceived && state.complete() {
				allReceived = true
				ready = true
				startupCheckTicker.Stop()
				logger.Infof("Current data ready: received data for all %d channels", len(expected))
			}

			if !ready {
				continue
			}

			// Debounce: send immediately if enough time has passed, otherwise schedule
			timeSinceLastSend := time.Since(lastSendTime)
			if timeSinceLastSend >= debounce {
				if !send() {
					return
				}
			} else if debounceTimer == nil {
				debounceTimer = time.NewTimer(debounce - timeSinceLastSend)
				debounceTimerC = debounceTimer.C
			}

		case <-debounceTimerC:
			debounceTimer = nil
			debounceTimerC = nil
			if ready && !send() {
				return
			}

		case <-graceTimer.C:
			if ready {
				continue
			}
			ready = true
			logger.Warnf("Startup grace of %v elapsed, delivering snapshots without %d channel(s)",
				startupGrace, len(state.missing()))
			if !send() {
				return
			}

		case <-startupCheckTicker.C:
			missing := state.missing()
			if len(missing) == 0 {
				continue
			}
			logger.Warnf("Still waiting for channels. Missing %d/%d:", len(missing), len(expected))
			for _, a := range missing {
				logger.Warnf("  - %s", a)
			}

		case <-ctx.Done():
			return
		}
	}
}

// missingChannels returns the channels of want that are absent from data
func missingChannels(data channel.CurrentData, want []channel.Address) []channel.Address {
	return slices.DeleteFunc(slices.Clone(want), func(a channel.Address) bool {
		_, ok := data.Value(a)
		return ok
	})
}
