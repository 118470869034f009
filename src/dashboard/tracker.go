// Package dashboard exposes the latest widget readings over HTTP, a websocket
// stream and Prometheus.
package dashboard

import (
	"slices"
	"sync"
	"time"

	"github.com/ryansname/savedemissions/src/widget"
)

// WidgetState is a point-in-time view of one widget.
// It is a value type, safe to use after the lock is released.
type WidgetState struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Readings  []widget.Reading `json:"readings"`
	Ticks     uint64           `json:"ticks"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Tracker holds the latest readings of every widget behind an RWMutex
type Tracker struct {
	mu      sync.RWMutex
	order   []string
	widgets map[string]WidgetState
	subs    map[chan WidgetState]struct{}
	gauges  *Gauges
	now     func() time.Time
}

// NewTracker creates an empty Tracker. gauges may be nil.
func NewTracker(gauges *Gauges) *Tracker {
	return &Tracker{
		widgets: make(map[string]WidgetState),
		subs:    make(map[chan WidgetState]struct{}),
		gauges:  gauges,
		now:     time.Now,
	}
}

// Register adds a widget with no readings so it is listed before its first tick
func (t *Tracker) Register(id, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.widgets[id]; ok {
		return
	}
	t.order = append(t.order, id)
	t.widgets[id] = WidgetState{ID: id, Name: name}
}

// Update stores the readings of a widget and notifies stream subscribers.
// Called by the widget worker after every tick.
func (t *Tracker) Update(id, name string, readings []widget.Reading) {
	t.mu.Lock()
	state, ok := t.widgets[id]
	if !ok {
		t.order = append(t.order, id)
	}
	state.ID = id
	state.Name = name
	state.Readings = cloneReadings(readings)
	state.Ticks++
	state.UpdatedAt = t.now()
	t.widgets[id] = state

	// Subscribers that can't keep up miss this update, the next one supersedes it
	for ch := range t.subs {
		select {
		case ch <- cloneState(state):
		default:
		}
	}
	t.mu.Unlock()

	if t.gauges != nil {
		t.gauges.Observe(id, readings)
	}
}

// Get returns the state of one widget
func (t *Tracker) Get(id string) (WidgetState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	state, ok := t.widgets[id]
	return cloneState(state), ok
}

// Snapshot returns the state of all widgets in registration order
func (t *Tracker) Snapshot() []WidgetState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]WidgetState, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, cloneState(t.widgets[id]))
	}
	return out
}

// Subscribe returns a channel receiving every widget update and a function to stop
func (t *Tracker) Subscribe(buffer int) (<-chan WidgetState, func()) {
	ch := make(chan WidgetState, buffer)
	t.mu.Lock()
	t.subs[ch] = struct{}{}
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, ch)
			t.mu.Unlock()
		})
	}
}

func cloneState(s WidgetState) WidgetState {
	s.Readings = cloneReadings(s.Readings)
	return s
}

func cloneReadings(readings []widget.Reading) []widget.Reading {
	out := slices.Clone(readings)
	for i, r := range out {
		if r.Value != nil {
			v := *r.Value
			out[i].Value = &v
		}
	}
	return out
}
