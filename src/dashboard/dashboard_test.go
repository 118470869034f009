package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryansname/savedemissions/src/log"
	"github.com/ryansname/savedemissions/src/widget"
)

func ptr(v float64) *float64 { return &v }

func savedEmissionsReadings(selfConsumption, co2, trees *float64) []widget.Reading {
	return []widget.Reading{
		{Key: "self_consumption", Name: "Self Consumption", Unit: "%", Value: selfConsumption},
		{Key: "co2_emissions_saved", Name: "CO2 Emissions Saved", Unit: "kg", Precision: 1, Value: co2},
		{Key: "trees_planted", Name: "Trees Planted", Precision: 1, Value: trees},
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *Tracker, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	tr := NewTracker(NewGauges(reg))
	tr.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	srv := New(":0", tr, reg, log.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr, reg
}

func TestTracker_RegisterKeepsOrder(t *testing.T) {
	tr := NewTracker(nil)
	tr.Register("saved_emissions", "Saved Emissions")
	tr.Register("autarchy", "Autarchy")
	tr.Register("saved_emissions", "Saved Emissions")

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "saved_emissions", snap[0].ID)
	assert.Equal(t, "autarchy", snap[1].ID)
	assert.Equal(t, uint64(0), snap[0].Ticks)
}

func TestTracker_UpdateCopiesReadings(t *testing.T) {
	tr := NewTracker(nil)
	readings := savedEmissionsReadings(ptr(80), ptr(3.2), ptr(0.05))
	tr.Update("saved_emissions", "Saved Emissions", readings)

	*readings[0].Value = 1
	state, ok := tr.Get("saved_emissions")
	require.True(t, ok)
	assert.Equal(t, 80.0, *state.Readings[0].Value)
	assert.Equal(t, uint64(1), state.Ticks)

	*state.Readings[0].Value = 2
	again, _ := tr.Get("saved_emissions")
	assert.Equal(t, 80.0, *again.Readings[0].Value)
}

func TestTracker_Subscribe(t *testing.T) {
	tr := NewTracker(nil)
	updates, unsubscribe := tr.Subscribe(1)

	tr.Update("autarchy", "Autarchy", []widget.Reading{{Key: "percentage", Value: ptr(75)}})
	select {
	case state := <-updates:
		assert.Equal(t, "autarchy", state.ID)
		assert.Equal(t, 75.0, *state.Readings[0].Value)
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}

	unsubscribe()
	unsubscribe()
	tr.Update("autarchy", "Autarchy", nil)
	select {
	case <-updates:
		t.Fatal("update received after unsubscribe")
	default:
	}
}

func TestTracker_SlowSubscriberDoesNotBlock(t *testing.T) {
	tr := NewTracker(nil)
	_, unsubscribe := tr.Subscribe(0)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		tr.Update("autarchy", "Autarchy", nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Update blocked on subscriber")
	}
}

func TestGauges_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	g := NewGauges(reg)

	g.Observe("saved_emissions", savedEmissionsReadings(ptr(80), ptr(3.2), ptr(0.05)))
	assert.Equal(t, 3.2, testutil.ToFloat64(g.readings.WithLabelValues("saved_emissions", "co2_emissions_saved", "kg")))
	assert.Equal(t, 1.0, testutil.ToFloat64(g.ticks.WithLabelValues("saved_emissions")))

	// Undefined values remove the series
	g.Observe("saved_emissions", savedEmissionsReadings(nil, nil, nil))
	assert.Equal(t, 0, testutil.CollectAndCount(g.readings))
	assert.Equal(t, 2.0, testutil.ToFloat64(g.ticks.WithLabelValues("saved_emissions")))
}

func TestWidgetsEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Register("saved_emissions", "Saved Emissions")
	tr.Update("saved_emissions", "Saved Emissions", savedEmissionsReadings(nil, nil, nil))

	resp, err := http.Get(ts.URL + "/widgets")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	// Undefined readings are serialized as null
	assert.Contains(t, string(body), `"key":"co2_emissions_saved","name":"CO2 Emissions Saved","unit":"kg","precision":1,"value":null`)

	var states []WidgetState
	require.NoError(t, json.Unmarshal(body, &states))
	require.Len(t, states, 1)
	assert.Equal(t, "saved_emissions", states[0].ID)
	assert.Equal(t, uint64(1), states[0].Ticks)
}

func TestWidgetEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update("saved_emissions", "Saved Emissions", savedEmissionsReadings(ptr(80), ptr(3.2), ptr(3.2/60)))

	resp, err := http.Get(ts.URL + "/widgets/saved_emissions")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var state WidgetState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	require.Len(t, state.Readings, 3)
	assert.Equal(t, 80.0, *state.Readings[0].Value)
	assert.Equal(t, 3.2, *state.Readings[1].Value)
}

func TestWidgetEndpoint_NotFound(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/widgets/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Update("autarchy", "Autarchy", []widget.Reading{{Key: "percentage", Unit: "%", Value: ptr(75)}})

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `savedemissions_widget_reading{reading="percentage",unit="%",widget="autarchy"} 75`)
	assert.Contains(t, string(body), `savedemissions_widget_ticks_total{widget="autarchy"} 1`)
}

func TestStream(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Register("saved_emissions", "Saved Emissions")

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	// Initial state of every registered widget
	var state WidgetState
	require.NoError(t, conn.ReadJSON(&state))
	assert.Equal(t, "saved_emissions", state.ID)
	assert.Equal(t, uint64(0), state.Ticks)

	// The handler subscribes before sending the initial state, so this update is delivered
	tr.Update("saved_emissions", "Saved Emissions", savedEmissionsReadings(ptr(100), ptr(2), ptr(2.0/60)))
	require.NoError(t, conn.ReadJSON(&state))
	assert.Equal(t, uint64(1), state.Ticks)
	require.NotNil(t, state.Readings[1].Value)
	assert.Equal(t, 2.0, *state.Readings[1].Value)
}

func TestServe_ShutdownReturnsNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	tr := NewTracker(NewGauges(reg))
	tr.Register("saved_emissions", "Saved Emissions")
	srv := New("", tr, reg, log.Nop())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/widgets/saved_emissions")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-serveErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}
