package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ryansname/savedemissions/src/channel"
	"github.com/ryansname/savedemissions/src/config"
	"github.com/ryansname/savedemissions/src/dashboard"
	"github.com/ryansname/savedemissions/src/log"
	"github.com/ryansname/savedemissions/src/widget"
)

// logger is replaced once the configured level is known
var logger = log.New("info")

// SafeGo launches a goroutine with panic recovery and retry logic.
// On panic, retries with exponential backoff (max 10 retries).
// Retry count resets if worker ran for 2+ minutes before failing.
// After exhausting retries, cancels context to trigger shutdown.
func SafeGo(
	ctx context.Context,
	cancel context.CancelFunc,
	name string,
	fn func(ctx context.Context),
) {
	const maxRetries = 10
	const maxDelay = 10 * time.Minute
	const resetAfter = 2 * time.Minute

	go func() {
		retries := 0
		delay := time.Second

		for {
			startTime := time.Now()
			var panicValue any

			func() {
				defer func() {
					panicValue = recover()
				}()
				fn(ctx)
			}()

			// Normal return covers both context cancellation and a worker giving up
			if panicValue == nil {
				return
			}

			if time.Since(startTime) >= resetAfter {
				retries = 0
				delay = time.Second
			}

			retries++
			logger.Errorf("Panic in %s (attempt %d/%d): %v", name, retries, maxRetries, panicValue)

			if retries >= maxRetries {
				logger.Errorf("%s failed after %d retries, shutting down", name, maxRetries)
				cancel()
				return
			}

			logger.Warnf("%s will retry in %v", name, delay)
			select {
			case <-time.After(delay):
				delay = min(delay*2, maxDelay)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func main() {
	consoleEnabled := flag.Bool("console", false, "enable the interactive debug console")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	logger = log.New(cfg.LogLevel)
	defer func() { _ = logger.Flush() }()

	logger.Infof("Starting savedemissions...")

	// Create context for lifecycle management
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	widgets := bindWidgets([]widget.Presenter{
		widget.NewSavedEmissions(cfg.CO2Factor),
		widget.NewSelfConsumption(),
		widget.NewAutarchy(),
	})
	expected := expectedChannels(widgets)
	topics := channelTopics(cfg.ChannelTopicPrefix, expected)
	logger.Infof("%d widgets need %d channels (CO2 factor %.3f kg/kWh)", len(widgets), len(expected), cfg.CO2Factor)

	// Create channels for communication between workers
	msgChan := make(chan SensorMessage, 10)
	currentDataChan := make(chan channel.CurrentData, 10)
	mqttOutgoingChan := make(chan MQTTMessage, 100) // Larger buffer for queuing
	mqttClientChan := make(chan mqtt.Client, 1)     // Buffered to prevent blocking onConnect

	SafeGo(ctx, cancel, "mqtt-sender-worker", func(ctx context.Context) {
		mqttSenderWorker(ctx, mqttOutgoingChan, mqttClientChan)
	})

	mqttSender := NewMQTTSender(mqttOutgoingChan)

	logger.Infof("Creating Home Assistant entities...")
	for _, w := range widgets {
		for _, r := range w.Readings() {
			if err := mqttSender.CreateReadingEntity(w.ID(), w.Name(), r); err != nil {
				cancel()
				logger.Fatalf("Failed to create %s %s entity: %v", w.Name(), r.Name, err)
			}
		}
	}
	logger.Infof("Home Assistant entities created")

	// Dashboard state and metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	tracker := dashboard.NewTracker(dashboard.NewGauges(registry))
	for _, w := range widgets {
		tracker.Register(w.ID(), w.Name())
	}

	SafeGo(ctx, cancel, "current-data-worker", func(ctx context.Context) {
		currentDataWorker(ctx, msgChan, currentDataChan, expected, cfg.StartupGrace, cfg.Debounce)
	})
	logger.Infof("Current data worker started")

	// One worker per widget, each fed by the broadcast worker
	sinks := []ReadingsSink{mqttSender, tracker}
	downstreamChans := make([]chan<- channel.CurrentData, 0, len(widgets)+1)
	for _, w := range widgets {
		widgetChan := make(chan channel.CurrentData, 10)
		downstreamChans = append(downstreamChans, widgetChan)

		SafeGo(ctx, cancel, w.ID()+"-widget", func(ctx context.Context) {
			widgetWorker(ctx, widgetChan, w, sinks)
		})
	}

	if *consoleEnabled {
		consoleChan := make(chan channel.CurrentData, 10)
		downstreamChans = append(downstreamChans, consoleChan)

		SafeGo(ctx, cancel, "console-worker", func(ctx context.Context) {
			consoleWorker(ctx, cancel, consoleChan, tracker, expected)
		})
	}

	SafeGo(ctx, cancel, "broadcast-worker", func(ctx context.Context) {
		broadcastWorker(ctx, currentDataChan, downstreamChans)
	})
	logger.Infof("Broadcast worker started")

	SafeGo(ctx, cancel, "mqtt-worker", func(ctx context.Context) {
		mqttWorker(ctx, cfg.MQTTBroker, topics, cfg.MQTTUsername, cfg.MQTTPassword, cfg.MQTTClientID,
			msgChan, mqttClientChan)
	})
	logger.Infof("MQTT worker started")

	var server *dashboard.Server
	if cfg.HTTPAddr != "" {
		server = dashboard.New(cfg.HTTPAddr, tracker, registry, logger)
		go func() {
			logger.Infof("Dashboard listening on %s", cfg.HTTPAddr)
			if err := server.ListenAndServe(); err != nil {
				logger.Errorf("Dashboard stopped: %v", err)
				cancel()
			}
		}()
	}

	// Wait for interrupt signal or context cancellation (from panic)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Infof("Shutting down...")
	case <-ctx.Done():
		logger.Warnf("Shutting down due to error...")
	}
	cancel()

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("Dashboard shutdown: %v", err)
		}
	}
}
