// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/ryansname/savedemissions/src/metrics"
)

const (
	defaultBroker       = "homeassistant.lan"
	defaultClientPrefix = "savedemissions"
	defaultTopicPrefix  = "openems/edge0"
	defaultHTTPAddr     = ":8080"
	defaultLogLevel     = "info"
	defaultGrace        = 20 * time.Second
	defaultDebounce     = time.Second
)

// Config holds all runtime settings
type Config struct {
	MQTTBroker   string
	MQTTUsername string
	MQTTPassword string
	MQTTClientID string

	// ChannelTopicPrefix is prepended to "{componentId}/{property}" to build subscription topics
	ChannelTopicPrefix string

	// CO2Factor is the CO2 avoided per self-consumed kWh (kg/kWh)
	CO2Factor float64

	// HTTPAddr is the dashboard listen address, empty disables it
	HTTPAddr string

	LogLevel string

	// StartupGrace is how long to wait for every channel before delivering partial snapshots
	StartupGrace time.Duration

	// Debounce is the minimum interval between two snapshots
	Debounce time.Duration
}

// Load reads a .env file if present and resolves the configuration from the environment.
// A missing .env file is not an error.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !os.IsNotExist(errors.Cause(err)) {
		return Config{}, errors.Wrap(err, "load .env")
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv resolves the configuration using lookupEnv (os.LookupEnv in production),
// applying defaults and validating the result
func FromEnv(lookupEnv func(string) (string, bool)) (Config, error) {
	getenv := func(key string) string {
		v, _ := lookupEnv(key)
		return v
	}

	cfg := Config{
		MQTTBroker:         stringOr(getenv("MQTT_BROKER"), defaultBroker),
		MQTTUsername:       getenv("MQTT_USERNAME"),
		MQTTPassword:       getenv("MQTT_PASSWORD"),
		MQTTClientID:       strings.TrimSpace(getenv("MQTT_CLIENT_ID")),
		ChannelTopicPrefix: stringOr(getenv("CHANNEL_TOPIC_PREFIX"), defaultTopicPrefix),
		CO2Factor:          metrics.DefaultCO2Factor,
		HTTPAddr:           defaultHTTPAddr,
		LogLevel:           stringOr(getenv("LOG_LEVEL"), defaultLogLevel),
		StartupGrace:       defaultGrace,
		Debounce:           defaultDebounce,
	}

	if cfg.MQTTClientID == "" {
		cfg.MQTTClientID = defaultClientPrefix + "-" + uuid.NewString()[:8]
	}

	// Present but empty disables the dashboard
	if addr, ok := lookupEnv("HTTP_ADDR"); ok {
		cfg.HTTPAddr = strings.TrimSpace(addr)
	}

	if v := strings.TrimSpace(getenv("CO2_FACTOR")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, errors.Wrapf(err, "parse CO2_FACTOR %q", v)
		}
		cfg.CO2Factor = f
	}

	var err error
	if cfg.StartupGrace, err = durationOr(getenv("STARTUP_GRACE"), defaultGrace); err != nil {
		return Config{}, errors.Wrap(err, "parse STARTUP_GRACE")
	}
	if cfg.Debounce, err = durationOr(getenv("DEBOUNCE"), defaultDebounce); err != nil {
		return Config{}, errors.Wrap(err, "parse DEBOUNCE")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required settings are present and values are in range
func (c Config) Validate() error {
	if c.MQTTUsername == "" || c.MQTTPassword == "" {
		return errors.New("MQTT_USERNAME and MQTT_PASSWORD must be set")
	}
	if c.MQTTBroker == "" {
		return errors.New("MQTT_BROKER must not be empty")
	}
	if c.CO2Factor < 0 || math.IsNaN(c.CO2Factor) || math.IsInf(c.CO2Factor, 0) {
		return errors.Errorf("CO2_FACTOR must be a non-negative number, got %v", c.CO2Factor)
	}
	if c.StartupGrace < 0 {
		return errors.Errorf("STARTUP_GRACE must not be negative, got %v", c.StartupGrace)
	}
	if c.Debounce < 0 {
		return errors.Errorf("DEBOUNCE must not be negative, got %v", c.Debounce)
	}
	return nil
}

func stringOr(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

func durationOr(v string, def time.Duration) (time.Duration, error) {
	if v = strings.TrimSpace(v); v == "" {
		return def, nil
	}
	return time.ParseDuration(v)
}
