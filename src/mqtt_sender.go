package main

import (
	"context"
	"encoding/json"
	"slices"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"github.com/ryansname/savedemissions/src/widget"
)

// MQTTMessage represents an outgoing MQTT message
type MQTTMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// MQTTSender wraps a channel for sending MQTT messages with helper methods
type MQTTSender struct {
	ch chan<- MQTTMessage
}

// NewMQTTSender creates a new MQTTSender wrapping the given channel
func NewMQTTSender(ch chan<- MQTTMessage) *MQTTSender {
	return &MQTTSender{ch: ch}
}

// Send sends a raw MQTTMessage
func (s *MQTTSender) Send(msg MQTTMessage) {
	s.ch <- msg
}

func stateTopic(widgetID string) string {
	return "homeassistant/sensor/" + widgetID + "/state"
}

// statePayload encodes readings as {"key": value}, undefined values as null
func statePayload(readings []widget.Reading) ([]byte, error) {
	state := make(map[string]*float64, len(readings))
	for _, r := range readings {
		state[r.Key] = r.Value
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return nil, errors.Wrap(err, "encode widget state")
	}
	return payload, nil
}

// Update publishes the readings of a widget to its state topic
func (s *MQTTSender) Update(id, name string, readings []widget.Reading) {
	payload, err := statePayload(readings)
	if err != nil {
		logger.Errorf("Failed to publish %s state: %v", name, err)
		return
	}

	s.Send(MQTTMessage{
		Topic:   stateTopic(id),
		Payload: payload,
		QoS:     0,
		Retain:  false,
	})
}

// CreateReadingEntity creates a Home Assistant sensor for one widget reading via MQTT discovery
func (s *MQTTSender) CreateReadingEntity(widgetID, widgetName string, r widget.Reading) error {
	type haDeviceConfig struct {
		Identifiers  []string `json:"identifiers"`
		Name         string   `json:"name"`
		Manufacturer string   `json:"manufacturer,omitempty"`
		Model        string   `json:"model,omitempty"`
	}

	type haEntityConfig struct {
		Name             string         `json:"name,omitempty"`
		DeviceClass      string         `json:"device_class,omitempty"`
		StateTopic       string         `json:"state_topic"`
		UnitOfMeasure    string         `json:"unit_of_measurement,omitempty"`
		ValueTemplate    string         `json:"value_template"`
		UniqueId         string         `json:"unique_id"`
		ExpireAfter      uint           `json:"expire_after,omitempty"`
		StateClass       string         `json:"state_class,omitempty"`
		DisplayPrecision int            `json:"suggested_display_precision,omitempty"`
		Device           haDeviceConfig `json:"device"`
	}

	config := haEntityConfig{
		Name:          r.Name,
		DeviceClass:   r.Class,
		StateTopic:    stateTopic(widgetID),
		UnitOfMeasure: r.Unit,
		// null readings render as unknown instead of 0
		ValueTemplate:    "{{ value_json." + r.Key + " if value_json." + r.Key + " is not none else 'unknown' }}",
		UniqueId:         widgetID + "_" + r.Key,
		ExpireAfter:      60 * 30, // 30 minutes
		StateClass:       "measurement",
		DisplayPrecision: r.Precision,
		Device: haDeviceConfig{
			Identifiers:  []string{widgetID},
			Name:         widgetName,
			Manufacturer: "savedemissions",
			Model:        "Energy widget",
		},
	}

	configTopic := "homeassistant/sensor/" + widgetID + "_" + r.Key + "/config"

	payload, err := json.Marshal(config)
	if err != nil {
		return errors.Wrapf(err, "encode discovery config for %s", config.UniqueId)
	}

	s.Send(MQTTMessage{
		Topic:   configTopic,
		Payload: payload,
		QoS:     2,
		Retain:  true,
	})

	return nil
}

// publish sends a message and waits for the broker to acknowledge it
func publish(client mqtt.Client, msg MQTTMessage) error {
	token := client.Publish(msg.Topic, msg.QoS, msg.Retain, msg.Payload)
	token.Wait()
	return errors.Wrapf(token.Error(), "publish to %s", msg.Topic)
}

// enqueue appends msg to the offline queue. State updates are superseded by the
// next tick, so only the newest non-retained message per topic is kept.
func enqueue(queue []MQTTMessage, msg MQTTMessage) []MQTTMessage {
	if !msg.Retain {
		queue = slices.DeleteFunc(queue, func(m MQTTMessage) bool {
			return m.Topic == msg.Topic && !m.Retain
		})
	}
	return append(queue, msg)
}

// mqttSenderWorker handles outgoing MQTT messages, queuing them until a client is connected
func mqttSenderWorker(
	ctx context.Context,
	outgoingChan <-chan MQTTMessage,
	clientChan <-chan mqtt.Client,
) {
	logger.Infof("MQTT sender worker started")

	var client mqtt.Client
	var messageQueue []MQTTMessage

	for {
		select {
		case newClient := <-clientChan:
			logger.Infof("MQTT sender worker received new client")
			client = newClient

			// Process any queued messages now that we have a client
			if client != nil && client.IsConnected() {
				queuedCount := len(messageQueue)
				for _, msg := range messageQueue {
					if err := publish(client, msg); err != nil {
						logger.Warnf("Failed to publish queued message: %v", err)
					}
				}
				messageQueue = nil
				if queuedCount > 0 {
					logger.Infof("MQTT sender worker processed %d queued messages", queuedCount)
				}
			}

		case msg := <-outgoingChan:
			if client != nil && client.IsConnected() {
				if err := publish(client, msg); err != nil {
					logger.Warnf("Failed to publish message: %v", err)
				}
				continue
			}

			messageQueue = enqueue(messageQueue, msg)
			logger.Debugf("MQTT sender worker queued message (total queued: %d)", len(messageQueue))

		case <-ctx.Done():
			logger.Infof("MQTT sender worker stopped")
			return
		}
	}
}
