package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ryansname/savedemissions/src/channel"
)

// brokerURL accepts either a bare host or a full scheme://host:port URL
func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return fmt.Sprintf("tcp://%s:1883", broker)
}

// channelTopics maps the MQTT topic of every channel back to its address
func channelTopics(prefix string, addrs []channel.Address) map[string]channel.Address {
	topics := make(map[string]channel.Address, len(addrs))
	for _, a := range addrs {
		topics[a.Topic(prefix)] = a
	}
	return topics
}

// isUnavailable reports payloads published while a source has no value
func isUnavailable(value string) bool {
	switch value {
	case "", "Undefined", "unavailable", "unknown", "null":
		return true
	}
	return false
}

// mqttWorker manages the MQTT connection and forwards channel values to msgChan
func mqttWorker(
	ctx context.Context,
	broker string,
	topics map[string]channel.Address,
	username, password, clientID string,
	msgChan chan<- SensorMessage,
	clientChan chan<- mqtt.Client,
) {
	// Connect to MQTT broker
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(broker))
	opts.SetClientID(clientID)
	opts.SetUsername(username)
	opts.SetPassword(password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		logger.Warnf("MQTT connection lost: %v", err)
	})

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		logger.Infof("Connected to MQTT broker at %s", broker)

		// Send the new client to the sender worker
		select {
		case clientChan <- client:
			logger.Debugf("Sent new MQTT client to sender worker")
		case <-ctx.Done():
			return
		}

		// Subscribe to every channel topic
		for topic, addr := range topics {
			token := client.Subscribe(topic, 0, func(client mqtt.Client, msg mqtt.Message) {
				value := strings.TrimSpace(string(msg.Payload()))

				// Source has dropped out, keep the last known value
				if isUnavailable(value) {
					return
				}

				select {
				case msgChan <- SensorMessage{Channel: addr, Value: value}:
				case <-ctx.Done():
					return
				}
			})

			if token.Wait() && token.Error() != nil {
				logger.Errorf("Failed to subscribe to topic %s: %v", topic, token.Error())
			} else {
				logger.Infof("Subscribed to %s (%s)", addr, topic)
			}
		}
	})

	client := mqtt.NewClient(opts)

	// With connect retry the token only completes once connected
	logger.Infof("Connecting to MQTT broker at %s...", broker)
	token := client.Connect()
	select {
	case <-token.Done():
		if token.Error() != nil {
			logger.Errorf("Failed to connect to MQTT broker: %v", token.Error())
			return
		}
	case <-ctx.Done():
	}

	// Keep worker alive until context is done
	<-ctx.Done()

	if client.IsConnected() {
		client.Disconnect(250)
		logger.Infof("Disconnected from MQTT broker")
	}
}
