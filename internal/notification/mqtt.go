package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/birdnetpi/speciestools/internal/conf"
	"github.com/birdnetpi/speciestools/internal/errors"
	"github.com/birdnetpi/speciestools/internal/logger"
)

const (
	mqttConnectTimeout = 30 * time.Second
	mqttPublishTimeout = 10 * time.Second
	mqttQoS            = 0
)

// MQTTNotifier publishes events as JSON to {topic}/species/deleted.
// It connects on the first event.
type MQTTNotifier struct {
	settings  conf.MQTTSettings
	newClient func(*mqtt.ClientOptions) mqtt.Client

	mu     sync.Mutex
	client mqtt.Client
}

// NewMQTTNotifier returns a notifier for the configured broker.
func NewMQTTNotifier(settings conf.MQTTSettings) *MQTTNotifier {
	return &MQTTNotifier{settings: settings, newClient: mqtt.NewClient}
}

// Name implements Notifier.
func (m *MQTTNotifier) Name() string { return "mqtt" }

// Topic returns the topic species deletions are published to.
func (m *MQTTNotifier) Topic() string {
	return strings.TrimSuffix(m.settings.Topic, "/") + "/species/deleted"
}

func (m *MQTTNotifier) connect() (mqtt.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil && m.client.IsConnected() {
		return m.client, nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.settings.Broker)
	opts.SetClientID(m.settings.ClientID)
	opts.SetUsername(m.settings.Username)
	opts.SetPassword(m.settings.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		GetLogger().Warn("MQTT connection lost", logger.Error(err))
	})

	client := m.newClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, m.wrap(fmt.Errorf("connection timeout"), "connect")
	}
	if err := token.Error(); err != nil {
		return nil, m.wrap(fmt.Errorf("connection error: %w", err), "connect")
	}

	m.client = client
	return client, nil
}

// NotifySpeciesDeleted implements Notifier.
func (m *MQTTNotifier) NotifySpeciesDeleted(ctx context.Context, event SpeciesDeleted) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return m.wrap(err, "marshal")
	}

	client, err := m.connect()
	if err != nil {
		return err
	}

	timeout := mqttPublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}

	token := client.Publish(m.Topic(), mqttQoS, false, payload)
	if !token.WaitTimeout(timeout) {
		return m.wrap(fmt.Errorf("publish timeout"), "publish")
	}
	if err := token.Error(); err != nil {
		return m.wrap(err, "publish")
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTTNotifier) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(250)
	}
	m.client = nil
}

func (m *MQTTNotifier) wrap(err error, op string) error {
	return errors.New(err).
		Component("notification").
		Category(errors.CategoryNetwork).
		Context("operation", op).
		Context("broker", errors.ScrubMessage(m.settings.Broker)).
		Build()
}
