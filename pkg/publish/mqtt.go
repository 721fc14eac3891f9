package publish

import (
	"context"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/itohio/gohrm/pkg/config"
	"go.uber.org/zap"
)

var _ Publisher = (*MQTT)(nil)

// disconnectQuiesce is the time given to in-flight work on Close, in ms.
const disconnectQuiesce = 250

// MQTT publishes readings on a topic.
type MQTT struct {
	client mqtt.Client
	topic  string
	qos    byte
	log    *zap.Logger
}

// DialMQTT connects to cfg.Broker with auto reconnect.
func DialMQTT(cfg config.MQTTConfig, log *zap.Logger) (*MQTT, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	log.Info("mqtt connected", zap.String("broker", cfg.Broker), zap.String("topic", cfg.Topic))
	return newMQTT(client, cfg.Topic, cfg.QoS, log), nil
}

func newMQTT(client mqtt.Client, topic string, qos byte, log *zap.Logger) *MQTT {
	return &MQTT{client: client, topic: topic, qos: qos, log: log}
}

// Publish sends r and waits for the broker acknowledgement or ctx.
func (m *MQTT) Publish(ctx context.Context, r Reading) error {
	data, err := r.Marshal()
	if err != nil {
		return err
	}

	token := m.client.Publish(m.topic, m.qos, false, data)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", m.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	m.client.Disconnect(disconnectQuiesce)
	return nil
}
