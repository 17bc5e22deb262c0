package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/elonfeng/aqiwatch/pkg/location"
)

const mqttPublishTimeout = 5 * time.Second

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes notifications to <prefix>/<state>/<city>. Messages are
// retained so new subscribers see each city's latest alert.
type MQTT struct {
	client publisher
	prefix string
	close  func()
}

// MQTTOptions configures the broker connection.
type MQTTOptions struct {
	Broker      string // host:port or a full URL
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// NewMQTT connects to the broker and returns a notifier.
func NewMQTT(ctx context.Context, o MQTTOptions) (*MQTT, error) {
	broker := o.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(o.ClientID)
	opts.SetUsername(o.Username)
	opts.SetPassword(o.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()

	const poll = 200 * time.Millisecond
	for !token.WaitTimeout(poll) {
		select {
		case <-ctx.Done():
			client.Disconnect(0)
			return nil, ctx.Err()
		default:
		}
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}

	return &MQTT{
		client: client,
		prefix: strings.TrimRight(o.TopicPrefix, "/"),
		close:  func() { client.Disconnect(250) },
	}, nil
}

func (m *MQTT) Name() string { return "mqtt" }

// Topic returns the topic a city's alerts are published to.
func (m *MQTT) Topic(state, city string) string {
	return fmt.Sprintf("%s/%s/%s", m.prefix, location.Slug(state), location.Slug(city))
}

func (m *MQTT) Send(ctx context.Context, n *Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal mqtt payload: %w", err)
	}

	topic := m.Topic(n.State, n.City)
	token := m.client.Publish(topic, 1, true, data)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(mqttPublishTimeout):
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (m *MQTT) Close() error {
	if m.close != nil {
		m.close()
	}
	return nil
}
