package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/smokyabdulrahman/prayer-companion/internal/schedule"
)

// Sink delivers a due notification.
type Sink interface {
	Deliver(ctx context.Context, t schedule.Task) error
}

// Payload is what sinks emit for a task.
type Payload struct {
	ID      string            `json:"id"`
	Kind    schedule.Kind     `json:"kind"`
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	Channel string            `json:"channel"`
	Sound   string            `json:"sound,omitempty"`
	FireAt  time.Time         `json:"fire_at"`
	Data    map[string]string `json:"data"`
	Present Presentation      `json:"presentation"`
}

// NewPayload renders t with the current presentation.
func NewPayload(t schedule.Task) Payload {
	p := Payload{
		ID:      t.ID,
		Kind:    t.Kind,
		Title:   t.Title,
		Body:    t.Body,
		Channel: t.Channel,
		FireAt:  t.FireAt,
		Data:    t.Data,
		Present: CurrentPresentation(),
	}
	if p.Present.PlaySound {
		p.Sound = t.Sound
	}
	return p
}

// LogSink writes notifications to the log.
type LogSink struct{}

// Deliver implements Sink.
func (LogSink) Deliver(ctx context.Context, t schedule.Task) error {
	p := NewPayload(t)
	log.Info().
		Str("kind", string(p.Kind)).
		Str("title", p.Title).
		Str("body", p.Body).
		Str("route", p.Data["route"]).
		Msg("[notify] notification")
	return nil
}

// MQTTSink publishes notifications as JSON to <prefix>/<kind>.
type MQTTSink struct {
	client  mqtt.Client
	prefix  string
	qos     byte
	timeout time.Duration
}

// MQTTOptions configures NewMQTTSink.
type MQTTOptions struct {
	Broker   string
	ClientID string
	Prefix   string
	Username string
	Password string
	Timeout  time.Duration
}

// NewMQTTSink connects to the broker.
func NewMQTTSink(o MQTTOptions) (*MQTTSink, error) {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.Prefix == "" {
		o.Prefix = "prayer-times"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)
	opts.SetUsername(o.Username)
	opts.SetPassword(o.Password)
	opts.SetConnectTimeout(o.Timeout)
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(mqtt.Client) {
		log.Info().Str("broker", o.Broker).Msg("[notify] connected to MQTT broker")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("[notify] MQTT connection lost")
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(o.Timeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", o.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	return newMQTTSink(client, o.Prefix, o.Timeout), nil
}

func newMQTTSink(client mqtt.Client, prefix string, timeout time.Duration) *MQTTSink {
	return &MQTTSink{client: client, prefix: prefix, qos: 1, timeout: timeout}
}

// Topic is where tasks of kind are published.
func (s *MQTTSink) Topic(kind schedule.Kind) string {
	return s.prefix + "/" + string(kind)
}

// Deliver implements Sink.
func (s *MQTTSink) Deliver(ctx context.Context, t schedule.Task) error {
	body, err := json.Marshal(NewPayload(t))
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	token := s.client.Publish(s.Topic(t.Kind), s.qos, false, body)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.timeout):
		return fmt.Errorf("timed out publishing to %s", s.Topic(t.Kind))
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", s.Topic(t.Kind), err)
	}
	return nil
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() {
	s.client.Disconnect(250)
}
