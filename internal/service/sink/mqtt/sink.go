// Package mqtt delivers actions to an MQTT broker, where a desktop agent
// subscribed to the topic performs the pointer action.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"eeg-action-service/internal/eeg"
)

// Config holds broker settings.
type Config struct {
	Broker   string // e.g. tcp://localhost:1883
	ClientID string
	Topic    string
	QoS      byte
	Timeout  time.Duration
}

// DefaultConfig returns settings for a local broker.
func DefaultConfig() Config {
	return Config{
		Broker:   "tcp://localhost:1883",
		ClientID: "eeg-action-service",
		Topic:    "eeg/action",
		QoS:      1,
		Timeout:  5 * time.Second,
	}
}

// ErrPublishTimeout is returned when the broker does not acknowledge in time.
var ErrPublishTimeout = errors.New("mqtt publish timed out")

// client is the subset of the paho client the sink uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

type payload struct {
	Action    string `json:"action"`
	Class     int    `json:"class"`
	Timestamp int64  `json:"timestamp"`
}

// Sink publishes actions as JSON messages.
type Sink struct {
	client  client
	topic   string
	qos     byte
	timeout time.Duration
}

// Connect dials the broker and returns a ready sink.
func Connect(cfg Config) (*Sink, error) {
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout)

	c := pahomqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("connect to mqtt broker %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", cfg.Broker, err)
	}

	log.Info().
		Str("broker", cfg.Broker).
		Str("topic", cfg.Topic).
		Msg("MQTT action sink connected")
	return newSink(c, cfg), nil
}

func newSink(c client, cfg Config) *Sink {
	return &Sink{
		client:  c,
		topic:   cfg.Topic,
		qos:     cfg.QoS,
		timeout: cfg.Timeout,
	}
}

// Dispatch publishes the action and waits for the broker acknowledgement.
func (s *Sink) Dispatch(ctx context.Context, a eeg.Action) error {
	body, err := json.Marshal(payload{
		Action:    a.Symbol(),
		Class:     int(a),
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}

	token := s.client.Publish(s.topic, s.qos, false, body)

	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		return ErrPublishTimeout
	}
	return token.Error()
}

func (s *Sink) Name() string { return "mqtt" }

// Close disconnects from the broker.
func (s *Sink) Close() error {
	s.client.Disconnect(250)
	return nil
}
