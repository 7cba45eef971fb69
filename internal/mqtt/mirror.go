// Package mqtt republishes board events to an MQTT broker for external automation.
package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/EdgeAdaptics/triage/internal/events"
)

const (
	defaultQoS     = 1
	publishTimeout = 5 * time.Second
	connectTimeout = 10 * time.Second
	quiesceMillis  = 250
)

var newClient = mqtt.NewClient

// Client is the part of the paho client the mirror drives.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Source hands out bus subscriptions.
type Source interface {
	Subscribe(types ...events.Type) *events.Subscription
}

// Config describes the broker connection.
type Config struct {
	Broker   string
	Topic    string
	ClientID string
	TLS      *tls.Config
	// ConnectTimeout bounds the initial connect; zero means 10s.
	ConnectTimeout time.Duration
}

// Mirror copies every bus event to <topic>/<event type>. It is outbound only.
type Mirror struct {
	log    *slog.Logger
	client Client
	topic  string
	qos    byte
}

// NewMirror wraps an already connected client.
func NewMirror(log *slog.Logger, client Client, topic string) *Mirror {
	return &Mirror{
		log:    log,
		client: client,
		topic:  strings.TrimSuffix(topic, "/"),
		qos:    defaultQoS,
	}
}

// Dial connects to the broker and returns a Mirror bound to it.
func Dial(log *slog.Logger, cfg Config) (*Mirror, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker not configured")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg.Broker, cfg.TLS != nil))
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	if cfg.TLS != nil {
		opts.SetTLSConfig(cfg.TLS)
	}
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info("connected to MQTT broker", slog.String("broker", cfg.Broker), slog.String("client_id", cfg.ClientID))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		if err != nil {
			log.Warn("mqtt connection lost", slog.String("err", err.Error()))
		}
	})

	wait := cfg.ConnectTimeout
	if wait <= 0 {
		wait = connectTimeout
	}

	// With connect retry on, an abandoned client keeps dialing in the background.
	client := newClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(wait) {
		client.Disconnect(0)
		return nil, errors.New("timeout connecting to mqtt broker")
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("connect mqtt broker: %w", err)
	}

	return NewMirror(log, client, cfg.Topic), nil
}

// Run relays events until ctx is cancelled, then disconnects the client.
// Publish failures are logged and the event is dropped.
func (m *Mirror) Run(ctx context.Context, src Source) error {
	sub := src.Subscribe(events.AllTypes...)
	defer sub.Close()
	defer m.client.Disconnect(quiesceMillis)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := m.Publish(ctx, evt); err != nil {
				m.log.WarnContext(ctx, "mqtt publish failed",
					slog.String("type", string(evt.Type)),
					slog.String("err", err.Error()))
			}
		}
	}
}

// Publish sends one event and waits for the broker acknowledgement.
func (m *Mirror) Publish(ctx context.Context, evt events.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", evt.Type, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	token := m.client.Publish(m.Topic(evt.Type), m.qos, false, payload)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	}
}

// Topic returns the topic events of type t are published to.
func (m *Mirror) Topic(t events.Type) string {
	return m.topic + "/" + string(t)
}

func brokerURL(broker string, secure bool) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	if secure {
		return "ssl://" + broker
	}
	return "tcp://" + broker
}
