package receiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/buoywatch/buoywatch/server/internal/ingest"
)

// DefaultTopic is the subscription used when none is configured. The single
// level wildcard carries the station id.
const DefaultTopic = "buoys/+/readings"

// Submitter accepts a raw JSON submission for a station.
type Submitter interface {
	Submit(ctx context.Context, stationID string, data []byte) (*ingest.Result, error)
}

// Config holds broker connection settings.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// Receiver subscribes to station readings on an MQTT broker and forwards
// each message to the ingest pipeline.
type Receiver struct {
	sub    Submitter
	topic  string
	client mqtt.Client
	ctx    context.Context
}

// New creates a Receiver that forwards to sub.
func New(sub Submitter) *Receiver {
	return &Receiver{sub: sub, topic: DefaultTopic, ctx: context.Background()}
}

// Start connects to the broker and subscribes. The connection is closed
// when ctx is cancelled.
func (r *Receiver) Start(ctx context.Context, cfg Config) error {
	if cfg.Topic != "" {
		r.topic = cfg.Topic
	}
	r.ctx = ctx

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("receiver: connection lost", "broker", cfg.Broker, "err", err)
	})
	// Resubscribe after an automatic reconnect; clean sessions drop
	// subscriptions.
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if t := c.Subscribe(r.topic, cfg.QoS, r.onMessage); t.Wait() && t.Error() != nil {
			slog.Error("receiver: subscribe failed", "topic", r.topic, "err", t.Error())
			return
		}
		slog.Info("receiver: subscribed", "broker", cfg.Broker, "topic", r.topic)
	})

	r.client = mqtt.NewClient(opts)
	if t := r.client.Connect(); t.Wait() && t.Error() != nil {
		return fmt.Errorf("receiver: connect %s: %w", cfg.Broker, t.Error())
	}

	go func() {
		<-ctx.Done()
		r.client.Disconnect(250)
		slog.Info("receiver: disconnected", "broker", cfg.Broker)
	}()
	return nil
}

// Handle ingests one message. The station id is taken from the topic when
// the subscription has a wildcard level, otherwise from the body.
func (r *Receiver) Handle(ctx context.Context, topic string, payload []byte) error {
	stationID := StationFromTopic(r.topic, topic)
	res, err := r.sub.Submit(ctx, stationID, payload)
	if err != nil {
		return err
	}
	slog.Debug("receiver: reading ingested",
		"topic", topic,
		"station", res.StationID,
		"index", res.Score.Index,
		"alerts", len(res.Alerts),
	)
	return nil
}

func (r *Receiver) onMessage(_ mqtt.Client, msg mqtt.Message) {
	if err := r.Handle(r.ctx, msg.Topic(), msg.Payload()); err != nil {
		if errors.Is(err, ingest.ErrInvalidReading) {
			slog.Warn("receiver: message rejected", "topic", msg.Topic(), "err", err)
			return
		}
		slog.Error("receiver: ingest failed", "topic", msg.Topic(), "err", err)
	}
}

// StationFromTopic returns the level of topic matching the first "+" in
// pattern, or "" when pattern has no "+" or topic does not line up with it.
func StationFromTopic(pattern, topic string) string {
	pl := strings.Split(pattern, "/")
	tl := strings.Split(topic, "/")
	for i, level := range pl {
		if level != "+" {
			continue
		}
		if i < len(tl) {
			return tl[i]
		}
		return ""
	}
	return ""
}
