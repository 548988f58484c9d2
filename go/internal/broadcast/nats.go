package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// DefaultSubject is the broadcast channel every server process subscribes
// to. A per-process in-memory fan-out would miss viewers attached to other
// processes; routing every event through this subject is what makes the
// sticky multi-process deployment correct.
const DefaultSubject = "livetrivia.events"

// NATSConfig holds connection settings for the broadcast channel.
type NATSConfig struct {
	URL           string
	Subject       string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Subject:       DefaultSubject,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// Connect dials NATS with reconnect logging suitable for a long-lived
// show process.
func Connect(config NATSConfig) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// Publisher implements Broadcaster over the NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

func NewPublisher(nc *nats.Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{nc: nc, subject: subject}
}

var _ Broadcaster = (*Publisher)(nil)

func (p *Publisher) Broadcast(ctx context.Context, typ EventType, payload any) error {
	return p.publish(ctx, "", typ, payload)
}

func (p *Publisher) Unicast(ctx context.Context, connID string, typ EventType, payload any) error {
	return p.publish(ctx, connID, typ, payload)
}

func (p *Publisher) publish(ctx context.Context, targetConn string, typ EventType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	envelope := Envelope{
		ID:         uuid.New().String(),
		Type:       typ,
		TargetConn: targetConn,
		Timestamp:  time.Now().UTC(),
		Payload:    data,
	}
	frame, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", typ, err)
	}
	if err := p.nc.Publish(p.subject, frame); err != nil {
		return fmt.Errorf("publish %s: %w", typ, err)
	}

	log.Debug().
		Str("event_id", envelope.ID).
		Str("event_type", string(typ)).
		Str("target_conn", targetConn).
		Msg("event published")
	return nil
}

// DeliverFunc hands a decoded envelope to the local connection layer.
type DeliverFunc func(env Envelope)

// Consumer subscribes this process to the broadcast subject and feeds
// every envelope to the local delivery function.
type Consumer struct {
	nc      *nats.Conn
	subject string
	deliver DeliverFunc
	sub     *nats.Subscription
}

func NewConsumer(nc *nats.Conn, subject string, deliver DeliverFunc) *Consumer {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Consumer{nc: nc, subject: subject, deliver: deliver}
}

// Start subscribes and blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	sub, err := c.nc.Subscribe(c.subject, func(msg *nats.Msg) {
		var envelope Envelope
		if err := json.Unmarshal(msg.Data, &envelope); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject).Msg("malformed broadcast envelope")
			return
		}
		c.deliver(envelope)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.subject, err)
	}
	c.sub = sub

	log.Info().Str("subject", c.subject).Msg("broadcast consumer started")
	<-ctx.Done()

	if err := sub.Unsubscribe(); err != nil {
		log.Error().Err(err).Msg("failed to unsubscribe broadcast consumer")
	}
	log.Info().Msg("broadcast consumer stopped")
	return nil
}
