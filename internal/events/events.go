// Package events wraps the NATS transport used to carry the broadcaster's
// coarse state_changed signal between instances, and to fall back to a
// no-op publisher in development when NATS is unavailable.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/slotwise/courtkeeper/internal/config"
	"github.com/slotwise/courtkeeper/internal/logger"
)

// StateChangedEvent is the single coarse event name the broadcaster
// fires. Its payload (StateChangedPayload) is an optional narrowing hint,
// not authoritative state; observers always refetch.
const StateChangedEvent = "courtkeeper.state_changed"

// Publisher publishes events onto NATS.
type Publisher struct {
	conn   *nats.Conn
	logger *logger.Logger
}

// Subscriber subscribes to events on NATS.
type Subscriber struct {
	conn   *nats.Conn
	logger *logger.Logger
}

// Connect opens a connection to the configured NATS server.
func Connect(cfg config.NATS) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

// NewPublisher wraps an established NATS connection.
func NewPublisher(conn *nats.Conn, logger *logger.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

// NewNullPublisher returns a Publisher that silently drops every publish,
// used when NATS is unavailable in development.
func NewNullPublisher(logger *logger.Logger) *Publisher {
	return &Publisher{conn: nil, logger: logger}
}

// Publish marshals data and publishes it on subject. A nil underlying
// connection makes this a no-op.
func (p *Publisher) Publish(subject string, data interface{}) error {
	if p.conn == nil {
		p.logger.Debug("event publish skipped (no NATS connection)", "subject", subject)
		return nil
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	if err := p.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("published event", "subject", subject)
	return nil
}

// NewSubscriber wraps an established NATS connection.
func NewSubscriber(conn *nats.Conn, logger *logger.Logger) *Subscriber {
	return &Subscriber{conn: conn, logger: logger}
}

// Subscribe registers handler for subject. Handler errors are logged,
// never propagated back to NATS.
func (s *Subscriber) Subscribe(subject string, handler func([]byte) error) error {
	_, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		if err := handler(msg.Data); err != nil {
			s.logger.Error("failed to handle event", "subject", subject, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", subject, err)
	}
	s.logger.Debug("subscribed to subject", "subject", subject)
	return nil
}
