package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/itohio/gohrm/pkg/config"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

var _ Publisher = (*NATS)(nil)

// natsConn is the part of *nats.Conn used here.
type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATS publishes readings on a subject.
type NATS struct {
	conn    natsConn
	subject string
	log     *zap.Logger
}

// DialNATS connects to cfg.URL. The connection reconnects forever.
func DialNATS(cfg config.NATSConfig, log *zap.Logger) (*NATS, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := nats.Connect(
		cfg.URL,
		nats.Name("gohrm"),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats %s: %w", cfg.URL, err)
	}
	log.Info("nats connected", zap.String("url", cfg.URL), zap.String("subject", cfg.Subject))
	return newNATS(conn, cfg.Subject, log), nil
}

func newNATS(conn natsConn, subject string, log *zap.Logger) *NATS {
	return &NATS{conn: conn, subject: subject, log: log}
}

// Publish sends r. The client buffers while reconnecting so ctx is only
// checked up front.
func (n *NATS) Publish(ctx context.Context, r Reading) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := r.Marshal()
	if err != nil {
		return err
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", n.subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (n *NATS) Close() error {
	if err := n.conn.Drain(); err != nil {
		return fmt.Errorf("failed to drain nats: %w", err)
	}
	return nil
}
