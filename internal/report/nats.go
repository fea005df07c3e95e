package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/stone-age-io/nbtoff/internal/config"
	"go.uber.org/zap"
)

// Publisher ships run reports to a NATS subject so fleet tooling can
// consume enforcement outcomes. It is optional; publish failures are the
// caller's to log, never fatal to a run.
type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  *zap.Logger
}

// NewPublisher connects to NATS using the configured authentication
func NewPublisher(cfg config.NATSConfig, logger *zap.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name("nbtoff"),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	switch cfg.Auth.Type {
	case "creds":
		opts = append(opts, nats.UserCredentials(cfg.Auth.CredsFile))
	case "token":
		opts = append(opts, nats.Token(cfg.Auth.Token))
	case "userpass":
		opts = append(opts, nats.UserInfo(cfg.Auth.Username, cfg.Auth.Password))
	case "none":
	default:
		return nil, fmt.Errorf("invalid auth type: %s", cfg.Auth.Type)
	}

	conn, err := nats.Connect(strings.Join(cfg.URLs, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("Connected to NATS",
		zap.String("url", conn.ConnectedUrl()),
		zap.String("subject", cfg.Subject))

	return &Publisher{conn: conn, subject: cfg.Subject, logger: logger}, nil
}

// Publish sends one report as JSON and flushes so a one-shot run does not
// exit before the message leaves the client.
func (p *Publisher) Publish(rep Report) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", p.subject, err)
	}
	if err := p.conn.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	p.logger.Debug("Published report",
		zap.String("subject", p.subject),
		zap.Int("bytes", len(data)))
	return nil
}

// Close drains the connection
func (p *Publisher) Close() {
	p.conn.Close()
}
