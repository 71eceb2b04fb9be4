package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"confluence-backend/internal/config"
	"confluence-backend/internal/domain"
)

// NATSClient publishes analysis results to NATS subjects.
type NATSClient struct {
	conn   *nats.Conn
	logger *logrus.Entry
	prefix string
}

var _ domain.AnalysisPublisher = (*NATSClient)(nil)

// NewNATSClient creates a new NATS client
func NewNATSClient(cfg config.NATSConfig, logger *logrus.Logger) (*NATSClient, error) {
	entry := logger.WithField("component", "nats")
	opts := []nats.Option{
		nats.Name("confluence-backend"),
		nats.MaxReconnects(cfg.MaxReconnect),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			entry.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			entry.Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			entry.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSClient{
		conn:   conn,
		logger: entry,
		prefix: strings.TrimSuffix(cfg.SubjectPrefix, "."),
	}, nil
}

// Subject returns the subject an analysis for symbol is published on.
func Subject(prefix, symbol string) string {
	return prefix + "." + domain.NormalizeSymbol(symbol)
}

// Publish sends the analysis as JSON to <prefix>.<SYMBOL>.
func (nc *NATSClient) Publish(ctx context.Context, result domain.AnalysisResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	subject := Subject(nc.prefix, result.Symbol)
	if err := nc.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	nc.logger.WithFields(logrus.Fields{
		"subject": subject,
		"bytes":   len(data),
	}).Debug("analysis published")
	return nil
}

// Subscribe delivers every analysis published under the prefix to handler.
func (nc *NATSClient) Subscribe(handler func(domain.AnalysisResult)) (*nats.Subscription, error) {
	return nc.conn.Subscribe(nc.prefix+".*", func(msg *nats.Msg) {
		var res domain.AnalysisResult
		if err := json.Unmarshal(msg.Data, &res); err != nil {
			nc.logger.WithError(err).WithField("subject", msg.Subject).Warn("dropping malformed analysis message")
			return
		}
		handler(res)
	})
}

// IsConnected reports the connection state
func (nc *NATSClient) IsConnected() bool {
	return nc.conn.IsConnected()
}

// Close drains pending messages and closes the connection
func (nc *NATSClient) Close() error {
	if err := nc.conn.Drain(); err != nil {
		nc.conn.Close()
		return err
	}
	return nil
}
