// Package nats provides the JetStream-backed conversation store and message
// log used by the API server.
package nats

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/capitalize-ai/campuschat/pkg/logger"
)

// DefaultClientName identifies API server connections in NATS monitoring.
const DefaultClientName = "campuschat-api"

// Config is the broker address plus optional TLS material and token.
// CertFile and KeyFile go together; CAFile may be given alone to pin the
// server certificate.
type Config struct {
	URL        string
	ClientName string
	CAFile     string
	CertFile   string
	KeyFile    string
	Token      string
}

// Client owns one broker connection and the JetStream handle built on it.
type Client struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *logger.Logger
}

// Connect dials cfg.URL. A deadline on ctx bounds the initial dial; after
// that the connection reconnects forever.
func Connect(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	opts, err := connectOptions(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.URL, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open JetStream: %w", err)
	}

	log.Info("connected to NATS",
		zap.String("url", nc.ConnectedUrl()),
		zap.String("server_id", nc.ConnectedServerId()),
	)
	return &Client{conn: nc, js: js, logger: log}, nil
}

func connectOptions(ctx context.Context, cfg Config, log *logger.Logger) ([]nats.Option, error) {
	name := cfg.ClientName
	if name == "" {
		name = DefaultClientName
	}

	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.ReconnectBufSize(8 * 1024 * 1024),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			log.Error("NATS async error", zap.String("subject", subject), zap.Error(err))
		}),
	}

	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			opts = append(opts, nats.Timeout(d))
		}
	}

	tlsConfig, err := loadTLS(cfg)
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		opts = append(opts, nats.Secure(tlsConfig))
	}

	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	return opts, nil
}

// loadTLS returns nil when no TLS material is configured.
func loadTLS(cfg Config) (*tls.Config, error) {
	if (cfg.CertFile == "") != (cfg.KeyFile == "") {
		return nil, errors.New("NATS TLS: cert and key files must be set together")
	}
	if cfg.CAFile == "" && cfg.CertFile == "" {
		return nil, nil
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("NATS TLS: read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("NATS TLS: no certificates in %s", cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("NATS TLS: load client certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

// JetStream returns the JetStream handle shared by the store and the log.
func (c *Client) JetStream() jetstream.JetStream {
	return c.js
}

// Close drains pending publishes, falling back to a hard close.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.logger.Warn("NATS drain failed", zap.Error(err))
		c.conn.Close()
	}
}

// IsConnected backs the readiness check.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}
