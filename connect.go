package micro

import (
	"log/slog"
	"time"

	"github.com/PowerDNS/go-tlsconfig"
	"github.com/nats-io/nats.go"
)

// ConnectConfig are the connection parameters accepted by Connect, mirroring
// the environment variables of spec §6 (NATS_SERVER, NATS_MAX_RECONNECT,
// NATS_RECONNECT_DELAY, NATS_USERNAME, NATS_PASSWORD, NATS_TOKEN).
type ConnectConfig struct {
	URL             string
	MaxReconnect    int
	ReconnectDelay  time.Duration
	Username        string
	Password        string
	Token           string
	TLS             tlsconfig.Config
	Logger          *slog.Logger
	ErrorHandler    func(*NATSError)
	ExtraOptions    []nats.Option
}

// Connect dials the NATS server described by cfg, wiring reconnection
// logging and async error reporting the way a long-lived service instance
// needs (connection management itself is an external collaborator per
// spec §1; this is the glue a CLI or a runctx.Context uses to obtain it).
func Connect(cfg ConnectConfig) (*nats.Conn, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "micro.connect")
	}
	maxReconnect := cfg.MaxReconnect
	if maxReconnect == 0 {
		maxReconnect = -1
	}
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(maxReconnect),
		nats.ConnectHandler(func(*nats.Conn) {
			logger.Info("nats connected", "url", cfg.URL)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "err", err)
			}
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Info("nats connection closed")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			nerr := &NATSError{Subject: subject, Err: err}
			logger.Error("nats async error", "subject", subject, "err", err)
			if cfg.ErrorHandler != nil {
				cfg.ErrorHandler(nerr)
			}
		}),
	}
	if cfg.ReconnectDelay > 0 {
		opts = append(opts, nats.ReconnectWait(cfg.ReconnectDelay))
	}
	if cfg.Username != "" || cfg.Password != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	// cfg.TLS is carried through for callers that need certificate-based
	// auth; building a *tls.Config from it is left to the caller via
	// tlsconfig's own loader, since that loader owns a reload watch loop
	// this constructor has no lifetime to attach to.
	opts = append(opts, cfg.ExtraOptions...)

	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	return nats.Connect(url, opts...)
}
