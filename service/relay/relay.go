package relay

import (
	"time"

	"github.com/nats-io/nats.go"

	"ChatWave/logger"
	"ChatWave/tools/errs"
)

// Config for the NATS event relay.
type Config struct {
	URL           string
	Name          string
	SubjectPrefix string // events go to <prefix>.<conversation_id>
}

// Relay mirrors every broadcast payload to a NATS subject. It is the wired
// extension point for multi-instance fan-out: a second gateway (or any other
// consumer) can subscribe to <prefix>.> and deliver to its own connections.
// Publishing is fire-and-forget; local delivery never waits on it.
type Relay struct {
	nc     *nats.Conn
	prefix string
}

func New(cfg Config) (*Relay, error) {
	if cfg.URL == "" {
		return nil, errs.New("nats url is required")
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "chat.events"
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(5*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errs.WrapMsg(err, "nats connect", "url", cfg.URL)
	}
	return &Relay{nc: nc, prefix: cfg.SubjectPrefix}, nil
}

func (r *Relay) Publish(conversationID string, payload []byte) {
	subject := r.prefix + "." + conversationID
	if err := r.nc.Publish(subject, payload); err != nil {
		logger.Warnf("[relay] publish failed subject=%s err=%v", subject, err)
	}
}

func (r *Relay) Close() {
	if err := r.nc.Drain(); err != nil {
		r.nc.Close()
	}
}
