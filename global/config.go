package global

import (
	"encoding/json"
	"os"
	"time"

	"ChatWave/tools/errs"
)

// AppConfig is the full runtime configuration of the gateway process.
type AppConfig struct {
	Server  ServerConfig  `json:"server"`
	Auth    AuthConfig    `json:"auth"`
	Gateway GatewayConfig `json:"gateway"`
	Redis   RedisConfig   `json:"redis"`
	Mongo   MongoConfig   `json:"mongo"`
	Nats    NatsConfig    `json:"nats"`
}

type ServerConfig struct {
	Addr           string   `json:"addr"`
	AllowedOrigins []string `json:"allowed_origins"` // empty = allow all (dev)
}

type AuthConfig struct {
	Secret string `json:"secret"`
	// HandshakeTimeoutMS bounds how long an unauthenticated connection may
	// sit before the gateway drops it.
	HandshakeTimeoutMS int `json:"handshake_timeout_ms"`
}

type GatewayConfig struct {
	NodeID         int64 `json:"node_id"`
	SendQueueSize  int   `json:"send_queue_size"`
	FanoutWorkers  int   `json:"fanout_workers"`
	FanoutQueue    int   `json:"fanout_queue"`
	PingIntervalMS int   `json:"ping_interval_ms"`
	PongTimeoutMS  int   `json:"pong_timeout_ms"`
}

type RedisConfig struct {
	Addr          string `json:"addr"` // empty disables the presence mirror
	Password      string `json:"password"`
	DB            int    `json:"db"`
	PresenceTTLMS int    `json:"presence_ttl_ms"`
}

type MongoConfig struct {
	URI      string `json:"uri"` // empty selects the in-memory store
	Database string `json:"database"`
}

type NatsConfig struct {
	URL           string `json:"url"` // empty disables the event relay
	SubjectPrefix string `json:"subject_prefix"`
}

// Load reads configuration from path (optional) and applies env overrides and
// defaults. A missing file is fine when CHATWAVE_SECRET is set.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errs.WrapMsg(err, "open config", "path", path)
		}
		defer f.Close()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			return nil, errs.WrapMsg(err, "decode config", "path", path)
		}
	}

	if v := os.Getenv("CHATWAVE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("CHATWAVE_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("CHATWAVE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("CHATWAVE_MONGO_URI"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := os.Getenv("CHATWAVE_NATS_URL"); v != "" {
		cfg.Nats.URL = v
	}

	cfg.applyDefaults()

	if cfg.Auth.Secret == "" {
		return nil, errs.New("auth secret is required (config auth.secret or CHATWAVE_SECRET)")
	}
	return cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8090"
	}
	if c.Auth.HandshakeTimeoutMS <= 0 {
		c.Auth.HandshakeTimeoutMS = 10_000
	}
	if c.Gateway.NodeID <= 0 {
		c.Gateway.NodeID = 1
	}
	if c.Gateway.SendQueueSize <= 0 {
		c.Gateway.SendQueueSize = 256
	}
	if c.Gateway.FanoutWorkers <= 0 {
		c.Gateway.FanoutWorkers = 4
	}
	if c.Gateway.FanoutQueue <= 0 {
		c.Gateway.FanoutQueue = 1024
	}
	if c.Gateway.PingIntervalMS <= 0 {
		c.Gateway.PingIntervalMS = 25_000
	}
	if c.Gateway.PongTimeoutMS <= 0 {
		c.Gateway.PongTimeoutMS = 75_000
	}
	if c.Redis.PresenceTTLMS <= 0 {
		c.Redis.PresenceTTLMS = 120_000
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "chatwave"
	}
	if c.Nats.SubjectPrefix == "" {
		c.Nats.SubjectPrefix = "chat.events"
	}
}

func (c *AuthConfig) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutMS) * time.Millisecond
}

func (c *GatewayConfig) PingInterval() time.Duration {
	return time.Duration(c.PingIntervalMS) * time.Millisecond
}

func (c *GatewayConfig) PongTimeout() time.Duration {
	return time.Duration(c.PongTimeoutMS) * time.Millisecond
}

func (c *RedisConfig) PresenceTTL() time.Duration {
	return time.Duration(c.PresenceTTLMS) * time.Millisecond
}
