package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// AppConfig holds every runtime knob of the relay node. Values come from the
// environment (prefix RELAY_), optionally seeded from a local .env file.
type AppConfig struct {
	NodeID   int64  `envconfig:"NODE_ID" default:"1"`
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Transport tuning.
	SendQueueSize int           `envconfig:"SEND_QUEUE_SIZE" default:"256"`
	ReadLimit     int64         `envconfig:"READ_LIMIT" default:"32768"`
	WriteWait     time.Duration `envconfig:"WRITE_WAIT" default:"10s"`
	PongWait      time.Duration `envconfig:"PONG_WAIT" default:"60s"`
	PingPeriod    time.Duration `envconfig:"PING_PERIOD" default:"25s"`

	// Hardening. A socket that never joins is closed after JoinTimeout;
	// chat messages are throttled per connection.
	JoinTimeout  time.Duration `envconfig:"JOIN_TIMEOUT" default:"30s"`
	MessageRate  float64       `envconfig:"MESSAGE_RATE" default:"10"`
	MessageBurst int           `envconfig:"MESSAGE_BURST" default:"20"`

	// Fanout worker pool.
	FanoutWorkers int `envconfig:"FANOUT_WORKERS" default:"4"`
	FanoutQueue   int `envconfig:"FANOUT_QUEUE" default:"1024"`

	// Message store.
	MongoURI      string        `envconfig:"MONGO_URI" default:"mongodb://127.0.0.1:27017"`
	MongoDatabase string        `envconfig:"MONGO_DATABASE" default:"chatrelay"`
	StoreTimeout  time.Duration `envconfig:"STORE_TIMEOUT" default:"5s"`

	// Agent presence mirror. Empty addr disables the mirror entirely.
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:""`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	PresenceTTL   time.Duration `envconfig:"PRESENCE_TTL" default:"90s"`
}

func Load() (*AppConfig, error) {
	// .env is optional; missing file is not an error.
	_ = godotenv.Load()

	var cfg AppConfig
	if err := envconfig.Process("relay", &cfg); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if cfg.PingPeriod >= cfg.PongWait {
		return nil, errors.New("ping period must be shorter than pong wait")
	}
	return &cfg, nil
}
