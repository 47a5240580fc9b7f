package internal

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config is read from the environment with Netflix/go-env.
type Config struct {
	Host                     string        `env:"HOST,default=0.0.0.0"`
	Port                     int           `env:"PORT,default=8000" validate:"gt=0,lt=65536"`
	LogLevel                 string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
	JWTSecret                string        `env:"JWT_SECRET,required=true" validate:"min=16"`
	AuthTokenDuration        time.Duration `env:"AUTH_TOKEN_DURATION,default=1h" validate:"gt=0"`
	InternalToken            string        `env:"INTERNAL_TOKEN"`
	RequireAuthNotifications bool          `env:"REQUIRE_AUTH_NOTIFICATIONS,default=true"`
	BadgerFilepath           string        `env:"BADGER_FILEPATH,required=true" validate:"required"`
	LimitMessages            *int          `env:"LIMIT_MESSAGES"`
	MaxContentLength         int           `env:"MAX_CONTENT_LENGTH,default=2000" validate:"gte=0"`
	SessionBufferSize        int           `env:"SESSION_BUFFER_SIZE,default=256" validate:"gt=0"`
	BridgeBufferSize         int           `env:"BRIDGE_BUFFER_SIZE,default=1024" validate:"gt=0"`
	StoreWorkers             int           `env:"STORE_WORKERS,default=4" validate:"gt=0"`
	StoreBufferSize          int           `env:"STORE_BUFFER_SIZE,default=256" validate:"gt=0"`
	StoreTimeout             time.Duration `env:"STORE_TIMEOUT,default=5s" validate:"gt=0"`
	RestartInterval          time.Duration `env:"RESTART_INTERVAL,default=1s" validate:"gt=0"`
	MetricInterval           time.Duration `env:"METRIC_INTERVAL,default=30s" validate:"gte=0"`
	WriteTimeout             time.Duration `env:"WRITE_TIMEOUT,default=10s" validate:"gt=0"`
	PongTimeout              time.Duration `env:"PONG_TIMEOUT,default=60s" validate:"gt=0"`
	PingInterval             time.Duration `env:"PING_INTERVAL,default=54s" validate:"gt=0,ltfield=PongTimeout"`
	MaxFrameBytes            int64         `env:"MAX_FRAME_BYTES,default=65536" validate:"gt=0"`
	RedisAddr                string        `env:"REDIS_ADDR"`
	RedisChannelPrefix       string        `env:"REDIS_CHANNEL_PREFIX,default=relay:"`
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
