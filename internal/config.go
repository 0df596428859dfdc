package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host      string `env:"HOST,default=0.0.0.0"`
	Port      int    `env:"PORT,required=true"`
	DebugPort int    `env:"DEBUG_PORT"`
	LogLevel  string `env:"LOG_LEVEL,default=INFO"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`

	HistoryLimit  int  `env:"HISTORY_LIMIT,default=50"`
	LimitMessages *int `env:"LIMIT_MESSAGES"`

	BufferSize           int `env:"BUFFER_SIZE,default=256"`
	ConnectionBufferSize int `env:"CONNECTION_BUFFER_SIZE,default=64"`

	MaxMessageSize   int64 `env:"MAX_MESSAGE_SIZE,default=4096"`
	MaxContentLength int   `env:"MAX_CONTENT_LENGTH,default=2000"`

	CharReplacement string `env:"CHARACTER_REPLACEMENT,default=*"`

	SinkTimeout    time.Duration `env:"SINK_TIMEOUT,default=5s"`
	MetricInterval time.Duration `env:"METRIC_INTERVAL,default=30s"`

	WriteTimeout time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	PingInterval time.Duration `env:"PING_INTERVAL,default=54s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT,default=60s"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
