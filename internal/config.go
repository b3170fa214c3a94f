package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// Config is the chat server configuration, read from the environment.
type Config struct {
	Host              string        `env:"HOST,default=0.0.0.0" validate:"required"`
	Port              int           `env:"PORT,default=5555" validate:"min=1,max=65535"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,default=data/chat" validate:"required"`
	TLSCertFile       string        `env:"TLS_CERT_FILE" validate:"required_with=TLSKeyFile"`
	TLSKeyFile        string        `env:"TLS_KEY_FILE" validate:"required_with=TLSCertFile"`
	TLSCertDir        string        `env:"TLS_CERT_DIR,default=certificates"`
	MaxConnections    int           `env:"MAX_CONNECTIONS,default=256" validate:"min=1"`
	HistoryLimit      int           `env:"HISTORY_LIMIT,default=20" validate:"min=0"`
	MaxFrameSize      int           `env:"MAX_FRAME_SIZE,default=4096" validate:"min=64"`
	HandshakeTimeout  time.Duration `env:"HANDSHAKE_TIMEOUT,default=30s" validate:"min=0"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT,default=10s" validate:"min=0"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL,default=1m" validate:"min=0"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"min=0"`
	CensoredWords     string        `env:"CENSORED_WORDS"`
	CensoredDir       string        `env:"CENSORED_DIR"`
	CharReplacement   string        `env:"CHARACTER_REPLACEMENT,default=*"`
	DebugAddr         string        `env:"DEBUG_ADDR" validate:"omitempty,hostname_port"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// Validate checks value ranges the environment decoder cannot express.
func (c Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.CensoredWords != "" || c.CensoredDir != "" {
		if _, err := CharacterRune(c.CharReplacement); err != nil {
			return err
		}
	}
	return nil
}

// Address is the listen address of the chat server.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CensoredWordList splits CENSORED_WORDS on commas, dropping blanks and duplicates.
func (c Config) CensoredWordList() []string {
	words := lo.Map(strings.Split(c.CensoredWords, ","), func(w string, _ int) string {
		return strings.TrimSpace(w)
	})
	return lo.Uniq(lo.Compact(words))
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
