package client

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("client: invalid config")

// Config is the file and environment configuration of a client. Environment
// variables override the file.
type Config struct {
	BaseURL   string `yaml:"base_url" env:"ABWARS_BASE_URL"`
	Namespace string `yaml:"namespace" env:"ABWARS_NAMESPACE"`
	LobbyURL  string `yaml:"lobby_url" env:"ABWARS_LOBBY_URL"`

	ClientID     string `yaml:"client_id" env:"ABWARS_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"ABWARS_CLIENT_SECRET"`
	Username     string `yaml:"username" env:"ABWARS_USERNAME"`
	Password     string `yaml:"password" env:"ABWARS_PASSWORD"`

	LogFormat string `yaml:"log_format" env:"ABWARS_LOG_FORMAT"`
	Language  string `yaml:"language" env:"ABWARS_LANGUAGE"`

	PartyTemplate     string        `yaml:"party_template" env:"ABWARS_PARTY_TEMPLATE"`
	OperationTimeout  time.Duration `yaml:"operation_timeout" env:"ABWARS_OPERATION_TIMEOUT"`
	ReconnectAttempts int           `yaml:"reconnect_attempts" env:"ABWARS_RECONNECT_ATTEMPTS"`
	UserInfoTimeout   time.Duration `yaml:"userinfo_timeout" env:"ABWARS_USERINFO_TIMEOUT"`
	EventBuffer       int           `yaml:"event_buffer" env:"ABWARS_EVENT_BUFFER"`
	FTUEPath          string        `yaml:"ftue" env:"ABWARS_FTUE_CONFIG"`
	FTUEAlwaysOn      bool          `yaml:"ftue_always_on" env:"ABWARS_FTUE_ALWAYS_ON"`
	ValidationTimeout time.Duration `yaml:"validation_timeout" env:"ABWARS_VALIDATION_TIMEOUT"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" env:"ABWARS_SHUTDOWN_TIMEOUT"`
}

func DefaultConfig() Config {
	return Config{
		LogFormat:         "json",
		Language:          "en",
		PartyTemplate:     "unreal-party",
		OperationTimeout:  15 * time.Second,
		ReconnectAttempts: 5,
		UserInfoTimeout:   10 * time.Second,
		EventBuffer:       64,
		ValidationTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
}

// LoadConfig reads path (when set) over the defaults and then applies
// environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return Config{}, oops.Code("CLIENT_CONFIG_OPEN").With("path", path).Wrap(err)
		}
		defer f.Close()

		if err := decodeYAML(f, &cfg); err != nil {
			return Config{}, oops.Code("CLIENT_CONFIG_PARSE").With("path", path).Wrap(err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, oops.Code("CLIENT_CONFIG_ENV").Wrap(err)
	}

	return cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return oops.Code("CLIENT_CONFIG").With("field", "base_url").Wrap(ErrInvalidConfig)
	}

	if c.Namespace == "" {
		return oops.Code("CLIENT_CONFIG").With("field", "namespace").Wrap(ErrInvalidConfig)
	}

	if c.Username != "" && c.ClientID == "" {
		return oops.Code("CLIENT_CONFIG").With("field", "client_id").Wrap(ErrInvalidConfig)
	}

	return nil
}

// withDefaults fills zero values so a hand-built Config behaves like a loaded one.
func (c Config) withDefaults() Config {
	d := DefaultConfig()

	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}

	if c.Language == "" {
		c.Language = d.Language
	}

	if c.PartyTemplate == "" {
		c.PartyTemplate = d.PartyTemplate
	}

	if c.OperationTimeout <= 0 {
		c.OperationTimeout = d.OperationTimeout
	}

	if c.ReconnectAttempts < 0 {
		c.ReconnectAttempts = 0
	}

	if c.UserInfoTimeout <= 0 {
		c.UserInfoTimeout = d.UserInfoTimeout
	}

	if c.EventBuffer <= 0 {
		c.EventBuffer = d.EventBuffer
	}

	if c.ValidationTimeout <= 0 {
		c.ValidationTimeout = d.ValidationTimeout
	}

	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}

	return c
}
