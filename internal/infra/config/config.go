package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

type Config struct {
	DatabaseURL  string `envconfig:"DATABASE_URL" required:"true"`
	DiscordToken string `envconfig:"DISCORD_BOT_TOKEN" required:"true"`
	Environment  string `envconfig:"ENVIRONMENT" default:"development"`

	// OperatorID: member que recibe rol alto y saludo al entrar,
	// independiente del sistema de puntos.
	OperatorID string `envconfig:"OPERATOR_MEMBER_ID" default:"169907053022806016"`

	AutosaveInterval    time.Duration `envconfig:"AUTOSAVE_INTERVAL" default:"5m"`
	ShutdownSaveTimeout time.Duration `envconfig:"SHUTDOWN_SAVE_TIMEOUT" default:"10s"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "unable to load configuration")
	}
	return cfg, nil
}
