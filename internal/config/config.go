package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App      App
	Ledger   Ledger
	Relayer  Relayer
	Postgres Postgres
	Redis    Redis
	Server   Server
	Bot      Bot
	Sync     Sync
}

type App struct {
	Name    string `env:"APP_NAME" envDefault:"secret-deal"`
	Version string `env:"APP_VERSION" envDefault:"dev"`
}

type Bot struct {
	Token  string `env:"BOT_TOKEN"`
	ChatID int64  `env:"BOT_CHAT_ID"`
}

func (b Bot) Enabled() bool {
	return b.Token != "" && b.ChatID != 0
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var config Config

	if err := env.Parse(&config); err != nil {
		return Config{}, fmt.Errorf("env.Parse: %w", err)
	}

	return config, nil
}
