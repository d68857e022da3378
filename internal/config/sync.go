package config

import "time"

type Sync struct {
	Interval time.Duration `env:"SYNC_INTERVAL" envDefault:"5s"`
}
