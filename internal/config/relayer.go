package config

import "time"

type Relayer struct {
	URL            string        `env:"RELAYER_URL,notEmpty"`
	APIKey         string        `env:"RELAYER_API_KEY" json:"-"`
	RequestTimeout time.Duration `env:"RELAYER_REQUEST_TIMEOUT" envDefault:"30s"`
	KeyCacheTTL    time.Duration `env:"RELAYER_KEY_CACHE_TTL" envDefault:"1h"`
}
