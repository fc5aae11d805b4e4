package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type (
	Headers struct {
		// MaxPairs limits the number of header lines handed to a message. Lines above the limit
		// are silently dropped, trailers aren't counted. 0 disables the limit.
		MaxPairs int `env:"MAX_PAIRS"`
	}

	NET struct {
		// ReadBufferSize is a size of buffer in bytes which will be used to read from
		// socket
		ReadBufferSize int `env:"READ_BUFFER_SIZE"`
		// ReadTimeout controls the maximal lifetime of IDLE connections. If no data was
		// received in this period of time, it'll be closed.
		ReadTimeout time.Duration `env:"READ_TIMEOUT"`
		// AcceptLoopInterruptPeriod controls how often will the Accept() call be interrupted
		// in order to check whether it's time to stop. Defaults to 5 seconds.
		AcceptLoopInterruptPeriod time.Duration `env:"ACCEPT_LOOP_INTERRUPT_PERIOD"`
	}

	HTTP struct {
		// Addr is the address the server listens on.
		Addr string `env:"ADDR"`
		// MetricsAddr is the address the metrics are exposed on. Empty value disables them.
		MetricsAddr string `env:"METRICS_ADDR" test:"nullable"`
	}
)

// Config holds settings used across the server, mainly restrictions and limitations.
//
// You must ALWAYS modify defaults (returned via Default()) and NEVER try to initialize the
// config manually, because most likely this will result in ambiguous errors.
type Config struct {
	Headers Headers `envPrefix:"HEADERS_"`
	NET     NET     `envPrefix:"NET_"`
	HTTP    HTTP    `envPrefix:"HTTP_"`
}

// Default returns default config.
func Default() *Config {
	return &Config{
		Headers: Headers{
			MaxPairs: 2000,
		},
		NET: NET{
			ReadBufferSize:            4 * 1024, // 4kb is more than enough for ordinary requests.
			ReadTimeout:               90 * time.Second,
			AcceptLoopInterruptPeriod: 5 * time.Second,
		},
		HTTP: HTTP{
			Addr:        ":8080",
			MetricsAddr: ":9090",
		},
	}
}

// FromEnv returns the default config overridden by the environment variables. Names are
// built of the prefix, the section and the field, e.g. H1_NET_READ_TIMEOUT=30s.
func FromEnv(prefix string) (*Config, error) {
	cfg := Default()
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: prefix}); err != nil {
		return nil, err
	}

	return cfg, nil
}
