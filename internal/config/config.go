// Package config loads proxyd's runtime configuration from the
// environment (spec §9: no persisted state — config is process
// environment only).
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every tunable the pipeline and control plane need at
// startup. Env var prefix is PROXYD_, e.g. PROXYD_DATA_ADDR.
type Config struct {
	DataAddr    string        `envconfig:"DATA_ADDR" default:":8080"`
	ControlAddr string        `envconfig:"CONTROL_ADDR" default:":8081"`
	UpstreamURL string        `envconfig:"UPSTREAM_URL" default:"http://localhost:9000"`

	UpstreamTimeout time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"30s"`

	RecorderCapacity int   `envconfig:"RECORDER_CAPACITY" default:"10000"`
	MaxBodyBytes     int64 `envconfig:"MAX_BODY_BYTES" default:"10485760"`

	BucketSweepInterval time.Duration `envconfig:"BUCKET_SWEEP_INTERVAL" default:"60s"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Dev      bool   `envconfig:"DEV" default:"false"`
}

// Load reads Config from the environment, applying defaults for any unset
// var (spec §9 ambient config, enriched beyond the distilled spec's
// silence on deployment knobs).
func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("proxyd", &c); err != nil {
		return Config{}, err
	}
	return c, nil
}
