// Copyright (c) 2025 Justin Cranford

package cmd

import (
	"os"

	goccyyaml "github.com/goccy/go-yaml"
	"github.com/spf13/viper"

	"mfacore/internal/apperr"
)

// Config is the CLI's composition-root configuration: the trust policy for
// the demo HTTP client, the telemetry verbosity, and the service name the
// telemetry is labelled with.
type Config struct {
	TrustAllTLS bool   `yaml:"trustAllTLS"`
	Verbose     bool   `yaml:"verbose"`
	ServiceName string `yaml:"serviceName"`
}

// defaultConfig is returned when no config file is given.
func defaultConfig() Config {
	return Config{ServiceName: "mfa-demo"}
}

// loadConfig reads path (if non-empty) with goccy/go-yaml, then layers
// flag/env overrides bound through v on top, giving CLI flags the final
// word over file contents.
func loadConfig(path string, v *viper.Viper) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, apperr.UnderlyingError(err)
		}

		if err := goccyyaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, apperr.DataDecodingFailed(err)
		}
	}

	if v.IsSet("trustAllTLS") {
		cfg.TrustAllTLS = v.GetBool("trustAllTLS")
	}

	if v.IsSet("verbose") {
		cfg.Verbose = v.GetBool("verbose")
	}

	if v.IsSet("serviceName") {
		cfg.ServiceName = v.GetString("serviceName")
	}

	return cfg, nil
}
