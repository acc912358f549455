// Package config loads registry service settings from the environment and an
// optional YAML config file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings holds the runtime configuration of the registry service.
type Settings struct {
	ListenAddr     string
	DBDriver       string
	DBDSN          string
	SeedEnabled    bool
	SeedDir        string
	WatchManifests bool
	AllowedOrigins []string
	StatsInterval  time.Duration
}

// Load reads settings with the following precedence: PGIP_* environment
// variables, then the config file (PGIP_CONFIG or ./config.yaml when
// present), then built-in defaults.
func Load() (*Settings, error) {
	v := viper.New()

	v.SetDefault("listen_addr", ":8000")
	v.SetDefault("db_driver", "sqlite3")
	v.SetDefault("db_dsn", "pgip.db")
	v.SetDefault("seed_enabled", true)
	v.SetDefault("seed_dir", "data/plugins")
	v.SetDefault("watch_manifests", false)
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("stats_interval", time.Minute)

	v.SetEnvPrefix("PGIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile := os.Getenv("PGIP_CONFIG"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		// Missing default config file is fine; env and defaults apply.
		_ = v.ReadInConfig()
	}

	return &Settings{
		ListenAddr:     v.GetString("listen_addr"),
		DBDriver:       strings.ToLower(v.GetString("db_driver")),
		DBDSN:          v.GetString("db_dsn"),
		SeedEnabled:    v.GetBool("seed_enabled"),
		SeedDir:        v.GetString("seed_dir"),
		WatchManifests: v.GetBool("watch_manifests"),
		AllowedOrigins: v.GetStringSlice("allowed_origins"),
		StatsInterval:  v.GetDuration("stats_interval"),
	}, nil
}
