// Package config loads runtime settings from the environment.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds scheduler, prober and output settings.
type Config struct {
	OutputDir  string // where per-run reports land; falls back to cwd
	HistoryDB  string // sqlite archive path; empty disables the archive
	Workers    int
	RatePerSec float64 // probe pacing across all workers; 0 = unpaced

	BulkTimeout  time.Duration // per-candidate probe timeout in bulk runs
	CheckTimeout time.Duration // interactive single-account check timeout

	MetricsAddr string // e.g. :9122; empty disables the metrics listener
}

// Load reads config from TERMINATOR_* environment variables with defaults.
// Unparseable or non-positive values fall back to their defaults.
func Load() *Config {
	v := viper.New()
	v.SetEnvPrefix("terminator")
	v.AutomaticEnv()
	v.SetDefault("output_dir", ".")
	v.SetDefault("workers", 8)
	v.SetDefault("rate", 0.0)
	v.SetDefault("bulk_timeout", 5*time.Second)
	v.SetDefault("check_timeout", 15*time.Second)

	c := &Config{
		OutputDir:    v.GetString("output_dir"),
		HistoryDB:    v.GetString("history_db"),
		Workers:      v.GetInt("workers"),
		RatePerSec:   v.GetFloat64("rate"),
		BulkTimeout:  v.GetDuration("bulk_timeout"),
		CheckTimeout: v.GetDuration("check_timeout"),
		MetricsAddr:  v.GetString("metrics_addr"),
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.BulkTimeout <= 0 {
		c.BulkTimeout = 5 * time.Second
	}
	if c.CheckTimeout <= 0 {
		c.CheckTimeout = 15 * time.Second
	}
	return c
}
