// Package config defines the top-level configuration for the staking
// simulator and provides validation helpers.
package config

import (
	"fmt"
	"strings"

	"github.com/stakesim/stakesim/internal/domain"
	"github.com/stakesim/stakesim/internal/tiers"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by STAKESIM_* environment
// variables.
type Config struct {
	Simulation SimulationConfig `toml:"simulation"`
	Tiers      TiersConfig      `toml:"tiers"`
	Sweep      SweepConfig      `toml:"sweep"`
	Report     ReportConfig     `toml:"report"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// SimulationConfig holds the per-run staking parameters.
type SimulationConfig struct {
	StartingBalance float64 `toml:"starting_balance"`
	MinWager        float64 `toml:"min_wager"`
	// SituationalModifier multiplies the divided Kelly fraction before the
	// exposure clamp. Zero disables it.
	SituationalModifier float64 `toml:"situational_modifier"`
	// CheckpointEvery is the number of resolutions between tier table
	// recomputes; zero recomputes only at the end of the run.
	CheckpointEvery int `toml:"checkpoint_every"`
	// Annualization is the Sharpe annualization factor (trading periods per
	// year); zero uses the package default of 252.
	Annualization float64 `toml:"annualization"`
	// SeedTierTable controls whether the run seeds its tier table from the
	// cache key of the previous run.
	SeedTierTable bool `toml:"seed_tier_table"`
	// ResetTierTable drops the persisted tier table before the run starts,
	// forcing a cold start even when a previous run saved one.
	ResetTierTable bool   `toml:"reset_tier_table"`
	TierTableKey   string `toml:"tier_table_key"`
	InputPath      string `toml:"input_path"`
}

// ReportConfig controls report mode. With RunID set the mode shows that
// run's summary and archived ledger; otherwise it lists recent runs.
type ReportConfig struct {
	RunID    string `toml:"run_id"`
	Category string `toml:"category"`
	Limit    int    `toml:"limit"`
}

// TierLevelConfig overrides one tier's thresholds and risk parameters.
// Win rates are 0-1 fractions.
type TierLevelConfig struct {
	MinBets        int     `toml:"min_bets"`
	MinWinRate     float64 `toml:"min_win_rate"`
	Divisor        float64 `toml:"divisor"`
	MaxExposurePct float64 `toml:"max_exposure_pct"`
}

// TiersConfig selects the threshold profile and optionally overrides its
// levels. An override section left at its zero value keeps the built-in
// profile's numbers for that tier.
type TiersConfig struct {
	// Profile is "production" or "bootstrap".
	Profile      string          `toml:"profile"`
	High         TierLevelConfig `toml:"high"`
	Medium       TierLevelConfig `toml:"medium"`
	Low          TierLevelConfig `toml:"low"`
	Insufficient TierLevelConfig `toml:"insufficient"`
}

// SweepConfig controls parallel multi-profile runs.
type SweepConfig struct {
	// Profiles lists the profile variants to run; empty means both
	// built-ins.
	Profiles    []string `toml:"profiles"`
	Concurrency int      `toml:"concurrency"`
}

// PostgresConfig holds PostgreSQL connection parameters for the ledger
// archive.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for tier table persistence.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for run exports.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

var validModes = map[string]bool{
	"simulate": true,
	"sweep":    true,
	"report":   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Defaults returns the built-in configuration that Load merges the TOML
// file over.
func Defaults() Config {
	return Config{
		Simulation: SimulationConfig{
			StartingBalance: 10_000,
			MinWager:        5,
			CheckpointEvery: 25,
			Annualization:   252,
			TierTableKey:    "default",
		},
		Tiers: TiersConfig{
			Profile: tiers.ProfileProduction,
		},
		Sweep: SweepConfig{
			Concurrency: 4,
		},
		Report: ReportConfig{
			Limit: 20,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "stakesim",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "stakesim-runs",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Mode:     "simulate",
		LogLevel: "info",
	}
}

// Validate checks the configuration for internal consistency and returns an
// error aggregating every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: simulate, sweep, report)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Simulation.StartingBalance <= 0 {
		errs = append(errs, "simulation: starting_balance must be positive")
	}
	if c.Simulation.MinWager < 0 {
		errs = append(errs, "simulation: min_wager must not be negative")
	}
	if c.Simulation.SituationalModifier < 0 {
		errs = append(errs, "simulation: situational_modifier must not be negative")
	}
	if c.Simulation.CheckpointEvery < 0 {
		errs = append(errs, "simulation: checkpoint_every must not be negative")
	}

	switch c.Tiers.Profile {
	case tiers.ProfileProduction, tiers.ProfileBootstrap:
	default:
		errs = append(errs, fmt.Sprintf("tiers: unknown profile %q (valid: production, bootstrap)", c.Tiers.Profile))
	}

	// The assembled profile must itself validate, so that override typos
	// (e.g. percentages instead of fractions) fail at startup.
	if _, err := tiers.NewClassifier(c.TierProfile()); err != nil {
		errs = append(errs, err.Error())
	}

	if c.Report.Limit < 0 {
		errs = append(errs, "report: limit must not be negative")
	}

	for _, name := range c.Sweep.Profiles {
		if name != tiers.ProfileProduction && name != tiers.ProfileBootstrap {
			errs = append(errs, fmt.Sprintf("sweep: unknown profile %q", name))
		}
	}

	if c.Postgres.Enabled && c.Postgres.DSN == "" && c.Postgres.Host == "" {
		errs = append(errs, "postgres: dsn or host must be set when enabled")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must be set when enabled")
	}
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must be set when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must be set when enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// TierProfile assembles the effective tier profile: the named built-in with
// any per-level overrides applied on top.
func (c *Config) TierProfile() tiers.Profile {
	p := tiers.ProfileByName(c.Tiers.Profile)

	applyThreshold := func(dst *tiers.Threshold, ov TierLevelConfig) {
		if ov.MinBets > 0 {
			dst.MinBets = ov.MinBets
		}
		if ov.MinWinRate > 0 {
			dst.MinWinRate = ov.MinWinRate
		}
	}
	applyRisk := func(tier domain.Tier, ov TierLevelConfig) {
		r := p.Risk[tier]
		if ov.Divisor > 0 {
			r.Divisor = ov.Divisor
		}
		if ov.MaxExposurePct > 0 {
			r.MaxExposurePct = ov.MaxExposurePct
		}
		p.Risk[tier] = r
	}

	applyThreshold(&p.High, c.Tiers.High)
	applyThreshold(&p.Medium, c.Tiers.Medium)
	applyThreshold(&p.Low, c.Tiers.Low)
	applyRisk(domain.TierHigh, c.Tiers.High)
	applyRisk(domain.TierMedium, c.Tiers.Medium)
	applyRisk(domain.TierLow, c.Tiers.Low)
	applyRisk(domain.TierInsufficient, c.Tiers.Insufficient)

	return p
}

// SweepProfiles returns the profile names a sweep should run; an empty list
// in the config expands to both built-ins.
func (c *Config) SweepProfiles() []string {
	if len(c.Sweep.Profiles) > 0 {
		return c.Sweep.Profiles
	}
	return []string{tiers.ProfileProduction, tiers.ProfileBootstrap}
}
