package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads configuration from a TOML file, layers it over the defaults,
// and applies STAKESIM_* environment overrides. A missing file is not an
// error; the defaults plus environment are used.
func Load(path string) (*Config, error) {
	// Best effort: a .env file beside the binary is convenient for local
	// runs, its absence is normal everywhere else.
	_ = godotenv.Load()

	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, fmt.Errorf("config: decode %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setStr("STAKESIM_MODE", &cfg.Mode)
	setStr("STAKESIM_LOG_LEVEL", &cfg.LogLevel)

	setFloat64("STAKESIM_STARTING_BALANCE", &cfg.Simulation.StartingBalance)
	setFloat64("STAKESIM_MIN_WAGER", &cfg.Simulation.MinWager)
	setFloat64("STAKESIM_SITUATIONAL_MODIFIER", &cfg.Simulation.SituationalModifier)
	setInt("STAKESIM_CHECKPOINT_EVERY", &cfg.Simulation.CheckpointEvery)
	setStr("STAKESIM_INPUT_PATH", &cfg.Simulation.InputPath)
	setStr("STAKESIM_TIER_TABLE_KEY", &cfg.Simulation.TierTableKey)
	setBool("STAKESIM_SEED_TIER_TABLE", &cfg.Simulation.SeedTierTable)
	setBool("STAKESIM_RESET_TIER_TABLE", &cfg.Simulation.ResetTierTable)

	setStr("STAKESIM_TIER_PROFILE", &cfg.Tiers.Profile)

	setInt("STAKESIM_SWEEP_CONCURRENCY", &cfg.Sweep.Concurrency)

	setStr("STAKESIM_REPORT_RUN_ID", &cfg.Report.RunID)
	setStr("STAKESIM_REPORT_CATEGORY", &cfg.Report.Category)
	setInt("STAKESIM_REPORT_LIMIT", &cfg.Report.Limit)

	setBool("STAKESIM_POSTGRES_ENABLED", &cfg.Postgres.Enabled)
	setStr("STAKESIM_POSTGRES_DSN", &cfg.Postgres.DSN)
	setStr("STAKESIM_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("STAKESIM_POSTGRES_PORT", &cfg.Postgres.Port)
	setStr("STAKESIM_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setStr("STAKESIM_POSTGRES_USER", &cfg.Postgres.User)
	setStr("STAKESIM_POSTGRES_PASSWORD", &cfg.Postgres.Password)

	setBool("STAKESIM_REDIS_ENABLED", &cfg.Redis.Enabled)
	setStr("STAKESIM_REDIS_ADDR", &cfg.Redis.Addr)
	setStr("STAKESIM_REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("STAKESIM_REDIS_DB", &cfg.Redis.DB)

	setBool("STAKESIM_S3_ENABLED", &cfg.S3.Enabled)
	setStr("STAKESIM_S3_ENDPOINT", &cfg.S3.Endpoint)
	setStr("STAKESIM_S3_REGION", &cfg.S3.Region)
	setStr("STAKESIM_S3_BUCKET", &cfg.S3.Bucket)
	setStr("STAKESIM_S3_ACCESS_KEY", &cfg.S3.AccessKey)
	setStr("STAKESIM_S3_SECRET_KEY", &cfg.S3.SecretKey)
}

func setStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
