// Package config loads server configuration from the environment, with an
// optional .env override: a Default(), a Load() that layers os.Getenv on
// top of it, and a best-effort LoadDotEnv that never overwrites variables
// already present in the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

type Config struct {
	MinPlayers      int
	MaxPlayers      int
	ParlaySeconds   int
	RetentionHours  int
	RateLimitWindow time.Duration
	RateLimitBurst  int
	DatabaseURL     string
	ListenAddr      string
}

func Default() Config {
	return Config{
		MinPlayers:      6,
		MaxPlayers:      30,
		ParlaySeconds:   30,
		RetentionHours:  1,
		RateLimitWindow: time.Second,
		RateLimitBurst:  10,
		ListenAddr:      ":8080",
	}
}

func Load() Config {
	cfg := Default()
	if raw := os.Getenv("MIN_PLAYERS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.MinPlayers = value
		}
	}
	if raw := os.Getenv("MAX_PLAYERS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.MaxPlayers = value
		}
	}
	if raw := os.Getenv("PARLAY_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.ParlaySeconds = value
		}
	}
	if raw := os.Getenv("RETENTION_HOURS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.RetentionHours = value
		}
	}
	if raw := os.Getenv("RATE_LIMIT_BURST"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.RateLimitBurst = value
		}
	}
	if raw := os.Getenv("DATABASE_URL"); raw != "" {
		cfg.DatabaseURL = raw
	}
	if raw := os.Getenv("LISTEN_ADDR"); raw != "" {
		cfg.ListenAddr = raw
	}
	return cfg
}

// DefaultRoundDurations returns the per-round timer duration table for
// totalRounds (§4.4, §10.1: "default round durations per total-round
// count"). Rounds beyond the table reuse its last entry.
func DefaultRoundDurations(totalRounds int) []time.Duration {
	switch totalRounds {
	case 5:
		return []time.Duration{5 * time.Minute, 4 * time.Minute, 4 * time.Minute, 3 * time.Minute, 3 * time.Minute}
	default:
		durations := []time.Duration{5 * time.Minute, 4 * time.Minute, 3 * time.Minute}
		if totalRounds > 0 && totalRounds != 3 {
			out := make([]time.Duration, totalRounds)
			for i := range out {
				if i < len(durations) {
					out[i] = durations[i]
				} else {
					out[i] = durations[len(durations)-1]
				}
			}
			return out
		}
		return durations
	}
}
