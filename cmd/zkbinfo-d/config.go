package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAddr          = "127.0.0.1:8080"
	defaultLookbackDays  = 30
	defaultRetentionDays = 90
	defaultSweepInterval = 48 * time.Hour
	defaultPoolSize      = 4
)

type Config struct {
	DBPath        string
	Addr          string
	Lookback      time.Duration
	Retention     time.Duration
	SweepInterval time.Duration
	PoolSize      int
}

func LoadConfig(args []string) (Config, error) {
	// .env is optional; real env vars win over it.
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	dbPath := envOrDefault("ZKBINFO_DB_PATH", filepath.Join(cwd, "zkbinfo.db"))
	addr := addrFromEnv(defaultAddr)

	lookbackDays, err := intFromEnv("ZKBINFO_LOOKBACK_DAYS", defaultLookbackDays)
	if err != nil {
		return Config{}, err
	}
	retentionDays, err := intFromEnv("ZKBINFO_RETENTION_DAYS", defaultRetentionDays)
	if err != nil {
		return Config{}, err
	}
	poolSize, err := intFromEnv("ZKBINFO_POOL_SIZE", defaultPoolSize)
	if err != nil {
		return Config{}, err
	}
	sweepInterval := defaultSweepInterval
	if v := os.Getenv("ZKBINFO_SWEEP_INTERVAL"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ZKBINFO_SWEEP_INTERVAL: %w", err)
		}
		sweepInterval = parsed
	}

	flagSet := flag.NewFlagSet("zkbinfo-d", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagDB := flagSet.String("db", dbPath, "path to SQLite database")
	flagAddr := flagSet.String("addr", addr, "HTTP listen address")
	flagLookback := flagSet.Int("lookback-days", lookbackDays, "query window for history and relations, in days")
	flagRetention := flagSet.Int("retention-days", retentionDays, "killmails older than this are purged")
	flagSweepInterval := flagSet.String("sweep-interval", sweepInterval.String(), "interval between retention sweeps")
	flagPoolSize := flagSet.Int("pool-size", poolSize, "max concurrent database connections")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
			return Config{}, err
		}
		return Config{}, err
	}

	sweepParsed, err := time.ParseDuration(*flagSweepInterval)
	if err != nil {
		return Config{}, fmt.Errorf("invalid sweep interval: %w", err)
	}

	config := Config{
		DBPath:        resolvePath(*flagDB, cwd),
		Addr:          strings.TrimSpace(*flagAddr),
		Lookback:      time.Duration(*flagLookback) * 24 * time.Hour,
		Retention:     time.Duration(*flagRetention) * 24 * time.Hour,
		SweepInterval: sweepParsed,
		PoolSize:      *flagPoolSize,
	}

	if config.Addr == "" {
		return Config{}, errors.New("addr cannot be empty")
	}
	if config.Lookback <= 0 {
		return Config{}, errors.New("lookback-days must be positive")
	}
	if config.Retention <= 0 {
		return Config{}, errors.New("retention-days must be positive")
	}
	if config.SweepInterval <= 0 {
		return Config{}, errors.New("sweep-interval must be positive")
	}
	if config.PoolSize <= 0 {
		return Config{}, errors.New("pool-size must be positive")
	}

	return config, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func intFromEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func addrFromEnv(fallback string) string {
	if value := os.Getenv("ZKBINFO_ADDR"); value != "" {
		return value
	}
	host := os.Getenv("ZKBINFO_HOST")
	port := os.Getenv("ZKBINFO_PORT")
	if host != "" || port != "" {
		if host == "" {
			host = "127.0.0.1"
		}
		if port == "" {
			port = "8080"
		}
		return fmt.Sprintf("%s:%s", host, port)
	}
	return fallback
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}
