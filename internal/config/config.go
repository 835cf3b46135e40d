package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application runtime configuration.
type Config struct {
	Env                  string
	HTTPPort             string
	DatabaseURL          string
	JWTSecret            string
	TimeZone             string
	Location             *time.Location
	PolicyFile           string
	Policies             PolicySet
	StaleShiftThreshold  time.Duration
	SweepInterval        time.Duration
	SweepBusinessTimeout time.Duration
	RunSweeper           bool
	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	ShutdownTimeout      time.Duration
	RateLimitPerMinute   int
	CORSAllowedOrigins   []string
}

// Load reads environment variables and .env (if present).
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:         getEnv("APP_ENV", "development"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		TimeZone:    getEnv("BUSINESS_TIMEZONE", "Local"),
		PolicyFile:  os.Getenv("SHIFT_POLICY_FILE"),
		// Zero lets each business use the stale_after of its own policy.
		StaleShiftThreshold:  getDuration("STALE_SHIFT_THRESHOLD", 0),
		SweepInterval:        getDuration("SWEEP_INTERVAL", 30*time.Minute),
		SweepBusinessTimeout: getDuration("SWEEP_BUSINESS_TIMEOUT", 30*time.Second),
		RunSweeper:           getBool("RUN_SWEEPER", true),
		ReadTimeout:          getDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:         getDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:          getDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:      getDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		RateLimitPerMinute:   getInt("RATE_LIMIT_PER_MINUTE", 200),
		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}

	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return cfg, errors.New("JWT_SECRET is required")
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return cfg, fmt.Errorf("BUSINESS_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if cfg.StaleShiftThreshold < 0 {
		return cfg, errors.New("STALE_SHIFT_THRESHOLD must not be negative")
	}
	cfg.Policies, err = LoadPolicies(cfg.PolicyFile)
	if err != nil {
		return cfg, err
	}
	return cfg, nil
}

// PolicyDefaultsFromEnv returns DefaultPolicy with the env overrides applied.
func PolicyDefaultsFromEnv() ShiftPolicy {
	p := DefaultPolicy()
	p.RegularHours = getDuration("REGULAR_HOURS_PER_DAY", p.RegularHours)
	p.MinShift = getDuration("MIN_SHIFT_DURATION", p.MinShift)
	p.MaxShift = getDuration("MAX_SHIFT_DURATION", p.MaxShift)
	p.StaleAfter = getDuration("SHIFT_STALE_AFTER", p.StaleAfter)
	p.EarlyClockInGrace = getDuration("EARLY_CLOCK_IN_GRACE", p.EarlyClockInGrace)
	return p
}

// LoadPolicies layers the policy file at path, if any, over the env defaults
// and validates the result.
func LoadPolicies(path string) (PolicySet, error) {
	defaults := PolicyDefaultsFromEnv()
	set := PolicySet{Default: defaults}
	if path != "" {
		loaded, err := LoadPolicyFile(path, defaults)
		if err != nil {
			return set, err
		}
		set = loaded
	}
	if err := set.Validate(); err != nil {
		return set, err
	}
	return set, nil
}

func getEnv(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		// Support seconds as integer without suffix.
		if secs, convErr := strconv.Atoi(val); convErr == nil {
			return time.Duration(secs) * time.Second
		}
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func getList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func getBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return b
}
