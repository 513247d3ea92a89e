// Package config reads the ambient session configuration for a standalone
// run of this sync engine from environment variables. This is a
// deliberate standard-library-only package: the per-account configuration
// contract itself (server address, calendar lists) is an external,
// host-supplied store (internal/account.ConfigStore) —
// what lives here is only the handful of process-wide knobs (sync window
// bounds, database path, log level) a CLI invocation needs, too small and
// too local to justify a flags/viper-style dependency the rest of the
// pack doesn't otherwise need for this concern.
package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	maxWindowMonths    = 120
	defaultPrevMonths  = 6
	defaultNextMonths  = 12
)

// Session holds the process-wide settings read once at startup.
type Session struct {
	DatabasePath   string
	CleanSyncDir   string
	LogLevel       string
	PrevMonths     int
	NextMonths     int
	MaxConcurrency int
}

// FromEnv builds a Session from environment variables, applying the
// orchestrator's documented defaults (6/12 months) and clamping the
// window bounds to the 120-month ceiling.
func FromEnv() (Session, error) {
	s := Session{
		DatabasePath:   getenv("SYNCCAL_DB_PATH", "synccal.db"),
		CleanSyncDir:   getenv("SYNCCAL_CLEANSYNC_DIR", ".synccal/cleansync"),
		LogLevel:       getenv("SYNCCAL_LOG_LEVEL", "info"),
		PrevMonths:     defaultPrevMonths,
		NextMonths:     defaultNextMonths,
		MaxConcurrency: 4,
	}

	var err error
	if s.PrevMonths, err = getenvInt("SYNCCAL_PREV_MONTHS", defaultPrevMonths); err != nil {
		return Session{}, err
	}
	if s.NextMonths, err = getenvInt("SYNCCAL_NEXT_MONTHS", defaultNextMonths); err != nil {
		return Session{}, err
	}
	if s.MaxConcurrency, err = getenvInt("SYNCCAL_MAX_CONCURRENCY", 4); err != nil {
		return Session{}, err
	}

	s.PrevMonths = clampMonths(s.PrevMonths)
	s.NextMonths = clampMonths(s.NextMonths)
	return s, nil
}

func clampMonths(n int) int {
	if n < 0 {
		return 0
	}
	if n > maxWindowMonths {
		return maxWindowMonths
	}
	return n
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q: %w", key, v, err)
	}
	return n, nil
}
