package config

import "testing"

func TestFromEnvDefaults(t *testing.T) {
	s, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}
	if s.PrevMonths != defaultPrevMonths || s.NextMonths != defaultNextMonths {
		t.Fatalf("expected default window months, got prev=%d next=%d", s.PrevMonths, s.NextMonths)
	}
	if s.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %q", s.LogLevel)
	}
}

func TestFromEnvReadsOverrides(t *testing.T) {
	t.Setenv("SYNCCAL_PREV_MONTHS", "3")
	t.Setenv("SYNCCAL_NEXT_MONTHS", "9")
	t.Setenv("SYNCCAL_LOG_LEVEL", "debug")
	t.Setenv("SYNCCAL_DB_PATH", "/tmp/custom.db")

	s, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}
	if s.PrevMonths != 3 || s.NextMonths != 9 {
		t.Fatalf("expected overridden window months, got prev=%d next=%d", s.PrevMonths, s.NextMonths)
	}
	if s.LogLevel != "debug" {
		t.Fatalf("expected overridden log level, got %q", s.LogLevel)
	}
	if s.DatabasePath != "/tmp/custom.db" {
		t.Fatalf("expected overridden db path, got %q", s.DatabasePath)
	}
}

func TestFromEnvRejectsNonIntegerOverride(t *testing.T) {
	t.Setenv("SYNCCAL_PREV_MONTHS", "not-a-number")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected an error for a non-integer SYNCCAL_PREV_MONTHS")
	}
}

func TestFromEnvClampsWindowMonths(t *testing.T) {
	t.Setenv("SYNCCAL_PREV_MONTHS", "9999")
	t.Setenv("SYNCCAL_NEXT_MONTHS", "-5")
	s, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}
	if s.PrevMonths != maxWindowMonths {
		t.Fatalf("expected PrevMonths clamped to %d, got %d", maxWindowMonths, s.PrevMonths)
	}
	if s.NextMonths != 0 {
		t.Fatalf("expected a negative NextMonths clamped to 0, got %d", s.NextMonths)
	}
}
