package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shiftclock-backend/internal/config"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPolicyDumpRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	data := []byte("default:\n  stale_after: 12h\nbusinesses:\n  42:\n    regular_hours: 7h30m\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	out, err := run(t, "policy", "dump", "--file", path)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	set, err := config.ParsePolicies([]byte(out), config.DefaultPolicy())
	if err != nil {
		t.Fatalf("parse dump %q: %v", out, err)
	}
	if set.Default.StaleAfter != 12*time.Hour {
		t.Fatalf("default stale_after = %s", set.Default.StaleAfter)
	}
	biz := set.For(42)
	if biz.RegularHours != 7*time.Hour+30*time.Minute || biz.StaleAfter != 12*time.Hour {
		t.Fatalf("business 42 = %+v", biz)
	}
}

func TestMigratePrintsSchema(t *testing.T) {
	out, err := run(t, "migrate", "--print")
	if err != nil {
		t.Fatalf("migrate --print: %v", err)
	}
	for _, table := range []string{"clock_events", "shifts", "breaks", "time_corrections", "schedules", "time_shifts", "audit_logs"} {
		if !strings.Contains(out, table) {
			t.Fatalf("schema is missing %s", table)
		}
	}
	migratePrint = false
}

func TestAuditRequiresBusiness(t *testing.T) {
	if _, err := run(t, "audit"); err == nil || !strings.Contains(err.Error(), "--business") {
		t.Fatalf("expected --business error, got %v", err)
	}
}

func TestPolicyDumpAppliesEnvDefaults(t *testing.T) {
	t.Setenv("REGULAR_HOURS_PER_DAY", "7h")
	t.Setenv("MAX_SHIFT_DURATION", "12h")
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("businesses:\n  42:\n    stale_after: 10h\n"), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	out, err := run(t, "policy", "dump", "--file", path)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	set, err := config.ParsePolicies([]byte(out), config.DefaultPolicy())
	if err != nil {
		t.Fatalf("parse dump %q: %v", out, err)
	}
	if set.Default.RegularHours != 7*time.Hour || set.Default.MaxShift != 12*time.Hour {
		t.Fatalf("default = %+v, want env overrides", set.Default)
	}
	biz := set.For(42)
	if biz.RegularHours != 7*time.Hour || biz.MaxShift != 12*time.Hour || biz.StaleAfter != 10*time.Hour {
		t.Fatalf("business 42 = %+v", biz)
	}
}
