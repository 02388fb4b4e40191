package instance

import "testing"

func TestIDPrefersExplicitValue(t *testing.T) {
	t.Setenv("HPP_INSTANCE_ID", "cron-a")
	t.Setenv("DYNO", "web.1")
	if got := ID(); got != "cron-a" {
		t.Fatalf("expected cron-a, got %q", got)
	}
}

func TestIDFallsBackToDyno(t *testing.T) {
	t.Setenv("HPP_INSTANCE_ID", "")
	t.Setenv("DYNO", "web.1")
	if got := ID(); got != "web.1" {
		t.Fatalf("expected web.1, got %q", got)
	}
}

func TestIDNeverEmpty(t *testing.T) {
	t.Setenv("HPP_INSTANCE_ID", "")
	t.Setenv("DYNO", "")
	if ID() == "" {
		t.Fatal("expected a non-empty instance id")
	}
}
