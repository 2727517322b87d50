package db

import (
	"io/fs"
	"strings"
	"testing"
)

func TestRunMigrations_InvalidDirection(t *testing.T) {
	err := RunMigrations(nil, "sideways")
	if err == nil {
		t.Fatal("expected error for invalid direction")
	}
	if !strings.Contains(err.Error(), "invalid migration direction") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var up, down int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			up++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			down++
		}
	}
	if up == 0 || up != down {
		t.Errorf("migrations up=%d down=%d, want matching non-zero counts", up, down)
	}

	body, err := fs.ReadFile(migrationsFS, "migrations/000002_create_audit_logs.up.sql")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	for _, col := range []string{"user_id", "entity_type", "entity_id", "old_values", "new_values", "ip_address", "user_agent"} {
		if !strings.Contains(string(body), col) {
			t.Errorf("audit_logs migration missing column %q", col)
		}
	}
}
