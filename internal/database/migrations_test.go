package database

import (
	"reflect"
	"testing"
	"testing/fstest"
)

func TestPendingMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"002_market.sql": {Data: []byte("SELECT 1;")},
		"001_init.sql":   {Data: []byte("SELECT 1;")},
		"003_calls.sql":  {Data: []byte("SELECT 1;")},
		"_scratch.sql":   {Data: []byte("SELECT 1;")},
		"README.md":      {Data: []byte("docs")},
	}

	pending, err := PendingMigrations(fsys, map[string]bool{"001_init.sql": true})
	if err != nil {
		t.Fatalf("PendingMigrations returned error: %v", err)
	}

	want := []string{"002_market.sql", "003_calls.sql"}
	if !reflect.DeepEqual(pending, want) {
		t.Errorf("PendingMigrations = %v, want %v", pending, want)
	}
}

func TestPendingMigrationsAllApplied(t *testing.T) {
	fsys := fstest.MapFS{"001_init.sql": {Data: []byte("SELECT 1;")}}

	pending, err := PendingMigrations(fsys, map[string]bool{"001_init.sql": true})
	if err != nil {
		t.Fatalf("PendingMigrations returned error: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected nothing pending, got %v", pending)
	}
}
