package database

import (
	"strings"
	"testing"

	"github.com/sectorfolio/sectorfolio/internal/config"
)

func TestBuildURLPrefersDatabaseURL(t *testing.T) {
	url, err := BuildURL(config.DatabaseConfig{URL: "postgres://u:p@db:5432/x", User: "ignored", Name: "ignored"})
	if err != nil {
		t.Fatalf("BuildURL returned error: %v", err)
	}
	if url != "postgres://u:p@db:5432/x" {
		t.Errorf("unexpected url %q", url)
	}
}

func TestBuildURLFromFields(t *testing.T) {
	dsn, err := BuildURL(config.DatabaseConfig{
		Host:     "localhost",
		Port:     "5432",
		User:     "folio",
		Password: "it's secret",
		Name:     "sectorfolio",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("BuildURL returned error: %v", err)
	}

	for _, want := range []string{"host=localhost", "user=folio", "dbname=sectorfolio", `password='it\'s secret'`, "sslmode=disable"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("dsn %q missing %q", dsn, want)
		}
	}
}

func TestBuildURLRequiresCredentials(t *testing.T) {
	if _, err := BuildURL(config.DatabaseConfig{Host: "localhost"}); err == nil {
		t.Fatal("expected error without DATABASE_URL or DB_USER/DB_NAME")
	}
}

func TestRedactURL(t *testing.T) {
	tests := []string{
		"postgres://folio:hunter2@db:5432/x?sslmode=disable",
		"host=db user=folio password=hunter2 dbname=x",
	}

	for _, in := range tests {
		got := RedactURL(in)
		if strings.Contains(got, "hunter2") {
			t.Errorf("RedactURL(%q) leaked the password: %q", in, got)
		}
		if !strings.Contains(got, "***") || !strings.Contains(got, "folio") {
			t.Errorf("RedactURL(%q) = %q, want user kept and password masked", in, got)
		}
	}

	if got := RedactURL("postgresql://folio@db/x"); got != "postgresql://folio@db/x" {
		t.Errorf("URL without password should be unchanged, got %q", got)
	}
}

func TestConfigFromCapsIdleConnections(t *testing.T) {
	cfg, err := ConfigFrom(config.DatabaseConfig{URL: "postgres://x", MaxConnections: 2})
	if err != nil {
		t.Fatalf("ConfigFrom returned error: %v", err)
	}
	if cfg.MaxConnections != 2 || cfg.MaxIdleConnections != 2 {
		t.Errorf("unexpected pool settings: %+v", cfg)
	}
}
