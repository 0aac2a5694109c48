package main

import (
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func TestLoadConfigFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	v.Set("config", filepath.Join(dir, "missing.yml"))

	cmd := &cobra.Command{Use: "contracts"}
	cmd.Flags().String("db-path", "", "")
	cmd.Flags().String("log-level", "", "")
	dbPath := filepath.Join(dir, "override.db")
	if err := cmd.Flags().Set("db-path", dbPath); err != nil {
		t.Fatalf("Set: %v", err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.DBPath != dbPath {
		t.Fatalf("db path = %q, want %q", cfg.DBPath, dbPath)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("log level = %q, want default", cfg.Log.Level)
	}
}

func TestConfigInitWritesLoadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airline.yml")
	v.Set("config", path)

	cmd := configCmd()
	cmd.SetArgs([]string{"init"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}
	cmd = configCmd()
	cmd.SetArgs([]string{"init"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("second init without --force should fail")
	}

	cfg, err := loadConfig(&cobra.Command{})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Addr != ":4000" || len(cfg.Contracts.Hubs) == 0 {
		t.Fatalf("config = %+v", cfg)
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Fatalf("shortID = %q", got)
	}
	if got := shortID("c1"); got != "c1" {
		t.Fatalf("shortID = %q", got)
	}
}
