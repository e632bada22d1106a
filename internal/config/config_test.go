package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skeetstats.yaml")
	cfg := Default()
	cfg.Account.Handle = "skeetstats.xyz"
	cfg.Poll.Interval = 30 * time.Second
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Account.Handle != "skeetstats.xyz" {
		t.Fatalf("handle: %q", got.Account.Handle)
	}
	if got.Poll.Interval != 30*time.Second {
		t.Fatalf("interval: %v", got.Poll.Interval)
	}
}

func TestLoadDefaultsBadIntervals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skeetstats.yaml")
	cfg := Default()
	cfg.Poll.Interval = 0
	cfg.Poll.PurgeInterval = 0
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Poll.Interval != time.Minute || got.Poll.PurgeInterval != 24*time.Hour {
		t.Fatalf("defaults not applied: %v %v", got.Poll.Interval, got.Poll.PurgeInterval)
	}
}
