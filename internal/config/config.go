package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the application's configuration model.
// It captures bot credentials, site links, storage, and job cadence.
type Config struct {
	Account   AccountConfig   `yaml:"account"`
	Site      SiteConfig      `yaml:"site"`
	Storage   StorageConfig   `yaml:"storage"`
	Poll      PollConfig      `yaml:"poll"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	HTTP      HTTPConfig      `yaml:"http"`
	Logs      LogsConfig      `yaml:"logs"`
}

type AccountConfig struct {
	// Bluesky handle the bot runs as, e.g. "skeetstats.xyz"
	Handle string `yaml:"handle"`
	// App password. If empty, read from env BSKY_PASSWORD
	Password string `yaml:"password"`
	// PDS endpoint
	Service string `yaml:"service"`
}

type SiteConfig struct {
	// Public site used for embeds and the catch-all redirect
	URL string `yaml:"url"`
}

type StorageConfig struct {
	DBPath string `yaml:"dbPath"`
}

type PollConfig struct {
	// How often unread mentions are drained
	Interval time.Duration `yaml:"interval"`
	// How often read mentions are purged; much longer than Interval so
	// a slow consumer is never blocked on cleanup
	PurgeInterval time.Duration `yaml:"purgeInterval"`
}

type BroadcastConfig struct {
	// Daily fire time (UTC)
	Hour   int `yaml:"hour"`
	Minute int `yaml:"minute"`
}

type SnapshotConfig struct {
	Hour   int `yaml:"hour"`
	Minute int `yaml:"minute"`
}

type HTTPConfig struct {
	// Read API listen address; empty disables the server
	Addr string `yaml:"addr"`
	// Metrics listen address; empty disables metrics
	MetricsAddr string `yaml:"metricsAddr"`
}

type LogsConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Account:   AccountConfig{Service: "https://bsky.social"},
		Site:      SiteConfig{URL: "https://skeetstats.xyz"},
		Storage:   StorageConfig{DBPath: "./skeetstats.db"},
		Poll:      PollConfig{Interval: time.Minute, PurgeInterval: 24 * time.Hour},
		Broadcast: BroadcastConfig{Hour: 18},
		Snapshot:  SnapshotConfig{Hour: 23},
		HTTP:      HTTPConfig{Addr: ":8443"},
		Logs:      LogsConfig{Dir: "."},
	}
}

// ResolveEnv fills in config fields from environment variables if not set.
func (c *Config) ResolveEnv() {
	if c.Account.Handle == "" {
		c.Account.Handle = os.Getenv("BSKY_USERNAME")
	}
	if c.Account.Password == "" {
		c.Account.Password = os.Getenv("BSKY_PASSWORD")
	}
	if c.Account.Service == "" {
		c.Account.Service = os.Getenv("BSKY_SERVICE")
	}
	if c.HTTP.MetricsAddr == "" {
		c.HTTP.MetricsAddr = os.Getenv("METRICS_ADDR")
	}
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.ResolveEnv()
	if cfg.Poll.Interval <= 0 {
		cfg.Poll.Interval = time.Minute
	}
	if cfg.Poll.PurgeInterval <= 0 {
		cfg.Poll.PurgeInterval = 24 * time.Hour
	}
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
