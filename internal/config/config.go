// Package config loads and validates the pagesmith configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Server  ServerConfig  `yaml:"server"`
	Content ContentConfig `yaml:"content"`
	Pages   PagesConfig   `yaml:"pages"`
	Regen   RegenConfig   `yaml:"regen"`
	Sweep   SweepConfig   `yaml:"sweep"`
	Events  EventsConfig  `yaml:"events"`
}

// SiteConfig holds site-wide presentation settings.
type SiteConfig struct {
	Title string `yaml:"title"`
}

// ServerConfig holds the HTTP listener ports.
type ServerConfig struct {
	PagesPort int `yaml:"pages_port"`
	AdminPort int `yaml:"admin_port"`
}

// ContentConfig describes where page content comes from.
type ContentConfig struct {
	Directory       string            `yaml:"directory"`
	Git             *GitContentConfig `yaml:"git,omitempty"`
	Watch           bool              `yaml:"watch"`
	WatchDebounceMS int               `yaml:"watch_debounce_ms"`
}

// GitContentConfig configures a git-backed content source.
type GitContentConfig struct {
	URL         string `yaml:"url"`
	Branch      string `yaml:"branch,omitempty"`
	CheckoutDir string `yaml:"checkout_dir,omitempty"`
}

// PagesConfig controls artifact freshness and persistence.
type PagesConfig struct {
	// DefaultRevalidateSeconds is the freshness horizon applied to pages
	// without a frontmatter override.
	DefaultRevalidateSeconds int         `yaml:"default_revalidate_seconds"`
	Store                    StoreConfig `yaml:"store"`
}

// StoreConfig selects the artifact store backend.
type StoreConfig struct {
	Driver string `yaml:"driver"` // "memory" or "sqlite"
	Path   string `yaml:"path,omitempty"`
}

// RegenConfig sizes the background regeneration pool.
type RegenConfig struct {
	Workers        int `yaml:"workers"`
	QueueSize      int `yaml:"queue_size"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// SweepConfig controls the periodic stale-artifact sweep.
type SweepConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds"`
}

// EventsConfig configures NATS regeneration event publishing.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// DefaultRevalidate returns the default horizon as a duration.
func (p PagesConfig) DefaultRevalidate() time.Duration {
	return time.Duration(p.DefaultRevalidateSeconds) * time.Second
}

// RegenTimeout returns the regeneration timeout as a duration (zero disables it).
func (r RegenConfig) RegenTimeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// SweepInterval returns the sweep interval as a duration.
func (s SweepConfig) SweepInterval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// WatchDebounce returns the watcher debounce window as a duration.
func (c ContentConfig) WatchDebounce() time.Duration {
	return time.Duration(c.WatchDebounceMS) * time.Millisecond
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	if err := loadEnvFiles(); err != nil {
		// Don't fail if .env doesn't exist, just log it
		fmt.Fprintf(os.Stderr, "Note: .env file not found or couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Site.Title == "" {
		c.Site.Title = "Pagesmith"
	}
	if c.Server.PagesPort == 0 {
		c.Server.PagesPort = 8080
	}
	if c.Server.AdminPort == 0 {
		c.Server.AdminPort = 8081
	}
	if c.Content.Directory == "" && c.Content.Git == nil {
		c.Content.Directory = "./content"
	}
	if c.Content.Git != nil {
		if c.Content.Git.Branch == "" {
			c.Content.Git.Branch = "main"
		}
		if c.Content.Git.CheckoutDir == "" {
			c.Content.Git.CheckoutDir = "./content-checkout"
		}
	}
	if c.Content.WatchDebounceMS == 0 {
		c.Content.WatchDebounceMS = 500
	}
	if c.Pages.DefaultRevalidateSeconds == 0 {
		c.Pages.DefaultRevalidateSeconds = 60
	}
	if c.Pages.Store.Driver == "" {
		c.Pages.Store.Driver = "memory"
	}
	if c.Pages.Store.Driver == "sqlite" && c.Pages.Store.Path == "" {
		c.Pages.Store.Path = "./pagesmith.db"
	}
	if c.Regen.Workers == 0 {
		c.Regen.Workers = 2
	}
	if c.Regen.QueueSize == 0 {
		c.Regen.QueueSize = 64
	}
	if c.Sweep.IntervalSeconds == 0 {
		c.Sweep.IntervalSeconds = 300
	}
	if c.Events.Subject == "" {
		c.Events.Subject = "pagesmith.regenerations"
	}
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Server.PagesPort == c.Server.AdminPort {
		return fmt.Errorf("pages_port and admin_port must differ (both %d)", c.Server.PagesPort)
	}
	if c.Server.PagesPort < 1 || c.Server.PagesPort > 65535 {
		return fmt.Errorf("pages_port out of range: %d", c.Server.PagesPort)
	}
	if c.Server.AdminPort < 1 || c.Server.AdminPort > 65535 {
		return fmt.Errorf("admin_port out of range: %d", c.Server.AdminPort)
	}
	if c.Content.Directory == "" && c.Content.Git == nil {
		return fmt.Errorf("content requires a directory or a git source")
	}
	if c.Content.Git != nil && c.Content.Git.URL == "" {
		return fmt.Errorf("content.git.url is required when a git source is configured")
	}
	if c.Pages.DefaultRevalidateSeconds < 0 {
		return fmt.Errorf("pages.default_revalidate_seconds must be >= 0")
	}
	switch c.Pages.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Pages.Store.Path == "" {
			return fmt.Errorf("pages.store.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown store driver: %s", c.Pages.Store.Driver)
	}
	if c.Regen.Workers < 1 {
		return fmt.Errorf("regen.workers must be >= 1")
	}
	if c.Regen.TimeoutSeconds < 0 {
		return fmt.Errorf("regen.timeout_seconds must be >= 0")
	}
	if c.Sweep.Enabled && c.Sweep.IntervalSeconds < 1 {
		return fmt.Errorf("sweep.interval_seconds must be >= 1 when sweep is enabled")
	}
	if c.Events.Enabled && c.Events.NATSURL == "" {
		return fmt.Errorf("events.nats_url is required when event publishing is enabled")
	}
	return nil
}
