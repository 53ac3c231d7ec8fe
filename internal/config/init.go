package config

import (
	"fmt"
	"os"
)

const exampleConfig = `# pagesmith configuration
site:
  title: "Pagesmith"

server:
  pages_port: 8080
  admin_port: 8081

content:
  directory: ./content
  watch: true
  # Alternatively, serve content from a git repository:
  # git:
  #   url: https://git.example.com/docs/content.git
  #   branch: main

pages:
  # Pages without a frontmatter 'revalidate' override go stale after this long.
  default_revalidate_seconds: 60
  store:
    driver: memory
    # driver: sqlite
    # path: ./pagesmith.db

regen:
  workers: 2
  queue_size: 64
  # 0 disables the regeneration timeout
  timeout_seconds: 30

sweep:
  enabled: true
  interval_seconds: 300

events:
  enabled: false
  # nats_url: nats://localhost:4222
  # subject: pagesmith.regenerations
`

// Init creates a new configuration file with example content
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
