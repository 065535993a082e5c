// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backup

import (
	"os"

	"github.com/juju/errors"
	"gopkg.in/yaml.v2"
)

// Default locations for the optional web-tier parameters.
const (
	DefaultWebAdmin      = "/usr/local/bin/webadmin"
	DefaultWebBackupRoot = "/var/lib/webadmin/backups"
)

// Config holds the parameters of one backup run. It can be populated
// from a YAML file, from command line flags, or both, with flags
// winning.
type Config struct {
	// BackupRoot is the directory run staging directories are created
	// under.
	BackupRoot string `yaml:"backup-root"`

	// Destination is where the archive and manifest are published.
	// A destination of the //host/share/... form is treated as a
	// network share and probed for reachability during preflight.
	Destination string `yaml:"destination"`

	// RulesTool is the path of the rule-export utility.
	RulesTool string `yaml:"rules-tool"`

	// SourceConfig is the configuration file captured verbatim.
	SourceConfig string `yaml:"source-config"`

	// WebAdmin is the path of the web administration utility.
	WebAdmin string `yaml:"web-admin"`

	// WebBackupRoot is the directory the web tier writes its own
	// state backups under.
	WebBackupRoot string `yaml:"web-backup-root"`
}

// ReadConfig loads a Config from the YAML file at path.
func ReadConfig(path string) (Config, error) {
	var config Config
	data, err := os.ReadFile(path)
	if err != nil {
		return config, errors.Annotate(err, "reading config file")
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, errors.Annotatef(err, "parsing config file %q", path)
	}
	return config, nil
}

// Merged returns the config with every non-empty field of overlay
// replacing the receiver's value.
func (c Config) Merged(overlay Config) Config {
	if overlay.BackupRoot != "" {
		c.BackupRoot = overlay.BackupRoot
	}
	if overlay.Destination != "" {
		c.Destination = overlay.Destination
	}
	if overlay.RulesTool != "" {
		c.RulesTool = overlay.RulesTool
	}
	if overlay.SourceConfig != "" {
		c.SourceConfig = overlay.SourceConfig
	}
	if overlay.WebAdmin != "" {
		c.WebAdmin = overlay.WebAdmin
	}
	if overlay.WebBackupRoot != "" {
		c.WebBackupRoot = overlay.WebBackupRoot
	}
	return c
}

// WithDefaults returns the config with the optional web-tier fields
// filled in where empty.
func (c Config) WithDefaults() Config {
	if c.WebAdmin == "" {
		c.WebAdmin = DefaultWebAdmin
	}
	if c.WebBackupRoot == "" {
		c.WebBackupRoot = DefaultWebBackupRoot
	}
	return c
}

// Validate checks that every required parameter is present.
func (c Config) Validate() error {
	if c.BackupRoot == "" {
		return errors.NotValidf("empty backup-root")
	}
	if c.Destination == "" {
		return errors.NotValidf("empty destination")
	}
	if c.RulesTool == "" {
		return errors.NotValidf("empty rules-tool")
	}
	if c.SourceConfig == "" {
		return errors.NotValidf("empty source-config")
	}
	return nil
}
