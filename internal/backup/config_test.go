// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backup_test

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/confbackup/internal/backup"
)

type configSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&configSuite{})

func (s *configSuite) writeConfig(c *gc.C, content string) string {
	path := filepath.Join(c.MkDir(), "confbackup.yaml")
	err := os.WriteFile(path, []byte(content), 0644)
	c.Assert(err, jc.ErrorIsNil)
	return path
}

func (s *configSuite) TestReadConfig(c *gc.C) {
	path := s.writeConfig(c, `
backup-root: /srv/backups
destination: //nas/backups/web01
rules-tool: /usr/sbin/nft
source-config: /etc/deploy/deploy.yaml
web-admin: /opt/webadmin/bin/webadmin
web-backup-root: /srv/webadmin/backups
`[1:])
	cfg, err := backup.ReadConfig(path)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(cfg, jc.DeepEquals, backup.Config{
		BackupRoot:    "/srv/backups",
		Destination:   "//nas/backups/web01",
		RulesTool:     "/usr/sbin/nft",
		SourceConfig:  "/etc/deploy/deploy.yaml",
		WebAdmin:      "/opt/webadmin/bin/webadmin",
		WebBackupRoot: "/srv/webadmin/backups",
	})
}

func (s *configSuite) TestReadConfigPartial(c *gc.C) {
	path := s.writeConfig(c, "backup-root: /srv/backups\n")
	cfg, err := backup.ReadConfig(path)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(cfg, jc.DeepEquals, backup.Config{BackupRoot: "/srv/backups"})
}

func (s *configSuite) TestReadConfigMissing(c *gc.C) {
	_, err := backup.ReadConfig(filepath.Join(c.MkDir(), "missing.yaml"))
	c.Assert(err, jc.ErrorIs, os.ErrNotExist)
}

func (s *configSuite) TestReadConfigMalformed(c *gc.C) {
	path := s.writeConfig(c, "{not yaml")
	_, err := backup.ReadConfig(path)
	c.Assert(err, gc.ErrorMatches, `parsing config file ".*": yaml: .*`)
}

func (s *configSuite) TestMerged(c *gc.C) {
	base := backup.Config{
		BackupRoot:   "/srv/backups",
		Destination:  "//nas/backups/web01",
		RulesTool:    "/usr/sbin/nft",
		SourceConfig: "/etc/deploy/deploy.yaml",
	}
	merged := base.Merged(backup.Config{
		Destination: "/mnt/offsite",
		WebAdmin:    "/opt/webadmin/bin/webadmin",
	})
	c.Check(merged, jc.DeepEquals, backup.Config{
		BackupRoot:   "/srv/backups",
		Destination:  "/mnt/offsite",
		RulesTool:    "/usr/sbin/nft",
		SourceConfig: "/etc/deploy/deploy.yaml",
		WebAdmin:     "/opt/webadmin/bin/webadmin",
	})
}

func (s *configSuite) TestMergedEmptyOverlay(c *gc.C) {
	base := backup.Config{
		BackupRoot:   "/srv/backups",
		Destination:  "//nas/backups/web01",
		RulesTool:    "/usr/sbin/nft",
		SourceConfig: "/etc/deploy/deploy.yaml",
	}
	c.Check(base.Merged(backup.Config{}), jc.DeepEquals, base)
}

func (s *configSuite) TestWithDefaults(c *gc.C) {
	cfg := backup.Config{BackupRoot: "/srv/backups"}.WithDefaults()
	c.Check(cfg.WebAdmin, gc.Equals, backup.DefaultWebAdmin)
	c.Check(cfg.WebBackupRoot, gc.Equals, backup.DefaultWebBackupRoot)
}

func (s *configSuite) TestWithDefaultsKeepsExplicit(c *gc.C) {
	cfg := backup.Config{
		WebAdmin:      "/opt/webadmin/bin/webadmin",
		WebBackupRoot: "/srv/webadmin/backups",
	}.WithDefaults()
	c.Check(cfg.WebAdmin, gc.Equals, "/opt/webadmin/bin/webadmin")
	c.Check(cfg.WebBackupRoot, gc.Equals, "/srv/webadmin/backups")
}

func (s *configSuite) TestValidate(c *gc.C) {
	full := backup.Config{
		BackupRoot:   "/srv/backups",
		Destination:  "//nas/backups/web01",
		RulesTool:    "/usr/sbin/nft",
		SourceConfig: "/etc/deploy/deploy.yaml",
	}
	c.Assert(full.Validate(), jc.ErrorIsNil)

	for _, test := range []struct {
		about  string
		zap    func(*backup.Config)
		expect string
	}{{
		about:  "backup root",
		zap:    func(cfg *backup.Config) { cfg.BackupRoot = "" },
		expect: "empty backup-root not valid",
	}, {
		about:  "destination",
		zap:    func(cfg *backup.Config) { cfg.Destination = "" },
		expect: "empty destination not valid",
	}, {
		about:  "rules tool",
		zap:    func(cfg *backup.Config) { cfg.RulesTool = "" },
		expect: "empty rules-tool not valid",
	}, {
		about:  "source config",
		zap:    func(cfg *backup.Config) { cfg.SourceConfig = "" },
		expect: "empty source-config not valid",
	}} {
		c.Logf("checking %s", test.about)
		cfg := full
		test.zap(&cfg)
		err := cfg.Validate()
		c.Check(err, jc.ErrorIs, errors.NotValid)
		c.Check(err, gc.ErrorMatches, test.expect)
	}
}
