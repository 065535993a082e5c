// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	stdcontext "context"
	"fmt"
	"strings"

	"github.com/juju/clock"
	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/confbackup/internal/backup"
	"github.com/juju/confbackup/internal/capture"
)

var createDoc = `
create runs one complete backup: preflight checks, capture of the
standard artifact set into a timestamped staging directory under the
backup root, archiving, manifest generation, and publication to the
destination.

Parameters may come from a YAML config file, from flags, or both;
flags win. The backup root, destination, rules tool and source config
are required. A destination of the //host/share form is treated as a
network share and probed for reachability before any capture work
starts.

Individual capture failures do not abort the run; they are recorded
in the audit log and the run metadata, and the remaining artifacts
are still archived and published.
`

const createExamples = `
    confbackup create --config /etc/confbackup.yaml
    confbackup create --root /srv/backups --dest //nas/backups/web01 \
        --rules-tool /usr/sbin/nft --source-config /etc/deploy/deploy.yaml
`

func newCreateCommand() cmd.Command {
	c := &createCommand{}
	c.run = c.runBackup
	return c
}

// createCommand performs a complete backup run.
type createCommand struct {
	cmd.CommandBase

	configFile string
	overlay    backup.Config

	// run is swapped out in tests.
	run func(cfg backup.Config, notify func(capture.Result)) (*backup.RunResult, error)
}

// Info implements cmd.Command.
func (c *createCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:     "create",
		Purpose:  "Capture, archive and publish a configuration backup.",
		Doc:      createDoc,
		Examples: createExamples,
		SeeAlso:  []string{"verify"},
	}
}

// SetFlags implements cmd.Command.
func (c *createCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.configFile, "config", "", "Path of a YAML file supplying any of the other flags")
	f.StringVar(&c.overlay.BackupRoot, "root", "", "Directory staging directories are created under")
	f.StringVar(&c.overlay.Destination, "dest", "", "Directory or //host/share path the archive is published to")
	f.StringVar(&c.overlay.RulesTool, "rules-tool", "", "Path of the rule-export utility")
	f.StringVar(&c.overlay.SourceConfig, "source-config", "", "Configuration file to capture verbatim")
	f.StringVar(&c.overlay.WebAdmin, "web-admin", "", "Path of the web administration utility")
	f.StringVar(&c.overlay.WebBackupRoot, "web-backup-root", "", "Directory the web tier writes its state backups under")
}

// Init implements cmd.Command.
func (c *createCommand) Init(args []string) error {
	return cmd.CheckEmpty(args)
}

// Run implements cmd.Command.
func (c *createCommand) Run(ctx *cmd.Context) error {
	var cfg backup.Config
	if c.configFile != "" {
		var err error
		cfg, err = backup.ReadConfig(c.configFile)
		if err != nil {
			return errors.Trace(err)
		}
	}
	cfg = cfg.Merged(c.overlay)

	notify := func(result capture.Result) {
		if result.Status == capture.StatusSucceeded {
			ctx.Infof("%s: done", result.Name)
		} else {
			ctx.Infof("%s: FAILED: %v", result.Name, result.Err)
		}
	}
	result, err := c.run(cfg, notify)
	if err != nil {
		return errors.Trace(err)
	}

	if failed := result.FailedTasks(); len(failed) > 0 {
		ctx.Infof("warning: %d of %d tasks failed: %s",
			len(failed), len(result.Tasks), strings.Join(failed, ", "))
	}
	ctx.Infof("published %s.zip (sha256 %s) to %s", result.ID, result.Checksum, cfg.Destination)
	fmt.Fprintln(ctx.Stdout, result.ID)
	return nil
}

func (c *createCommand) runBackup(cfg backup.Config, notify func(capture.Result)) (*backup.RunResult, error) {
	runner := &backup.Runner{
		Config: cfg,
		Clock:  clock.WallClock,
		Notify: notify,
	}
	return runner.Run(stdcontext.Background())
}
