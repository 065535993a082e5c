// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
)

const (
	runIDTimeFormat = "20060102-150405"

	auditLogName   = "confbackup.log"
	transcriptName = "transcript.log"
)

var osHostname = os.Hostname

// RunContext carries the identity and working state of one backup
// run: where captures are staged, and the logs that record them.
type RunContext struct {
	// ID names the run and its staging directory, unique per host
	// and start time.
	ID string

	// Hostname is the short name of the machine being backed up.
	Hostname string

	// StagingDir is the directory capture tasks write into. It holds
	// the audit log and transcript and is what gets archived.
	StagingDir string

	// AuditLog records run progress, one line per event.
	AuditLog *AuditLogger

	// Transcript collects tool console output between Start and Stop.
	Transcript *Transcript

	// Started is when the run began.
	Started time.Time
}

// NewRunContext runs the preflight checks and stages a new run
// directory under cfg.BackupRoot. The audit log is allocated in the
// system temp directory first so that preflight failures are recorded
// somewhere durable, then relocated into the staging directory once
// it exists. On error the temp log is left behind as evidence.
func NewRunContext(cfg Config, clk clock.Clock) (*RunContext, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if err := checkPrivileges(); err != nil {
		return nil, errors.Trace(err)
	}

	host, err := osHostname()
	if err != nil {
		return nil, errors.Annotate(err, "resolving hostname")
	}
	host = shortHostname(host)

	started := clk.Now()
	id := fmt.Sprintf("confbackup-%s-%s", host, started.Format(runIDTimeFormat))

	audit, err := NewTempAuditLogger(host, clk)
	if err != nil {
		return nil, errors.Annotate(err, "allocating audit log")
	}
	audit.Infof("backup run %s starting", id)

	if err := os.MkdirAll(cfg.BackupRoot, 0755); err != nil {
		return nil, failPreflight(audit, errors.Annotatef(err, "creating backup root %q", cfg.BackupRoot))
	}
	if err := checkFreeSpace(cfg.BackupRoot); err != nil {
		return nil, failPreflight(audit, err)
	}
	if err := checkDestination(cfg.Destination, clk); err != nil {
		return nil, failPreflight(audit, err)
	}

	stagingDir := filepath.Join(cfg.BackupRoot, id)
	if err := os.MkdirAll(stagingDir, 0700); err != nil {
		return nil, failPreflight(audit, errors.Annotatef(err, "creating staging directory %q", stagingDir))
	}
	if err := audit.Relocate(filepath.Join(stagingDir, auditLogName)); err != nil {
		return nil, failPreflight(audit, err)
	}

	return &RunContext{
		ID:         id,
		Hostname:   host,
		StagingDir: stagingDir,
		AuditLog:   audit,
		Transcript: NewTranscript(filepath.Join(stagingDir, transcriptName)),
		Started:    started,
	}, nil
}

// failPreflight records a preflight failure in the audit log before
// handing the error back.
func failPreflight(audit *AuditLogger, err error) error {
	audit.Failedf("preflight: %v", err)
	return errors.Trace(err)
}

func shortHostname(host string) string {
	if i := strings.IndexByte(host, '.'); i > 0 {
		return host[:i]
	}
	return host
}
