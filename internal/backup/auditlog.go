// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backup

import (
	"fmt"
	"os"

	"github.com/juju/clock"
	"github.com/juju/errors"
)

// Audit log severities. These are part of the log's wire format and
// consumed by operators' tooling; do not rename them.
const (
	severityInfo    = "INFO"
	severitySuccess = "SUCCESS"
	severityFailed  = "FAILED"
)

const auditTimeFormat = "2006-01-02 15:04:05"

// AuditLogger appends one timestamped line per run event to the audit
// file. Every call opens, appends, syncs and closes the file, so no
// handle is held between events and a crash loses at most nothing.
// There is no rotation; the file lives and dies with its run.
type AuditLogger struct {
	path  string
	host  string
	clock clock.Clock
}

// NewAuditLogger returns an audit logger appending to path. The file
// is created immediately so permission problems surface here rather
// than at the first event.
func NewAuditLogger(path, host string, clk clock.Clock) (*AuditLogger, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, errors.Annotate(err, "creating audit log")
	}
	if err := file.Close(); err != nil {
		return nil, errors.Trace(err)
	}
	return &AuditLogger{path: path, host: host, clock: clk}, nil
}

// NewTempAuditLogger returns an audit logger backed by a fresh file in
// the system temp directory, for use before the run's staging
// directory exists. Relocate moves it into place later.
func NewTempAuditLogger(host string, clk clock.Clock) (*AuditLogger, error) {
	file, err := os.CreateTemp("", "confbackup-*.log")
	if err != nil {
		return nil, errors.Annotate(err, "creating audit log")
	}
	path := file.Name()
	if err := file.Close(); err != nil {
		return nil, errors.Trace(err)
	}
	return &AuditLogger{path: path, host: host, clock: clk}, nil
}

// Path returns the audit file's current location.
func (l *AuditLogger) Path() string {
	return l.path
}

// Relocate moves the audit file to path, preserving every line written
// so far. A plain rename is tried first; moves across filesystems fall
// back to copying.
func (l *AuditLogger) Relocate(path string) error {
	if err := os.Rename(l.path, path); err != nil {
		data, readErr := os.ReadFile(l.path)
		if readErr != nil {
			return errors.Annotate(err, "relocating audit log")
		}
		if writeErr := os.WriteFile(path, data, 0600); writeErr != nil {
			return errors.Annotate(writeErr, "relocating audit log")
		}
		if removeErr := os.Remove(l.path); removeErr != nil {
			logger.Warningf("cannot remove old audit log %q: %v", l.path, removeErr)
		}
	}
	l.path = path
	return nil
}

// Infof records an informational event.
func (l *AuditLogger) Infof(format string, args ...interface{}) {
	l.log(severityInfo, format, args...)
}

// Successf records a completed step.
func (l *AuditLogger) Successf(format string, args ...interface{}) {
	l.log(severitySuccess, format, args...)
}

// Failedf records a failed step.
func (l *AuditLogger) Failedf(format string, args ...interface{}) {
	l.log(severityFailed, format, args...)
}

// log writes one line. Audit trouble never interrupts a run; it is
// reported through the operator log instead.
func (l *AuditLogger) log(severity, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	if err := l.append(severity, message); err != nil {
		logger.Warningf("cannot write audit log: %v", err)
	}
}

func (l *AuditLogger) append(severity, message string) error {
	file, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	stamp := l.clock.Now().Format(auditTimeFormat)
	if _, err := fmt.Fprintf(file, "%s - [%s] - [%s] - %s\n", stamp, l.host, severity, message); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(file.Sync())
}
