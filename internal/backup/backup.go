// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package backup stages, archives and publishes operational
// configuration backups. A run captures a fixed set of host artifacts
// into a timestamped staging directory, zips the directory, records
// the archive digest in a checksum manifest, and copies archive and
// manifest to a durable destination. Capture failures are isolated
// per task; everything from archiving onwards is fatal.
package backup

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/mutex/v2"

	"github.com/juju/confbackup/internal/capture"
	"github.com/juju/confbackup/internal/manifest"
)

var logger = loggo.GetLogger("confbackup.backup")

// Runner drives one complete backup run end to end.
type Runner struct {
	// Config describes what to capture and where to publish it.
	Config Config

	// Clock stamps the run and paces retries. Nil means wall clock.
	Clock clock.Clock

	// CommandRunner executes capture tool commands. Nil runs them on
	// the host.
	CommandRunner capture.CommandRunner

	// Tasks overrides the capture task list. Nil means
	// capture.StandardTasks.
	Tasks []capture.Task

	// Notify, when set, observes each capture task result as it
	// lands. The CLI uses it for progress output.
	Notify func(capture.Result)

	// Acquire takes the machine-wide run lock. Nil uses the real
	// mutex.
	Acquire func(mutex.Spec) (mutex.Releaser, error)

	// Publish copies the archive and manifest to the destination.
	// Nil uses a Publisher on the real filesystem.
	Publish func(PublishArgs) error

	// TempDir hosts the archive until it is published. Empty means
	// the system temp directory.
	TempDir string
}

// RunResult reports a completed run.
type RunResult struct {
	// ID is the run identifier, also the staging directory name and
	// the root directory inside the archive.
	ID string

	// StagingDir is the local run directory left behind. It holds
	// the captured files, both logs, the metadata and the manifest.
	StagingDir string

	// ManifestPath is the local manifest file.
	ManifestPath string

	// Checksum is the archive digest recorded in the manifest.
	Checksum string

	// Size is the archive size in bytes.
	Size int64

	// Tasks holds the per-task outcomes in execution order.
	Tasks []capture.Result
}

// FailedTasks returns the names of the tasks that did not succeed.
func (r *RunResult) FailedTasks() []string {
	var names []string
	for _, task := range r.Tasks {
		if task.Status != capture.StatusSucceeded {
			names = append(names, task.Name)
		}
	}
	return names
}

// Run performs a complete backup. It returns an error only for fatal
// conditions: failed preflight, archiving, manifest writing or
// publication. Individual capture task failures are recorded in the
// result and the audit log but do not fail the run.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	cfg := r.Config.WithDefaults()

	releaser, err := r.acquireLock(cfg)
	if err != nil {
		return nil, errors.Annotate(err, "acquiring run lock")
	}
	defer releaser.Release()

	run, err := NewRunContext(cfg, r.clock())
	if err != nil {
		return nil, errors.Trace(err)
	}
	// Stop is idempotent; this covers any exit between start and the
	// explicit stop in capture.
	defer run.Transcript.Stop()
	audit := run.AuditLog

	results, err := r.capture(ctx, cfg, run)
	if err != nil {
		audit.Failedf("capture: %v", err)
		return nil, errors.Trace(err)
	}

	finished := r.clock().Now()
	meta := NewMetadata(run, results, finished)
	if err := meta.Write(filepath.Join(run.StagingDir, metadataName)); err != nil {
		audit.Failedf("writing metadata: %v", err)
		return nil, errors.Trace(err)
	}

	archivePath := filepath.Join(r.tempDir(), run.ID+".zip")
	audit.Infof("archiving %s", run.StagingDir)
	archive, err := BuildArchive(run.StagingDir, archivePath, run.ID)
	if err != nil {
		audit.Failedf("archiving: %v", err)
		return nil, errors.Trace(err)
	}
	audit.Infof("archive %s ready (%s, sha256 %s)",
		filepath.Base(archivePath), humanize.IBytes(uint64(archive.Size)), archive.Checksum)

	manifestPath := filepath.Join(run.StagingDir, run.ID+".zip"+manifest.DefaultAlgorithm.Suffix())
	entry := manifest.Entry{Checksum: archive.Checksum, Filename: filepath.Base(archivePath)}
	if err := manifest.WriteFile(manifestPath, []manifest.Entry{entry}); err != nil {
		audit.Failedf("writing manifest: %v", err)
		return nil, errors.Trace(err)
	}

	audit.Infof("publishing to %s", cfg.Destination)
	if err := r.publish(PublishArgs{
		ArchivePath:  archive.ArchivePath,
		ManifestPath: manifestPath,
		Destination:  cfg.Destination,
	}); err != nil {
		audit.Failedf("publishing: %v", err)
		return nil, errors.Trace(err)
	}

	result := &RunResult{
		ID:           run.ID,
		StagingDir:   run.StagingDir,
		ManifestPath: manifestPath,
		Checksum:     archive.Checksum,
		Size:         archive.Size,
		Tasks:        results,
	}
	if failed := result.FailedTasks(); len(failed) > 0 {
		audit.Infof("backup run %s finished with %d of %d tasks failed", run.ID, len(failed), len(results))
	} else {
		audit.Successf("backup run %s complete", run.ID)
	}
	return result, nil
}

// capture runs the task list with the transcript open, recording
// each outcome in the audit log.
func (r *Runner) capture(ctx context.Context, cfg Config, run *RunContext) ([]capture.Result, error) {
	if err := run.Transcript.Start(); err != nil {
		return nil, errors.Annotate(err, "starting transcript")
	}
	env := &capture.Env{
		RunID:      run.ID,
		StagingDir: run.StagingDir,
		Transcript: run.Transcript,
		Runner:     r.CommandRunner,
		Tools: capture.Tools{
			RulesTool:     cfg.RulesTool,
			WebAdmin:      cfg.WebAdmin,
			WebBackupRoot: cfg.WebBackupRoot,
			SourceConfig:  cfg.SourceConfig,
		},
	}
	tasks := r.Tasks
	if tasks == nil {
		tasks = capture.StandardTasks()
	}
	results := capture.Runner{Notify: r.observe(run.AuditLog)}.Run(ctx, env, tasks)

	// The transcript must be complete before the staging directory
	// is archived.
	if err := run.Transcript.Stop(); err != nil {
		logger.Warningf("closing transcript: %v", err)
		run.AuditLog.Failedf("closing transcript: %v", err)
	}
	return results, nil
}

func (r *Runner) observe(audit *AuditLogger) func(capture.Result) {
	return func(result capture.Result) {
		switch {
		case result.Status != capture.StatusSucceeded:
			audit.Failedf("%s: %v", result.Name, result.Err)
		case len(result.Outputs) > 0:
			audit.Successf("%s: %s", result.Name, strings.Join(result.Outputs, ", "))
		default:
			audit.Successf("%s", result.Name)
		}
		if r.Notify != nil {
			r.Notify(result)
		}
	}
}

func (r *Runner) acquireLock(cfg Config) (mutex.Releaser, error) {
	acquire := r.Acquire
	if acquire == nil {
		acquire = mutex.Acquire
	}
	return acquire(mutex.Spec{
		Name:    lockName(cfg.BackupRoot),
		Clock:   r.clock(),
		Delay:   250 * time.Millisecond,
		Timeout: 5 * time.Second,
	})
}

// lockName derives a mutex name from the backup root so that
// concurrent runs against the same root exclude each other while
// runs against unrelated roots do not.
func lockName(root string) string {
	digest := sha256.Sum256([]byte(root))
	return fmt.Sprintf("confbackup-%x", digest[:4])
}

func (r *Runner) publish(args PublishArgs) error {
	if r.Publish != nil {
		return r.Publish(args)
	}
	publisher := &Publisher{Clock: r.clock()}
	return publisher.Publish(args)
}

func (r *Runner) clock() clock.Clock {
	if r.Clock == nil {
		return clock.WallClock
	}
	return r.Clock
}

func (r *Runner) tempDir() string {
	if r.TempDir == "" {
		return os.TempDir()
	}
	return r.TempDir
}
