// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backup

import (
	"os"
	"path/filepath"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
	"github.com/juju/utils/v4/fs"
)

const transferAttempts = 3

var transferDelay = 2 * time.Second

// Publisher copies a finished archive and its manifest to the
// destination directory, then removes the local archive copy. The
// destination is usually a mounted network share, so transfers are
// retried a few times before giving up.
type Publisher struct {
	// Clock paces transfer retries.
	Clock clock.Clock

	// CopyFile and Remove may be set for tests. The defaults use the
	// real filesystem.
	CopyFile func(src, dst string) error
	Remove   func(path string) error
}

// PublishArgs names what gets published where.
type PublishArgs struct {
	ArchivePath  string
	ManifestPath string
	Destination  string
}

// Publish ensures the destination directory exists, copies the
// archive and then the manifest into it, and deletes the local
// archive only once both copies have succeeded. A failed transfer
// leaves the local archive in place so nothing is lost. The manifest
// stays in the staging directory either way, as part of the run's
// audit trail.
func (p *Publisher) Publish(args PublishArgs) error {
	if err := os.MkdirAll(args.Destination, 0755); err != nil {
		return errors.WithType(errors.Annotatef(err, "creating destination %q", args.Destination), ErrTransferFailed)
	}
	for _, src := range []string{args.ArchivePath, args.ManifestPath} {
		if err := p.transfer(src, args.Destination); err != nil {
			return errors.Trace(err)
		}
	}
	// Only now is the local archive redundant.
	if err := p.remove(args.ArchivePath); err != nil {
		logger.Warningf("cannot remove local archive %q: %v", args.ArchivePath, err)
	}
	return nil
}

func (p *Publisher) transfer(src, destDir string) error {
	dst := filepath.Join(destDir, filepath.Base(src))
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			// fs.Copy refuses to overwrite, so clear any remnant of
			// an earlier attempt first.
			if err := p.remove(dst); err != nil && !os.IsNotExist(err) {
				return errors.Trace(err)
			}
			return p.copyFile(src, dst)
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Debugf("copy attempt %d for %q: %v", attempt, src, err)
		},
		Attempts: transferAttempts,
		Delay:    transferDelay,
		Clock:    p.clock(),
	})
	if err != nil {
		return errors.WithType(errors.Annotatef(retry.LastError(err), "copying %q to %q", src, dst), ErrTransferFailed)
	}
	return nil
}

func (p *Publisher) clock() clock.Clock {
	if p.Clock == nil {
		return clock.WallClock
	}
	return p.Clock
}

func (p *Publisher) copyFile(src, dst string) error {
	if p.CopyFile != nil {
		return p.CopyFile(src, dst)
	}
	return fs.Copy(src, dst)
}

func (p *Publisher) remove(path string) error {
	if p.Remove != nil {
		return p.Remove(path)
	}
	return os.Remove(path)
}
