// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backup

import (
	"os"
	"sync"

	"github.com/juju/errors"
)

// Transcript collects the console output of every capture command in
// a single file beside the audit log. It is started once, written to
// while capture runs, and stopped before the staging directory is
// archived so the file's contents make it into the archive complete.
type Transcript struct {
	path string

	mu      sync.Mutex
	file    *os.File
	stopped bool
}

// NewTranscript returns an unstarted transcript that will write to
// path.
func NewTranscript(path string) *Transcript {
	return &Transcript{path: path}
}

// Path returns the transcript file's location.
func (t *Transcript) Path() string {
	return t.path
}

// Start creates the transcript file, truncating any leftover from an
// identically named run. A transcript cannot be started twice, not
// even after a stop.
func (t *Transcript) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return errors.New("transcript already stopped")
	}
	if t.file != nil {
		return errors.New("transcript already started")
	}
	file, err := os.OpenFile(t.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Annotate(err, "starting transcript")
	}
	t.file = file
	return nil
}

// Write appends to the transcript file.
func (t *Transcript) Write(data []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return 0, errors.New("transcript not open")
	}
	return t.file.Write(data)
}

// Stop flushes and closes the transcript. Stopping an already stopped
// or never started transcript is a no-op, so every exit path of a run
// can call it unconditionally.
func (t *Transcript) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return nil
	}
	t.stopped = true
	if t.file == nil {
		return nil
	}
	file := t.file
	t.file = nil
	if err := file.Sync(); err != nil {
		file.Close()
		return errors.Annotate(err, "flushing transcript")
	}
	return errors.Trace(file.Close())
}
