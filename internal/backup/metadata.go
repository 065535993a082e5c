// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backup

import (
	"encoding/json"
	"os"
	"time"

	"github.com/juju/errors"

	"github.com/juju/confbackup/internal/capture"
)

const metadataName = "metadata.json"

// Metadata summarizes a finished run. It is written into the staging
// directory before archiving so the archive carries its own record of
// what was captured and what failed. The archive checksum is not in
// it; the manifest file alongside the archive carries the digest.
type Metadata struct {
	ID       string       `json:"id"`
	Hostname string       `json:"hostname"`
	Started  time.Time    `json:"started"`
	Finished time.Time    `json:"finished"`
	Tasks    []TaskRecord `json:"tasks"`
}

// TaskRecord is the recorded outcome of one capture task.
type TaskRecord struct {
	Name    string   `json:"name"`
	Status  string   `json:"status"`
	Outputs []string `json:"outputs,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// NewMetadata assembles run metadata from the capture results.
func NewMetadata(run *RunContext, results []capture.Result, finished time.Time) *Metadata {
	meta := &Metadata{
		ID:       run.ID,
		Hostname: run.Hostname,
		Started:  run.Started,
		Finished: finished,
		Tasks:    make([]TaskRecord, 0, len(results)),
	}
	for _, result := range results {
		record := TaskRecord{
			Name:    result.Name,
			Status:  string(result.Status),
			Outputs: result.Outputs,
		}
		if result.Err != nil {
			record.Error = result.Err.Error()
		}
		meta.Tasks = append(meta.Tasks, record)
	}
	return meta
}

// Write serializes the metadata to path as indented JSON.
func (m *Metadata) Write(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Trace(err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Annotatef(err, "writing metadata %q", path)
	}
	return nil
}
