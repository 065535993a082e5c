// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backup_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/confbackup/internal/backup"
	"github.com/juju/confbackup/internal/capture"
)

type metadataSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&metadataSuite{})

func (s *metadataSuite) run() (*backup.RunContext, time.Time) {
	started := time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC)
	return &backup.RunContext{
		ID:       "confbackup-web01-20260825-093000",
		Hostname: "web01",
		Started:  started,
	}, started.Add(42 * time.Second)
}

func (s *metadataSuite) TestNewMetadata(c *gc.C) {
	run, finished := s.run()
	results := []capture.Result{{
		Name:    "rules export",
		Status:  capture.StatusSucceeded,
		Outputs: []string{"rules/ruleset.txt"},
	}, {
		Name:   "web state backup",
		Status: capture.StatusFailed,
		Err:    errors.New("webadmin missing"),
	}}

	meta := backup.NewMetadata(run, results, finished)
	c.Check(meta.ID, gc.Equals, run.ID)
	c.Check(meta.Hostname, gc.Equals, "web01")
	c.Check(meta.Started, gc.Equals, run.Started)
	c.Check(meta.Finished, gc.Equals, finished)
	c.Check(meta.Tasks, jc.DeepEquals, []backup.TaskRecord{{
		Name:    "rules export",
		Status:  "succeeded",
		Outputs: []string{"rules/ruleset.txt"},
	}, {
		Name:   "web state backup",
		Status: "failed",
		Error:  "webadmin missing",
	}})
}

func (s *metadataSuite) TestNewMetadataNoTasks(c *gc.C) {
	run, finished := s.run()
	meta := backup.NewMetadata(run, nil, finished)
	c.Check(meta.Tasks, gc.HasLen, 0)
}

func (s *metadataSuite) TestWriteRoundTrips(c *gc.C) {
	run, finished := s.run()
	meta := backup.NewMetadata(run, []capture.Result{{
		Name:    "config copy",
		Status:  capture.StatusSucceeded,
		Outputs: []string{"config/deploy.yaml"},
	}}, finished)

	path := filepath.Join(c.MkDir(), "metadata.json")
	err := meta.Write(path)
	c.Assert(err, jc.ErrorIsNil)

	data, err := os.ReadFile(path)
	c.Assert(err, jc.ErrorIsNil)
	var read backup.Metadata
	err = json.Unmarshal(data, &read)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(read, jc.DeepEquals, *meta)
}

func (s *metadataSuite) TestWriteOmitsEmptyFields(c *gc.C) {
	run, finished := s.run()
	meta := backup.NewMetadata(run, []capture.Result{{
		Name:   "rules export",
		Status: capture.StatusFailed,
		Err:    errors.New("nft missing"),
	}}, finished)

	path := filepath.Join(c.MkDir(), "metadata.json")
	err := meta.Write(path)
	c.Assert(err, jc.ErrorIsNil)

	data, err := os.ReadFile(path)
	c.Assert(err, jc.ErrorIsNil)
	content := string(data)
	c.Check(content, gc.Not(jc.Contains), `"outputs"`)
	c.Check(content, jc.Contains, `"error": "nft missing"`)
}

func (s *metadataSuite) TestWriteFailure(c *gc.C) {
	run, finished := s.run()
	meta := backup.NewMetadata(run, nil, finished)
	err := meta.Write(filepath.Join(c.MkDir(), "missing", "metadata.json"))
	c.Assert(err, gc.ErrorMatches, `writing metadata ".*": .*`)
}
