// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package capture_test

import (
	"bytes"
	"context"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/utils/v4/exec"
	gc "gopkg.in/check.v1"

	"github.com/juju/confbackup/internal/capture"
)

// stubRunner fakes shell execution, recording every command line.
type stubRunner struct {
	stub *testing.Stub

	// hook, when set, produces the response (and any side effects)
	// for each command.
	hook func(command string) (*exec.ExecResponse, error)
}

func (r *stubRunner) RunCommands(run exec.RunParams) (*exec.ExecResponse, error) {
	r.stub.AddCall("RunCommands", run.Commands)
	if err := r.stub.NextErr(); err != nil {
		return nil, err
	}
	if r.hook != nil {
		return r.hook(run.Commands)
	}
	return &exec.ExecResponse{}, nil
}

func (r *stubRunner) commands() []string {
	var commands []string
	for _, call := range r.stub.Calls() {
		commands = append(commands, call.Args[0].(string))
	}
	return commands
}

type runnerSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&runnerSuite{})

func recorderTask(name string, order *[]string, err error) capture.Task {
	return capture.Task{
		Name:   name,
		Subdir: name,
		Run: func(ctx context.Context, env *capture.Env, outDir string) ([]string, error) {
			*order = append(*order, name)
			if err != nil {
				return nil, err
			}
			return []string{name + "/out"}, nil
		},
	}
}

func (s *runnerSuite) TestRunSequential(c *gc.C) {
	var order []string
	tasks := []capture.Task{
		recorderTask("one", &order, nil),
		recorderTask("two", &order, nil),
		recorderTask("three", &order, nil),
	}
	env := &capture.Env{StagingDir: c.MkDir()}

	results := capture.Runner{}.Run(context.Background(), env, tasks)
	c.Assert(results, gc.HasLen, 3)
	c.Check(order, jc.DeepEquals, []string{"one", "two", "three"})
	for i, result := range results {
		c.Check(result.Name, gc.Equals, tasks[i].Name)
		c.Check(result.Status, gc.Equals, capture.StatusSucceeded)
		c.Check(result.Err, jc.ErrorIsNil)
	}
}

func (s *runnerSuite) TestRunIsolatesFailures(c *gc.C) {
	var order []string
	boom := errors.New("tool exploded")
	tasks := []capture.Task{
		recorderTask("one", &order, nil),
		recorderTask("two", &order, boom),
		recorderTask("three", &order, nil),
	}
	env := &capture.Env{StagingDir: c.MkDir()}

	results := capture.Runner{}.Run(context.Background(), env, tasks)
	c.Assert(results, gc.HasLen, 3)
	c.Check(order, jc.DeepEquals, []string{"one", "two", "three"})
	c.Check(results[0].Status, gc.Equals, capture.StatusSucceeded)
	c.Check(results[1].Status, gc.Equals, capture.StatusFailed)
	c.Check(results[1].Err, gc.ErrorMatches, "tool exploded")
	c.Check(results[2].Status, gc.Equals, capture.StatusSucceeded)
}

func (s *runnerSuite) TestRunRecoversPanics(c *gc.C) {
	tasks := []capture.Task{{
		Name:   "volatile",
		Subdir: "volatile",
		Run: func(ctx context.Context, env *capture.Env, outDir string) ([]string, error) {
			panic("kaboom")
		},
	}, {
		Name:   "steady",
		Subdir: "steady",
		Run: func(ctx context.Context, env *capture.Env, outDir string) ([]string, error) {
			return nil, nil
		},
	}}
	env := &capture.Env{StagingDir: c.MkDir()}

	results := capture.Runner{}.Run(context.Background(), env, tasks)
	c.Assert(results, gc.HasLen, 2)
	c.Check(results[0].Status, gc.Equals, capture.StatusFailed)
	c.Check(results[0].Err, gc.ErrorMatches, "task panicked: kaboom")
	c.Check(results[1].Status, gc.Equals, capture.StatusSucceeded)
}

func (s *runnerSuite) TestRunNotifies(c *gc.C) {
	var order []string
	var notified []capture.Result
	tasks := []capture.Task{
		recorderTask("one", &order, nil),
		recorderTask("two", &order, errors.New("nope")),
	}
	env := &capture.Env{StagingDir: c.MkDir()}

	runner := capture.Runner{Notify: func(result capture.Result) {
		notified = append(notified, result)
	}}
	results := runner.Run(context.Background(), env, tasks)
	c.Check(notified, jc.DeepEquals, results)
}

func (s *runnerSuite) TestRunCreatesTaskSubdir(c *gc.C) {
	staging := c.MkDir()
	var seen string
	tasks := []capture.Task{{
		Name:   "probe",
		Subdir: "probe",
		Run: func(ctx context.Context, env *capture.Env, outDir string) ([]string, error) {
			seen = outDir
			return nil, nil
		},
	}}
	env := &capture.Env{StagingDir: staging}

	results := capture.Runner{}.Run(context.Background(), env, tasks)
	c.Assert(results[0].Status, gc.Equals, capture.StatusSucceeded)
	c.Check(seen, gc.Equals, filepath.Join(staging, "probe"))
	c.Check(seen, jc.IsDirectory)
}

func (s *runnerSuite) TestRunCommandWritesTranscript(c *gc.C) {
	var transcript bytes.Buffer
	runner := &stubRunner{
		stub: &testing.Stub{},
		hook: func(string) (*exec.ExecResponse, error) {
			return &exec.ExecResponse{
				Stdout: []byte("out line\n"),
				Stderr: []byte("err line\n"),
			}, nil
		},
	}
	env := &capture.Env{Transcript: &transcript, Runner: runner}

	_, err := env.RunCommand("true")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(transcript.String(), gc.Equals, "$ true\nout line\nerr line\n")
}

func (s *runnerSuite) TestRunCommandNonZeroExit(c *gc.C) {
	var transcript bytes.Buffer
	runner := &stubRunner{
		stub: &testing.Stub{},
		hook: func(string) (*exec.ExecResponse, error) {
			return &exec.ExecResponse{
				Code:   127,
				Stderr: []byte("bash: frob: command not found\n"),
			}, nil
		},
	}
	env := &capture.Env{Transcript: &transcript, Runner: runner}

	_, err := env.RunCommand("frob")
	c.Assert(err, gc.ErrorMatches, `command "frob" exited 127: .*command not found.*`)
	// The failed command's output still reaches the transcript.
	c.Check(transcript.String(), jc.Contains, "command not found")
}

func (s *runnerSuite) TestRunCommandExecError(c *gc.C) {
	runner := &stubRunner{stub: &testing.Stub{}}
	runner.stub.SetErrors(errors.New("fork failed"))
	env := &capture.Env{Runner: runner}

	_, err := env.RunCommand("true")
	c.Assert(err, gc.ErrorMatches, "fork failed")
}
