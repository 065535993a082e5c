// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package capture runs the fixed sequence of configuration capture
// tasks that populates a backup run's staging directory. Tasks are
// declarative table entries executed strictly in order; a failing task
// never stops the run, it only marks its own result.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/utils/v4/exec"
)

var logger = loggo.GetLogger("confbackup.capture")

// CommandRunner executes shell commands and reports their results,
// including stdout, stderr and the exit code.
type CommandRunner interface {
	RunCommands(run exec.RunParams) (*exec.ExecResponse, error)
}

type defaultRunner struct{}

func (defaultRunner) RunCommands(run exec.RunParams) (*exec.ExecResponse, error) {
	return exec.RunCommands(run)
}

// Tools names the external utilities and inputs the standard capture
// tasks work with.
type Tools struct {
	// RulesTool is the path of the rule-export utility.
	RulesTool string

	// WebAdmin is the path of the web administration utility.
	WebAdmin string

	// WebBackupRoot is the directory the web tier writes its own
	// state backups under.
	WebBackupRoot string

	// SourceConfig is the configuration file captured verbatim.
	SourceConfig string
}

// Env carries the shared facilities a capture task runs against.
type Env struct {
	// RunID is the identifier of the enclosing backup run.
	RunID string

	// StagingDir is the run's staging directory. Each task writes
	// beneath its own subdirectory of it.
	StagingDir string

	// Transcript receives the console output of every command a task
	// runs.
	Transcript io.Writer

	// Runner executes shell commands. It defaults to running them on
	// the host.
	Runner CommandRunner

	// Tools locates the external utilities tasks invoke.
	Tools Tools
}

// RunCommand executes one shell command line, copying its console
// output to the transcript. A non-zero exit status is an error.
func (env *Env) RunCommand(commands string) (*exec.ExecResponse, error) {
	runner := env.Runner
	if runner == nil {
		runner = defaultRunner{}
	}
	logger.Debugf("running %q", commands)
	resp, err := runner.RunCommands(exec.RunParams{Commands: commands})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if env.Transcript != nil {
		fmt.Fprintf(env.Transcript, "$ %s\n", commands)
		env.Transcript.Write(resp.Stdout)
		env.Transcript.Write(resp.Stderr)
	}
	if resp.Code != 0 {
		return resp, errors.Errorf("command %q exited %d: %s",
			commands, resp.Code, bytes.TrimSpace(resp.Stderr))
	}
	return resp, nil
}

// Task is one step of the capture sequence.
type Task struct {
	// Name identifies the task in logs and results.
	Name string

	// Subdir is the staging subdirectory the task writes under.
	Subdir string

	// Run performs the capture. It returns the paths of the files it
	// produced, relative to the staging directory.
	Run func(ctx context.Context, env *Env, outDir string) ([]string, error)
}

// Status is the terminal state of a finished capture task.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Result records the terminal outcome of one capture task. Results
// are created final; nothing mutates them afterwards.
type Result struct {
	Name    string
	Status  Status
	Outputs []string
	Err     error
}

// Runner executes capture tasks in order, isolating their failures
// from each other and from the enclosing run.
type Runner struct {
	// Notify, when set, observes each result as it is produced.
	Notify func(Result)
}

// Run executes the tasks sequentially against env and returns one
// result per task, in task order. Run itself never fails; every
// failure belongs to exactly one task.
func (r Runner) Run(ctx context.Context, env *Env, tasks []Task) []Result {
	results := make([]Result, 0, len(tasks))
	for _, task := range tasks {
		result := r.runOne(ctx, env, task)
		if r.Notify != nil {
			r.Notify(result)
		}
		results = append(results, result)
	}
	return results
}

func (r Runner) runOne(ctx context.Context, env *Env, task Task) (result Result) {
	result.Name = task.Name
	defer func() {
		if panicked := recover(); panicked != nil {
			logger.Errorf("task %q panicked: %v", task.Name, panicked)
			result = Result{
				Name:   task.Name,
				Status: StatusFailed,
				Err:    errors.Errorf("task panicked: %v", panicked),
			}
		}
	}()

	outDir := filepath.Join(env.StagingDir, task.Subdir)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		result.Status = StatusFailed
		result.Err = errors.Trace(err)
		return result
	}
	outputs, err := task.Run(ctx, env, outDir)
	if err != nil {
		result.Status = StatusFailed
		result.Err = errors.Trace(err)
		return result
	}
	result.Status = StatusSucceeded
	result.Outputs = outputs
	return result
}
