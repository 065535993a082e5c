// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"os"
	"runtime"

	"github.com/juju/cmd/v3"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("confbackup.cmd")

// version is the confbackup release, reported by "confbackup version".
const version = "1.0.0"

const (
	// exitErr is returned when confbackup has been invoked in an
	// invalid way.
	exitErr = 2
	// exitPanic is returned when we exit due to an unhandled panic.
	exitPanic = 3
)

var confbackupDoc = `
confbackup captures the operational configuration of a host into a
timestamped staging directory, packages the directory into a single
zip archive, records the archive digest in a checksum manifest, and
publishes archive and manifest to a durable destination.

The matching verify subcommand recomputes manifest digests later, so
a stored archive can be checked for corruption before anyone needs to
restore from it.
`

// NewConfbackupCommand returns the root confbackup command with all
// subcommands registered.
func NewConfbackupCommand() cmd.Command {
	confbackupCmd := cmd.NewSuperCommand(cmd.SuperCommandParams{
		Name:    "confbackup",
		Doc:     confbackupDoc,
		Purpose: "Back up and verify host configuration.",
		Version: version,
		Log:     &cmd.Log{},
	})
	confbackupCmd.Register(newCreateCommand())
	confbackupCmd.Register(newVerifyCommand())
	return confbackupCmd
}

func main() {
	os.Exit(Main(os.Args))
}

// Main is not redundant with main(), because it provides an entry
// point for testing with arbitrary command line arguments.
func Main(args []string) int {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			buf = buf[:runtime.Stack(buf, false)]
			logger.Criticalf("Unhandled panic: \n%v\n%s", r, buf)
			os.Exit(exitPanic)
		}
	}()

	ctx, err := cmd.DefaultContext()
	if err != nil {
		cmd.WriteError(os.Stderr, err)
		return exitErr
	}
	return cmd.Main(NewConfbackupCommand(), ctx, args[1:])
}
