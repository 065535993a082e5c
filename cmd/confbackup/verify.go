// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"

	"github.com/juju/confbackup/internal/manifest"
	"github.com/juju/confbackup/internal/verify"
)

var verifyDoc = `
verify recomputes the digest of every file referenced by a checksum
manifest and compares it against the recorded value. The target is
either a single manifest file or a directory to scan for manifests
named *.<algorithm>, optionally recursing into subdirectories.

Every file is classified as matched, mismatched, or unreadable, and
verify exits zero only when every file in every manifest matched. A
malformed manifest fails that manifest alone; any remaining manifests
are still checked.

With --quiet nothing is printed; the exit code alone carries the
outcome, which suits cron and scripted health checks.
`

const verifyExamples = `
    confbackup verify /srv/backups/confbackup-web01-20260825-093000/confbackup-web01-20260825-093000.zip.sha256
    confbackup verify /srv/backups --recursive
    confbackup verify //nas/backups/web01 --quiet
`

func newVerifyCommand() cmd.Command {
	return &verifyCommand{}
}

// verifyCommand revalidates checksum manifests.
type verifyCommand struct {
	cmd.CommandBase

	target    string
	algorithm string
	recursive bool
	quiet     bool
}

// Info implements cmd.Command.
func (c *verifyCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:     "verify",
		Args:     "<manifest-file-or-directory>",
		Purpose:  "Check archives against their checksum manifests.",
		Doc:      verifyDoc,
		Examples: verifyExamples,
		SeeAlso:  []string{"create"},
	}
}

// SetFlags implements cmd.Command.
func (c *verifyCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.algorithm, "algorithm", string(manifest.DefaultAlgorithm), "Digest algorithm the manifests use")
	f.BoolVar(&c.recursive, "recursive", false, "Scan directories recursively for manifests")
	f.BoolVar(&c.quiet, "quiet", false, "Print nothing; report through the exit code only")
}

// Init implements cmd.Command.
func (c *verifyCommand) Init(args []string) error {
	if len(args) < 1 {
		return errors.New("must specify a manifest file or directory")
	}
	c.target = args[0]
	return cmd.CheckEmpty(args[1:])
}

// Run implements cmd.Command.
func (c *verifyCommand) Run(ctx *cmd.Context) error {
	algorithm, err := manifest.ParseAlgorithm(c.algorithm)
	if err != nil {
		return errors.Trace(err)
	}

	manifests, err := verify.Discover(c.target, algorithm.Suffix(), c.recursive)
	if err != nil {
		return c.fail(errors.Trace(err))
	}

	checker := verify.Checker{Algorithm: algorithm}
	var results []verify.Result
	allMatched := true
	for _, path := range manifests {
		fileResults, err := checker.CheckFile(path)
		if err != nil {
			// A malformed or unreadable manifest fails that manifest
			// alone; the rest are still checked.
			allMatched = false
			if !c.quiet {
				ctx.Infof("%s: %v", path, err)
			}
			continue
		}
		if !verify.AllMatched(fileResults) {
			allMatched = false
		}
		if len(fileResults) == 0 && !c.quiet {
			ctx.Infof("%s: no entries", path)
		}
		results = append(results, fileResults...)
	}

	if !c.quiet && len(results) > 0 {
		verify.WriteReport(ctx.Stdout, results)
	}
	if !allMatched {
		return c.fail(errors.New("verification failed"))
	}
	return nil
}

// fail maps an error to silent failure when --quiet is in force. The
// exit code is the same either way.
func (c *verifyCommand) fail(err error) error {
	if c.quiet {
		return cmd.ErrSilent
	}
	return err
}
