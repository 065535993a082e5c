// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backup

import (
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
	"golang.org/x/sys/unix"
)

// MinFreeSpace is the least free space the backup volume may have for
// a run to start. Captures, the archive and the manifest all land on
// it before anything is published.
const MinFreeSpace = 2 * humanize.GiByte

const probeAttempts = 3

var probeDelay = 2 * time.Second

// Patchable syscall seams.
var (
	euid = os.Geteuid

	statfs = func(path string) (uint64, error) {
		var stat unix.Statfs_t
		if err := unix.Statfs(path, &stat); err != nil {
			return 0, err
		}
		return stat.Bavail * uint64(stat.Bsize), nil
	}

	statDir = func(path string) error {
		_, err := os.Stat(path)
		return err
	}
)

// checkPrivileges refuses to run without root. The capture tasks read
// system state that is not visible to ordinary users, and a partial
// backup is worse than a loud failure.
func checkPrivileges() error {
	if uid := euid(); uid != 0 {
		return errors.Unauthorizedf("must run as root, not uid %d", uid)
	}
	return nil
}

// checkFreeSpace verifies the volume holding dir has room for a run.
func checkFreeSpace(dir string) error {
	free, err := statfs(dir)
	if err != nil {
		return errors.Annotatef(err, "checking free space on %q", dir)
	}
	if free < MinFreeSpace {
		return errors.Annotatef(ErrInsufficientSpace,
			"%s free on %q, need at least %s",
			humanize.IBytes(free), dir, humanize.IBytes(MinFreeSpace))
	}
	return nil
}

// IsRemoteDestination reports whether dest names a network share in
// the //host/share form. Backslashed spellings are accepted.
func IsRemoteDestination(dest string) bool {
	return strings.HasPrefix(normalizeDest(dest), "//")
}

func normalizeDest(dest string) string {
	return strings.ReplaceAll(dest, `\`, "/")
}

// shareRoot reduces a //host/share/sub/dir destination to its
// //host/share mount root, the part whose reachability matters.
func shareRoot(dest string) string {
	normalized := normalizeDest(dest)
	parts := strings.Split(strings.TrimPrefix(normalized, "//"), "/")
	if len(parts) < 2 {
		return normalized
	}
	return "//" + parts[0] + "/" + parts[1]
}

// checkDestination verifies a network-share destination is reachable
// before any capture work starts. Local destinations are created at
// publish time and need no probe.
func checkDestination(dest string, clk clock.Clock) error {
	if !IsRemoteDestination(dest) {
		return nil
	}
	root := shareRoot(dest)
	err := retry.Call(retry.CallArgs{
		Func: func() error { return statDir(root) },
		NotifyFunc: func(err error, attempt int) {
			logger.Debugf("destination probe attempt %d: %v", attempt, err)
		},
		Attempts: probeAttempts,
		Delay:    probeDelay,
		Clock:    clk,
	})
	if err != nil {
		return errors.Annotatef(ErrDestinationUnreachable, "%q: %v", root, retry.LastError(err))
	}
	return nil
}
