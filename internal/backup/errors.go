// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backup

import (
	"github.com/juju/errors"
)

const (
	// ErrInsufficientSpace is used when the backup volume has less
	// free space than a run is allowed to start with.
	ErrInsufficientSpace = errors.ConstError("insufficient free space")

	// ErrDestinationUnreachable is used when the publish destination
	// cannot be reached during preflight.
	ErrDestinationUnreachable = errors.ConstError("destination unreachable")

	// ErrArchiveFailed is used when packaging the staging directory
	// fails. It is fatal to the run.
	ErrArchiveFailed = errors.ConstError("archive creation failed")

	// ErrTransferFailed is used when copying the archive or manifest
	// to the destination fails. It is fatal to the run and leaves the
	// local archive in place.
	ErrTransferFailed = errors.ConstError("transfer to destination failed")
)
