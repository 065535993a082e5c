// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package verify

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
)

// ErrNoManifests is used when a directory scan turns up no manifest
// files for the requested algorithm.
const ErrNoManifests = errors.ConstError("no manifest files found")

// Discover resolves target into the list of manifest files to check.
// A file target is returned as-is. A directory target is scanned for
// entries carrying the algorithm's extension, descending into
// subdirectories only when recursive is set; finding none is an error.
// The returned paths are sorted and free of duplicates.
func Discover(target string, suffix string, recursive bool) ([]string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !info.IsDir() {
		return []string{target}, nil
	}

	found := set.NewStrings()
	if recursive {
		walker := func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return errors.Trace(err)
			}
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
				found.Add(path)
			}
			return nil
		}
		if err := filepath.WalkDir(target, walker); err != nil {
			return nil, errors.Trace(err)
		}
	} else {
		entries, err := os.ReadDir(target)
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
				found.Add(filepath.Join(target, entry.Name()))
			}
		}
	}

	if found.IsEmpty() {
		return nil, errors.Annotatef(ErrNoManifests, "directory %q", target)
	}
	logger.Debugf("found %d manifests under %q", found.Size(), target)
	return found.SortedValues(), nil
}
