// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package verify recomputes checksum manifests and classifies each
// entry as verified, mismatched, or unreadable.
package verify

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo"

	"github.com/juju/confbackup/internal/manifest"
)

var logger = loggo.GetLogger("confbackup.verify")

// Status classifies the outcome of checking one manifest entry.
type Status string

const (
	// StatusSuccess means the recomputed digest matched the manifest.
	StatusSuccess Status = "success"

	// StatusMismatch means the file was readable but its digest
	// differed from the manifest.
	StatusMismatch Status = "mismatch"

	// StatusError means the file could not be read at all.
	StatusError Status = "error"
)

// Result records the outcome of checking one manifest entry.
type Result struct {
	// Manifest is the path of the manifest the entry came from.
	Manifest string

	// File is the resolved path of the checked file.
	File string

	// Algorithm is the digest algorithm used for the check.
	Algorithm manifest.Algorithm

	// Expected is the upper-hex digest recorded in the manifest.
	Expected string

	// Actual is the recomputed upper-hex digest, empty for error
	// results.
	Actual string

	// Size is the number of bytes read while recomputing the digest.
	Size int64

	// Status classifies the outcome.
	Status Status

	// Message holds the failure detail for error results.
	Message string
}

// Matched reports whether the entry verified cleanly.
func (r Result) Matched() bool {
	return r.Status == StatusSuccess
}

// Checker verifies the files referenced by checksum manifests.
type Checker struct {
	// Algorithm selects the digest algorithm. It defaults to
	// manifest.DefaultAlgorithm.
	Algorithm manifest.Algorithm

	// Open opens the identified file. It defaults to os.Open.
	Open func(filename string) (io.ReadCloser, error)

	// Digest produces the hex digest of the reader's content. It
	// defaults to streaming the reader through Algorithm.New().
	Digest func(io.Reader) (string, error)
}

// CheckFile parses the manifest at path and checks every entry,
// resolving relative filenames against the manifest's own directory.
// Only a manifest-level fault (unreadable or malformed file) is
// returned as an error; per-entry faults land in the results.
func (ck Checker) CheckFile(path string) ([]Result, error) {
	entries, err := manifest.ParseFile(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	dir := filepath.Dir(path)
	results := make([]Result, 0, len(entries))
	for _, entry := range entries {
		results = append(results, ck.checkEntry(path, dir, entry))
	}
	return results, nil
}

func (ck Checker) checkEntry(manifestPath, dir string, entry manifest.Entry) Result {
	algorithm := ck.Algorithm
	if algorithm == "" {
		algorithm = manifest.DefaultAlgorithm
	}
	open := ck.Open
	if open == nil {
		open = func(filename string) (io.ReadCloser, error) { return os.Open(filename) }
	}
	digest := ck.Digest
	if digest == nil {
		digest = func(r io.Reader) (string, error) { return hexDigest(algorithm, r) }
	}

	filename := entry.Filename
	if !filepath.IsAbs(filename) {
		filename = filepath.Join(dir, filename)
	}
	result := Result{
		Manifest:  manifestPath,
		File:      filename,
		Algorithm: algorithm,
		Expected:  entry.Checksum,
	}

	file, err := open(filename)
	if err != nil {
		result.Status = StatusError
		result.Message = err.Error()
		return result
	}
	defer file.Close()

	counted := &countingReader{reader: file}
	actual, err := digest(counted)
	result.Size = counted.count
	if err != nil {
		result.Status = StatusError
		result.Message = err.Error()
		return result
	}
	result.Actual = strings.ToUpper(actual)
	if strings.EqualFold(result.Actual, result.Expected) {
		result.Status = StatusSuccess
	} else {
		result.Status = StatusMismatch
	}
	return result
}

func hexDigest(algorithm manifest.Algorithm, r io.Reader) (string, error) {
	hasher := algorithm.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", errors.Trace(err)
	}
	return fmt.Sprintf("%X", hasher.Sum(nil)), nil
}

type countingReader struct {
	reader io.Reader
	count  int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.reader.Read(p)
	cr.count += int64(n)
	return n, err
}

// AllMatched reports whether every result verified cleanly. It is
// false for an empty result set, which can only arise from an empty
// manifest.
func AllMatched(results []Result) bool {
	if len(results) == 0 {
		return false
	}
	for _, result := range results {
		if !result.Matched() {
			return false
		}
	}
	return true
}
