// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package manifest implements the checksum manifest wire format shared
// by the backup pipeline and the verifier. A manifest is a plain text
// file of "CHECKSUM *FILENAME" lines, with blank lines and comment
// lines (leading '#' or ';') ignored. The algorithm is not encoded in
// the lines; it is carried by the manifest filename extension.
package manifest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/juju/errors"
)

// ErrMalformedManifest is used when a manifest contains a line that is
// neither blank, a comment, nor a checksum entry. The malformed line
// invalidates the whole file.
const ErrMalformedManifest = errors.ConstError("malformed manifest")

// Entry is a single checksum line.
type Entry struct {
	// Checksum is the hex-encoded digest, normalized to upper case.
	Checksum string

	// Filename names the checksummed file. Relative names are resolved
	// against the directory holding the manifest, never the caller's
	// working directory.
	Filename string
}

// Line renders the entry in its wire form, "CHECKSUM *FILENAME". The
// '*' marker is the conventional flag for binary (byte-exact) digests.
func (e Entry) Line() string {
	return fmt.Sprintf("%s *%s", strings.ToUpper(e.Checksum), e.Filename)
}

// Parse reads every entry from a manifest. It stops at the first
// malformed line and returns ErrMalformedManifest naming the line.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		entry, ok, err := parseLine(scanner.Text())
		if err != nil {
			return nil, errors.Annotatef(err, "line %d", lineNum)
		}
		if ok {
			entries = append(entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	return entries, nil
}

// ParseFile opens and parses the manifest at path.
func ParseFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	entries, err := Parse(file)
	if err != nil {
		return nil, errors.Annotatef(err, "manifest %q", path)
	}
	return entries, nil
}

// parseLine tokenizes one manifest line. The second return value is
// false for blank and comment lines.
func parseLine(line string) (Entry, bool, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || trimmed[0] == '#' || trimmed[0] == ';' {
		return Entry{}, false, nil
	}

	// First token is a run of hex digits.
	end := 0
	for end < len(trimmed) && isHexDigit(trimmed[end]) {
		end++
	}
	if end == 0 {
		return Entry{}, false, errors.Annotatef(ErrMalformedManifest, "missing checksum in %q", line)
	}
	checksum := trimmed[:end]

	// Then at least one space or tab before the filename.
	rest := trimmed[end:]
	separated := strings.TrimLeft(rest, " \t")
	if len(separated) == len(rest) {
		return Entry{}, false, errors.Annotatef(ErrMalformedManifest, "missing separator in %q", line)
	}

	// An optional '*' marks a binary-mode digest.
	filename := strings.TrimSpace(strings.TrimPrefix(separated, "*"))
	if filename == "" {
		return Entry{}, false, errors.Annotatef(ErrMalformedManifest, "missing filename in %q", line)
	}

	return Entry{
		Checksum: strings.ToUpper(checksum),
		Filename: filename,
	}, true, nil
}

func isHexDigit(c byte) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case c >= 'a' && c <= 'f':
		return true
	case c >= 'A' && c <= 'F':
		return true
	}
	return false
}

// Write renders the entries to w, one line each.
func Write(w io.Writer, entries []Entry) error {
	for _, entry := range entries {
		if _, err := fmt.Fprintln(w, entry.Line()); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// WriteFile writes a manifest at path holding the entries, replacing
// any existing file.
func WriteFile(path string, entries []Entry) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	if err := Write(file, entries); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(file.Sync())
}
