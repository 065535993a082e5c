// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package manifest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
)

// Algorithm identifies a supported checksum algorithm. Its string form
// doubles as the manifest filename extension, so a sha256 manifest for
// "runid.zip" is named "runid.zip.sha256".
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	SHA384 Algorithm = "sha384"
	SHA512 Algorithm = "sha512"

	// DefaultAlgorithm is used wherever the caller does not name one.
	DefaultAlgorithm = SHA256
)

var hashConstructors = map[Algorithm]func() hash.Hash{
	MD5:    md5.New,
	SHA1:   sha1.New,
	SHA256: sha256.New,
	SHA384: sha512.New384,
	SHA512: sha512.New,
}

// ParseAlgorithm converts a user-provided name into an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	alg := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := hashConstructors[alg]; !ok {
		return "", errors.NotValidf("checksum algorithm %q", name)
	}
	return alg, nil
}

// New returns a fresh hash for the algorithm. The receiver must be one
// of the package constants, as returned by ParseAlgorithm.
func (a Algorithm) New() hash.Hash {
	return hashConstructors[a]()
}

// Suffix returns the manifest filename extension for the algorithm,
// including the leading dot.
func (a Algorithm) Suffix() string {
	return "." + string(a)
}

// SupportedAlgorithms lists the recognized algorithm names in sorted
// order, for help text and error messages.
func SupportedAlgorithms() []string {
	names := set.NewStrings()
	for alg := range hashConstructors {
		names.Add(string(alg))
	}
	return names.SortedValues()
}
