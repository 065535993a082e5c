// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package backup

import (
	"archive/zip"
	"crypto/sha256"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/utils/v4/hash"
)

// ArchiveResult describes a finished archive.
type ArchiveResult struct {
	// ArchivePath is where the zip file was written.
	ArchivePath string

	// Checksum is the upper-case hex SHA-256 of the file bytes.
	Checksum string

	// Size is the file size in bytes.
	Size int64
}

// BuildArchive zips the whole staging directory into archivePath,
// hashing the bytes as they are written so the checksum matches the
// file without a second read. Entries are stored under rootPrefix so
// the archive unpacks into a single directory. An existing file at
// archivePath is replaced.
func BuildArchive(stagingDir, archivePath, rootPrefix string) (*ArchiveResult, error) {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return nil, errors.WithType(errors.Annotatef(err, "creating archive %q", archivePath), ErrArchiveFailed)
	}
	hasher := sha256.New()
	hashingWriter := hash.NewHashingWriter(archiveFile, hasher)
	if err := writeZip(hashingWriter, stagingDir, rootPrefix); err != nil {
		archiveFile.Close()
		return nil, errors.WithType(errors.Annotate(err, "writing archive"), ErrArchiveFailed)
	}
	// The digest covers only what the zip writer has flushed, so the
	// sum must be taken after writeZip closes it and before anything
	// else touches the file.
	checksum := strings.ToUpper(hash.NewValidFingerprint(hasher).Hex())
	if err := archiveFile.Close(); err != nil {
		return nil, errors.WithType(errors.Annotatef(err, "closing archive %q", archivePath), ErrArchiveFailed)
	}
	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, errors.WithType(errors.Annotate(err, "sizing archive"), ErrArchiveFailed)
	}
	return &ArchiveResult{
		ArchivePath: archivePath,
		Checksum:    checksum,
		Size:        info.Size(),
	}, nil
}

func writeZip(w io.Writer, stagingDir, rootPrefix string) error {
	zw := zip.NewWriter(w)
	err := filepath.Walk(stagingDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return errors.Trace(err)
		}
		rel, err := filepath.Rel(stagingDir, path)
		if err != nil {
			return errors.Trace(err)
		}
		if rel == "." {
			return nil
		}
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return errors.Annotatef(err, "archiving %q", rel)
		}
		header.Name = rootPrefix + "/" + filepath.ToSlash(rel)
		if info.IsDir() {
			header.Name += "/"
			_, err := zw.CreateHeader(header)
			return errors.Trace(err)
		}
		header.Method = zip.Deflate
		entry, err := zw.CreateHeader(header)
		if err != nil {
			return errors.Annotatef(err, "archiving %q", rel)
		}
		file, err := os.Open(path)
		if err != nil {
			return errors.Trace(err)
		}
		defer file.Close()
		_, err = io.Copy(entry, file)
		return errors.Annotatef(err, "archiving %q", rel)
	})
	if err != nil {
		zw.Close()
		return errors.Trace(err)
	}
	return errors.Trace(zw.Close())
}
