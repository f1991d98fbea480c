// Package blobstore implements the content-addressed file store
// backing a Sunburst inventory.
//
// Content lives under <base>/<algorithm>/<xx>/<rest>, where xx is the
// first two hex digits of the hash. Committed content carries the
// suffix ".b", in-progress uploads ".t", and advisory lock files ".l".
// Writers of the same hash are serialized by an exclusive flock on the
// lock file, within and across processes; distinct hashes proceed in
// parallel. Committed files are immutable and read without locking.
package blobstore

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/io7m-com/sunburst/pkg/errorcodes"
	"github.com/io7m-com/sunburst/pkg/inventory"
	"github.com/io7m-com/sunburst/pkg/model"
)

// File suffixes for the three on-disk roles of a blob path.
const (
	suffixBlob = ".b"
	suffixTemp = ".t"
	suffixLock = ".l"
)

// Store is a content-addressed blob store rooted at a directory.
type Store struct {
	base    string
	strings inventory.Strings
	logger  *slog.Logger
}

// New creates a store rooted at base. The directory tree is created
// lazily as blobs are written.
func New(base string, strings inventory.Strings, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{base: base, strings: strings, logger: logger}
}

// basePath returns the suffixless path for a hash.
func (s *Store) basePath(hash model.Hash) string {
	name := hash.HexValue()
	return filepath.Join(
		s.base,
		hash.Algorithm().String(),
		name[:2],
		name[2:],
	)
}

// BlobPath returns the committed content path for a hash. The file is
// not required to exist.
func (s *Store) BlobPath(hash model.Hash) string {
	return s.basePath(hash) + suffixBlob
}

// Write streams content into the store, verifying the received digest
// against blob.Hash before committing. On success the committed file
// is visible atomically; on any failure neither the committed file nor
// the temporary file survives.
func (s *Store) Write(blob model.Blob, reader io.Reader) (err error) {
	pathBase := s.basePath(blob.Hash)
	pathBlob := pathBase + suffixBlob
	pathTmp := pathBase + suffixTemp
	pathLock := pathBase + suffixLock

	if err := os.MkdirAll(filepath.Dir(pathBase), 0755); err != nil {
		return errorcodes.Wrap(errorcodes.ErrorIO, err.Error(), err)
	}

	lock, err := acquireLock(pathLock)
	if err != nil {
		return errorcodes.Wrap(errorcodes.ErrorIO, err.Error(), err)
	}
	defer func() {
		if releaseErr := lock.release(); releaseErr != nil && err == nil {
			err = errorcodes.Wrap(
				errorcodes.ErrorClosing,
				s.strings.Format("errorClosing"),
				releaseErr)
		}
	}()

	// The temporary file must not survive, whether the write failed or
	// the rename already moved it into place.
	defer os.Remove(pathTmp)

	return s.writeLocked(blob, reader, pathBlob, pathTmp)
}

func (s *Store) writeLocked(
	blob model.Blob,
	reader io.Reader,
	pathBlob string,
	pathTmp string,
) error {
	tmp, err := os.OpenFile(pathTmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errorcodes.Wrap(errorcodes.ErrorIO, err.Error(), err)
	}

	digest := blob.Hash.Algorithm().NewDigest()
	size, err := io.Copy(io.MultiWriter(tmp, digest), reader)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return errorcodes.Wrap(errorcodes.ErrorIO, err.Error(), err)
	}

	received, err := model.NewHash(blob.Hash.Algorithm(), digest.Sum(nil))
	if err != nil {
		return errorcodes.Wrap(errorcodes.ErrorIO, err.Error(), err)
	}

	s.logger.Debug("blob write",
		"expected", blob.Hash.HexValue(),
		"received", received.HexValue(),
		"size", size)

	if received != blob.Hash {
		return errorcodes.New(
			errorcodes.ErrorHashMismatch,
			s.strings.Format(
				"errorHashMismatch",
				blob.Hash.HexValue(),
				received.HexValue()))
	}
	if uint64(size) != blob.Size {
		return errorcodes.New(
			errorcodes.ErrorHashMismatch,
			s.strings.Format("errorSizeMismatch", blob.Size, size))
	}

	if err := os.Rename(pathTmp, pathBlob); err != nil {
		return errorcodes.Wrap(errorcodes.ErrorIO, err.Error(), err)
	}
	return nil
}

// Delete removes the committed file for a hash, under its lock. An
// already-absent file is not an error.
func (s *Store) Delete(hash model.Hash) (err error) {
	pathBase := s.basePath(hash)
	pathBlob := pathBase + suffixBlob
	pathLock := pathBase + suffixLock

	if err := os.MkdirAll(filepath.Dir(pathBase), 0755); err != nil {
		return errorcodes.Wrap(errorcodes.ErrorIO, err.Error(), err)
	}

	lock, err := acquireLock(pathLock)
	if err != nil {
		return errorcodes.Wrap(errorcodes.ErrorIO, err.Error(), err)
	}
	defer func() {
		if releaseErr := lock.release(); releaseErr != nil && err == nil {
			err = errorcodes.Wrap(
				errorcodes.ErrorClosing,
				s.strings.Format("errorClosing"),
				releaseErr)
		}
	}()

	if err := os.Remove(pathBlob); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errorcodes.Wrap(errorcodes.ErrorIO, err.Error(), err)
	}
	return nil
}

// Verify re-hashes the committed file for a hash and checks the result.
func (s *Store) Verify(hash model.Hash) error {
	file, err := os.Open(s.BlobPath(hash))
	if err != nil {
		return errorcodes.Wrap(errorcodes.ErrorIO, err.Error(), err)
	}
	defer file.Close()

	received, err := model.HashOf(hash.Algorithm(), file)
	if err != nil {
		return errorcodes.Wrap(errorcodes.ErrorIO, err.Error(), err)
	}
	if received != hash {
		return errorcodes.New(
			errorcodes.ErrorHashMismatch,
			s.strings.Format(
				"errorHashMismatch",
				hash.HexValue(),
				received.HexValue()))
	}
	return nil
}
