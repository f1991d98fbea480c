package blobstore

import (
	"os"

	"golang.org/x/sys/unix"
)

// fileLock is an exclusive advisory lock held on an open lock file.
// flock locks are per-open-file, so the lock serializes writers both
// within this process and across processes sharing the filesystem.
type fileLock struct {
	file *os.File
}

// acquireLock opens (creating if necessary) the lock file and blocks
// until the exclusive lock is held.
func acquireLock(path string) (*fileLock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX); err != nil {
		file.Close()
		return nil, err
	}
	return &fileLock{file: file}, nil
}

// release drops the lock and closes the lock file. The lock file
// itself is left in place; removing it would race other processes
// opening it.
func (l *fileLock) release() error {
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	if closeErr := l.file.Close(); err == nil {
		err = closeErr
	}
	return err
}
