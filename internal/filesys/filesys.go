// Package filesys provides file system abstractions and utilities for
// domain-email-records. It defines interfaces for file operations and provides
// implementations that delegate to the standard library, making it easier to
// test code that interacts with the file system.
package filesys

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/ndejong/domain-email-records/internal/log"
)

// ErrFinished is returned when writing to an AtomicFile after Commit or Abort.
var ErrFinished = errors.New("atomic file already committed or aborted")

// ReadWriteFS is the tiny surface the *config loader* needs.
// It is intentionally **smaller** than os.File because callers
// never need random-access writes or directory iteration.
type ReadWriteFS interface {
	Stat(string) (fs.FileInfo, error)
	MkdirAll(string, os.FileMode) error
	Open(string) (*os.File, error)
	WriteFile(string, []byte, os.FileMode) error
}

// FileOps is what the domain list reader and the result file writer need.
type FileOps interface {
	Open(string) (*os.File, error)
	ReadFile(string) ([]byte, error)
	MkdirAll(string, os.FileMode) error
	CreateTemp(string, string) (*os.File, error)
	Rename(string, string) error
	Remove(string) error
	Chmod(string, os.FileMode) error
}

// OS returns a file system implementation that delegates to the standard library.
// The returned implementation satisfies both ReadWriteFS and FileOps interfaces.
func OS() OsFS {
	return OsFS{}
}

// OsFS implements both ReadWriteFS and FileOps against the local disk.
// All methods delegate to the standard library.
type OsFS struct{}

func (OsFS) Stat(p string) (fs.FileInfo, error)     { return os.Stat(p) }
func (OsFS) MkdirAll(p string, m os.FileMode) error { return os.MkdirAll(p, m) }
func (OsFS) Open(p string) (*os.File, error)        { return os.Open(p) }
func (OsFS) ReadFile(p string) ([]byte, error) {
	return os.ReadFile(p)
}
func (OsFS) WriteFile(p string, b []byte, m os.FileMode) error { return os.WriteFile(p, b, m) }
func (OsFS) CreateTemp(dir, pat string) (*os.File, error)      { return os.CreateTemp(dir, pat) }
func (OsFS) Rename(old, newName string) error                  { return os.Rename(old, newName) }
func (OsFS) Remove(p string) error                             { return os.Remove(p) }
func (OsFS) Chmod(p string, m os.FileMode) error               { return os.Chmod(p, m) }

var (
	_ ReadWriteFS = OsFS{}
	_ FileOps     = OsFS{}
)

// AtomicFile collects output in a temp file next to its destination so that
// readers of the destination never observe a partial result. A run that
// fails part way can Abort and leave any previous file untouched.
//
// Commit is crash-safe on local filesystems:
//
//  1. fsync(temp) + close
//  2. chmod(temp, perm)  (so rename doesn’t carry 0600 default)
//  3. rename(temp, dst)
//  4. fsync(dir)
type AtomicFile struct {
	fs   FileOps
	tmp  *os.File
	dst  string
	perm fs.FileMode
	done bool
}

// CreateAtomic opens a temp file in dst's directory.
func CreateAtomic(fsys FileOps, dst string, perm fs.FileMode) (*AtomicFile, error) {
	dir := filepath.Dir(dst)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	tmp, err := fsys.CreateTemp(dir, ".domain-email-records-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file for %s: %w", dst, err)
	}
	return &AtomicFile{fs: fsys, tmp: tmp, dst: dst, perm: perm}, nil
}

// Name returns the destination path.
func (f *AtomicFile) Name() string { return f.dst }

func (f *AtomicFile) Write(p []byte) (int, error) {
	if f.done {
		return 0, ErrFinished
	}
	return f.tmp.Write(p)
}

// Commit moves the written data into place. On failure the temp file is removed.
func (f *AtomicFile) Commit() error {
	if f.done {
		return ErrFinished
	}
	f.done = true

	err := f.tmp.Sync()
	err = multierr.Append(err, f.tmp.Close())
	if err == nil {
		err = f.fs.Chmod(f.tmp.Name(), f.perm)
	}
	if err == nil {
		err = f.fs.Rename(f.tmp.Name(), f.dst)
	}
	if err != nil {
		f.remove()
		return fmt.Errorf("committing %s: %w", f.dst, err)
	}

	dir := filepath.Dir(f.dst)
	if d, err := f.fs.Open(dir); err == nil {
		if syncErr := d.Sync(); syncErr != nil {
			log.Warn("failed to sync directory", "dir", dir, "error", syncErr)
		}
		if closeErr := d.Close(); closeErr != nil {
			log.Warn("failed to close directory", "dir", dir, "error", closeErr)
		}
	}
	return nil
}

// Abort discards the temp file. It is a no-op after Commit.
func (f *AtomicFile) Abort() error {
	if f.done {
		return nil
	}
	f.done = true
	err := f.tmp.Close()
	f.remove()
	return err
}

func (f *AtomicFile) remove() {
	if err := f.fs.Remove(f.tmp.Name()); err != nil {
		log.Warn("failed to remove temp file", "path", f.tmp.Name(), "error", err)
	}
}
