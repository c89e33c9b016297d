package comm

import (
	"context"
	"os"

	"github.com/grailbio/base/errors"
)

// FileBackend is the collective file primitive: absolute-offset
// read-at/write-at plus close. Every FileBackend method is collective
// when called through pfile — each rank operates on its own byte range
// of the same logical file, at an offset the caller computes from the
// partition vector.
type FileBackend interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Close() error
}

// Mode selects how Opener.Open opens the file.
type Mode int

const (
	// Create creates a new file, truncating any existing one.
	Create Mode = iota
	// ReadOnly opens an existing file without modifying it.
	ReadOnly
	// Update opens an existing file for read-write without truncating
	// it, for a rank that needs to write into a file rank 0 already
	// created.
	Update
)

// Opener opens a FileBackend given a path, collectively: every rank in
// the group must call Open with the same path and Mode.
type Opener interface {
	Open(ctx context.Context, path string, mode Mode) (FileBackend, error)
}

// OSOpener opens local files with the standard library. It is the one
// stdlib-only component in this module's runtime path: none of the
// file abstractions available among this corpus's dependencies expose
// the caller-chosen absolute-offset ReadAt/WriteAt contract this
// package requires (see DESIGN.md), while *os.File provides it
// directly.
var OSOpener Opener = osOpener{}

type osOpener struct{}

func (osOpener) Open(ctx context.Context, path string, mode Mode) (FileBackend, error) {
	var (
		f   *os.File
		err error
	)
	switch mode {
	case Create:
		f, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	case ReadOnly:
		f, err = os.OpenFile(path, os.O_RDONLY, 0)
	case Update:
		f, err = os.OpenFile(path, os.O_RDWR, 0)
	default:
		return nil, errors.E(errors.Invalid, "comm: unknown open mode")
	}
	if err != nil {
		return nil, err
	}
	return osBackend{f}, nil
}

type osBackend struct{ f *os.File }

func (b osBackend) ReadAt(p []byte, off int64) (int, error)  { return b.f.ReadAt(p, off) }
func (b osBackend) WriteAt(p []byte, off int64) (int, error) { return b.f.WriteAt(p, off) }
func (b osBackend) Close() error                             { return b.f.Close() }
