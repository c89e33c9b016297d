package pfile

import (
	"fmt"

	"github.com/grailbio/base/errors"

	"github.com/gghosh8495/p4est/comm"
	"github.com/gghosh8495/p4est/meta"
	"github.com/gghosh8495/p4est/pad"
)

// Ownership records whether a Context's partition vector was copied at
// open time or is only borrowed from a forest the caller must keep
// alive for the context's lifetime.
type Ownership int

const (
	// Owned means the Context holds its own copy of gfq.
	Owned Ownership = iota
	// Borrowed means gfq aliases a slice the caller owns.
	Borrowed
)

func (o Ownership) String() string {
	if o == Borrowed {
		return "borrowed"
	}
	return "owned"
}

type openMode int

const (
	modeWrite openMode = iota
	modeRead
)

// fileHeaderPad is the 16-byte alignment pad that always follows the
// fixed-width file header, since FileHeaderLen is itself a multiple of
// pad.Divisor.
var fileHeaderPad = func() []byte {
	_, b := pad.For(meta.FileHeaderLen)
	return b
}()

// HeaderRegionLen is the absolute offset of block 0: the file header
// plus its trailing alignment pad (offset 112 once the 47-byte user
// string is taken as authoritative; see DESIGN.md, Open Questions).
var HeaderRegionLen = int64(meta.FileHeaderLen + len(fileHeaderPad))

// Version is the library version string this package stamps into every
// file it creates.
const Version = "pforest/1.0"

// Context is the per-rank file handle: the logical cursor
// accessedBytes, the call counter, and the partition vector (owned or
// borrowed) that every subsequent block operation advances in lockstep
// across every rank in c.
type Context struct {
	c       comm.Communicator
	backend comm.FileBackend
	path    string
	mode    openMode

	globalNumCells int64
	gfq            []int64
	gfqOwnership   Ownership

	accessedBytes int64
	numCalls      int64
	closed        bool
}

// AccessedBytes returns the logical cursor past the file-header
// region.
func (fc *Context) AccessedBytes() int64 { return fc.accessedBytes }

// NumCalls returns the number of block operations completed so far,
// for diagnostics only.
func (fc *Context) NumCalls() int64 { return fc.numCalls }

// Rank returns the calling process's rank in fc's communicator.
func (fc *Context) Rank() int { return fc.c.Rank() }

func (fc *Context) advance(n int64) {
	fc.accessedBytes += n
	fc.numCalls++
}

// abort releases fc on behalf of the caller: on any failure return,
// the context has already been released. It is idempotent.
func (fc *Context) abort() {
	if fc.closed {
		return
	}
	fc.closed = true
	if fc.backend != nil {
		fc.backend.Close()
	}
}

// Close releases fc's file handle. It is the only valid operation on a
// Context after any other method has returned an error.
func (fc *Context) Close() error {
	if fc.closed {
		return nil
	}
	fc.closed = true
	if fc.gfqOwnership == Borrowed {
		fc.gfq = nil
	}
	return fc.backend.Close()
}

// effectiveGFQ resolves the partition vector a field operation should
// stripe across: an explicit per-call override, the context's own
// bound/owned vector, or — for an unbound read context with neither —
// a uniform partition computed fresh for this one call and not
// stored.
func (fc *Context) effectiveGFQ(override []int64) []int64 {
	if override != nil {
		validateGFQ(override, fc.c.Size(), fc.globalNumCells)
		return override
	}
	if fc.gfq != nil {
		return fc.gfq
	}
	return fc.uniformGFQ()
}

func (fc *Context) uniformGFQ() []int64 {
	size := int64(fc.c.Size())
	g := make([]int64, size+1)
	for r := int64(0); r <= size; r++ {
		g[r] = fc.globalNumCells * r / size
	}
	return g
}

// validateGFQ enforces the partition-vector invariants. A violation
// is a programmer error, not part of the I/O error surface, so it
// panics rather than returning an error.
func validateGFQ(gfq []int64, size int, globalNumCells int64) {
	if len(gfq) != size+1 {
		panic(fmt.Sprintf("pfile: gfq has length %d, want %d for %d ranks", len(gfq), size+1, size))
	}
	if gfq[0] != 0 {
		panic("pfile: gfq[0] != 0")
	}
	for i := 1; i < len(gfq); i++ {
		if gfq[i] < gfq[i-1] {
			panic("pfile: gfq is not monotonic")
		}
	}
	if gfq[len(gfq)-1] != globalNumCells {
		panic(fmt.Sprintf("pfile: gfq[P] = %d, want global_num_cells = %d", gfq[len(gfq)-1], globalNumCells))
	}
}

// padForLen is pad.For, made safe for a payload length that may not
// fit an int (a global field block can span more bytes than a single
// rank's local data): pad length depends only on n mod pad.Divisor.
func padForLen(n int64) (int, []byte) {
	return pad.For(int(n % int64(pad.Divisor)))
}

// writeAllAt and readAllAt classify a partial transfer as a count
// error ahead of whatever error the underlying primitive itself
// returned (often io.EOF on a short ReadAt): a short transfer is its
// own error class regardless of the underlying one.

func writeAllAt(b comm.FileBackend, p []byte, off int64) error {
	n, err := b.WriteAt(p, off)
	if n != len(p) {
		return errors.E(errors.Integrity, fmt.Sprintf("pfile: short write at offset %d: wrote %d of %d bytes", off, n, len(p)))
	}
	return err
}

func readAllAt(b comm.FileBackend, p []byte, off int64) error {
	n, err := b.ReadAt(p, off)
	if n != len(p) {
		return errors.E(errors.Integrity, fmt.Sprintf("pfile: short read at offset %d: read %d of %d bytes", off, n, len(p)))
	}
	return err
}

// classError renders a broadcast Class back into an error on a rank
// that has no local detail of its own (every rank but the one that
// observed rootErr directly).
func classError(class comm.Class, rootErr error) error {
	if rootErr != nil {
		return rootErr
	}
	switch class {
	case comm.ClassIO:
		return errors.E(errors.Invalid, "pfile: malformed file or block metadata")
	case comm.ClassCount:
		return errors.E(errors.Integrity, "pfile: short read or write")
	case comm.ClassArg:
		return errors.E(errors.Invalid, "pfile: invalid argument")
	default:
		return errors.E(errors.Invalid, "pfile: collective operation failed on another rank")
	}
}

// ClassOf re-exposes comm.ClassOf as this package's error-class
// conversion operation.
func ClassOf(err error) comm.Class { return comm.ClassOf(err) }

// ErrorString formats class as a human-readable string, kept close
// to an out-parameter shape: a nil out pointer is itself an argument
// error.
func ErrorString(class comm.Class, out *string) error {
	if out == nil {
		return errors.E(errors.Invalid, "pfile: ErrorString called with a nil output pointer")
	}
	switch class {
	case comm.ClassOK:
		*out = "success"
	case comm.ClassIO:
		*out = "malformed file or block metadata"
	case comm.ClassCount:
		*out = "short read or write"
	case comm.ClassArg:
		*out = "invalid argument"
	default:
		*out = "underlying I/O error"
	}
	return nil
}
