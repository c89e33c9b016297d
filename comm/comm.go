// Package comm defines the external collaborators the serialization
// core consumes but does not implement: a collective Communicator
// (broadcast, logical-OR all-reduce, rank/size) and a FileBackend
// (collective open/create/close and read-at/write-at at caller-chosen
// absolute offsets). The actual parallel transport belongs to the
// surrounding job, not to this library. This package carries the
// interfaces plus one local, single-process implementation of each,
// used by single-rank callers and by this module's own tests.
package comm

import (
	"context"
	"encoding/binary"

	"github.com/grailbio/base/errors"
)

// BroadcastBytes generalizes the fixed-width broadcast idiom below to
// a variable-length payload: root's payload, of whatever length, is
// replicated to every rank. It is a two-step collective (length, then
// data) so that non-root ranks do not need to know the payload length
// in advance, unlike the fixed-width Bcast they call underneath.
func BroadcastBytes(ctx context.Context, c Communicator, root int, payload []byte) ([]byte, error) {
	var lenBuf [8]byte
	if c.Rank() == root {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(payload)))
	}
	if err := c.Bcast(ctx, lenBuf[:], root); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint64(lenBuf[:])
	buf := make([]byte, n)
	if c.Rank() == root {
		copy(buf, payload)
	}
	if err := c.Bcast(ctx, buf, root); err != nil {
		return nil, err
	}
	return buf, nil
}

// Communicator is the collective-operations collaborator. Every method
// is collective: every rank in the group must call it with matching
// arguments at the same logical step.
type Communicator interface {
	// Rank returns this process's rank in [0, Size).
	Rank() int
	// Size returns the number of ranks in the group.
	Size() int
	// Bcast copies buf from root to every rank's buf. On entry, buf on
	// root holds the value to send; buf on every other rank must have
	// the same length and is overwritten with the broadcast value.
	Bcast(ctx context.Context, buf []byte, root int) error
	// AllReduceOr returns the logical OR of v across every rank,
	// identically on every rank.
	AllReduceOr(ctx context.Context, v bool) (bool, error)
}

// Class is the canonical error class that must be broadcast from rank
// 0 so that every rank can abort identically, even though only rank 0
// observed the original error value.
type Class int32

const (
	// ClassOK means the rank-0-only operation succeeded.
	ClassOK Class = iota
	// ClassIO covers every malformed-file-format condition: bad magic,
	// missing terminator, malformed size field, size/element-size
	// mismatch, truncation.
	ClassIO
	// ClassCount is a partial read or write, not an underlying
	// transport error class.
	ClassCount
	// ClassArg is a programmer error in the public API surface (e.g. a
	// nil string buffer to the error formatter). ClassOf never returns
	// it: such errors carry errors.Invalid and classify as ClassIO.
	ClassArg
	// ClassOther passes through an error class produced by the
	// underlying I/O primitive (permission, no-such-file, device
	// error, ...) unchanged in kind, if not in detail.
	ClassOther
)

// ClassOf classifies err into the canonical Class above. nil
// classifies as ClassOK.
func ClassOf(err error) Class {
	switch {
	case err == nil:
		return ClassOK
	case errors.Is(errors.Integrity, err):
		return ClassCount
	case errors.Is(errors.Invalid, err):
		return ClassIO
	default:
		return ClassOther
	}
}

// BroadcastClass implements the error-code broadcast idiom: rank root
// alone performed an operation that may have failed with rootErr (nil
// on success); every rank, including root,
// comes away with the same Class so every rank can take the same
// cleanup path without further communication. The original rootErr
// value — with its message — is only meaningful on root; callers that
// need to log detail must do so on root before calling this, since the
// value itself does not survive the broadcast.
func BroadcastClass(ctx context.Context, c Communicator, root int, rootErr error) (Class, error) {
	var buf [4]byte
	if c.Rank() == root {
		binary.BigEndian.PutUint32(buf[:], uint32(ClassOf(rootErr)))
	}
	if err := c.Bcast(ctx, buf[:], root); err != nil {
		return ClassOther, err
	}
	return Class(binary.BigEndian.Uint32(buf[:])), nil
}
