package pfile

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"

	"github.com/gghosh8495/p4est/comm"
	"github.com/gghosh8495/p4est/meta"
)

// collectiveFail turns a per-rank localErr into a uniform pass/fail
// decision for a step whose I/O is itself collective: every rank's
// result must be reduced (logical-OR) before any rank aborts. Every
// rank gets true if any rank failed; a rank with no local error but a
// failed peer gets a generic error, since it has no detail of its own
// to report.
func collectiveFail(ctx context.Context, c comm.Communicator, localErr error) (bool, error) {
	failed, err := c.AllReduceOr(ctx, localErr != nil)
	if err != nil {
		return true, err
	}
	if !failed {
		return false, nil
	}
	if localErr == nil {
		return true, classError(comm.ClassOther, nil)
	}
	return true, localErr
}

// OpenCreate collectively opens path for writing, truncating any
// existing file, and has rank 0 emit the file header and its alignment
// pad. gfq is copied and owned by the returned Context.
func OpenCreate(ctx context.Context, c comm.Communicator, opener comm.Opener, path string, dim int, userString string, gfq []int64) (*Context, error) {
	globalNumCells := gfq[len(gfq)-1]
	validateGFQ(gfq, c.Size(), globalNumCells)

	var backend comm.FileBackend
	var rootErr error
	if c.Rank() == 0 {
		var err error
		backend, err = opener.Open(ctx, path, comm.Create)
		if err == nil {
			hdr := meta.FileHeader{
				Magic:          meta.MagicFor(dim),
				Version:        Version,
				UserString:     userString,
				GlobalNumCells: globalNumCells,
			}
			err = writeAllAt(backend, hdr.Encode(), 0)
		}
		if err == nil {
			err = writeAllAt(backend, fileHeaderPad, int64(meta.FileHeaderLen))
		}
		rootErr = err
		if rootErr != nil {
			log.Error.Printf("pfile: create %s: %v", path, rootErr)
		}
	}
	class, err := comm.BroadcastClass(ctx, c, 0, rootErr)
	if err != nil {
		return nil, err
	}
	if class != comm.ClassOK {
		if backend != nil {
			backend.Close()
		}
		return nil, classError(class, rootErr)
	}

	var localErr error
	if c.Rank() != 0 {
		backend, localErr = opener.Open(ctx, path, comm.Update)
	}
	if failed, ferr := collectiveFail(ctx, c, localErr); failed {
		if backend != nil {
			backend.Close()
		}
		return nil, ferr
	}

	gfqCopy := append([]int64(nil), gfq...)
	return &Context{
		c:              c,
		backend:        backend,
		path:           path,
		mode:           modeWrite,
		globalNumCells: globalNumCells,
		gfq:            gfqCopy,
		gfqOwnership:   Owned,
	}, nil
}

// openReadResult is the broadcast payload of the rank-0-only header
// read both OpenRead and OpenReadExt perform: the canonical error
// class, the file's declared global cell count, and its user string.
type openReadResult struct {
	class          comm.Class
	globalNumCells int64
	userString     string
}

func encodeOpenReadResult(r openReadResult) []byte {
	b := make([]byte, 12+len(r.userString))
	binary.BigEndian.PutUint32(b[0:4], uint32(r.class))
	binary.BigEndian.PutUint64(b[4:12], uint64(r.globalNumCells))
	copy(b[12:], r.userString)
	return b
}

func decodeOpenReadResult(b []byte) openReadResult {
	return openReadResult{
		class:          comm.Class(binary.BigEndian.Uint32(b[0:4])),
		globalNumCells: int64(binary.BigEndian.Uint64(b[4:12])),
		userString:     string(b[12:]),
	}
}

func readRootHeader(ctx context.Context, c comm.Communicator, backend comm.FileBackend, dim int) openReadResult {
	raw := make([]byte, meta.FileHeaderLen)
	err := readAllAt(backend, raw, 0)
	var hdr meta.FileHeader
	if err == nil {
		hdr, err = meta.DecodeFileHeader(raw, meta.MagicFor(dim))
	}
	if err != nil {
		log.Error.Printf("pfile: open read: %v", err)
		return openReadResult{class: comm.ClassOf(err)}
	}
	return openReadResult{class: comm.ClassOK, globalNumCells: hdr.GlobalNumCells, userString: hdr.UserString}
}

// OpenRead opens path for reading, bound to a forest: rank 0 validates
// the file header against the caller's expected global cell count, and
// the returned Context borrows gfq rather than copying it — the
// caller's forest must outlive the Context.
func OpenRead(ctx context.Context, c comm.Communicator, opener comm.Opener, path string, dim int, globalNumCells int64, gfq []int64) (*Context, string, error) {
	validateGFQ(gfq, c.Size(), globalNumCells)

	var backend comm.FileBackend
	var result openReadResult
	if c.Rank() == 0 {
		var err error
		backend, err = opener.Open(ctx, path, comm.ReadOnly)
		if err != nil {
			result = openReadResult{class: comm.ClassOf(err)}
		} else {
			result = readRootHeader(ctx, c, backend, dim)
		}
	}
	encoded, err := comm.BroadcastBytes(ctx, c, 0, encodeOpenReadResult(result))
	if err != nil {
		return nil, "", err
	}
	result = decodeOpenReadResult(encoded)
	if result.class != comm.ClassOK {
		if backend != nil {
			backend.Close()
		}
		return nil, "", classError(result.class, nil)
	}
	if result.globalNumCells != globalNumCells {
		if backend != nil {
			backend.Close()
		}
		return nil, "", errors.E(errors.Invalid, fmt.Sprintf("pfile: file has %d global cells, bound forest has %d", result.globalNumCells, globalNumCells))
	}

	var localErr error
	if c.Rank() != 0 {
		backend, localErr = opener.Open(ctx, path, comm.ReadOnly)
	}
	if failed, ferr := collectiveFail(ctx, c, localErr); failed {
		if backend != nil {
			backend.Close()
		}
		return nil, "", ferr
	}

	return &Context{
		c:              c,
		backend:        backend,
		path:           path,
		mode:           modeRead,
		globalNumCells: globalNumCells,
		gfq:            gfq,
		gfqOwnership:   Borrowed,
	}, result.userString, nil
}

// OpenReadExt opens path for reading without binding to a forest: no
// gfq is captured, and no global-cell-count validation is performed. A
// subsequent field read without an explicit gfq falls back to a fresh
// uniform partition computed for that one call.
func OpenReadExt(ctx context.Context, c comm.Communicator, opener comm.Opener, path string, dim int) (*Context, string, error) {
	var backend comm.FileBackend
	var result openReadResult
	if c.Rank() == 0 {
		var err error
		backend, err = opener.Open(ctx, path, comm.ReadOnly)
		if err != nil {
			result = openReadResult{class: comm.ClassOf(err)}
		} else {
			result = readRootHeader(ctx, c, backend, dim)
		}
	}
	encoded, err := comm.BroadcastBytes(ctx, c, 0, encodeOpenReadResult(result))
	if err != nil {
		return nil, "", err
	}
	result = decodeOpenReadResult(encoded)
	if result.class != comm.ClassOK {
		if backend != nil {
			backend.Close()
		}
		return nil, "", classError(result.class, nil)
	}

	var localErr error
	if c.Rank() != 0 {
		backend, localErr = opener.Open(ctx, path, comm.ReadOnly)
	}
	if failed, ferr := collectiveFail(ctx, c, localErr); failed {
		if backend != nil {
			backend.Close()
		}
		return nil, "", ferr
	}

	return &Context{
		c:              c,
		backend:        backend,
		path:           path,
		mode:           modeRead,
		globalNumCells: result.globalNumCells,
		gfqOwnership:   Owned,
	}, result.userString, nil
}
