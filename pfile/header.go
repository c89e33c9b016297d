package pfile

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/grailbio/base/data"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"

	"github.com/gghosh8495/p4est/comm"
	"github.com/gghosh8495/p4est/meta"
	"github.com/gghosh8495/p4est/pad"
)

// broadcastClassAndSize is the two-value form of the broadcast-result
// idiom: rank 0's error class and a declared block size travel
// together, since every subsequent step (payload broadcast, cursor
// advance) needs both.
func broadcastClassAndSize(ctx context.Context, c comm.Communicator, root int, rootErr error, size int64) (comm.Class, int64, error) {
	var buf [12]byte
	if c.Rank() == root {
		binary.BigEndian.PutUint32(buf[0:4], uint32(comm.ClassOf(rootErr)))
		binary.BigEndian.PutUint64(buf[4:12], uint64(size))
	}
	if err := c.Bcast(ctx, buf[:], root); err != nil {
		return comm.ClassOther, 0, err
	}
	return comm.Class(binary.BigEndian.Uint32(buf[0:4])), int64(binary.BigEndian.Uint64(buf[4:12])), nil
}

// WriteHeader writes a header block: rank 0 alone writes the block
// header, the payload, and the pad; every rank advances its cursor
// identically. A zero-length headerData is the write-side skip
// protocol and is a pure no-op.
func (fc *Context) WriteHeader(ctx context.Context, headerData []byte, userString string) error {
	if fc.mode != modeWrite {
		panic("pfile: WriteHeader called on a read context")
	}
	if len(headerData) == 0 {
		return nil
	}

	off := HeaderRegionLen + fc.accessedBytes
	var rootErr error
	if fc.c.Rank() == 0 {
		bh := meta.BlockHeader{Type: meta.BlockTypeHeader, Size: uint64(len(headerData)), UserString: userString}
		rootErr = writeAllAt(fc.backend, bh.Encode(), off)
		if rootErr == nil {
			rootErr = writeAllAt(fc.backend, headerData, off+int64(meta.BlockHeaderLen))
		}
		if rootErr == nil {
			_, padBytes := pad.For(len(headerData))
			rootErr = writeAllAt(fc.backend, padBytes, off+int64(meta.BlockHeaderLen)+int64(len(headerData)))
		}
		if rootErr != nil {
			log.Error.Printf("pfile: write header at %s: %v", fc.path, rootErr)
		}
	}
	class, err := comm.BroadcastClass(ctx, fc.c, 0, rootErr)
	if err != nil {
		return err
	}
	if class != comm.ClassOK {
		fc.abort()
		return classError(class, rootErr)
	}
	padLen, _ := pad.For(len(headerData))
	fc.advance(int64(meta.BlockHeaderLen) + int64(len(headerData)) + int64(padLen))
	if fc.c.Rank() == 0 {
		log.Printf("pfile: wrote header block: %s", data.Size(len(headerData)))
	}
	return nil
}

// SkipHeader advances past a header block without reading its payload,
// validating only that it is in fact an H block.
func (fc *Context) SkipHeader(ctx context.Context) error {
	if fc.mode != modeRead {
		panic("pfile: SkipHeader called on a write context")
	}
	off := HeaderRegionLen + fc.accessedBytes
	var rootErr error
	var declaredSize int64
	if fc.c.Rank() == 0 {
		raw := make([]byte, meta.BlockHeaderLen)
		rootErr = readAllAt(fc.backend, raw, off)
		var bh meta.BlockHeader
		if rootErr == nil {
			bh, rootErr = meta.DecodeBlockHeader(raw)
		}
		if rootErr == nil && bh.Type != meta.BlockTypeHeader {
			rootErr = errors.E(errors.Invalid, fmt.Sprintf("pfile: skip_header found block type %q, want %q", bh.Type, meta.BlockTypeHeader))
		}
		declaredSize = int64(bh.Size)
		if rootErr != nil {
			log.Error.Printf("pfile: skip header at %s: %v", fc.path, rootErr)
		}
	}
	class, size, err := broadcastClassAndSize(ctx, fc.c, 0, rootErr, declaredSize)
	if err != nil {
		return err
	}
	if class != comm.ClassOK {
		fc.abort()
		return classError(class, rootErr)
	}
	padLen, _ := pad.For(int(size))
	fc.advance(int64(meta.BlockHeaderLen) + size + int64(padLen))
	return nil
}

// ReadHeader reads a header block: rank 0 reads and validates the
// block header, payload, and pad; the payload is then broadcast so
// every rank receives an identical copy. A nil headerData or a zero
// headerSize degrades to SkipHeader, the read-side skip protocol.
func (fc *Context) ReadHeader(ctx context.Context, headerSize int, headerData []byte, userStringOut *string) error {
	if fc.mode != modeRead {
		panic("pfile: ReadHeader called on a write context")
	}
	if headerData == nil || headerSize == 0 {
		return fc.SkipHeader(ctx)
	}

	off := HeaderRegionLen + fc.accessedBytes
	var rootErr error
	var declaredSize int64
	var blockUserString string
	if fc.c.Rank() == 0 {
		raw := make([]byte, meta.BlockHeaderLen)
		rootErr = readAllAt(fc.backend, raw, off)
		var bh meta.BlockHeader
		if rootErr == nil {
			bh, rootErr = meta.DecodeBlockHeader(raw)
		}
		if rootErr == nil && bh.Type != meta.BlockTypeHeader {
			rootErr = errors.E(errors.Invalid, fmt.Sprintf("pfile: read_header found block type %q, want %q", bh.Type, meta.BlockTypeHeader))
		}
		if rootErr == nil && int(bh.Size) != headerSize {
			rootErr = errors.E(errors.Invalid, fmt.Sprintf("pfile: header size mismatch: file has %d, caller expects %d", bh.Size, headerSize))
		}
		if rootErr == nil {
			rootErr = readAllAt(fc.backend, headerData[:headerSize], off+int64(meta.BlockHeaderLen))
		}
		if rootErr == nil {
			padLen, _ := pad.For(headerSize)
			gotPad := make([]byte, padLen)
			rootErr = readAllAt(fc.backend, gotPad, off+int64(meta.BlockHeaderLen)+int64(headerSize))
			if rootErr == nil && !pad.Check(headerSize, gotPad) {
				rootErr = errors.E(errors.Invalid, "pfile: corrupt pad after header block")
			}
		}
		declaredSize = int64(bh.Size)
		blockUserString = bh.UserString
		if rootErr != nil {
			log.Error.Printf("pfile: read header at %s: %v", fc.path, rootErr)
		}
	}
	class, size, err := broadcastClassAndSize(ctx, fc.c, 0, rootErr, declaredSize)
	if err != nil {
		return err
	}
	if class != comm.ClassOK {
		fc.abort()
		return classError(class, rootErr)
	}
	payload, err := comm.BroadcastBytes(ctx, fc.c, 0, headerData[:headerSize])
	if err != nil {
		return err
	}
	copy(headerData, payload)
	if userStringOut != nil {
		usBytes, err := comm.BroadcastBytes(ctx, fc.c, 0, []byte(blockUserString))
		if err != nil {
			return err
		}
		*userStringOut = string(usBytes)
	}
	padLen, _ := pad.For(int(size))
	fc.advance(int64(meta.BlockHeaderLen) + size + int64(padLen))
	return nil
}
