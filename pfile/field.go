package pfile

import (
	"context"
	"fmt"

	"github.com/grailbio/base/data"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"

	"github.com/gghosh8495/p4est/comm"
	"github.com/gghosh8495/p4est/meta"
	"github.com/gghosh8495/p4est/pad"
)

// WriteField writes a field block: rank 0 writes the block header,
// then every rank writes its own slice of a striped payload at the
// offset its position in gfq implies, then rank 0 writes the pad. A
// zero elem_size is the write-side skip/no-op protocol.
func (fc *Context) WriteField(ctx context.Context, elemSize int, localData []byte, userString string) error {
	if fc.mode != modeWrite {
		panic("pfile: WriteField called on a read context")
	}
	if elemSize == 0 {
		return nil
	}

	off := HeaderRegionLen + fc.accessedBytes
	var rootErr error
	if fc.c.Rank() == 0 {
		bh := meta.BlockHeader{Type: meta.BlockTypeField, Size: uint64(elemSize), UserString: userString}
		rootErr = writeAllAt(fc.backend, bh.Encode(), off)
		if rootErr != nil {
			log.Error.Printf("pfile: write field header at %s: %v", fc.path, rootErr)
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

	gfq := fc.effectiveGFQ(nil)
	lo, hi := gfq[fc.c.Rank()], gfq[fc.c.Rank()+1]
	localCount := hi - lo
	if int64(len(localData)) != localCount*int64(elemSize) {
		panic(fmt.Sprintf("pfile: WriteField: local data has %d bytes, want %d for %d local cells at elem_size %d", len(localData), localCount*int64(elemSize), localCount, elemSize))
	}
	payloadOff := off + int64(meta.BlockHeaderLen) + lo*int64(elemSize)
	localErr := writeAllAt(fc.backend, localData, payloadOff)
	if failed, ferr := collectiveFail(ctx, fc.c, localErr); failed {
		fc.abort()
		return classError(comm.ClassOf(ferr), ferr)
	}

	globalLen := gfq[len(gfq)-1] * int64(elemSize)
	var padErr error
	if fc.c.Rank() == 0 {
		_, padBytes := padForLen(globalLen)
		padErr = writeAllAt(fc.backend, padBytes, off+int64(meta.BlockHeaderLen)+globalLen)
		if padErr != nil {
			log.Error.Printf("pfile: write field pad at %s: %v", fc.path, padErr)
		}
	}
	class2, err2 := comm.BroadcastClass(ctx, fc.c, 0, padErr)
	if err2 != nil {
		return err2
	}
	if class2 != comm.ClassOK {
		fc.abort()
		return classError(class2, padErr)
	}

	padLen, _ := padForLen(globalLen)
	fc.advance(int64(meta.BlockHeaderLen) + globalLen + int64(padLen))
	if fc.c.Rank() == 0 {
		log.Printf("pfile: wrote field block: %s across %d ranks", data.Size(globalLen), fc.c.Size())
	}
	return nil
}

// SkipField advances past a field block without reading its payload,
// validating only that it is in fact an F block.
func (fc *Context) SkipField(ctx context.Context) error {
	if fc.mode != modeRead {
		panic("pfile: SkipField called on a write context")
	}
	off := HeaderRegionLen + fc.accessedBytes
	var rootErr error
	var elemSize int64
	if fc.c.Rank() == 0 {
		raw := make([]byte, meta.BlockHeaderLen)
		rootErr = readAllAt(fc.backend, raw, off)
		var bh meta.BlockHeader
		if rootErr == nil {
			bh, rootErr = meta.DecodeBlockHeader(raw)
		}
		if rootErr == nil && bh.Type != meta.BlockTypeField {
			rootErr = errors.E(errors.Invalid, fmt.Sprintf("pfile: skip_field found block type %q, want %q", bh.Type, meta.BlockTypeField))
		}
		elemSize = int64(bh.Size)
		if rootErr != nil {
			log.Error.Printf("pfile: skip field at %s: %v", fc.path, rootErr)
		}
	}
	class, size, err := broadcastClassAndSize(ctx, fc.c, 0, rootErr, elemSize)
	if err != nil {
		return err
	}
	if class != comm.ClassOK {
		fc.abort()
		return classError(class, rootErr)
	}
	payloadLen := size * fc.globalNumCells
	padLen, _ := padForLen(payloadLen)
	fc.advance(int64(meta.BlockHeaderLen) + payloadLen + int64(padLen))
	return nil
}

// ReadField is ReadFieldExt with the context's own bound, owned, or
// freshly computed uniform partition.
func (fc *Context) ReadField(ctx context.Context, elemSize int, buf []byte, userStringOut *string) error {
	return fc.ReadFieldExt(ctx, elemSize, buf, nil, userStringOut)
}

// ReadFieldExt reads a field block: rank 0 reads and validates the
// block header; every rank then reads its own slice of the striped
// payload, by the caller-supplied gfqOverride if non-nil, else the
// context's own partition, else a fresh uniform partition; rank 0
// finally validates the pad. A nil buf or zero elem_size degrades to
// SkipField.
func (fc *Context) ReadFieldExt(ctx context.Context, elemSize int, buf []byte, gfqOverride []int64, userStringOut *string) error {
	if fc.mode != modeRead {
		panic("pfile: ReadFieldExt called on a write context")
	}
	if buf == nil || elemSize == 0 {
		return fc.SkipField(ctx)
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
		if rootErr == nil && bh.Type != meta.BlockTypeField {
			rootErr = errors.E(errors.Invalid, fmt.Sprintf("pfile: read_field found block type %q, want %q", bh.Type, meta.BlockTypeField))
		}
		if rootErr == nil && int(bh.Size) != elemSize {
			rootErr = errors.E(errors.Invalid, fmt.Sprintf("pfile: element size mismatch: file has %d, caller expects %d", bh.Size, elemSize))
		}
		declaredSize = int64(bh.Size)
		blockUserString = bh.UserString
		if rootErr != nil {
			log.Error.Printf("pfile: read field at %s: %v", fc.path, rootErr)
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

	gfq := fc.effectiveGFQ(gfqOverride)
	lo, hi := gfq[fc.c.Rank()], gfq[fc.c.Rank()+1]
	localCount := hi - lo
	if int64(len(buf)) != localCount*int64(elemSize) {
		panic(fmt.Sprintf("pfile: ReadFieldExt: buf has %d bytes, want %d for %d local cells at elem_size %d", len(buf), localCount*int64(elemSize), localCount, elemSize))
	}
	payloadOff := off + int64(meta.BlockHeaderLen) + lo*int64(elemSize)
	localErr := readAllAt(fc.backend, buf, payloadOff)
	if failed, ferr := collectiveFail(ctx, fc.c, localErr); failed {
		fc.abort()
		return classError(comm.ClassOf(ferr), ferr)
	}

	if userStringOut != nil {
		usBytes, err := comm.BroadcastBytes(ctx, fc.c, 0, []byte(blockUserString))
		if err != nil {
			return err
		}
		*userStringOut = string(usBytes)
	}

	globalLen := size * fc.globalNumCells
	var padErr error
	if fc.c.Rank() == 0 {
		padLen, _ := padForLen(globalLen)
		gotPad := make([]byte, padLen)
		padErr = readAllAt(fc.backend, gotPad, off+int64(meta.BlockHeaderLen)+globalLen)
		if padErr == nil && !pad.Check(int(globalLen%int64(pad.Divisor)), gotPad) {
			padErr = errors.E(errors.Invalid, "pfile: corrupt pad after field block")
		}
		if padErr != nil {
			log.Error.Printf("pfile: read field pad at %s: %v", fc.path, padErr)
		}
	}
	class2, err2 := comm.BroadcastClass(ctx, fc.c, 0, padErr)
	if err2 != nil {
		return err2
	}
	if class2 != comm.ClassOK {
		fc.abort()
		return classError(class2, padErr)
	}

	padLen, _ := padForLen(globalLen)
	fc.advance(int64(meta.BlockHeaderLen) + globalLen + int64(padLen))
	return nil
}
