package meta

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
)

// BlockHeader is the parsed content of the 64-byte header that precedes
// every block's payload and pad.
type BlockHeader struct {
	// Type is BlockTypeHeader ('H') or BlockTypeField ('F').
	Type byte
	// Size is the header payload size in bytes for an 'H' block, or the
	// per-cell element size in bytes for an 'F' block.
	Size uint64
	// UserString is the block's free-form annotation, trimmed of its
	// right-padding spaces.
	UserString string
}

// Encode renders h as the exact BlockHeaderLen bytes written to disk.
func (h BlockHeader) Encode() []byte {
	if h.Type != BlockTypeHeader && h.Type != BlockTypeField {
		panic(fmt.Sprintf("meta: invalid block type %q", h.Type))
	}
	if len(h.UserString) > UserStringLen {
		panic(fmt.Sprintf("meta: block user string %q longer than %d bytes", h.UserString, UserStringLen))
	}
	var b strings.Builder
	b.Grow(BlockHeaderLen)
	b.WriteByte(h.Type)
	b.WriteByte(' ')
	fmt.Fprintf(&b, "%0*d", SizeDigits, h.Size)
	b.WriteByte('\n')
	b.WriteString(padRight(h.UserString, UserStringLen))
	b.WriteByte('\n')
	return []byte(b.String())
}

// DecodeBlockHeader parses exactly BlockHeaderLen bytes.
func DecodeBlockHeader(b []byte) (BlockHeader, error) {
	if len(b) != BlockHeaderLen {
		return BlockHeader{}, errors.E(errors.Invalid, fmt.Sprintf("meta: block header must be %d bytes, got %d", BlockHeaderLen, len(b)))
	}
	typ := b[0]
	if typ != BlockTypeHeader && typ != BlockTypeField {
		return BlockHeader{}, errors.E(errors.Invalid, fmt.Sprintf("meta: unknown block type %q", typ))
	}
	if b[1] != ' ' {
		return BlockHeader{}, errors.E(errors.Invalid, "meta: missing space after block type")
	}
	sizeField := string(b[2 : 2+SizeDigits])
	size, err := strconv.ParseUint(sizeField, 10, 64)
	if err != nil {
		return BlockHeader{}, errors.E(errors.Invalid, fmt.Sprintf("meta: malformed block size %q", sizeField))
	}
	off := 2 + SizeDigits
	if b[off] != '\n' {
		return BlockHeader{}, errors.E(errors.Invalid, "meta: missing newline after block size")
	}
	off++
	userString := string(b[off : off+UserStringLen])
	off += UserStringLen
	if b[off] != '\n' {
		return BlockHeader{}, errors.E(errors.Invalid, "meta: missing newline after block user string")
	}
	return BlockHeader{
		Type:       typ,
		Size:       size,
		UserString: strings.TrimRight(userString, " "),
	}, nil
}

// BlockMetadata is one entry of the summary Info walks the file to
// produce: the public view of a block without its payload.
type BlockMetadata struct {
	Type       byte
	DataSize   uint64
	UserString string
}
