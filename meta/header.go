// Package meta formats and parses the fixed-width text metadata that
// precedes every file and every block: the 96-byte file header and the
// 64-byte block header. Every field width here is exact — these are
// the only two record shapes the file format defines, and every reader
// validates them byte for byte.
package meta

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
)

// Field widths for the file header. The user-string width is 47 bytes;
// a conflicting 15-byte doc comment elsewhere is resolved in favor of
// the value actually written to disk (see DESIGN.md, Open Questions).
const (
	MagicLen         = 7
	VersionLen       = 23
	UserStringLen    = 47
	CountDigits      = 16
	SizeDigits       = 13
	FileHeaderLen    = MagicLen + 1 + VersionLen + 1 + UserStringLen + 1 + CountDigits
	BlockHeaderLen   = 1 + 1 + SizeDigits + 1 + UserStringLen + 1
	BlockTypeHeader  = byte('H')
	BlockTypeField   = byte('F')
)

// MagicFor returns the dimension-tagged magic string for a forest of
// the given spatial dimension (2 or 3), e.g. "p4data0" or "p8data0".
func MagicFor(dim int) string {
	switch dim {
	case 2:
		return "p4data0"
	case 3:
		return "p8data0"
	default:
		panic(fmt.Sprintf("meta: unsupported dimension %d", dim))
	}
}

// FileHeader is the parsed content of the 96-byte file header.
type FileHeader struct {
	Magic          string
	Version        string
	UserString     string
	GlobalNumCells int64
}

// Encode renders h as the exact FileHeaderLen bytes written to disk.
// It panics if a field does not fit its fixed width — validating
// user-supplied strings before this point is the caller's
// responsibility.
func (h FileHeader) Encode() []byte {
	if len(h.Magic) != MagicLen {
		panic(fmt.Sprintf("meta: magic %q is not %d bytes", h.Magic, MagicLen))
	}
	if len(h.Version) > VersionLen {
		panic(fmt.Sprintf("meta: version string %q longer than %d bytes", h.Version, VersionLen))
	}
	if len(h.UserString) > UserStringLen {
		panic(fmt.Sprintf("meta: user string %q longer than %d bytes", h.UserString, UserStringLen))
	}
	var b strings.Builder
	b.Grow(FileHeaderLen)
	b.WriteString(h.Magic)
	b.WriteByte('\n')
	b.WriteString(padRight(h.Version, VersionLen))
	b.WriteByte('\n')
	b.WriteString(padRight(h.UserString, UserStringLen))
	b.WriteByte('\n')
	fmt.Fprintf(&b, "%0*d", CountDigits, h.GlobalNumCells)
	return []byte(b.String())
}

// DecodeFileHeader parses exactly FileHeaderLen bytes. wantMagic, if
// non-empty, is compared against the decoded magic and reported as a
// mismatch rather than left to the caller.
func DecodeFileHeader(b []byte, wantMagic string) (FileHeader, error) {
	if len(b) != FileHeaderLen {
		return FileHeader{}, errors.E(errors.Invalid, fmt.Sprintf("meta: file header must be %d bytes, got %d", FileHeaderLen, len(b)))
	}
	off := 0
	magic := string(b[off : off+MagicLen])
	off += MagicLen
	if b[off] != '\n' {
		return FileHeader{}, errors.E(errors.Invalid, "meta: missing newline after magic")
	}
	off++
	if wantMagic != "" && magic != wantMagic {
		return FileHeader{}, errors.E(errors.Invalid, fmt.Sprintf("meta: magic %q does not match expected %q", magic, wantMagic))
	}
	version := string(b[off : off+VersionLen])
	off += VersionLen
	if b[off] != '\n' {
		return FileHeader{}, errors.E(errors.Invalid, "meta: missing newline after version")
	}
	off++
	userString := string(b[off : off+UserStringLen])
	off += UserStringLen
	if b[off] != '\n' {
		return FileHeader{}, errors.E(errors.Invalid, "meta: missing newline after user string")
	}
	off++
	countField := string(b[off : off+CountDigits])
	count, err := strconv.ParseInt(countField, 10, 64)
	if err != nil || count < 0 {
		return FileHeader{}, errors.E(errors.Invalid, fmt.Sprintf("meta: malformed global cell count %q", countField))
	}
	return FileHeader{
		Magic:          magic,
		Version:        strings.TrimRight(version, " "),
		UserString:     strings.TrimRight(userString, " "),
		GlobalNumCells: count,
	}, nil
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}
