package meta

import (
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil/assert"
)

func TestFileHeaderRoundTrip(t *testing.T) {
	h := FileHeader{
		Magic:          MagicFor(2),
		Version:        "p4est 2.8.0",
		UserString:     "hello",
		GlobalNumCells: 6,
	}
	enc := h.Encode()
	assert.EQ(t, len(enc), FileHeaderLen)
	got, err := DecodeFileHeader(enc, MagicFor(2))
	assert.NoError(t, err)
	assert.EQ(t, got.Magic, h.Magic)
	assert.EQ(t, got.UserString, h.UserString)
	assert.EQ(t, got.GlobalNumCells, h.GlobalNumCells)
}

func TestFileHeaderScenario1Layout(t *testing.T) {
	h := FileHeader{Magic: MagicFor(2), Version: "", UserString: "hello", GlobalNumCells: 0}
	enc := h.Encode()
	if string(enc[:MagicLen]) != "p4data0" {
		t.Fatalf("magic = %q", enc[:MagicLen])
	}
	if enc[MagicLen] != '\n' {
		t.Fatalf("byte 7 should be newline")
	}
	countOff := MagicLen + 1 + VersionLen + 1 + UserStringLen + 1
	if countOff != 80 {
		t.Fatalf("count field offset = %d, want 80", countOff)
	}
	if string(enc[countOff:countOff+CountDigits]) != "0000000000000000" {
		t.Fatalf("count field = %q", enc[countOff:countOff+CountDigits])
	}
}

func TestDecodeFileHeaderRejectsMagicMismatch(t *testing.T) {
	h := FileHeader{Magic: MagicFor(3), UserString: "x", GlobalNumCells: 1}
	_, err := DecodeFileHeader(h.Encode(), MagicFor(2))
	if err == nil || !errors.Is(errors.Invalid, err) {
		t.Fatalf("expected errors.Invalid on magic mismatch, got %v", err)
	}
}

func TestDecodeFileHeaderRejectsMissingNewline(t *testing.T) {
	h := FileHeader{Magic: MagicFor(2), UserString: "x", GlobalNumCells: 1}
	enc := h.Encode()
	enc[MagicLen] = 'z'
	_, err := DecodeFileHeader(enc, "")
	if err == nil || !errors.Is(errors.Invalid, err) {
		t.Fatalf("expected errors.Invalid on missing newline, got %v", err)
	}
}

func TestDecodeFileHeaderRejectsWrongLength(t *testing.T) {
	_, err := DecodeFileHeader(make([]byte, 10), "")
	if err == nil || !errors.Is(errors.Invalid, err) {
		t.Fatalf("expected errors.Invalid on short buffer, got %v", err)
	}
}

func TestDecodeFileHeaderRejectsMalformedCount(t *testing.T) {
	h := FileHeader{Magic: MagicFor(2), UserString: "x", GlobalNumCells: 1}
	enc := h.Encode()
	countOff := MagicLen + 1 + VersionLen + 1 + UserStringLen + 1
	copy(enc[countOff:], []byte(strings.Repeat("x", CountDigits)))
	_, err := DecodeFileHeader(enc, "")
	if err == nil || !errors.Is(errors.Invalid, err) {
		t.Fatalf("expected errors.Invalid on malformed count, got %v", err)
	}
}
