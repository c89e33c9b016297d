// Package pfile implements the collective file-I/O protocol on top of
// pad, meta, and comm: a file Context tracks the logical cursor, the
// partition vector's ownership, and the call count across a sequence
// of collective block operations on a single file.
//
// Every exported Context method is collective: every rank in the
// context's communicator must call it with consistent arguments at the
// same logical step. On any error, every rank closes its file handle
// and the context must not be used again — a failed call has already
// performed its own cleanup.
//
// On write, a zero-length header payload (WriteHeader) or a zero
// element size (WriteField) makes the call a no-op: nothing is written
// and the cursor does not move. On read, skipping a block is a distinct
// protocol that reads and validates only the block header and still
// advances the cursor past the whole block. This package exposes it as
// the separate SkipHeader/SkipField operations; ReadHeader degrades to
// SkipHeader when called with a nil buffer or a zero header size, and
// ReadField/ReadFieldExt degrade to SkipField when called with a nil
// buffer or a zero element size, so call sites do not need to
// special-case it themselves.
package pfile
