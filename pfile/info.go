package pfile

import (
	"bytes"
	"context"
	"encoding/gob"

	"github.com/grailbio/base/log"

	"github.com/gghosh8495/p4est/comm"
	"github.com/gghosh8495/p4est/meta"
)

// Info is the metadata-introspection operation: rank 0 walks the
// block sequence from the start of the file — independent of this
// Context's own cursor — summarizing each block's type, declared size,
// and user string, and stops cleanly at the first block whose payload
// or pad is not fully present rather than reporting an error for it.
// The summary is then replicated to every rank.
func (fc *Context) Info(ctx context.Context) ([]meta.BlockMetadata, error) {
	var blocks []meta.BlockMetadata
	if fc.c.Rank() == 0 {
		off := HeaderRegionLen
		for {
			raw := make([]byte, meta.BlockHeaderLen)
			n, err := fc.backend.ReadAt(raw, off)
			if err != nil || n < meta.BlockHeaderLen {
				break
			}
			bh, err := meta.DecodeBlockHeader(raw)
			if err != nil {
				break
			}
			var payloadLen int64
			if bh.Type == meta.BlockTypeHeader {
				payloadLen = int64(bh.Size)
			} else {
				payloadLen = int64(bh.Size) * fc.globalNumCells
			}
			padLen, _ := padForLen(payloadLen)
			padOff := off + int64(meta.BlockHeaderLen) + payloadLen
			padBuf := make([]byte, padLen)
			pn, perr := fc.backend.ReadAt(padBuf, padOff)
			if perr != nil || pn < padLen {
				log.Printf("pfile: info: %s: stopping at truncated block past offset %d", fc.path, off)
				break
			}
			blocks = append(blocks, meta.BlockMetadata{Type: bh.Type, DataSize: bh.Size, UserString: bh.UserString})
			off = padOff + int64(padLen)
		}
	}
	var buf bytes.Buffer
	if fc.c.Rank() == 0 {
		if err := gob.NewEncoder(&buf).Encode(blocks); err != nil {
			return nil, err
		}
	}
	encoded, err := comm.BroadcastBytes(ctx, fc.c, 0, buf.Bytes())
	if err != nil {
		return nil, err
	}
	var result []meta.BlockMetadata
	if len(encoded) > 0 {
		if err := gob.NewDecoder(bytes.NewReader(encoded)).Decode(&result); err != nil {
			return nil, err
		}
	}
	return result, nil
}
