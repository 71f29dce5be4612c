// Package payload serializes result documents and splits them into parts
// that fit under a byte ceiling.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"vectorhook/types"
)

var ErrInvalidLimit = errors.New("payload: max bytes must be positive")

// Marshal returns the canonical JSON form of doc: compact, UTF-8, no HTML
// escaping. Sizes computed here are the sizes that go on the wire.
func Marshal(doc types.ResultDocument) ([]byte, error) {
	if doc.Chunks == nil {
		doc.Chunks = []types.ChunkRecord{}
	}
	for i := range doc.Chunks {
		if doc.Chunks[i].Vector == nil {
			doc.Chunks = normalized(doc.Chunks)
			break
		}
	}
	return encode(doc)
}

// Size is len(Marshal(doc)).
func Size(doc types.ResultDocument) (int, error) {
	b, err := Marshal(doc)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// SplitIfLarge returns []{doc} when doc serializes to at most maxBytes.
// Otherwise chunk records are packed greedily, in order, into parts that
// share doc's header fields. A record that does not fit even alone in a
// fresh part is still given its own part, which then exceeds maxBytes;
// the caller can spot it by its size.
func SplitIfLarge(doc types.ResultDocument, maxBytes int) ([]types.ResultDocument, error) {
	if maxBytes <= 0 {
		return nil, ErrInvalidLimit
	}

	whole, err := Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	if len(whole) <= maxBytes || len(doc.Chunks) <= 1 {
		return []types.ResultDocument{doc}, nil
	}

	header := doc.Header()
	base, err := Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("marshal header: %w", err)
	}
	if len(base) > maxBytes {
		slog.Warn("[PAYLOAD] header alone exceeds ceiling, every part will be oversized",
			"header_bytes", len(base), "max_bytes", maxBytes)
	}

	var (
		parts   []types.ResultDocument
		current []types.ChunkRecord
		size    = len(base)
	)

	for _, rec := range doc.Chunks {
		encoded, err := encode(normalizedRecord(rec))
		if err != nil {
			return nil, fmt.Errorf("marshal chunk %d: %w", rec.ChunkID, err)
		}

		// chunks are written as [a,b,c]: one comma per record after the first
		grown := size + len(encoded)
		if len(current) > 0 {
			grown++
		}

		if grown > maxBytes && len(current) > 0 {
			parts = append(parts, header.WithChunks(current))
			current = nil
			grown = len(base) + len(encoded)
		}
		if grown > maxBytes {
			slog.Warn("[PAYLOAD] chunk does not fit under the ceiling on its own",
				"chunk_id", rec.ChunkID, "part_bytes", grown, "max_bytes", maxBytes)
		}

		current = append(current, rec)
		size = grown
	}

	if len(current) > 0 {
		parts = append(parts, header.WithChunks(current))
	}
	return parts, nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func normalized(chunks []types.ChunkRecord) []types.ChunkRecord {
	out := make([]types.ChunkRecord, len(chunks))
	for i, c := range chunks {
		out[i] = normalizedRecord(c)
	}
	return out
}

func normalizedRecord(c types.ChunkRecord) types.ChunkRecord {
	if c.Vector == nil {
		c.Vector = []float64{}
	}
	return c
}
