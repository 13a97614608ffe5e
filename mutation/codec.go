package mutation

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// DecodeBatch parses and validates a JSON batch.
func DecodeBatch(data []byte) (*Batch, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("mutation: decode batch: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// DecodeSnapshot parses a JSON snapshot and fills HTMLHash when absent.
// A hash that does not match the HTML is rejected.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("mutation: decode snapshot: %w", err)
	}
	if len(s.HTML) == 0 {
		return nil, fmt.Errorf("%w: snapshot without html", ErrInvalid)
	}
	sum := HashHTML(s.HTML)
	if s.HTMLHash != "" && s.HTMLHash != sum {
		return nil, fmt.Errorf("%w: html_hash mismatch", ErrInvalid)
	}
	s.HTMLHash = sum
	return &s, nil
}

// HashHTML returns the SHA-256 hex digest of raw HTML bytes.
func HashHTML(html []byte) string {
	h := sha256.Sum256(html)
	return hex.EncodeToString(h[:])
}
