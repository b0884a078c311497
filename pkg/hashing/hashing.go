// Package hashing computes the content digests recorded for contracts and
// signatures. Digests are SHA-256, rendered as 0x-prefixed lowercase hex so
// they can be passed to the registry contract as bytes32 values.
package hashing

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrEmptyEvidence is returned when there is no evidence payload to hash.
var ErrEmptyEvidence = errors.New("evidence payload is empty")

var bytes32Pattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// HashBytes returns the 0x-prefixed SHA-256 digest of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return "0x" + hex.EncodeToString(sum[:])
}

// HashEvidence digests a signature evidence payload.
//
// A string payload is hashed as its raw bytes. Any other value is first
// serialized to canonical JSON (object keys sorted, no insignificant
// whitespace, no HTML escaping). Raw JSON documents are decoded before the
// rule is applied, so a stored JSON string and the equivalent Go string hash
// identically.
func HashEvidence(evidence any) (string, error) {
	switch v := evidence.(type) {
	case nil:
		return "", ErrEmptyEvidence
	case string:
		return HashBytes([]byte(v)), nil
	case json.RawMessage:
		return hashRawJSON(v)
	case []byte:
		return hashRawJSON(v)
	}

	canonical, err := CanonicalJSON(evidence)
	if err != nil {
		return "", err
	}
	return HashBytes(canonical), nil
}

func hashRawJSON(raw []byte) (string, error) {
	decoded, err := DecodeJSON(raw)
	if err != nil {
		return "", err
	}
	return HashEvidence(decoded)
}

// DecodeJSON decodes a JSON document keeping numbers as their original
// literals, so re-serialization does not alter the digest.
func DecodeJSON(raw []byte) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode evidence json: %w", err)
	}
	return v, nil
}

// CanonicalJSON serializes v the way evidence is hashed.
func CanonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("serialize evidence: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Equal compares two hex digests case-insensitively. Empty values never match.
func Equal(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(a, b)
}

// IsBytes32 reports whether s is a 0x-prefixed 32-byte hex string.
func IsBytes32(s string) bool {
	return bytes32Pattern.MatchString(s)
}

// IDToBytes32 maps an arbitrary identifier onto the bytes32 id space used by
// the registry contract. Identifiers already in that space are returned as is.
func IDToBytes32(id string) string {
	if IsBytes32(id) {
		return strings.ToLower(id)
	}
	return HashBytes([]byte(id))
}
