// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// KeyID is a validated Matrix signing key identifier (e.g.,
// "ed25519:auto"). The portion before the colon names the signature
// algorithm; the portion after is an opaque version string chosen by
// the key's owner. Key IDs appear in event signature maps, server key
// documents, and X-Matrix Authorization headers.
//
// KeyID is an immutable value type. The zero value is not valid;
// use IsZero to check.
type KeyID struct {
	id string
}

// ParseKeyID validates and wraps a raw key ID string. Returns an error
// if the string is empty, missing the ':' separator, or has an empty
// algorithm or version part.
func ParseKeyID(raw string) (KeyID, error) {
	if raw == "" {
		return KeyID{}, fmt.Errorf("empty key ID")
	}
	colonIndex := strings.IndexByte(raw, ':')
	if colonIndex < 0 {
		return KeyID{}, fmt.Errorf("key ID missing ':' separator: %q", raw)
	}
	if colonIndex == 0 {
		return KeyID{}, fmt.Errorf("key ID has empty algorithm: %q", raw)
	}
	if colonIndex == len(raw)-1 {
		return KeyID{}, fmt.Errorf("key ID has empty version: %q", raw)
	}
	return KeyID{id: raw}, nil
}

// MustParseKeyID is like ParseKeyID but panics on error. Use in tests
// and static initialization where the input is known-valid.
func MustParseKeyID(raw string) KeyID {
	k, err := ParseKeyID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseKeyID(%q): %v", raw, err))
	}
	return k
}

// String returns the full key ID string (e.g., "ed25519:auto").
func (k KeyID) String() string { return k.id }

// IsZero reports whether the KeyID is the zero value (uninitialized).
func (k KeyID) IsZero() bool { return k.id == "" }

// Algorithm returns the algorithm portion of the key ID (before the
// ':'). Panics if called on a zero-value KeyID.
func (k KeyID) Algorithm() string {
	if k.id == "" {
		panic("KeyID.Algorithm called on zero value")
	}
	return k.id[:strings.IndexByte(k.id, ':')]
}

// MarshalText implements encoding.TextMarshaler for JSON, CBOR, and
// other text-based serialization formats.
func (k KeyID) MarshalText() ([]byte, error) {
	if k.id == "" {
		return []byte{}, nil
	}
	return []byte(k.id), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Validates the
// key ID format. An empty input produces the zero value (unset key
// ID).
func (k *KeyID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*k = KeyID{}
		return nil
	}
	parsed, err := ParseKeyID(string(data))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
