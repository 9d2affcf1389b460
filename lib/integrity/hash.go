// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package integrity

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"

	"github.com/bureau-foundation/federation/lib/canonical"
	"github.com/bureau-foundation/federation/lib/ref"
)

// ErrHashMismatch is returned by VerifyContentHash when the recomputed
// digest differs from the event's declared hashes.sha256 value.
var ErrHashMismatch = errors.New("content hash mismatch")

// Fields excluded from the hashed form of an event. age_ts and
// unsigned are mutated by relaying servers, signatures cover the hash
// rather than the other way around, and event_id is derived from the
// content, never part of it.
var volatileFields = []string{"age_ts", "event_id", "hashes", "signatures", "unsigned"}

// strippedCopy returns a copy of the event object without the named
// top-level fields. Nested values are shared with the original, so the
// copy must be treated as read-only.
func strippedCopy(event canonical.Value, omit []string) canonical.Value {
	working := canonical.Object()
	for _, member := range event.Members() {
		if slices.Contains(omit, member.Key) {
			continue
		}
		working.Set(member.Key, member.Value)
	}
	return working
}

// ComputeContentHash computes the SHA-256 content hash of an event
// document and writes it into the event's hashes.sha256 field,
// replacing any previous value. The digest covers the canonical form
// with the volatile fields stripped and is returned base64-encoded
// (standard alphabet, unpadded), as it appears on the wire.
func ComputeContentHash(event *canonical.Value) (string, error) {
	if event.Kind() != canonical.KindObject {
		return "", fmt.Errorf("event is not a JSON object")
	}

	digest := sha256.Sum256(canonical.Encode(strippedCopy(*event, volatileFields)))
	hash := base64.RawStdEncoding.EncodeToString(digest[:])

	// Rebuild hashes rather than mutating in place: the existing
	// hashes object may share storage with another view of the event.
	hashes := canonical.Object()
	if existing, ok := event.Get("hashes"); ok {
		for _, member := range existing.Members() {
			if member.Key != "sha256" {
				hashes.Set(member.Key, member.Value)
			}
		}
	}
	hashes.Set("sha256", canonical.String(hash))
	event.Set("hashes", hashes)

	return hash, nil
}

// VerifyContentHash parses a raw event blob generically and checks its
// declared hashes.sha256 against a recomputation. The generic parse
// matters: verification must work on events of unknown type, so it
// never goes through the typed event model.
//
// If the event's unsigned.redacted_by field is present the check is
// skipped and reported as success: a redacted event's hash covers
// content that has since been stripped, and no redaction-aware
// rehashing is implemented. Known limitation, kept deliberately.
func VerifyContentHash(raw []byte) error {
	value, err := canonical.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing event for hash check: %w", err)
	}

	hashes, ok := value.Remove("hashes")
	if !ok {
		return fmt.Errorf("event has no hashes field")
	}
	declaredValue, ok := hashes.Get("sha256")
	if !ok {
		return fmt.Errorf("event hashes have no sha256 entry")
	}
	declared, ok := declaredValue.StringValue()
	if !ok {
		return fmt.Errorf("event sha256 hash is not a string")
	}

	value.Remove("age_ts")
	value.Remove("signatures")
	value.Remove("event_id")
	if unsigned, ok := value.Remove("unsigned"); ok {
		if _, redacted := unsigned.Get("redacted_by"); redacted {
			return nil
		}
	}

	digest := sha256.Sum256(canonical.Encode(value))
	computed := base64.RawStdEncoding.EncodeToString(digest[:])
	if computed != declared {
		return fmt.Errorf("%w: %s (declared) vs %s (computed)", ErrHashMismatch, declared, computed)
	}
	return nil
}

// EventID derives the content-addressed identifier of a raw event
// blob: SHA-256 over the canonical form with volatile fields stripped,
// base64 URL-safe unpadded, prefixed with '$'. Pure function of the
// blob's canonical content; structurally divergent blobs that
// canonicalize identically share an identifier by design.
func EventID(raw []byte) (ref.EventID, error) {
	value, err := canonical.Parse(raw)
	if err != nil {
		return ref.EventID{}, fmt.Errorf("parsing event for identifier: %w", err)
	}
	return EventIDFromValue(value), nil
}

// EventIDFromValue is EventID for an already-parsed event document.
func EventIDFromValue(event canonical.Value) ref.EventID {
	digest := sha256.Sum256(canonical.Encode(strippedCopy(event, volatileFields)))
	return ref.MustParseEventID("$" + base64.RawURLEncoding.EncodeToString(digest[:]))
}
