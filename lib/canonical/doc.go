// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package canonical implements the deterministic JSON form used as the
// byte input to every content hash and signature in the federation
// protocol.
//
// Canonical JSON restricts values to null, booleans, integers in the
// inclusive range ±(2^53−1), strings, lists, and objects whose string
// keys are unique and sorted lexicographically. Floating-point
// literals and out-of-range integers are rejected at parse time, never
// silently truncated. Two documents with the same key/value pairs in
// any key order encode to byte-identical output, which is what lets
// independently written implementations agree on an event's hash.
//
// Parse produces a reusable Value so a document can be mutated (fields
// stripped before hashing, signatures inserted after signing) and
// re-encoded without reparsing. The original raw bytes of an event are
// persisted verbatim; the canonical form is a transient computation
// input only.
package canonical
