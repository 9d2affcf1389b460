// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides strongly typed, immutable identity references
// for the Matrix identifiers a federation node handles: event IDs,
// room IDs, user IDs, server names, signing key IDs, and event types.
//
// Federation traffic is untrusted input. Every identifier that crosses
// the wire boundary is parsed into one of these value types exactly
// once; downstream code (integrity checks, interning, room storage)
// works with validated values and never re-checks format.
//
// All constructors validate their inputs and return errors for invalid
// identifiers. Once constructed, a ref is immutable. JSON marshaling
// uses the full Matrix identifier string via encoding.TextMarshaler.
package ref
