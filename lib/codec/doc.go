// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the node's standard CBOR encoding
// configuration.
//
// The node uses two serialization formats with a clear boundary:
//
//   - JSON for everything that crosses the federation wire: event
//     blobs, server keys documents, transaction batches. The exact
//     byte form matters there and is owned by lib/canonical.
//   - CBOR for internal on-disk structures: the framed records of the
//     per-room persistent logs, where raw event bytes are carried
//     verbatim inside a typed envelope.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC
// 8949 §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes.
//
// For buffer-oriented operations (log records, state files):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations:
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
package codec
