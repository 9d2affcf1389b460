// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package integrity computes and checks the cryptographic invariants
// of federation events: SHA-256 content hashes, content-addressed
// event identifiers, and Ed25519 signatures, all over the canonical
// JSON form of a document.
//
// The package also manages the node's own signing identity (an Ed25519
// keypair per key ID, persisted to disk) and a cache of other servers'
// published verify keys. Verification is deliberately lenient about
// key rotation: unknown key IDs in a signature set are skipped, and a
// single valid signature from the claimed server is sufficient.
package integrity
