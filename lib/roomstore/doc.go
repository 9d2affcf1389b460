// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package roomstore turns batches of untrusted event blobs into
// verified, ordered, queryable room views.
//
// The store keeps two kinds of state with different durability
// contracts. The persistent partition is the per-room append-only log
// (lib/roomlog): authoritative, write-through, guarded by a single
// writer mutex. The ephemeral partition is the per-room in-memory
// RoomView plus its identifier interner: a derived cache guarded by an
// RWMutex, rebuilt from the log at any time via LoadRoom. The two are
// never transactionally coupled — an event is appended to the log
// first, and the view is only touched after the append has been
// confirmed durable, so a crash can lose view state but never log
// state.
//
// Verification failures are not fatal: an event whose signature or
// content hash does not check out is stored with its failure recorded,
// so interoperability problems with other implementations can be
// audited after the fact.
package roomstore
