// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package intern deduplicates recurring identifier strings into
// reference-counted handles.
//
// Federation traffic repeats the same event, user, server, and key
// identifiers constantly: every event references prior events by
// identifier, every signature names its server and key. Interning
// collapses each distinct string to a single allocation per scope;
// everything downstream holds a pointer-sized handle.
//
// Scopes are either process-wide (server names, key IDs) or per-room
// (event and user identifiers seen in that room's traffic), so a
// room's identifier memory can be dropped with the room. A Scope is
// not internally synchronized: the owning store guards it with the
// same lock that guards the indices the handles live in.
//
// Handle equality and ordering are both defined by the underlying
// string. Two handles from the same scope with equal content are the
// same pointer, so equality is usually a single pointer compare.
package intern

import (
	"fmt"
	"strings"
)

// Handle is a reference-counted interned string. Handles are created
// only by Scope.GetOrInsert; within one scope, equal strings always
// yield the same *Handle.
type Handle struct {
	value string
	refs  int
}

// String returns the interned string.
func (h *Handle) String() string { return h.value }

// Compare orders two handles by their underlying strings, like
// strings.Compare. Ordering never consults anything but content, so
// two independent scopes agree on the relative order of equal-content
// handles.
func (h *Handle) Compare(other *Handle) int {
	if h == other {
		return 0
	}
	return strings.Compare(h.value, other.value)
}

// Equal reports whether two handles intern the same string. Same-scope
// handles short-circuit on pointer identity.
func (h *Handle) Equal(other *Handle) bool {
	return h == other || h.value == other.value
}

// RefCount returns the number of outstanding references to the handle.
func (h *Handle) RefCount() int { return h.refs }

// Release drops one reference. The interned string itself stays alive
// for the lifetime of its scope; the count exists so usage can be
// audited. Panics if the count is already zero.
func (h *Handle) Release() {
	if h.refs == 0 {
		panic(fmt.Sprintf("intern: release of %q below zero references", h.value))
	}
	h.refs--
}

// Scope is one interning namespace. The zero value is not usable; use
// NewScope.
//
// Scope is not safe for concurrent use. Callers synchronize access
// with the lock guarding the structures the handles are stored in.
type Scope struct {
	entries map[string]*Handle
}

// NewScope returns an empty interning scope.
func NewScope() *Scope {
	return &Scope{entries: make(map[string]*Handle)}
}

// GetOrInsert returns the handle for value, creating it on first use.
// Every call adds one reference: repeated interning of the same string
// is a map lookup and a count bump, no new allocation.
func (s *Scope) GetOrInsert(value string) *Handle {
	if handle, ok := s.entries[value]; ok {
		handle.refs++
		return handle
	}
	handle := &Handle{value: value, refs: 1}
	s.entries[value] = handle
	return handle
}

// Lookup returns the handle for value without inserting or adding a
// reference. ok is false if the string has never been interned in this
// scope.
func (s *Scope) Lookup(value string) (*Handle, bool) {
	handle, ok := s.entries[value]
	return handle, ok
}

// Len returns the number of distinct strings interned in the scope.
func (s *Scope) Len() int { return len(s.entries) }
