// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pdu

import "github.com/bureau-foundation/federation/lib/ref"

// StateKeyKind identifies which form a state key takes.
type StateKeyKind int

const (
	// StateKeyAbsent means the event carries no state key and is not
	// a state event.
	StateKeyAbsent StateKeyKind = iota
	// StateKeyEmpty is the mandatory empty-string state key of
	// singleton state events (create, join rules, power levels,
	// history visibility).
	StateKeyEmpty
	// StateKeyUser is a user-ID state key (membership events).
	StateKeyUser
	// StateKeyServer is a server-name state key (room aliases).
	StateKeyServer
	// StateKeyOther is an arbitrary state key on an event of unknown
	// type.
	StateKeyOther
)

// StateKey is the typed state-key union. The zero value is absent.
type StateKey struct {
	kind   StateKeyKind
	user   ref.UserID
	server ref.ServerName
	other  string
}

// Kind returns which form the state key takes.
func (k StateKey) Kind() StateKeyKind { return k.kind }

// Present reports whether the event carries a state key at all, which
// is what makes it a state event.
func (k StateKey) Present() bool { return k.kind != StateKeyAbsent }

// User returns the user-ID state key of a membership event. Zero for
// other kinds.
func (k StateKey) User() ref.UserID { return k.user }

// Server returns the server-name state key of an aliases event. Zero
// for other kinds.
func (k StateKey) Server() ref.ServerName { return k.server }

// Raw returns the state key as the string it appeared as on the wire,
// and false if the state key is absent.
func (k StateKey) Raw() (string, bool) {
	switch k.kind {
	case StateKeyAbsent:
		return "", false
	case StateKeyEmpty:
		return "", true
	case StateKeyUser:
		return k.user.String(), true
	case StateKeyServer:
		return k.server.String(), true
	default:
		return k.other, true
	}
}
