// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package roomstore

import (
	"sort"

	"github.com/bureau-foundation/federation/lib/intern"
	"github.com/bureau-foundation/federation/lib/pdu"
	"github.com/bureau-foundation/federation/lib/ref"
)

// StoredEvent is one ingested event together with its verification
// outcomes. A nil SignatureErr/HashErr means the corresponding check
// passed; a non-nil value records why it did not. Events with failed
// checks are stored anyway so they can be inspected later.
type StoredEvent struct {
	// EventID is the content-derived identifier, interned in the
	// owning room's scope.
	EventID *intern.Handle

	// Sender is the sending user, interned in the owning room's scope.
	Sender *intern.Handle

	// Event is the parsed typed representation.
	Event *pdu.Event

	// Raw is the event exactly as received. Hashes and signatures are
	// defined over these bytes, never over a re-encoding.
	Raw []byte

	// Origin is the authenticated transport origin the event arrived
	// from (which may differ from the origin the event declared).
	Origin ref.ServerName

	SignatureErr error
	HashErr      error
}

// Verified reports whether both the signature and the content hash
// checked out.
func (e *StoredEvent) Verified() bool {
	return e.SignatureErr == nil && e.HashErr == nil
}

// RoomView is the ephemeral in-memory index of one room: events keyed
// by interned identifier, iterable in identifier order and in
// origin-server-timestamp order. It is a cache derived from the room's
// log and is never persisted itself.
//
// RoomView carries no locking; the store's ephemeral lock covers all
// access.
type RoomView struct {
	roomID ref.RoomID

	// idents interns event and user identifiers seen in this room.
	// Dropping the view drops the scope and all its entries with it.
	idents *intern.Scope

	// byID maps interned identifier to event. Equal identifier strings
	// resolve to the same handle within the scope, so the pointer is a
	// valid map key.
	byID map[*intern.Handle]*StoredEvent

	// order holds the events sorted by identifier.
	order []*StoredEvent

	// byTime holds the events sorted by (origin_server_ts, identifier);
	// the identifier tiebreak keeps replay order deterministic.
	byTime []*StoredEvent
}

func newRoomView(roomID ref.RoomID) *RoomView {
	return &RoomView{
		roomID: roomID,
		idents: intern.NewScope(),
		byID:   make(map[*intern.Handle]*StoredEvent),
	}
}

// insert adds an event to the view. The identifier is content-derived,
// so a duplicate means the same event was delivered again; the view
// keeps the existing entry and converges. The caller holds the store's
// ephemeral write lock.
func (v *RoomView) insert(eventID ref.EventID, event *StoredEvent) {
	handle := v.idents.GetOrInsert(eventID.String())
	if _, ok := v.byID[handle]; ok {
		handle.Release()
		return
	}
	event.EventID = handle
	event.Sender = v.idents.GetOrInsert(event.Event.Sender.String())
	if user := event.Event.StateKey.User(); !user.IsZero() {
		// Intern for structural sharing; the scope keeps the entry
		// alive, the refcount tracks sightings.
		v.idents.GetOrInsert(user.String())
	}

	v.byID[handle] = event

	at := sort.Search(len(v.order), func(i int) bool {
		return v.order[i].EventID.Compare(handle) >= 0
	})
	v.order = append(v.order, nil)
	copy(v.order[at+1:], v.order[at:])
	v.order[at] = event

	at = sort.Search(len(v.byTime), func(i int) bool {
		other := v.byTime[i]
		if other.Event.OriginServerTS != event.Event.OriginServerTS {
			return other.Event.OriginServerTS > event.Event.OriginServerTS
		}
		return other.EventID.Compare(handle) >= 0
	})
	v.byTime = append(v.byTime, nil)
	copy(v.byTime[at+1:], v.byTime[at:])
	v.byTime[at] = event
}

// lookup returns the event for an identifier, if present. The caller
// holds at least the store's ephemeral read lock.
func (v *RoomView) lookup(eventID ref.EventID) (*StoredEvent, bool) {
	handle, ok := v.idents.Lookup(eventID.String())
	if !ok {
		return nil, false
	}
	event, ok := v.byID[handle]
	return event, ok
}
