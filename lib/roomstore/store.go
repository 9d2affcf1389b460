// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package roomstore

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/bureau-foundation/federation/lib/canonical"
	"github.com/bureau-foundation/federation/lib/integrity"
	"github.com/bureau-foundation/federation/lib/pdu"
	"github.com/bureau-foundation/federation/lib/ref"
	"github.com/bureau-foundation/federation/lib/roomlog"
)

// Options configures a Store.
type Options struct {
	// DataDir is the directory holding one subdirectory per room.
	DataDir string

	// Keys resolves foreign servers' verify keys for signature checks.
	Keys integrity.KeyLookup

	// Logger receives ingestion diagnostics. Defaults to slog.Default.
	Logger *slog.Logger
}

// Store is the node-wide room store. Rooms must be registered with
// AddRoom before events for them are accepted; events for unknown
// rooms are not this node's concern and are dropped.
type Store struct {
	dataDir string
	keys    integrity.KeyLookup
	logger  *slog.Logger

	// persistMu guards the log map and serializes all log appends.
	// Appends sync to stable storage before the lock is released, so
	// callers may assume durability once an append returns.
	persistMu sync.Mutex
	logs      map[ref.RoomID]*roomlog.Log

	// ephemeralMu guards the derived in-memory views. Never acquired
	// while holding persistMu's critical section open across an
	// ephemeral mutation: persist first, then update the view.
	ephemeralMu sync.RWMutex
	rooms       map[ref.RoomID]*RoomView
}

// Open creates the store's data directory if needed and returns an
// empty store with no rooms registered.
func Open(options Options) (*Store, error) {
	if options.DataDir == "" {
		return nil, fmt.Errorf("room store: no data directory configured")
	}
	if options.Keys == nil {
		return nil, fmt.Errorf("room store: no key lookup configured")
	}
	if err := os.MkdirAll(options.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dataDir: options.DataDir,
		keys:    options.Keys,
		logger:  logger,
		logs:    make(map[ref.RoomID]*roomlog.Log),
		rooms:   make(map[ref.RoomID]*RoomView),
	}, nil
}

// AddRoom registers a room as this node's responsibility: its log is
// opened (created if absent) and an empty view is installed. Adding an
// already-registered room is a no-op. Call LoadRoom afterwards to
// rebuild the view from an existing log.
func (s *Store) AddRoom(roomID ref.RoomID) error {
	if roomID.IsZero() {
		return fmt.Errorf("room store: zero room ID")
	}

	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if _, ok := s.logs[roomID]; ok {
		return nil
	}
	log, err := roomlog.Open(filepath.Join(s.dataDir, roomDirName(roomID)))
	if err != nil {
		return fmt.Errorf("opening log for %s: %w", roomID, err)
	}
	s.logs[roomID] = log

	s.ephemeralMu.Lock()
	s.rooms[roomID] = newRoomView(roomID)
	s.ephemeralMu.Unlock()
	return nil
}

// Knows reports whether the room is registered with this node.
func (s *Store) Knows(roomID ref.RoomID) bool {
	s.ephemeralMu.RLock()
	defer s.ephemeralMu.RUnlock()
	_, ok := s.rooms[roomID]
	return ok
}

// Rooms returns the registered room IDs in unspecified order.
func (s *Store) Rooms() []ref.RoomID {
	s.ephemeralMu.RLock()
	defer s.ephemeralMu.RUnlock()
	rooms := make([]ref.RoomID, 0, len(s.rooms))
	for roomID := range s.rooms {
		rooms = append(rooms, roomID)
	}
	return rooms
}

// Close closes every room log, releasing their file locks.
func (s *Store) Close() error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	var firstErr error
	for roomID, log := range s.logs {
		if err := log.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log for %s: %w", roomID, err)
		}
		delete(s.logs, roomID)
	}
	return firstErr
}

// PDUResult is the per-event outcome reported to the sending server.
// An empty Error means the event was accepted (which says nothing
// about whether its signature verified — that is recorded on the
// stored event, not reported as a transaction failure).
type PDUResult struct {
	Error string `json:"error,omitempty"`
}

// IngestTransaction processes one federation transaction: a batch of
// PDUs to verify and store, plus EDUs that are parsed for diagnostics
// only. The returned map is keyed by string event identifier. Events
// that could not be attributed an identifier (not JSON, or rejected by
// canonical encoding) and events for unregistered rooms produce no
// entry at all.
//
// Per-event failures never abort the batch; each event succeeds or
// fails on its own.
func (s *Store) IngestTransaction(txnID string, origin ref.ServerName, originServerTS int64, pdus [][]byte, edus [][]byte) map[string]PDUResult {
	results := make(map[string]PDUResult, len(pdus))
	for _, raw := range pdus {
		s.ingestPDU(txnID, origin, raw, results)
	}
	for _, raw := range edus {
		edu, err := pdu.ParseEDU(raw)
		if err != nil {
			s.logger.Warn("unparseable EDU",
				"txn", txnID, "origin", origin, "error", err)
			continue
		}
		s.logger.Info("EDU received",
			"txn", txnID, "origin", origin, "edu", edu.Summary())
	}
	return results
}

func (s *Store) ingestPDU(txnID string, origin ref.ServerName, raw []byte, results map[string]PDUResult) {
	event, parseErr := pdu.Parse(raw)
	if parseErr != nil {
		// Report the failure if an identifier can still be derived;
		// otherwise the event is silently dropped.
		if eventID, err := integrity.EventID(raw); err == nil {
			results[eventID.String()] = PDUResult{Error: fmt.Sprintf("parse: %v", parseErr)}
		} else {
			s.logger.Warn("dropping event with no derivable identifier",
				"txn", txnID, "origin", origin, "error", parseErr)
		}
		return
	}

	value, err := canonical.Parse(raw)
	if err != nil {
		// Parsed as an event but rejected by canonical encoding
		// (float, out-of-range integer): no identifier is derivable.
		s.logger.Warn("dropping event rejected by canonical encoding",
			"txn", txnID, "origin", origin, "error", err)
		return
	}

	// The authenticated transport origin is authoritative over the
	// event's self-declared origin.
	declaredOrigin := event.Origin
	if !declaredOrigin.IsZero() && declaredOrigin != origin {
		s.logger.Warn("event origin differs from transaction origin",
			"txn", txnID, "declared", declaredOrigin, "authenticated", origin)
	}
	event.Origin = origin

	// The identifier covers the event as received plus the corrected
	// origin. The correction happens on a fresh parse so the value
	// used for signature verification stays as-received.
	idValue := value
	if declaredOrigin != origin {
		idValue, err = canonical.Parse(raw)
		if err != nil {
			s.logger.Warn("dropping event rejected by canonical encoding",
				"txn", txnID, "origin", origin, "error", err)
			return
		}
		idValue.Set("origin", canonical.String(origin.String()))
	}
	eventID := integrity.EventIDFromValue(idValue)

	// Alien room: not this node's concern, no result entry, no write.
	if !s.Knows(event.RoomID) {
		s.logger.Debug("dropping event for unregistered room",
			"txn", txnID, "room", event.RoomID, "event", eventID)
		return
	}

	// The sender's homeserver must have signed the event; the
	// signature covers the document as the sender rendered it.
	sigErr := integrity.Verify(value, event.Sender.Server(), s.keys)
	hashErr := integrity.VerifyContentHash(raw)

	record := roomlog.Record{EventID: eventID, Origin: origin, Raw: raw}
	if err := s.append(event.RoomID, event.HasState(), record); err != nil {
		results[eventID.String()] = PDUResult{Error: fmt.Sprintf("persist: %v", err)}
		return
	}

	stored := &StoredEvent{
		Event:        event,
		Raw:          raw,
		Origin:       origin,
		SignatureErr: sigErr,
		HashErr:      hashErr,
	}
	s.ephemeralMu.Lock()
	if view, ok := s.rooms[event.RoomID]; ok {
		view.insert(eventID, stored)
	}
	s.ephemeralMu.Unlock()

	results[eventID.String()] = PDUResult{}
}

// append writes one record to the room's state or non-state stream.
// The record is on stable storage when append returns without error.
func (s *Store) append(roomID ref.RoomID, state bool, record roomlog.Record) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	log, ok := s.logs[roomID]
	if !ok {
		return fmt.Errorf("no log open for %s", roomID)
	}
	if state {
		return log.AppendState(record)
	}
	return log.AppendOther(record)
}

// Event returns the stored event with the given identifier, if the
// room is registered and holds it.
func (s *Store) Event(roomID ref.RoomID, eventID ref.EventID) (*StoredEvent, bool) {
	s.ephemeralMu.RLock()
	defer s.ephemeralMu.RUnlock()
	view, ok := s.rooms[roomID]
	if !ok {
		return nil, false
	}
	return view.lookup(eventID)
}

// Chronological returns the room's events ordered by origin server
// timestamp (identifier as tiebreak). The slice is a snapshot; the
// events themselves are shared and must be treated as read-only.
func (s *Store) Chronological(roomID ref.RoomID) []*StoredEvent {
	s.ephemeralMu.RLock()
	defer s.ephemeralMu.RUnlock()
	view, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	events := make([]*StoredEvent, len(view.byTime))
	copy(events, view.byTime)
	return events
}

// EventCount returns the number of distinct events in the room's view.
func (s *Store) EventCount(roomID ref.RoomID) int {
	s.ephemeralMu.RLock()
	defer s.ephemeralMu.RUnlock()
	view, ok := s.rooms[roomID]
	if !ok {
		return 0
	}
	return len(view.byID)
}

// roomDirName maps a room ID to a filesystem-safe directory name.
// Room IDs carry characters like '!' and ':'; URL-safe base64 keeps
// the mapping injective and reversible.
func roomDirName(roomID ref.RoomID) string {
	return base64.RawURLEncoding.EncodeToString([]byte(roomID.String()))
}
