// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package roomstore

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/bureau-foundation/federation/lib/canonical"
	"github.com/bureau-foundation/federation/lib/integrity"
	"github.com/bureau-foundation/federation/lib/pdu"
	"github.com/bureau-foundation/federation/lib/ref"
	"github.com/bureau-foundation/federation/lib/roomlog"
)

// LoadRoom rebuilds a registered room's view from its log. The log is
// authoritative: the fresh view replaces whatever the room's current
// view holds. Signature and hash checks are re-run for every record —
// verification runs data-parallel across events, then the results are
// applied to the view in a single sequential pass.
func (s *Store) LoadRoom(roomID ref.RoomID) error {
	s.persistMu.Lock()
	log, ok := s.logs[roomID]
	s.persistMu.Unlock()
	if !ok {
		return fmt.Errorf("no log open for %s", roomID)
	}

	var records []roomlog.Record
	collect := func(record roomlog.Record) error {
		records = append(records, record)
		return nil
	}
	if err := log.ForEachState(collect); err != nil {
		return fmt.Errorf("replaying state stream of %s: %w", roomID, err)
	}
	if err := log.ForEachOther(collect); err != nil {
		return fmt.Errorf("replaying non-state stream of %s: %w", roomID, err)
	}

	verified := s.verifyRecords(records)

	view := newRoomView(roomID)
	for i, record := range records {
		result := verified[i]
		if result.event == nil {
			// Only parseable events are ever appended, so this is log
			// damage that slipped past the frame checksum.
			s.logger.Warn("skipping unreadable log record",
				"room", roomID, "event", record.EventID, "error", result.parseErr)
			continue
		}
		view.insert(record.EventID, &StoredEvent{
			Event:        result.event,
			Raw:          record.Raw,
			Origin:       record.Origin,
			SignatureErr: result.sigErr,
			HashErr:      result.hashErr,
		})
	}

	s.ephemeralMu.Lock()
	s.rooms[roomID] = view
	s.ephemeralMu.Unlock()
	return nil
}

// LoadAllRooms rebuilds every registered room's view from its log.
func (s *Store) LoadAllRooms() error {
	for _, roomID := range s.Rooms() {
		if err := s.LoadRoom(roomID); err != nil {
			return err
		}
	}
	return nil
}

type replayResult struct {
	event    *pdu.Event
	parseErr error
	sigErr   error
	hashErr  error
}

// verifyRecords re-parses and re-verifies records in parallel. Results
// come back positionally so application order is unaffected by worker
// scheduling.
func (s *Store) verifyRecords(records []roomlog.Record) []replayResult {
	results := make([]replayResult, len(records))
	workers := runtime.GOMAXPROCS(0)
	if workers > len(records) {
		workers = len(records)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = s.verifyRecord(records[i])
			}
		}()
	}
	for i := range records {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

func (s *Store) verifyRecord(record roomlog.Record) replayResult {
	event, err := pdu.Parse(record.Raw)
	if err != nil {
		return replayResult{parseErr: err}
	}
	// The record's origin tag is the authenticated origin captured at
	// ingest; it wins over whatever the raw bytes declare.
	if !record.Origin.IsZero() {
		event.Origin = record.Origin
	}

	result := replayResult{event: event}
	if value, err := canonical.Parse(record.Raw); err != nil {
		result.sigErr = err
	} else {
		result.sigErr = integrity.Verify(value, event.Sender.Server(), s.keys)
	}
	result.hashErr = integrity.VerifyContentHash(record.Raw)
	return result
}
