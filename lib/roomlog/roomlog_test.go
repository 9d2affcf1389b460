// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package roomlog

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/federation/lib/ref"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	log, err := Open(filepath.Join(t.TempDir(), "room"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { log.Close() })
	return log
}

func TestAppendReadRoundTrip(t *testing.T) {
	log := openTestLog(t)

	records := []Record{
		{
			EventID: ref.MustParseEventID("$state1"),
			Origin:  ref.MustParseServerName("example.com"),
			Raw:     []byte(`{"type":"m.room.create","content":{"creator":"@a:example.com"}}`),
		},
		{
			EventID: ref.MustParseEventID("$state2"),
			Raw:     []byte(`{"type":"m.room.member","content":{"membership":"join"}}`),
		},
	}
	for _, record := range records {
		if err := log.AppendState(record); err != nil {
			t.Fatalf("AppendState: %v", err)
		}
	}

	var got []Record
	if err := log.ForEachState(func(record Record) error {
		got = append(got, record)
		return nil
	}); err != nil {
		t.Fatalf("ForEachState: %v", err)
	}

	if len(got) != len(records) {
		t.Fatalf("replayed %d records, want %d", len(got), len(records))
	}
	for i := range records {
		if got[i].EventID != records[i].EventID {
			t.Errorf("record %d: EventID = %v, want %v", i, got[i].EventID, records[i].EventID)
		}
		if got[i].Origin != records[i].Origin {
			t.Errorf("record %d: Origin = %v, want %v", i, got[i].Origin, records[i].Origin)
		}
		if !bytes.Equal(got[i].Raw, records[i].Raw) {
			t.Errorf("record %d: Raw bytes changed", i)
		}
	}
}

func TestStreamsAreIndependent(t *testing.T) {
	log := openTestLog(t)

	if err := log.AppendState(Record{
		EventID: ref.MustParseEventID("$state"),
		Raw:     []byte(`{"a":1}`),
	}); err != nil {
		t.Fatalf("AppendState: %v", err)
	}
	if err := log.AppendOther(Record{
		EventID: ref.MustParseEventID("$message"),
		Raw:     []byte(`{"b":2}`),
	}); err != nil {
		t.Fatalf("AppendOther: %v", err)
	}

	count := func(forEach func(func(Record) error) error) int {
		n := 0
		if err := forEach(func(Record) error { n++; return nil }); err != nil {
			t.Fatalf("forEach: %v", err)
		}
		return n
	}
	if n := count(log.ForEachState); n != 1 {
		t.Errorf("state stream has %d records, want 1", n)
	}
	if n := count(log.ForEachOther); n != 1 {
		t.Errorf("other stream has %d records, want 1", n)
	}
}

func TestSurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "room")
	log, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	raw := []byte(`{"type":"m.room.message","content":{"body":"persisted"}}`)
	if err := log.AppendOther(Record{EventID: ref.MustParseEventID("$m"), Raw: raw}); err != nil {
		t.Fatalf("AppendOther: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	var got []Record
	if err := reopened.ForEachOther(func(record Record) error {
		got = append(got, record)
		return nil
	}); err != nil {
		t.Fatalf("ForEachOther: %v", err)
	}
	if len(got) != 1 || !bytes.Equal(got[0].Raw, raw) {
		t.Errorf("records after reopen = %v", got)
	}
}

func TestLargeRecordCompresses(t *testing.T) {
	log := openTestLog(t)

	// Repetitive JSON well past any compression threshold.
	raw := []byte(`{"type":"m.room.message","content":{"body":"` +
		strings.Repeat("all work and no play ", 500) + `"}}`)
	if err := log.AppendOther(Record{EventID: ref.MustParseEventID("$big"), Raw: raw}); err != nil {
		t.Fatalf("AppendOther: %v", err)
	}

	info, err := os.Stat(filepath.Join(filepath.Dir(log.other.path), otherFileName))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() >= int64(len(raw)) {
		t.Errorf("log file is %d bytes for a %d byte record; compression not applied", info.Size(), len(raw))
	}

	var got Record
	if err := log.ForEachOther(func(record Record) error {
		got = record
		return nil
	}); err != nil {
		t.Fatalf("ForEachOther: %v", err)
	}
	if !bytes.Equal(got.Raw, raw) {
		t.Error("large record did not round-trip")
	}
}

func TestRejectsRecordWithoutEventID(t *testing.T) {
	log := openTestLog(t)
	if err := log.AppendState(Record{Raw: []byte(`{}`)}); err == nil {
		t.Error("record without event ID appended")
	}
}

func TestDetectsCorruption(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "room")
	log, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := log.AppendState(Record{
		EventID: ref.MustParseEventID("$good"),
		Raw:     []byte(`{"type":"m.room.create","content":{"creator":"@a:x.com"}}`),
	}); err != nil {
		t.Fatalf("AppendState: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Flip a payload byte behind the checksum.
	path := filepath.Join(dir, stateFileName)
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	contents[len(contents)-1] ^= 0xff
	if err := os.WriteFile(path, contents, 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	err = reopened.ForEachState(func(Record) error { return nil })
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("ForEachState on corrupted log = %v, want ErrCorrupt", err)
	}
}

func TestDetectsTruncation(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "room")
	log, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := log.AppendState(Record{
		EventID: ref.MustParseEventID("$good"),
		Raw:     []byte(`{"type":"m.room.create","content":{"creator":"@a:x.com"}}`),
	}); err != nil {
		t.Fatalf("AppendState: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	path := filepath.Join(dir, stateFileName)
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if err := os.WriteFile(path, contents[:len(contents)-5], 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	err = reopened.ForEachState(func(Record) error { return nil })
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("ForEachState on truncated log = %v, want ErrCorrupt", err)
	}
}

func TestCallbackErrorAbortsReplay(t *testing.T) {
	log := openTestLog(t)
	for _, id := range []string{"$one", "$two", "$three"} {
		if err := log.AppendOther(Record{EventID: ref.MustParseEventID(id), Raw: []byte(`{}`)}); err != nil {
			t.Fatalf("AppendOther: %v", err)
		}
	}

	sentinel := errors.New("stop")
	seen := 0
	err := log.ForEachOther(func(Record) error {
		seen++
		if seen == 2 {
			return sentinel
		}
		return nil
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("ForEachOther = %v, want sentinel", err)
	}
	if seen != 2 {
		t.Errorf("callback ran %d times, want 2", seen)
	}
}

func TestCompressRoundTrip(t *testing.T) {
	for _, payload := range [][]byte{
		[]byte(""),
		[]byte("tiny"),
		bytes.Repeat([]byte("compressible "), 200),
	} {
		compressed, tag := compress(payload)
		restored, err := decompress(compressed, tag, len(payload))
		if err != nil {
			t.Fatalf("decompress (%s, %d bytes): %v", tag, len(payload), err)
		}
		if !bytes.Equal(restored, payload) {
			t.Errorf("round trip changed payload (%s, %d bytes)", tag, len(payload))
		}
	}
}
