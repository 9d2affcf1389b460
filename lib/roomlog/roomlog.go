// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package roomlog is the authoritative persistent store for one room's
// events: two append-only record streams per room, one for state
// events and one for everything else. Each record carries the event
// identifier, the announcing origin (when known), and the raw event
// bytes exactly as received — the raw blob is what hashes and
// signatures are checked against, so it is never re-encoded.
//
// On disk a record is a CBOR envelope, individually compressed, framed
// with its sizes, compression tag, and a BLAKE3 checksum of the
// envelope bytes. The checksum catches torn or corrupted tails; the
// frame makes each append atomic at single-record granularity. Files
// are flock-guarded so two node processes can't interleave appends,
// and every append is fsynced before it returns — the in-memory room
// view is only updated after the append reports success.
package roomlog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/federation/lib/codec"
	"github.com/bureau-foundation/federation/lib/ref"
)

// Record is one persisted event: identifier, announcing origin (zero
// when the origin was unrecoverable), and the verbatim raw bytes.
type Record struct {
	EventID ref.EventID    `cbor:"event_id"`
	Origin  ref.ServerName `cbor:"origin,omitempty"`
	Raw     []byte         `cbor:"raw"`
}

// recordHeader framing, little-endian:
//
//	u32 compressed payload length
//	u32 uncompressed payload length
//	u8  compression tag
//	32B BLAKE3 checksum of the uncompressed payload
const headerSize = 4 + 4 + 1 + 32

// ErrCorrupt wraps any framing, checksum, or decode failure found
// while reading a log back. It indicates real corruption, not a
// half-finished record: appends are fsynced before the in-memory state
// advances.
var ErrCorrupt = errors.New("room log corrupt")

const (
	stateFileName = "state.log"
	otherFileName = "other.log"
)

// Log is one room's pair of append-only streams. Log does not
// synchronize concurrent appends; the room store serializes all
// mutations behind its persistent-partition lock.
type Log struct {
	state *stream
	other *stream
}

// Open opens (creating if necessary) the room's log directory and its
// two streams, taking an exclusive flock on each file. A second
// process opening the same room fails rather than blocks.
func Open(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating room log directory: %w", err)
	}
	state, err := openStream(filepath.Join(dir, stateFileName))
	if err != nil {
		return nil, err
	}
	other, err := openStream(filepath.Join(dir, otherFileName))
	if err != nil {
		state.close()
		return nil, err
	}
	return &Log{state: state, other: other}, nil
}

// AppendState appends a record to the state-event stream and syncs it
// to stable storage before returning.
func (l *Log) AppendState(record Record) error {
	return l.state.append(record)
}

// AppendOther appends a record to the non-state stream and syncs it to
// stable storage before returning.
func (l *Log) AppendOther(record Record) error {
	return l.other.append(record)
}

// ForEachState replays every record of the state-event stream in
// append order. The callback's error aborts the replay.
func (l *Log) ForEachState(fn func(Record) error) error {
	return l.state.forEach(fn)
}

// ForEachOther replays every record of the non-state stream in append
// order.
func (l *Log) ForEachOther(fn func(Record) error) error {
	return l.other.forEach(fn)
}

// Close flushes and unlocks both streams.
func (l *Log) Close() error {
	stateErr := l.state.close()
	otherErr := l.other.close()
	if stateErr != nil {
		return stateErr
	}
	return otherErr
}

type stream struct {
	file *os.File
	path string
}

func openStream(path string) (*stream, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening log stream: %w", err)
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		return nil, fmt.Errorf("locking %s (already open elsewhere?): %w", path, err)
	}
	return &stream{file: file, path: path}, nil
}

func (s *stream) append(record Record) error {
	if record.EventID.IsZero() {
		return fmt.Errorf("record has no event ID")
	}
	payload, err := codec.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding log record: %w", err)
	}

	checksum := blake3.Sum256(payload)
	compressed, tag := compress(payload)

	frame := make([]byte, headerSize+len(compressed))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(len(compressed)))
	binary.LittleEndian.PutUint32(frame[4:8], uint32(len(payload)))
	frame[8] = byte(tag)
	copy(frame[9:9+32], checksum[:])
	copy(frame[headerSize:], compressed)

	if _, err := s.file.Write(frame); err != nil {
		return fmt.Errorf("appending to %s: %w", s.path, err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", s.path, err)
	}
	return nil
}

func (s *stream) forEach(fn func(Record) error) error {
	// Read through a separate handle so the append offset of the
	// locked file is untouched. flock is advisory and per-process;
	// our own read handle doesn't contend.
	contents, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", s.path, err)
	}

	offset := 0
	for offset < len(contents) {
		if len(contents)-offset < headerSize {
			return fmt.Errorf("%w: truncated header at offset %d in %s", ErrCorrupt, offset, s.path)
		}
		header := contents[offset : offset+headerSize]
		compressedLen := int(binary.LittleEndian.Uint32(header[0:4]))
		uncompressedLen := int(binary.LittleEndian.Uint32(header[4:8]))
		tag := CompressionTag(header[8])
		var checksum [32]byte
		copy(checksum[:], header[9:9+32])

		offset += headerSize
		if len(contents)-offset < compressedLen {
			return fmt.Errorf("%w: truncated payload at offset %d in %s", ErrCorrupt, offset, s.path)
		}
		compressed := contents[offset : offset+compressedLen]
		offset += compressedLen

		payload, err := decompress(compressed, tag, uncompressedLen)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if blake3.Sum256(payload) != checksum {
			return fmt.Errorf("%w: checksum mismatch in %s", ErrCorrupt, s.path)
		}

		var record Record
		if err := codec.Unmarshal(payload, &record); err != nil {
			return fmt.Errorf("%w: decoding record: %v", ErrCorrupt, err)
		}
		if err := fn(record); err != nil {
			return err
		}
	}
	return nil
}

func (s *stream) close() error {
	if s.file == nil {
		return nil
	}
	syncErr := s.file.Sync()
	unix.Flock(int(s.file.Fd()), unix.LOCK_UN)
	closeErr := s.file.Close()
	s.file = nil
	if syncErr != nil && !errors.Is(syncErr, io.EOF) {
		return syncErr
	}
	return closeErr
}
