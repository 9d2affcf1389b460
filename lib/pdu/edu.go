// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pdu

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bureau-foundation/federation/lib/ref"
)

// EDU is an ephemeral federation signal: typing, presence, receipts.
// EDUs are parsed for logging and diagnostics only; they never enter
// the room store.
type EDU struct {
	Type    string
	Content EDUContent
}

// EDUContent is the typed payload of an EDU. Unknown EDU types parse
// into UnknownEDUContent.
type EDUContent interface {
	isEDUContent()
}

// TypingContent is an m.typing signal.
type TypingContent struct {
	RoomID ref.RoomID `json:"room_id"`
	Typing bool       `json:"typing"`
	UserID ref.UserID `json:"user_id"`
}

// PresenceContent is an m.presence signal carrying a batch of per-user
// updates.
type PresenceContent struct {
	Push []PresenceUpdate `json:"push"`
}

// PresenceUpdate is one user's presence change inside an m.presence
// push.
type PresenceUpdate struct {
	CurrentlyActive bool       `json:"currently_active"`
	LastActiveAgo   int64      `json:"last_active_ago"`
	Presence        string     `json:"presence"`
	StatusMsg       string     `json:"status_msg"`
	UserID          ref.UserID `json:"user_id"`
}

// ReceiptContent is an m.receipt signal: per-room read receipts.
type ReceiptContent map[ref.RoomID]RoomReceipt

// RoomReceipt is the receipt set for one room.
type RoomReceipt struct {
	Read UserReadReceipt `json:"m.read"`
}

// UserReadReceipt marks the events a user has read.
type UserReadReceipt struct {
	Data     ReadReceiptMetadata `json:"data"`
	EventIDs []ref.EventID       `json:"event_ids"`
}

// ReadReceiptMetadata carries the receipt timestamp and optional
// thread scope.
type ReadReceiptMetadata struct {
	ThreadID string `json:"thread_id,omitempty"`
	TS       int64  `json:"ts"`
}

// UnknownEDUContent is the catch-all for EDU types this package
// doesn't model.
type UnknownEDUContent struct{}

func (*TypingContent) isEDUContent()    {}
func (*PresenceContent) isEDUContent()  {}
func (ReceiptContent) isEDUContent()    {}
func (*UnknownEDUContent) isEDUContent() {}

// ParseEDU decodes a raw EDU blob, dispatching on edu_type the same
// way Parse dispatches on type. Unknown EDU types parse successfully.
func ParseEDU(raw []byte) (*EDU, error) {
	var peek struct {
		Type string `json:"edu_type"`
	}
	if err := json.Unmarshal(raw, &peek); err != nil {
		return nil, fmt.Errorf("parsing EDU type: %w", err)
	}
	if peek.Type == "" {
		return nil, fmt.Errorf("EDU has no edu_type")
	}

	var wire struct {
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("parsing %s EDU: %w", peek.Type, err)
	}
	if len(wire.Content) == 0 {
		return nil, fmt.Errorf("%s EDU has no content", peek.Type)
	}

	var content EDUContent
	switch peek.Type {
	case "m.typing":
		typing := &TypingContent{}
		if err := json.Unmarshal(wire.Content, typing); err != nil {
			return nil, fmt.Errorf("parsing m.typing content: %w", err)
		}
		content = typing
	case "m.presence":
		presence := &PresenceContent{}
		if err := json.Unmarshal(wire.Content, presence); err != nil {
			return nil, fmt.Errorf("parsing m.presence content: %w", err)
		}
		for _, update := range presence.Push {
			switch update.Presence {
			case "offline", "unavailable", "online":
			default:
				return nil, fmt.Errorf("invalid presence status %q", update.Presence)
			}
		}
		content = presence
	case "m.receipt":
		receipts := ReceiptContent{}
		if err := json.Unmarshal(wire.Content, &receipts); err != nil {
			return nil, fmt.Errorf("parsing m.receipt content: %w", err)
		}
		content = receipts
	default:
		content = &UnknownEDUContent{}
	}

	return &EDU{Type: peek.Type, Content: content}, nil
}

// Summary renders a one-line description of the EDU for logs.
func (e *EDU) Summary() string {
	switch c := e.Content.(type) {
	case *TypingContent:
		return fmt.Sprintf("%s: %s in %s", e.Type, c.UserID, c.RoomID)
	case *PresenceContent:
		updates := make([]string, 0, len(c.Push))
		for _, update := range c.Push {
			updates = append(updates, fmt.Sprintf("%s=%s", update.UserID, update.Presence))
		}
		return fmt.Sprintf("%s: %s", e.Type, strings.Join(updates, ", "))
	case ReceiptContent:
		return fmt.Sprintf("%s: %d room receipts", e.Type, len(c))
	default:
		return fmt.Sprintf("%s: unknown EDU", e.Type)
	}
}
