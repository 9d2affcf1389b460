// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pdu

import (
	"encoding/json"
	"fmt"

	"github.com/bureau-foundation/federation/lib/ref"
)

// Event is one parsed unit of room history: the common envelope plus
// the type-dispatched content and state key. Events are immutable
// after ingestion fixes their origin; the raw wire blob is kept
// separately and stays authoritative.
type Event struct {
	AuthEvents     []ref.EventID
	Content        Content
	Depth          int64
	Hashes         map[string]string
	Origin         ref.ServerName
	OriginServerTS int64
	PrevEvents     []ref.EventID
	RoomID         ref.RoomID
	Sender         ref.UserID
	Signatures     map[ref.ServerName]map[ref.KeyID]string
	StateKey       StateKey
	Type           ref.EventType
}

// HasState reports whether the event is a state event, which routes it
// to the state stream of the room's persistent log.
func (e *Event) HasState() bool { return e.StateKey.Present() }

// envelope is the wire shape common to all event types. Content and
// state key are deferred for per-type handling.
type envelope struct {
	AuthEvents     []ref.EventID                            `json:"auth_events"`
	Content        json.RawMessage                          `json:"content"`
	Depth          int64                                    `json:"depth"`
	Hashes         map[string]string                        `json:"hashes"`
	Origin         ref.ServerName                           `json:"origin"`
	OriginServerTS int64                                    `json:"origin_server_ts"`
	PrevEvents     []ref.EventID                            `json:"prev_events"`
	RoomID         ref.RoomID                               `json:"room_id"`
	Sender         ref.UserID                               `json:"sender"`
	Signatures     map[ref.ServerName]map[ref.KeyID]string  `json:"signatures"`
	StateKey       *string                                  `json:"state_key"`
	Type           ref.EventType                            `json:"type"`
}

// typeOnly is the cheap pre-parse that drives content dispatch.
type typeOnly struct {
	Type ref.EventType `json:"type"`
}

// Parse decodes a raw event blob into the typed model. The type field
// is peeked first, then the content is decoded into the matching
// variant and the state key validated against that variant's rule.
// Unknown event types parse into OtherContent.
func Parse(raw []byte) (*Event, error) {
	var peek typeOnly
	if err := json.Unmarshal(raw, &peek); err != nil {
		return nil, fmt.Errorf("parsing event type: %w", err)
	}
	if peek.Type == "" {
		return nil, fmt.Errorf("event has no type")
	}

	var wire envelope
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("parsing %s envelope: %w", peek.Type, err)
	}
	if wire.RoomID.IsZero() {
		return nil, fmt.Errorf("%s event has no room_id", peek.Type)
	}
	if wire.Sender.IsZero() {
		return nil, fmt.Errorf("%s event has no sender", peek.Type)
	}

	content, err := parseContent(peek.Type, wire.Content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s content: %w", peek.Type, err)
	}
	stateKey, err := content.validateStateKey(wire.StateKey)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", peek.Type, err)
	}

	return &Event{
		AuthEvents:     wire.AuthEvents,
		Content:        content,
		Depth:          wire.Depth,
		Hashes:         wire.Hashes,
		Origin:         wire.Origin,
		OriginServerTS: wire.OriginServerTS,
		PrevEvents:     wire.PrevEvents,
		RoomID:         wire.RoomID,
		Sender:         wire.Sender,
		Signatures:     wire.Signatures,
		StateKey:       stateKey,
		Type:           peek.Type,
	}, nil
}

func parseContent(eventType ref.EventType, raw json.RawMessage) (Content, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("event has no content")
	}
	var content Content
	switch eventType {
	case "m.room.member":
		content = &MemberContent{}
	case "m.room.create":
		content = &CreateContent{}
	case "m.room.join_rules":
		content = &JoinRulesContent{}
	case "m.room.power_levels":
		content = &PowerLevelsContent{}
	case "m.room.history_visibility":
		content = &HistoryVisibilityContent{}
	case "m.room.aliases":
		// Room versions 5 and below only; later versions carry
		// aliases in m.room.canonical_alias, which falls through to
		// the opaque variant.
		content = &AliasesContent{}
	default:
		content = &OtherContent{}
	}
	if err := json.Unmarshal(raw, content); err != nil {
		return nil, err
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}
	return content, nil
}

// validateContent checks the semantic required fields of the known
// variants. Shape errors are caught by json.Unmarshal; this catches
// present-but-empty.
func validateContent(content Content) error {
	switch c := content.(type) {
	case *MemberContent:
		if c.Membership == "" {
			return fmt.Errorf("membership field is empty")
		}
	case *CreateContent:
		if c.Creator == "" {
			return fmt.Errorf("creator field is empty")
		}
	case *JoinRulesContent:
		if c.JoinRule == "" {
			return fmt.Errorf("join_rule field is empty")
		}
	case *HistoryVisibilityContent:
		if c.HistoryVisibility == "" {
			return fmt.Errorf("history_visibility field is empty")
		}
	case *AliasesContent:
		if len(c.Aliases) == 0 {
			return fmt.Errorf("aliases list is empty")
		}
	}
	return nil
}

// Summary renders a one-line human-readable description of the event
// for logs and diagnostics. For opaque message events the body is
// re-read from the raw blob, since OtherContent preserves nothing.
func (e *Event) Summary(raw []byte) string {
	switch c := e.Content.(type) {
	case *MemberContent:
		return fmt.Sprintf("%s %s", e.Sender, c.Membership)
	case *CreateContent:
		return fmt.Sprintf("%s created the room", c.Creator)
	case *JoinRulesContent:
		return fmt.Sprintf("%s changed join rules to %s", e.Sender, c.JoinRule)
	case *PowerLevelsContent:
		return fmt.Sprintf("%s changed power levels", e.Sender)
	case *HistoryVisibilityContent:
		return fmt.Sprintf("%s made room %s", e.Sender, c.HistoryVisibility)
	case *AliasesContent:
		return fmt.Sprintf("%s set room aliases", e.Sender)
	default:
		if e.Type == "m.room.message" {
			var message struct {
				Content struct {
					Body string `json:"body"`
				} `json:"content"`
			}
			if err := json.Unmarshal(raw, &message); err == nil {
				return fmt.Sprintf("%s says %q", e.Sender, message.Content.Body)
			}
		}
		return fmt.Sprintf("%s %s", e.Sender, e.Type)
	}
}
