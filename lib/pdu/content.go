// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pdu

import (
	"encoding/json"
	"fmt"

	"github.com/bureau-foundation/federation/lib/ref"
)

// Content is the typed payload of an event, one implementation per
// known event type plus OtherContent for everything else. The
// interface is closed: variants live in this package because the
// state-key rule is part of the event type's schema, not something
// callers extend.
type Content interface {
	// validateStateKey enforces the variant's state-key presence rule
	// on the raw wire value (nil when the field was absent) and
	// returns the typed key.
	validateStateKey(raw *string) (StateKey, error)
}

// MemberContent is an m.room.member event: a membership change for the
// user named by the state key.
type MemberContent struct {
	Membership  string `json:"membership"`
	DisplayName string `json:"displayname,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

func (c *MemberContent) validateStateKey(raw *string) (StateKey, error) {
	if raw == nil {
		return StateKey{}, fmt.Errorf("membership event has no state key")
	}
	user, err := ref.ParseUserID(*raw)
	if err != nil {
		return StateKey{}, fmt.Errorf("membership state key: %w", err)
	}
	return StateKey{kind: StateKeyUser, user: user}, nil
}

// CreateContent is an m.room.create event, the root of a room's event
// graph.
type CreateContent struct {
	Creator     string `json:"creator"`
	RoomVersion string `json:"room_version,omitempty"`
}

func (c *CreateContent) validateStateKey(raw *string) (StateKey, error) {
	return emptyStateKey(raw, "create")
}

// JoinRulesContent is an m.room.join_rules event.
type JoinRulesContent struct {
	JoinRule string `json:"join_rule"`
}

func (c *JoinRulesContent) validateStateKey(raw *string) (StateKey, error) {
	return emptyStateKey(raw, "join rules")
}

// PowerLevelsContent is an m.room.power_levels event. Levels absent
// from the wire decode as zero, matching the protocol's defaults for
// most fields.
type PowerLevelsContent struct {
	Ban           int64                 `json:"ban"`
	Events        map[string]int64      `json:"events"`
	EventsDefault int64                 `json:"events_default"`
	Kick          int64                 `json:"kick"`
	Redact        int64                 `json:"redact"`
	StateDefault  int64                 `json:"state_default"`
	Users         map[ref.UserID]int64  `json:"users"`
	UsersDefault  int64                 `json:"users_default"`
}

func (c *PowerLevelsContent) validateStateKey(raw *string) (StateKey, error) {
	return emptyStateKey(raw, "power levels")
}

// HistoryVisibilityContent is an m.room.history_visibility event.
type HistoryVisibilityContent struct {
	HistoryVisibility string `json:"history_visibility"`
}

func (c *HistoryVisibilityContent) validateStateKey(raw *string) (StateKey, error) {
	return emptyStateKey(raw, "history visibility")
}

// AliasesContent is an m.room.aliases event (room versions 5 and
// below). Its state key names the server whose aliases these are. The
// wire form of the aliases field is either a single string or a list.
type AliasesContent struct {
	Aliases []string
}

func (c *AliasesContent) UnmarshalJSON(data []byte) error {
	var wire struct {
		Aliases json.RawMessage `json:"aliases"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if len(wire.Aliases) == 0 {
		return fmt.Errorf("aliases event has no aliases field")
	}
	if wire.Aliases[0] == '"' {
		var single string
		if err := json.Unmarshal(wire.Aliases, &single); err != nil {
			return err
		}
		c.Aliases = []string{single}
		return nil
	}
	return json.Unmarshal(wire.Aliases, &c.Aliases)
}

func (c *AliasesContent) validateStateKey(raw *string) (StateKey, error) {
	if raw == nil {
		return StateKey{}, fmt.Errorf("aliases event has no state key")
	}
	server, err := ref.ParseServerName(*raw)
	if err != nil {
		return StateKey{}, fmt.Errorf("aliases state key: %w", err)
	}
	return StateKey{kind: StateKeyServer, server: server}, nil
}

// OtherContent is the catch-all for event types this package doesn't
// model. It preserves nothing but presence; the raw blob stays
// authoritative for the actual payload. An arbitrary type may carry
// any state key or none.
type OtherContent struct{}

func (c *OtherContent) validateStateKey(raw *string) (StateKey, error) {
	if raw == nil {
		return StateKey{}, nil
	}
	if *raw == "" {
		return StateKey{kind: StateKeyEmpty}, nil
	}
	return StateKey{kind: StateKeyOther, other: *raw}, nil
}

// emptyStateKey enforces the must-be-empty-string rule shared by the
// singleton state event types.
func emptyStateKey(raw *string, eventKind string) (StateKey, error) {
	if raw == nil {
		return StateKey{}, fmt.Errorf("%s event has no state key", eventKind)
	}
	if *raw != "" {
		return StateKey{}, fmt.Errorf("%s event state key must be empty, got %q", eventKind, *raw)
	}
	return StateKey{kind: StateKeyEmpty}, nil
}
