// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pdu

import (
	"testing"

	"github.com/bureau-foundation/federation/lib/ref"
)

func TestParseMemberEvent(t *testing.T) {
	raw := []byte(`{
		"type": "m.room.member",
		"room_id": "!room:example.com",
		"sender": "@alice:example.com",
		"state_key": "@alice:example.com",
		"origin_server_ts": 1630000000000,
		"depth": 1,
		"content": {"membership": "join", "displayname": "Alice"}
	}`)
	event, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	member, ok := event.Content.(*MemberContent)
	if !ok {
		t.Fatalf("content type = %T, want *MemberContent", event.Content)
	}
	if member.Membership != "join" {
		t.Errorf("Membership = %q, want join", member.Membership)
	}
	if event.StateKey.Kind() != StateKeyUser {
		t.Errorf("state key kind = %v, want StateKeyUser", event.StateKey.Kind())
	}
	if event.StateKey.User() != ref.MustParseUserID("@alice:example.com") {
		t.Errorf("state key user = %v", event.StateKey.User())
	}
	if !event.HasState() {
		t.Error("membership event not recognized as state event")
	}
}

func TestParseMemberRejectsBadStateKey(t *testing.T) {
	raw := []byte(`{
		"type": "m.room.member",
		"room_id": "!room:example.com",
		"sender": "@alice:example.com",
		"state_key": "not-a-user-id",
		"content": {"membership": "join"}
	}`)
	if _, err := Parse(raw); err == nil {
		t.Error("membership event with invalid state key parsed")
	}
}

func TestParseCreateEvent(t *testing.T) {
	raw := []byte(`{
		"type": "m.room.create",
		"room_id": "!room:example.com",
		"sender": "@alice:example.com",
		"state_key": "",
		"content": {"creator": "@alice:example.com", "room_version": "6"}
	}`)
	event, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	create := event.Content.(*CreateContent)
	if create.Creator != "@alice:example.com" {
		t.Errorf("Creator = %q", create.Creator)
	}
	if event.StateKey.Kind() != StateKeyEmpty {
		t.Errorf("state key kind = %v, want StateKeyEmpty", event.StateKey.Kind())
	}
}

func TestEmptyStateKeyRuleEnforced(t *testing.T) {
	// Singleton state events must carry state_key: "" exactly.
	nonEmpty := []byte(`{
		"type": "m.room.join_rules",
		"room_id": "!room:example.com",
		"sender": "@alice:example.com",
		"state_key": "extra",
		"content": {"join_rule": "invite"}
	}`)
	if _, err := Parse(nonEmpty); err == nil {
		t.Error("join rules event with non-empty state key parsed")
	}

	absent := []byte(`{
		"type": "m.room.join_rules",
		"room_id": "!room:example.com",
		"sender": "@alice:example.com",
		"content": {"join_rule": "invite"}
	}`)
	if _, err := Parse(absent); err == nil {
		t.Error("join rules event without state key parsed")
	}
}

func TestParsePowerLevels(t *testing.T) {
	raw := []byte(`{
		"type": "m.room.power_levels",
		"room_id": "!room:example.com",
		"sender": "@alice:example.com",
		"state_key": "",
		"content": {
			"ban": 50,
			"events": {"m.room.name": 100},
			"events_default": 0,
			"kick": 50,
			"redact": 50,
			"state_default": 50,
			"users": {"@alice:example.com": 100},
			"users_default": 0
		}
	}`)
	event, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	levels := event.Content.(*PowerLevelsContent)
	if levels.Ban != 50 {
		t.Errorf("Ban = %d, want 50", levels.Ban)
	}
	if levels.Users[ref.MustParseUserID("@alice:example.com")] != 100 {
		t.Errorf("alice's level = %d, want 100", levels.Users[ref.MustParseUserID("@alice:example.com")])
	}
	if levels.Events["m.room.name"] != 100 {
		t.Errorf("m.room.name level = %d, want 100", levels.Events["m.room.name"])
	}
}

func TestParseAliasesSingleAndList(t *testing.T) {
	single := []byte(`{
		"type": "m.room.aliases",
		"room_id": "!room:example.com",
		"sender": "@alice:example.com",
		"state_key": "example.com",
		"content": {"aliases": "#main:example.com"}
	}`)
	event, err := Parse(single)
	if err != nil {
		t.Fatalf("Parse (single): %v", err)
	}
	aliases := event.Content.(*AliasesContent)
	if len(aliases.Aliases) != 1 || aliases.Aliases[0] != "#main:example.com" {
		t.Errorf("Aliases = %v", aliases.Aliases)
	}
	if event.StateKey.Server() != ref.MustParseServerName("example.com") {
		t.Errorf("state key server = %v", event.StateKey.Server())
	}

	list := []byte(`{
		"type": "m.room.aliases",
		"room_id": "!room:example.com",
		"sender": "@alice:example.com",
		"state_key": "example.com",
		"content": {"aliases": ["#main:example.com", "#general:example.com"]}
	}`)
	event, err = Parse(list)
	if err != nil {
		t.Fatalf("Parse (list): %v", err)
	}
	aliases = event.Content.(*AliasesContent)
	if len(aliases.Aliases) != 2 {
		t.Errorf("Aliases = %v, want 2 entries", aliases.Aliases)
	}
}

func TestUnknownTypeParsesOpaque(t *testing.T) {
	withState := []byte(`{
		"type": "org.example.custom",
		"room_id": "!room:example.com",
		"sender": "@alice:example.com",
		"state_key": "anything goes",
		"content": {"arbitrary": ["payload", 42]}
	}`)
	event, err := Parse(withState)
	if err != nil {
		t.Fatalf("Parse (with state): %v", err)
	}
	if _, ok := event.Content.(*OtherContent); !ok {
		t.Fatalf("content type = %T, want *OtherContent", event.Content)
	}
	if !event.HasState() {
		t.Error("custom event with state key not a state event")
	}
	if raw, _ := event.StateKey.Raw(); raw != "anything goes" {
		t.Errorf("state key = %q", raw)
	}

	withoutState := []byte(`{
		"type": "m.room.message",
		"room_id": "!room:example.com",
		"sender": "@alice:example.com",
		"content": {"body": "hi", "msgtype": "m.text"}
	}`)
	event, err = Parse(withoutState)
	if err != nil {
		t.Fatalf("Parse (without state): %v", err)
	}
	if event.HasState() {
		t.Error("message event treated as state event")
	}
}

func TestParseEnvelopeErrors(t *testing.T) {
	for name, raw := range map[string]string{
		"no type":      `{"room_id": "!r:x.com", "sender": "@a:x.com", "content": {}}`,
		"no room_id":   `{"type": "m.room.message", "sender": "@a:x.com", "content": {}}`,
		"no sender":    `{"type": "m.room.message", "room_id": "!r:x.com", "content": {}}`,
		"no content":   `{"type": "m.room.message", "room_id": "!r:x.com", "sender": "@a:x.com"}`,
		"not JSON":     `nonsense`,
		"empty member": `{"type": "m.room.member", "room_id": "!r:x.com", "sender": "@a:x.com", "state_key": "@a:x.com", "content": {}}`,
	} {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Errorf("%s: Parse succeeded, want error", name)
		}
	}
}

func TestSummary(t *testing.T) {
	message := []byte(`{
		"type": "m.room.message",
		"room_id": "!room:example.com",
		"sender": "@alice:example.com",
		"content": {"body": "hello there", "msgtype": "m.text"}
	}`)
	event, err := Parse(message)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := `@alice:example.com says "hello there"`
	if got := event.Summary(message); got != want {
		t.Errorf("Summary = %q, want %q", got, want)
	}

	member := []byte(`{
		"type": "m.room.member",
		"room_id": "!room:example.com",
		"sender": "@bob:example.com",
		"state_key": "@bob:example.com",
		"content": {"membership": "leave"}
	}`)
	event, err = Parse(member)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := event.Summary(member); got != "@bob:example.com leave" {
		t.Errorf("Summary = %q", got)
	}
}

func TestParseTypingEDU(t *testing.T) {
	raw := []byte(`{
		"edu_type": "m.typing",
		"content": {"room_id": "!room:example.com", "typing": true, "user_id": "@alice:example.com"}
	}`)
	edu, err := ParseEDU(raw)
	if err != nil {
		t.Fatalf("ParseEDU: %v", err)
	}
	typing := edu.Content.(*TypingContent)
	if !typing.Typing {
		t.Error("Typing = false")
	}
	want := "m.typing: @alice:example.com in !room:example.com"
	if got := edu.Summary(); got != want {
		t.Errorf("Summary = %q, want %q", got, want)
	}
}

func TestParsePresenceEDU(t *testing.T) {
	raw := []byte(`{
		"edu_type": "m.presence",
		"content": {"push": [
			{"user_id": "@alice:example.com", "presence": "online", "last_active_ago": 5},
			{"user_id": "@bob:example.com", "presence": "offline", "last_active_ago": 90000}
		]}
	}`)
	edu, err := ParseEDU(raw)
	if err != nil {
		t.Fatalf("ParseEDU: %v", err)
	}
	want := "m.presence: @alice:example.com=online, @bob:example.com=offline"
	if got := edu.Summary(); got != want {
		t.Errorf("Summary = %q, want %q", got, want)
	}
}

func TestParsePresenceRejectsBadStatus(t *testing.T) {
	raw := []byte(`{
		"edu_type": "m.presence",
		"content": {"push": [{"user_id": "@a:x.com", "presence": "dancing", "last_active_ago": 1}]}
	}`)
	if _, err := ParseEDU(raw); err == nil {
		t.Error("invalid presence status parsed")
	}
}

func TestParseReceiptEDU(t *testing.T) {
	raw := []byte(`{
		"edu_type": "m.receipt",
		"content": {
			"!room:example.com": {
				"m.read": {"data": {"ts": 1630000000000}, "event_ids": ["$abc"]}
			}
		}
	}`)
	edu, err := ParseEDU(raw)
	if err != nil {
		t.Fatalf("ParseEDU: %v", err)
	}
	receipts := edu.Content.(ReceiptContent)
	room := receipts[ref.MustParseRoomID("!room:example.com")]
	if len(room.Read.EventIDs) != 1 || room.Read.EventIDs[0] != ref.MustParseEventID("$abc") {
		t.Errorf("EventIDs = %v", room.Read.EventIDs)
	}
	if got := edu.Summary(); got != "m.receipt: 1 room receipts" {
		t.Errorf("Summary = %q", got)
	}
}

func TestParseUnknownEDU(t *testing.T) {
	raw := []byte(`{"edu_type": "org.example.signal", "content": {"whatever": true}}`)
	edu, err := ParseEDU(raw)
	if err != nil {
		t.Fatalf("ParseEDU: %v", err)
	}
	if _, ok := edu.Content.(*UnknownEDUContent); !ok {
		t.Errorf("content type = %T, want *UnknownEDUContent", edu.Content)
	}
	if got := edu.Summary(); got != "org.example.signal: unknown EDU" {
		t.Errorf("Summary = %q", got)
	}
}
