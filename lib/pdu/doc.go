// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pdu parses federation events into a typed polymorphic model.
//
// A PDU's JSON shape depends on its type string: the content schema
// and the state-key rule both vary per type. Parse peeks at the type
// first, then decodes the content into the matching variant; every
// variant, including the opaque catch-all for unknown types, is
// upcast into the shared Content interface so downstream code never
// switches on event types it doesn't care about. Unknown event types
// parse successfully — forward compatibility is mandatory, not an
// error.
//
// The state-key rule is what decides whether an event is a state
// event, which in turn decides which persistent log stream it belongs
// to: some types demand an empty-string state key, membership demands
// a user ID, aliases demands a server name, and arbitrary types may
// carry any state key or none.
//
// EDUs — ephemeral signals like typing and presence — are parsed by
// the same dispatch pattern but are never persisted; see ParseEDU.
package pdu
