// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package canonical

import (
	"fmt"
	"sort"
)

// MaxInt is the largest integer magnitude representable in canonical
// JSON: 2^53−1, the largest integer a double-precision float can hold
// exactly. Values outside ±MaxInt are rejected at parse time.
const MaxInt = 1<<53 - 1

// Kind identifies which variant a Value holds.
type Kind int

const (
	// KindNull is the JSON null value. It is also the kind of the
	// zero Value.
	KindNull Kind = iota
	// KindBool is a JSON boolean.
	KindBool
	// KindInt is a JSON integer within ±(2^53−1). Canonical JSON has
	// no other numeric kind.
	KindInt
	// KindString is a JSON string.
	KindString
	// KindList is a JSON array. Element order is significant and
	// preserved.
	KindList
	// KindObject is a JSON object with unique, lexicographically
	// sorted string keys.
	KindObject
)

// Value is a parsed canonical JSON value. Object members are always
// held in sorted key order, so encoding is a straight walk with no
// further normalization. The zero Value is null.
//
// Value is not safe for concurrent mutation; callers that share a
// Value across goroutines must treat it as read-only.
type Value struct {
	kind    Kind
	boolVal bool
	intVal  int64
	strVal  string
	list    []Value
	members []Member
}

// Member is one key/value pair of an object.
type Member struct {
	Key   string
	Value Value
}

// Kind returns which variant the value holds.
func (v Value) Kind() Kind { return v.kind }

// BoolValue returns the boolean payload. ok is false if the value is
// not a boolean.
func (v Value) BoolValue() (value, ok bool) {
	return v.boolVal, v.kind == KindBool
}

// IntValue returns the integer payload. ok is false if the value is
// not an integer.
func (v Value) IntValue() (int64, bool) {
	return v.intVal, v.kind == KindInt
}

// StringValue returns the string payload. ok is false if the value is
// not a string.
func (v Value) StringValue() (string, bool) {
	return v.strVal, v.kind == KindString
}

// Items returns the elements of a list, or nil if the value is not a
// list. The returned slice aliases the value's storage.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	return v.list
}

// Members returns the key/value pairs of an object in sorted key
// order, or nil if the value is not an object. The returned slice
// aliases the value's storage.
func (v Value) Members() []Member {
	if v.kind != KindObject {
		return nil
	}
	return v.members
}

// Get returns the value under key in an object. ok is false if the
// value is not an object or the key is absent.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	i := sort.Search(len(v.members), func(i int) bool {
		return v.members[i].Key >= key
	})
	if i < len(v.members) && v.members[i].Key == key {
		return v.members[i].Value, true
	}
	return Value{}, false
}

// Remove deletes key from an object and returns the removed value.
// ok is false if the value is not an object or the key is absent;
// the object is unchanged in that case.
func (v *Value) Remove(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	i := sort.Search(len(v.members), func(i int) bool {
		return v.members[i].Key >= key
	})
	if i >= len(v.members) || v.members[i].Key != key {
		return Value{}, false
	}
	removed := v.members[i].Value
	v.members = append(v.members[:i], v.members[i+1:]...)
	return removed, true
}

// Set inserts or replaces key in an object, keeping members sorted.
// Panics if the value is not an object: callers build objects with
// Object and only ever set fields on objects.
func (v *Value) Set(key string, value Value) {
	if v.kind != KindObject {
		panic(fmt.Sprintf("canonical: Set(%q) on %v value", key, v.kind))
	}
	i := sort.Search(len(v.members), func(i int) bool {
		return v.members[i].Key >= key
	})
	if i < len(v.members) && v.members[i].Key == key {
		v.members[i].Value = value
		return
	}
	v.members = append(v.members, Member{})
	copy(v.members[i+1:], v.members[i:])
	v.members[i] = Member{Key: key, Value: value}
}

// Null returns the canonical null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, boolVal: b} }

// Int wraps an integer. Panics if the value is outside ±(2^53−1);
// locally constructed documents never carry out-of-range integers, so
// this indicates a bug rather than bad input.
func Int(n int64) Value {
	if n > MaxInt || n < -MaxInt {
		panic(fmt.Sprintf("canonical: integer %d outside ±(2^53−1)", n))
	}
	return Value{kind: KindInt, intVal: n}
}

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, strVal: s} }

// List wraps a list of values. The slice is not copied.
func List(items ...Value) Value {
	return Value{kind: KindList, list: items}
}

// Object returns an empty object. Populate it with Set.
func Object() Value { return Value{kind: KindObject} }

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}
