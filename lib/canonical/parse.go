// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Parse decodes a JSON document into a canonical Value. Object keys
// are sorted during parsing; duplicate keys, floating-point literals,
// integers outside ±(2^53−1), and trailing data after the document
// are all rejected.
func Parse(data []byte) (Value, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	token, err := decoder.Token()
	if err != nil {
		return Value{}, fmt.Errorf("parsing canonical JSON: %w", err)
	}
	value, err := parseValue(decoder, token)
	if err != nil {
		return Value{}, err
	}
	if _, err := decoder.Token(); err != io.EOF {
		return Value{}, fmt.Errorf("trailing data after JSON document")
	}
	return value, nil
}

// parseValue converts the token just read (and, for containers, the
// tokens that follow) into a Value.
func parseValue(decoder *json.Decoder, token json.Token) (Value, error) {
	switch t := token.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return parseNumber(t)
	case json.Delim:
		switch t {
		case '[':
			return parseList(decoder)
		case '{':
			return parseObject(decoder)
		}
	}
	return Value{}, fmt.Errorf("unexpected JSON token %v", token)
}

func parseNumber(number json.Number) (Value, error) {
	literal := number.String()
	if strings.ContainsAny(literal, ".eE") {
		return Value{}, fmt.Errorf("floating point values are not allowed in canonical JSON: %s", literal)
	}
	n, err := strconv.ParseInt(literal, 10, 64)
	if err != nil || n > MaxInt || n < -MaxInt {
		return Value{}, fmt.Errorf("integers must be within ±(2^53−1): got %s", literal)
	}
	return Int(n), nil
}

func parseList(decoder *json.Decoder) (Value, error) {
	var items []Value
	for {
		token, err := decoder.Token()
		if err != nil {
			return Value{}, fmt.Errorf("parsing canonical JSON list: %w", err)
		}
		if delim, ok := token.(json.Delim); ok && delim == ']' {
			return List(items...), nil
		}
		item, err := parseValue(decoder, token)
		if err != nil {
			return Value{}, err
		}
		items = append(items, item)
	}
}

func parseObject(decoder *json.Decoder) (Value, error) {
	var members []Member
	for {
		token, err := decoder.Token()
		if err != nil {
			return Value{}, fmt.Errorf("parsing canonical JSON object: %w", err)
		}
		if delim, ok := token.(json.Delim); ok && delim == '}' {
			break
		}
		key, ok := token.(string)
		if !ok {
			return Value{}, fmt.Errorf("object key is not a string: %v", token)
		}
		valueToken, err := decoder.Token()
		if err != nil {
			return Value{}, fmt.Errorf("parsing canonical JSON object value: %w", err)
		}
		value, err := parseValue(decoder, valueToken)
		if err != nil {
			return Value{}, err
		}
		members = append(members, Member{Key: key, Value: value})
	}
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Key < members[j].Key
	})
	for i := 1; i < len(members); i++ {
		if members[i].Key == members[i-1].Key {
			return Value{}, fmt.Errorf("duplicate object key %q", members[i].Key)
		}
	}
	return Value{kind: KindObject, members: members}, nil
}
