// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package canonical

import "strconv"

// Encode renders the value to its canonical byte form: no whitespace,
// object keys in sorted order, strings escaped minimally. The output
// is deterministic: equal values always encode to identical bytes.
func Encode(value Value) []byte {
	return appendValue(nil, value)
}

// AppendEncode appends the canonical byte form of value to dst and
// returns the extended slice, for callers that stream directly into a
// hash or an existing buffer.
func AppendEncode(dst []byte, value Value) []byte {
	return appendValue(dst, value)
}

func appendValue(dst []byte, value Value) []byte {
	switch value.kind {
	case KindNull:
		return append(dst, "null"...)
	case KindBool:
		if value.boolVal {
			return append(dst, "true"...)
		}
		return append(dst, "false"...)
	case KindInt:
		return strconv.AppendInt(dst, value.intVal, 10)
	case KindString:
		return appendString(dst, value.strVal)
	case KindList:
		dst = append(dst, '[')
		for i, item := range value.list {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendValue(dst, item)
		}
		return append(dst, ']')
	case KindObject:
		dst = append(dst, '{')
		for i, member := range value.members {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = appendString(dst, member.Key)
			dst = append(dst, ':')
			dst = appendValue(dst, member.Value)
		}
		return append(dst, '}')
	}
	panic("canonical: invalid value kind")
}

const hexDigits = "0123456789abcdef"

// appendString writes a JSON string with the minimal escaping every
// canonical JSON implementation agrees on: quote, backslash, the named
// control escapes, and \u00XX for remaining control characters.
// Non-ASCII UTF-8 passes through unescaped.
func appendString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			dst = append(dst, '\\', '"')
		case '\\':
			dst = append(dst, '\\', '\\')
		case '\b':
			dst = append(dst, '\\', 'b')
		case '\f':
			dst = append(dst, '\\', 'f')
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		default:
			if c < 0x20 {
				dst = append(dst, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
			} else {
				dst = append(dst, c)
			}
		}
	}
	return append(dst, '"')
}
