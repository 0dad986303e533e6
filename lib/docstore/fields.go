// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package docstore

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"
)

type serverTimestamp struct{}

// ServerTimestamp is a field value the store replaces with its commit
// time.
var ServerTimestamp = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp sentinel.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

type serverTimestampIfUnset struct{}

// ServerTimestampIfUnset behaves like ServerTimestamp when the stored
// field is absent or null, and keeps the stored value otherwise.
var ServerTimestampIfUnset = serverTimestampIfUnset{}

// IsServerTimestampIfUnset reports whether v is the
// ServerTimestampIfUnset sentinel.
func IsServerTimestampIfUnset(v any) bool {
	_, ok := v.(serverTimestampIfUnset)
	return ok
}

// AppendValues is a field value that extends the existing array
// instead of replacing it.
type AppendValues struct {
	Values []any
}

// Append returns an AppendValues sentinel for values.
func Append(values ...any) AppendValues {
	return AppendValues{Values: values}
}

// ApplyPatch returns a copy of fields with patch merged in at the top
// level. Sentinels resolve against now and a nil value removes the
// field. Neither input is modified.
func ApplyPatch(fields, patch map[string]any, now time.Time) map[string]any {
	result := CloneFields(fields)
	if result == nil {
		result = make(map[string]any, len(patch))
	}
	for key, value := range patch {
		switch v := value.(type) {
		case nil:
			delete(result, key)
		case serverTimestamp:
			result[key] = now
		case serverTimestampIfUnset:
			if result[key] == nil {
				result[key] = now
			}
		case AppendValues:
			existing := AsSlice(result[key])
			merged := make([]any, 0, len(existing)+len(v.Values))
			merged = append(merged, existing...)
			for _, item := range v.Values {
				merged = append(merged, CloneValue(item))
			}
			result[key] = merged
		default:
			result[key] = CloneValue(value)
		}
	}
	return result
}

// CloneFields deep-copies a field map.
func CloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	clone := make(map[string]any, len(fields))
	for key, value := range fields {
		clone[key] = CloneValue(value)
	}
	return clone
}

// CloneValue deep-copies maps and slices; other values are returned
// as-is.
func CloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return CloneFields(v)
	case []any:
		clone := make([]any, len(v))
		for i, item := range v {
			clone[i] = CloneValue(item)
		}
		return clone
	case []string:
		return slices.Clone(v)
	case []map[string]any:
		clone := make([]any, len(v))
		for i, item := range v {
			clone[i] = CloneFields(item)
		}
		return clone
	default:
		return value
	}
}

// AsSlice converts the array shapes a store can produce into []any.
// Anything else yields nil.
func AsSlice(value any) []any {
	switch v := value.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out
	}
	return nil
}

// millisecondThreshold separates unix seconds from unix milliseconds.
// Seconds values stay below it until the year 33658.
const millisecondThreshold = 1e12

// ParseTime normalizes the timestamp shapes stores produce: time.Time,
// RFC 3339 strings, calendar dates, unix seconds or milliseconds, and
// {seconds, nanoseconds} maps. The result is in UTC. Zero times and
// unrecognized values report false.
func ParseTime(value any) (time.Time, bool) {
	var t time.Time
	switch v := value.(type) {
	case time.Time:
		t = v
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		t = *v
	case string:
		parsed, ok := parseTimeString(v)
		if !ok {
			return time.Time{}, false
		}
		t = parsed
	case map[string]any:
		parsed, ok := parseTimeMap(v)
		if !ok {
			return time.Time{}, false
		}
		t = parsed
	default:
		number, ok := AsFloat(value)
		if !ok || number == 0 {
			return time.Time{}, false
		}
		t = fromUnix(number)
	}
	if t.IsZero() {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func parseTimeString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseTimeMap(m map[string]any) (time.Time, bool) {
	seconds, ok := AsFloat(firstPresent(m, "seconds", "_seconds"))
	if !ok {
		return time.Time{}, false
	}
	nanos, _ := AsFloat(firstPresent(m, "nanoseconds", "_nanoseconds", "nanos"))
	return time.Unix(int64(seconds), int64(nanos)), true
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, key := range keys {
		if value, ok := m[key]; ok {
			return value
		}
	}
	return nil
}

func fromUnix(number float64) time.Time {
	if math.Abs(number) >= millisecondThreshold {
		return time.UnixMilli(int64(number))
	}
	whole, fraction := math.Modf(number)
	return time.Unix(int64(whole), int64(fraction*1e9))
}

// AsFloat converts any Go numeric type to float64.
func AsFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// SortDocuments orders documents in place. Documents missing the
// order field sort after all others in either direction; ties break on
// ID ascending.
func SortDocuments(documents []Document, order Order) {
	slices.SortStableFunc(documents, func(a, b Document) int {
		if order.Field == "" {
			return strings.Compare(a.ID, b.ID)
		}
		left, leftOK := a.Fields[order.Field]
		right, rightOK := b.Fields[order.Field]
		switch {
		case !leftOK && !rightOK:
			return strings.Compare(a.ID, b.ID)
		case !leftOK:
			return 1
		case !rightOK:
			return -1
		}
		result := compareValues(left, right)
		if order.Descending {
			result = -result
		}
		if result == 0 {
			return strings.Compare(a.ID, b.ID)
		}
		return result
	})
}

func compareValues(left, right any) int {
	if l, ok := AsFloat(left); ok {
		if r, ok := AsFloat(right); ok {
			return cmp.Compare(l, r)
		}
	}
	if l, ok := ParseTime(left); ok {
		if r, ok := ParseTime(right); ok {
			return l.Compare(r)
		}
	}
	l, _ := left.(string)
	r, _ := right.(string)
	return strings.Compare(l, r)
}
