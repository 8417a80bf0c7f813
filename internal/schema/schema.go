// Package schema defines the record types exchanged at the service
// boundaries (API responses, webhook ingestion, configuration loading)
// together with their validation and wire-encoding rules.
//
// Every record type R has a ValidateR function that accepts an untyped
// key-value structure (parsed JSON) and either produces a fully-populated
// value or fails with a *ValidationError enumerating every offending field,
// and an Encode method producing the canonical JSON-compatible structure.
// Both are pure functions: no shared state, safe for concurrent use.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// FieldError describes a single validation failure.
type FieldError struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ValidationError aggregates every field that failed validation. It is the
// only error type validation functions return.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Path + ": " + f.Reason
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether a failure was recorded for the given field path.
func (e *ValidationError) Has(path string) bool {
	for _, f := range e.Fields {
		if f.Path == path {
			return true
		}
	}
	return false
}

const (
	reasonMissing = "required field is missing"
	reasonString  = "must be a string"
	reasonInt     = "must be an integer"
	reasonFloat   = "must be a number"
	reasonBool    = "must be a boolean"
	reasonTime    = "must be an RFC 3339 timestamp"
	reasonObject  = "must be an object"
	reasonArray   = "must be an array"
)

// Nullable represents a field with three wire states: absent, explicit null,
// and present with a value. The zero value is the absent state.
type Nullable[T any] struct {
	Value   T
	Valid   bool // present with a non-null value
	Present bool // key appeared in the input
}

// Value constructs a present, non-null Nullable.
func Value[T any](v T) Nullable[T] {
	return Nullable[T]{Value: v, Valid: true, Present: true}
}

// Null constructs a present-but-null Nullable.
func Null[T any]() Nullable[T] {
	return Nullable[T]{Present: true}
}

// decoder walks a raw key-value structure collecting field errors so a
// single Validate call reports every violation at once.
type decoder struct {
	raw  map[string]any
	errs []FieldError
}

func newDecoder(raw map[string]any) *decoder {
	return &decoder{raw: raw}
}

func (d *decoder) fail(path, reason string) {
	d.errs = append(d.errs, FieldError{Path: path, Reason: reason})
}

// failNested records a child record's validation failures under a path
// prefix, so nested errors read e.g. "update_config.task_id".
func (d *decoder) failNested(prefix string, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		for _, f := range verr.Fields {
			d.errs = append(d.errs, FieldError{Path: joinPath(prefix, f.Path), Reason: f.Reason})
		}
		return
	}
	d.fail(prefix, err.Error())
}

func joinPath(prefix, path string) string {
	switch {
	case path == "":
		return prefix
	case strings.HasPrefix(path, "["):
		return prefix + path
	default:
		return prefix + "." + path
	}
}

func (d *decoder) hasFailure(path string) bool {
	for _, f := range d.errs {
		if f.Path == path {
			return true
		}
	}
	return false
}

func (d *decoder) err() error {
	if len(d.errs) == 0 {
		return nil
	}
	return &ValidationError{Fields: d.errs}
}

func (d *decoder) requiredString(key string) string {
	v, ok := d.raw[key]
	if !ok || v == nil {
		d.fail(key, reasonMissing)
		return ""
	}
	s, ok := v.(string)
	if !ok {
		d.fail(key, reasonString)
		return ""
	}
	return s
}

func (d *decoder) nullableString(key string) Nullable[string] {
	v, ok := d.raw[key]
	if !ok {
		return Nullable[string]{}
	}
	if v == nil {
		return Null[string]()
	}
	s, ok := v.(string)
	if !ok {
		d.fail(key, reasonString)
		return Nullable[string]{}
	}
	return Value(s)
}

func (d *decoder) requiredInt(key string) int {
	v, ok := d.raw[key]
	if !ok || v == nil {
		d.fail(key, reasonMissing)
		return 0
	}
	n, ok := asInt(v)
	if !ok {
		d.fail(key, reasonInt)
		return 0
	}
	return n
}

func (d *decoder) requiredFloat(key string) float64 {
	v, ok := d.raw[key]
	if !ok || v == nil {
		d.fail(key, reasonMissing)
		return 0
	}
	f, ok := asFloat(v)
	if !ok {
		d.fail(key, reasonFloat)
		return 0
	}
	return f
}

func (d *decoder) nullableFloat(key string) Nullable[float64] {
	v, ok := d.raw[key]
	if !ok {
		return Nullable[float64]{}
	}
	if v == nil {
		return Null[float64]()
	}
	f, ok := asFloat(v)
	if !ok {
		d.fail(key, reasonFloat)
		return Nullable[float64]{}
	}
	return Value(f)
}

func (d *decoder) requiredBool(key string) bool {
	v, ok := d.raw[key]
	if !ok || v == nil {
		d.fail(key, reasonMissing)
		return false
	}
	b, ok := v.(bool)
	if !ok {
		d.fail(key, reasonBool)
		return false
	}
	return b
}

func (d *decoder) requiredTime(key string) time.Time {
	v, ok := d.raw[key]
	if !ok || v == nil {
		d.fail(key, reasonMissing)
		return time.Time{}
	}
	t, ok := asTime(v)
	if !ok {
		d.fail(key, reasonTime)
		return time.Time{}
	}
	return t
}

func (d *decoder) requiredObject(key string) map[string]any {
	v, ok := d.raw[key]
	if !ok || v == nil {
		d.fail(key, reasonMissing)
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		d.fail(key, reasonObject)
		return nil
	}
	return m
}

func (d *decoder) nullableObject(key string) Nullable[map[string]any] {
	v, ok := d.raw[key]
	if !ok {
		return Nullable[map[string]any]{}
	}
	if v == nil {
		return Null[map[string]any]()
	}
	m, ok := v.(map[string]any)
	if !ok {
		d.fail(key, reasonObject)
		return Nullable[map[string]any]{}
	}
	return Value(m)
}

func (d *decoder) requiredStringSlice(key string) []string {
	v, ok := d.raw[key]
	if !ok || v == nil {
		d.fail(key, reasonMissing)
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		d.fail(key, reasonArray)
		return nil
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			d.fail(fmt.Sprintf("%s[%d]", key, i), reasonString)
			continue
		}
		out = append(out, s)
	}
	return out
}

// maxSafeInt is the largest magnitude at which a float64 still represents
// every integer exactly. Beyond it an integral-looking JSON number has
// already lost precision, so conversion would fabricate a value.
const maxSafeInt = 1 << 53

// asInt accepts JSON numbers that carry an integral value. Strings are
// never coerced.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || n > maxSafeInt || n < -maxSafeInt {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// asTime accepts an RFC 3339 string (the universal wire form for
// timestamps) or an already-typed time.Time.
func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	case time.Time:
		return t, true
	}
	return time.Time{}, false
}

// encodeTime renders the canonical wire form for timestamps.
func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// putNullableString writes a three-state string field: absent keys stay
// absent, explicit nulls stay null.
func putNullableString(raw map[string]any, key string, v Nullable[string]) {
	if !v.Present {
		return
	}
	if !v.Valid {
		raw[key] = nil
		return
	}
	raw[key] = v.Value
}

func putNullableFloat(raw map[string]any, key string, v Nullable[float64]) {
	if !v.Present {
		return
	}
	if !v.Valid {
		raw[key] = nil
		return
	}
	raw[key] = v.Value
}
