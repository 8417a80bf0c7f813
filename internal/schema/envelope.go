package schema

import "strconv"

// GFIResponse is the uniform envelope around API payloads: a numeric status
// code alongside the result. Validation and encoding delegate to the
// payload type's own functions.
type GFIResponse[T any] struct {
	Code   int
	Result T
}

// DefaultCode is the envelope code used when none is supplied.
const DefaultCode = 200

// OK wraps a payload with the default code.
func OK[T any](result T) GFIResponse[T] {
	return GFIResponse[T]{Code: DefaultCode, Result: result}
}

// ValidateResponse validates an envelope, delegating the result field to
// the given payload validator. An absent code defaults to 200.
func ValidateResponse[T any](raw map[string]any, validate func(any) (T, error)) (GFIResponse[T], error) {
	d := newDecoder(raw)

	r := GFIResponse[T]{Code: DefaultCode}
	if v, ok := d.raw["code"]; ok && v != nil {
		code, ok := asInt(v)
		if !ok {
			d.fail("code", reasonInt)
		} else {
			r.Code = code
		}
	}

	v, ok := d.raw["result"]
	if !ok {
		d.fail("result", reasonMissing)
	} else {
		result, err := validate(v)
		if err != nil {
			d.failNested("result", err)
		}
		r.Result = result
	}

	return r, d.err()
}

// EncodeWith encodes the envelope, delegating the result to the given
// payload encoder.
func (r GFIResponse[T]) EncodeWith(encode func(T) any) map[string]any {
	return map[string]any{
		"code":   r.Code,
		"result": encode(r.Result),
	}
}

// AsObject adapts a record validator so it can serve as an envelope payload
// validator for a single object result.
func AsObject[T any](validate func(map[string]any) (T, error)) func(any) (T, error) {
	return func(v any) (T, error) {
		var zero T
		m, ok := v.(map[string]any)
		if !ok {
			return zero, &ValidationError{Fields: []FieldError{{Path: "", Reason: reasonObject}}}
		}
		return validate(m)
	}
}

// AsList adapts a record validator for a sequence-of-records result,
// reporting element failures with indexed paths.
func AsList[T any](validate func(map[string]any) (T, error)) func(any) ([]T, error) {
	return func(v any) ([]T, error) {
		items, ok := v.([]any)
		if !ok {
			return nil, &ValidationError{Fields: []FieldError{{Path: "", Reason: reasonArray}}}
		}
		d := newDecoder(nil)
		out := make([]T, 0, len(items))
		for i, item := range items {
			m, ok := item.(map[string]any)
			if !ok {
				d.fail(indexPath(i), reasonObject)
				continue
			}
			value, err := validate(m)
			if err != nil {
				d.failNested(indexPath(i), err)
				continue
			}
			out = append(out, value)
		}
		if err := d.err(); err != nil {
			return nil, err
		}
		return out, nil
	}
}

func indexPath(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}
