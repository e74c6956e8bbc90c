package entity

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Record is a single entity stored as field name -> value.
type Record map[string]any

// FieldValueError reports a field whose value cannot be converted to its declared kind.
type FieldValueError struct {
	Field string
	Kind  Kind
	Value any
}

func (e *FieldValueError) Error() string {
	return fmt.Sprintf("field %s: cannot use %v (%T) as %s", e.Field, e.Value, e.Value, e.Kind)
}

// Clone returns a shallow copy of the record.
// Values are scalars, so a shallow copy is enough to keep stored records private.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ID returns the record's identifier under the descriptor.
func (r Record) ID(d Descriptor) (int64, bool) {
	v, ok := r[d.IDField]
	if !ok {
		return 0, false
	}
	id, err := toInt64(v)
	if err != nil {
		return 0, false
	}
	return id, true
}

// WithID returns a copy of the record with the identifier set.
func (r Record) WithID(d Descriptor, id int64) Record {
	out := r.Clone()
	if out == nil {
		out = Record{}
	}
	out[d.IDField] = id
	return out
}

// Normalize converts every known field to its declared kind and drops unknown fields.
//
// Values arrive as strings (XML), json.Number or float64 (JSON) depending on where they
// were decoded; after Normalize integers are int64, text is string and decimals are
// decimal.Decimal.
func Normalize(d Descriptor, in map[string]any) (Record, error) {
	out := make(Record, len(d.Fields))
	for _, f := range d.Fields {
		v, ok := in[f.Name]
		if !ok || v == nil {
			continue
		}
		converted, err := convert(f, v)
		if err != nil {
			return nil, err
		}
		out[f.Name] = converted
	}
	return out, nil
}

// Strings renders every known field as text, for formats with no native number type
// (XML). The result is a map, so element order is up to the encoder.
func (r Record) Strings(d Descriptor) map[string]any {
	out := make(map[string]any, len(r))
	for _, f := range d.Fields {
		v, ok := r[f.Name]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			out[f.Name] = t
		case decimal.Decimal:
			out[f.Name] = t.String()
		case json.Number:
			out[f.Name] = t.String()
		default:
			out[f.Name] = fmt.Sprint(t)
		}
	}
	return out
}

func convert(f Field, v any) (any, error) {
	switch f.Kind {
	case Integer:
		n, err := toInt64(v)
		if err != nil {
			return nil, &FieldValueError{Field: f.Name, Kind: f.Kind, Value: v}
		}
		return n, nil
	case Decimal:
		dec, err := toDecimal(v)
		if err != nil {
			return nil, &FieldValueError{Field: f.Name, Kind: f.Kind, Value: v}
		}
		return dec, nil
	case Text:
		switch t := v.(type) {
		case string:
			return t, nil
		case json.Number:
			return t.String(), nil
		case float64, int, int64, bool:
			return fmt.Sprint(t), nil
		default:
			return nil, &FieldValueError{Field: f.Name, Kind: f.Kind, Value: v}
		}
	default:
		return nil, &FieldValueError{Field: f.Name, Kind: f.Kind, Value: v}
	}
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case uint64:
		if t > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d overflows int64", t)
		}
		return int64(t), nil
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) || math.IsNaN(t) {
			return 0, fmt.Errorf("%v is not an integer", t)
		}
		if t < math.MinInt64 || t >= math.MaxInt64 {
			return 0, fmt.Errorf("integer %v overflows int64", t)
		}
		return int64(t), nil
	case json.Number:
		return wholeInt64(t.String())
	case string:
		return wholeInt64(strings.TrimSpace(t))
	default:
		return 0, fmt.Errorf("unsupported integer type %T", v)
	}
}

// wholeInt64 accepts any numeral with an integral value, so "2", "2.0" and "2e0" are
// all 2.
func wholeInt64(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%s is not an integer", s)
	}
	n := d.BigInt()
	if !n.IsInt64() {
		return 0, fmt.Errorf("integer %s overflows int64", s)
	}
	return n.Int64(), nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case json.Number:
		return decimal.NewFromString(t.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(t))
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported decimal type %T", v)
	}
}

// ParseID parses a path identifier.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid identifier %q", raw)
	}
	return id, nil
}
