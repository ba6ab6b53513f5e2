// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ubx

import (
	"fmt"
	"math"
)

// FieldValue is one decoded field of a message
type FieldValue struct {
	Field *Field
	Value any           // typed primitive, or nil for the repeated field
	Items [][]FieldValue // repeated field only
}

// Values returns the fields of m in ordinal order as typed Go values
func (d *Definition) Values(m Message) []FieldValue {
	out := make([]FieldValue, 0, len(d.Fields))
	for i := range d.Fields {
		f := &d.Fields[i]
		if f.Kind != KindRepeated {
			out = append(out, FieldValue{Field: f, Value: typedValue(f.Kind, f.get(m))})
			continue
		}
		n := f.length(m)
		items := make([][]FieldValue, n)
		for j := 0; j < n; j++ {
			e := f.elem(m, j)
			for k := range f.Item {
				sf := &f.Item[k]
				items[j] = append(items[j], FieldValue{Field: sf, Value: typedValue(sf.Kind, sf.get(e))})
			}
		}
		out = append(out, FieldValue{Field: f, Items: items})
	}
	return out
}

func typedValue(kind Kind, raw uint64) any {
	switch kind {
	case KindU1:
		return uint8(raw)
	case KindI1:
		return int8(raw)
	case KindU2:
		return uint16(raw)
	case KindI2:
		return int16(raw)
	case KindU4:
		return uint32(raw)
	case KindI4:
		return int32(raw)
	case KindR4:
		return math.Float32frombits(uint32(raw))
	case KindR8:
		return math.Float64frombits(raw)
	}
	return nil
}

// rawValue converts a decoded number back into the wire bit pattern of kind
func rawValue(kind Kind, v any) (uint64, error) {
	switch kind {
	case KindR4, KindR8:
		var f float64
		switch n := v.(type) {
		case float64:
			f = n
		case float32:
			f = float64(n)
		case uint64:
			f = float64(n)
		case int64:
			f = float64(n)
		default:
			return 0, fmt.Errorf("expected number for %s, got %T", kind, v)
		}
		if kind == KindR4 {
			return uint64(math.Float32bits(float32(f))), nil
		}
		return math.Float64bits(f), nil
	}

	switch n := v.(type) {
	case uint64:
		return n, nil
	case int64:
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("expected integer for %s, got %T", kind, v)
	}
}
