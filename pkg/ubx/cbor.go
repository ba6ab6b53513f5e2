// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ubx

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborRecord is the CBOR form of a message: [class, id, {ordinal: value}]
type cborRecord struct {
	_      struct{} `cbor:",toarray"`
	Class  uint8
	ID     uint8
	Fields map[int]cbor.RawMessage
}

// EncodeCBOR exports a message as [class, id, {ordinal: value}].
// The repeated field is an array of {ordinal: value} maps.
func (c *Catalog) EncodeCBOR(m Message) ([]byte, error) {
	def, ok := c.Lookup(m.Key())
	if !ok {
		return nil, &UnknownMessageError{Key: m.Key()}
	}

	fields := make(map[int]interface{}, len(def.Fields))
	for _, fv := range def.Values(m) {
		if fv.Field.Kind != KindRepeated {
			fields[fv.Field.Ordinal] = fv.Value
			continue
		}
		items := make([]map[int]interface{}, len(fv.Items))
		for i, item := range fv.Items {
			items[i] = make(map[int]interface{}, len(item))
			for _, sv := range item {
				items[i][sv.Field.Ordinal] = sv.Value
			}
		}
		fields[fv.Field.Ordinal] = items
	}

	data, err := cbor.Marshal([]interface{}{def.Key.Class, def.Key.ID, fields})
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR: %w", err)
	}
	return data, nil
}

// DecodeCBOR parses a record produced by EncodeCBOR. Missing ordinals are
// left at zero.
func (c *Catalog) DecodeCBOR(data []byte) (Message, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty CBOR payload")
	}

	var rec cborRecord
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode CBOR: %w", err)
	}

	key := Key{Class: rec.Class, ID: rec.ID}
	def, ok := c.Lookup(key)
	if !ok {
		return nil, &UnknownMessageError{Key: key}
	}

	m := def.New()
	for _, f := range def.Fields {
		raw, ok := rec.Fields[f.Ordinal]
		if !ok {
			continue
		}

		if f.Kind != KindRepeated {
			if err := setCBORField(&f, m, raw); err != nil {
				return nil, fmt.Errorf("%s.%s: %w", def.Name, f.Name, err)
			}
			continue
		}

		var items []map[int]cbor.RawMessage
		if err := cbor.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", def.Name, f.Name, err)
		}
		f.resize(m, len(items))
		for i, item := range items {
			e := f.elem(m, i)
			for _, sf := range f.Item {
				sraw, ok := item[sf.Ordinal]
				if !ok {
					continue
				}
				if err := setCBORField(&sf, e, sraw); err != nil {
					return nil, fmt.Errorf("%s.%s[%d].%s: %w", def.Name, f.Name, i, sf.Name, err)
				}
			}
		}
		if count := def.Fields[def.countIdx].get(m); count != uint64(len(items)) {
			return nil, fmt.Errorf("%w: %s has %d %s but count is %d", ErrCountMismatch, def.Name, len(items), f.Name, count)
		}
	}
	return m, nil
}

func setCBORField(f *Field, rec any, raw cbor.RawMessage) error {
	var v interface{}
	if err := cbor.Unmarshal(raw, &v); err != nil {
		return err
	}
	bits, err := rawValue(f.Kind, v)
	if err != nil {
		return err
	}
	f.set(rec, bits)
	return nil
}

// EncodeCBOR exports a message using DefaultCatalog
func EncodeCBOR(m Message) ([]byte, error) {
	return DefaultCatalog.EncodeCBOR(m)
}

// DecodeCBOR parses a CBOR record using DefaultCatalog
func DecodeCBOR(data []byte) (Message, error) {
	return DefaultCatalog.DecodeCBOR(data)
}
