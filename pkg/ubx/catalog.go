// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ubx

import (
	"fmt"
	"math"
	"slices"
	"sync"
)

// Key identifies a message by its class and message id
type Key struct {
	Class uint8
	ID    uint8
}

func (k Key) String() string {
	return fmt.Sprintf("%02X-%02X", k.Class, k.ID)
}

// Message is implemented by every declared UBX record.
//
// Key must not dereference its receiver so that it can be called on a nil
// pointer of the record type.
type Message interface {
	Key() Key
}

// KeyOf returns the wire identity of a record type
func KeyOf[T Message]() Key {
	var zero T
	return zero.Key()
}

// Flags describe what a message type may be used for
type Flags uint8

const (
	Receivable Flags = 1 << iota // may arrive from the receiver
	Sendable                     // may be transmitted to the receiver
	Pollable                     // has a zero-payload query form
	Config                       // answered with ACK-ACK or ACK-NAK
)

// Has reports whether all bits of x are set
func (f Flags) Has(x Flags) bool {
	return f&x == x
}

// Kind is the wire encoding of a field
type Kind uint8

const (
	KindU1 Kind = iota + 1
	KindI1
	KindU2
	KindI2
	KindU4
	KindI4
	KindR4
	KindR8
	KindRepeated
)

// Size returns the wire width of a primitive kind, or 0 for KindRepeated
func (k Kind) Size() int {
	switch k {
	case KindU1, KindI1:
		return 1
	case KindU2, KindI2:
		return 2
	case KindU4, KindI4, KindR4:
		return 4
	case KindR8:
		return 8
	}
	return 0
}

func (k Kind) String() string {
	switch k {
	case KindU1:
		return "U1"
	case KindI1:
		return "I1"
	case KindU2:
		return "U2"
	case KindI2:
		return "I2"
	case KindU4:
		return "U4"
	case KindI4:
		return "I4"
	case KindR4:
		return "R4"
	case KindR8:
		return "R8"
	case KindRepeated:
		return "repeated"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Field describes one payload field of a message or repeated sub-structure.
// Values travel through get/set as raw little-endian bit patterns widened to
// 64 bits.
type Field struct {
	Ordinal int
	Name    string
	Kind    Kind

	// Repeated fields only
	CountOrdinal int
	Item         []Field

	itemSize int
	get      func(rec any) uint64
	set      func(rec any, v uint64)
	length   func(rec any) int
	resize   func(rec any, n int)
	elem     func(rec any, i int) any
}

func primitive[M, T any](ordinal int, name string, kind Kind, ref func(*M) *T, get func(T) uint64, set func(uint64) T) Field {
	return Field{
		Ordinal: ordinal,
		Name:    name,
		Kind:    kind,
		get:     func(rec any) uint64 { return get(*ref(rec.(*M))) },
		set:     func(rec any, v uint64) { *ref(rec.(*M)) = set(v) },
	}
}

// U1 declares an unsigned 8-bit field
func U1[M any](ordinal int, name string, ref func(*M) *uint8) Field {
	return primitive(ordinal, name, KindU1, ref,
		func(v uint8) uint64 { return uint64(v) },
		func(v uint64) uint8 { return uint8(v) })
}

// I1 declares a signed 8-bit field
func I1[M any](ordinal int, name string, ref func(*M) *int8) Field {
	return primitive(ordinal, name, KindI1, ref,
		func(v int8) uint64 { return uint64(v) },
		func(v uint64) int8 { return int8(v) })
}

// U2 declares an unsigned 16-bit field
func U2[M any](ordinal int, name string, ref func(*M) *uint16) Field {
	return primitive(ordinal, name, KindU2, ref,
		func(v uint16) uint64 { return uint64(v) },
		func(v uint64) uint16 { return uint16(v) })
}

// I2 declares a signed 16-bit field
func I2[M any](ordinal int, name string, ref func(*M) *int16) Field {
	return primitive(ordinal, name, KindI2, ref,
		func(v int16) uint64 { return uint64(v) },
		func(v uint64) int16 { return int16(v) })
}

// U4 declares an unsigned 32-bit field
func U4[M any](ordinal int, name string, ref func(*M) *uint32) Field {
	return primitive(ordinal, name, KindU4, ref,
		func(v uint32) uint64 { return uint64(v) },
		func(v uint64) uint32 { return uint32(v) })
}

// I4 declares a signed 32-bit field
func I4[M any](ordinal int, name string, ref func(*M) *int32) Field {
	return primitive(ordinal, name, KindI4, ref,
		func(v int32) uint64 { return uint64(v) },
		func(v uint64) int32 { return int32(v) })
}

// R4 declares an IEEE 754 single precision field
func R4[M any](ordinal int, name string, ref func(*M) *float32) Field {
	return primitive(ordinal, name, KindR4, ref,
		func(v float32) uint64 { return uint64(math.Float32bits(v)) },
		func(v uint64) float32 { return math.Float32frombits(uint32(v)) })
}

// R8 declares an IEEE 754 double precision field
func R8[M any](ordinal int, name string, ref func(*M) *float64) Field {
	return primitive(ordinal, name, KindR8, ref,
		math.Float64bits,
		math.Float64frombits)
}

// Repeated declares the trailing block of fixed-size sub-structures whose
// element count is stored in the field at countOrdinal.
func Repeated[M, S any](ordinal int, name string, countOrdinal int, ref func(*M) *[]S, item ...Field) Field {
	return Field{
		Ordinal:      ordinal,
		Name:         name,
		Kind:         KindRepeated,
		CountOrdinal: countOrdinal,
		Item:         item,
		length:       func(rec any) int { return len(*ref(rec.(*M))) },
		resize: func(rec any, n int) {
			if n == 0 {
				*ref(rec.(*M)) = nil
				return
			}
			*ref(rec.(*M)) = make([]S, n)
		},
		elem: func(rec any, i int) any { return &(*ref(rec.(*M)))[i] },
	}
}

// Definition is the catalog entry of one message type
type Definition struct {
	Key    Key
	Name   string
	Flags  Flags
	Fields []Field

	newFn    func() Message
	size     int // fixed payload size, excluding repeated elements
	variable bool
	countIdx int

	pollOnce  sync.Once
	pollFrame []byte
}

// Define builds a definition for record type M. Its key is taken from M's
// Key method so the table cannot drift from the type.
func Define[M any, P interface {
	*M
	Message
}](name string, flags Flags, fields ...Field) *Definition {
	var zero P
	return &Definition{
		Key:    zero.Key(),
		Name:   name,
		Flags:  flags,
		Fields: fields,
		newFn:  func() Message { return P(new(M)) },
	}
}

// New returns a zero record of the definition's type
func (d *Definition) New() Message {
	return d.newFn()
}

// PayloadSize returns the fixed payload size. For variable messages this is
// the size of the fields preceding the repeated block.
func (d *Definition) PayloadSize() int {
	return d.size
}

// Variable reports whether the payload carries a repeated block
func (d *Definition) Variable() bool {
	return d.variable
}

// compile orders fields by ordinal and derives the payload layout
func (d *Definition) compile() error {
	if d.newFn == nil {
		return fmt.Errorf("%w: %s has no constructor", ErrInvalidLayout, d.Name)
	}
	if err := sortFields(d.Name, d.Fields); err != nil {
		return err
	}

	d.size = 0
	d.variable = false
	d.countIdx = -1
	for i := range d.Fields {
		f := &d.Fields[i]
		if f.Kind != KindRepeated {
			if f.Kind.Size() == 0 || f.get == nil {
				return fmt.Errorf("%w: %s.%s has invalid kind %s", ErrInvalidLayout, d.Name, f.Name, f.Kind)
			}
			d.size += f.Kind.Size()
			continue
		}

		if i != len(d.Fields)-1 {
			return fmt.Errorf("%w: %s.%s must be the last field", ErrInvalidLayout, d.Name, f.Name)
		}
		if len(f.Item) == 0 {
			return fmt.Errorf("%w: %s.%s has no item fields", ErrInvalidLayout, d.Name, f.Name)
		}
		if err := sortFields(d.Name+"."+f.Name, f.Item); err != nil {
			return err
		}
		f.itemSize = 0
		for _, sf := range f.Item {
			if sf.Kind == KindRepeated || sf.Kind.Size() == 0 {
				return fmt.Errorf("%w: %s.%s.%s must be a primitive field", ErrInvalidLayout, d.Name, f.Name, sf.Name)
			}
			f.itemSize += sf.Kind.Size()
		}

		for j := 0; j < i; j++ {
			if d.Fields[j].Ordinal != f.CountOrdinal {
				continue
			}
			switch d.Fields[j].Kind {
			case KindU1, KindU2, KindU4:
				d.countIdx = j
			default:
				return fmt.Errorf("%w: %s count field %s must be unsigned", ErrInvalidLayout, d.Name, d.Fields[j].Name)
			}
		}
		if d.countIdx < 0 {
			return fmt.Errorf("%w: %s.%s count ordinal %d not found", ErrInvalidLayout, d.Name, f.Name, f.CountOrdinal)
		}
		d.variable = true
	}
	return nil
}

func sortFields(owner string, fields []Field) error {
	slices.SortStableFunc(fields, func(a, b Field) int { return a.Ordinal - b.Ordinal })
	for i := 1; i < len(fields); i++ {
		if fields[i].Ordinal == fields[i-1].Ordinal {
			return fmt.Errorf("%w: %s has duplicate ordinal %d", ErrInvalidLayout, owner, fields[i].Ordinal)
		}
	}
	return nil
}

// Catalog maps wire identities to message definitions.
// Registration must complete before the catalog is shared between goroutines.
type Catalog struct {
	byKey  map[Key]*Definition
	byName map[string]*Definition
	defs   []*Definition
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		byKey:  make(map[Key]*Definition),
		byName: make(map[string]*Definition),
	}
}

// Register compiles and adds a definition
func (c *Catalog) Register(d *Definition) error {
	if prev, ok := c.byKey[d.Key]; ok {
		return fmt.Errorf("%w: %s (%s) already registered as %s", ErrDuplicateMessage, d.Name, d.Key, prev.Name)
	}
	if _, ok := c.byName[d.Name]; ok {
		return fmt.Errorf("%w: name %s", ErrDuplicateMessage, d.Name)
	}
	if err := d.compile(); err != nil {
		return err
	}
	c.byKey[d.Key] = d
	c.byName[d.Name] = d
	c.defs = append(c.defs, d)
	return nil
}

// MustRegister registers definitions and panics on the first error
func (c *Catalog) MustRegister(defs ...*Definition) *Catalog {
	for _, d := range defs {
		if err := c.Register(d); err != nil {
			panic(err)
		}
	}
	return c
}

// Lookup returns the definition for a key
func (c *Catalog) Lookup(k Key) (*Definition, bool) {
	d, ok := c.byKey[k]
	return d, ok
}

// LookupReceivable returns the definition for a key if it may arrive from the receiver
func (c *Catalog) LookupReceivable(k Key) (*Definition, bool) {
	d, ok := c.byKey[k]
	if !ok || !d.Flags.Has(Receivable) {
		return nil, false
	}
	return d, true
}

// LookupName returns the definition with the given name (e.g. "NAV-CLOCK")
func (c *Catalog) LookupName(name string) (*Definition, bool) {
	d, ok := c.byName[name]
	return d, ok
}

// Name returns the message name for a key, or its hex form when unknown
func (c *Catalog) Name(k Key) string {
	if d, ok := c.byKey[k]; ok {
		return d.Name
	}
	return k.String()
}

// Definitions returns all definitions ordered by key
func (c *Catalog) Definitions() []*Definition {
	out := slices.Clone(c.defs)
	slices.SortFunc(out, func(a, b *Definition) int {
		if a.Key.Class != b.Key.Class {
			return int(a.Key.Class) - int(b.Key.Class)
		}
		return int(a.Key.ID) - int(b.Key.ID)
	})
	return out
}
