// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nmea

import (
	"fmt"
	"slices"
	"sort"
)

// Sentence is implemented by every declared NMEA record.
//
// Keyword must not dereference its receiver.
type Sentence interface {
	Keyword() string
}

// Definition is the catalog entry of one sentence type
type Definition struct {
	Keyword string
	Fields  []Field

	newFn func() Sentence
}

// Define builds a definition for record type M keyed by M's Keyword
func Define[M any, P interface {
	*M
	Sentence
}](fields ...Field) *Definition {
	var zero P
	return &Definition{
		Keyword: zero.Keyword(),
		Fields:  fields,
		newFn:   func() Sentence { return P(new(M)) },
	}
}

// New returns a zero record of the definition's type
func (d *Definition) New() Sentence {
	return d.newFn()
}

func (d *Definition) compile() error {
	slices.SortStableFunc(d.Fields, func(a, b Field) int { return a.Index - b.Index })
	for i, f := range d.Fields {
		if f.Index < 1 {
			return fmt.Errorf("%w: %s.%s index %d", ErrInvalidLayout, d.Keyword, f.Name, f.Index)
		}
		if i > 0 && d.Fields[i-1].Index == f.Index {
			return fmt.Errorf("%w: %s has duplicate index %d", ErrInvalidLayout, d.Keyword, f.Index)
		}
		if f.Dependent == f.Index || f.Dependent == 0 {
			return fmt.Errorf("%w: %s.%s has invalid dependent index %d", ErrInvalidLayout, d.Keyword, f.Name, f.Dependent)
		}
	}
	return nil
}

// Catalog maps sentence keywords to definitions.
// Registration must complete before the catalog is shared between goroutines.
type Catalog struct {
	byKeyword map[string]*Definition
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{byKeyword: make(map[string]*Definition)}
}

// Register compiles and adds a definition
func (c *Catalog) Register(d *Definition) error {
	if _, ok := c.byKeyword[d.Keyword]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSentence, d.Keyword)
	}
	if err := d.compile(); err != nil {
		return err
	}
	c.byKeyword[d.Keyword] = d
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

// Lookup returns the definition for a keyword
func (c *Catalog) Lookup(keyword string) (*Definition, bool) {
	d, ok := c.byKeyword[keyword]
	return d, ok
}

// Keywords returns the registered keywords in sorted order
func (c *Catalog) Keywords() []string {
	out := make([]string, 0, len(c.byKeyword))
	for k := range c.byKeyword {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
