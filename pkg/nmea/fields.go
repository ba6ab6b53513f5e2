// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nmea

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"
)

var (
	timePattern   = regexp.MustCompile(`^([0-2][0-9])([0-5][0-9])([0-5][0-9])(?:\.([0-9]{1,3}))?$`)
	degreePattern = regexp.MustCompile(`^([0-9]{2,3})([0-9]{2}\.[0-9]{0,5})$`)
)

var errOutOfRange = errors.New("out of range")

// Field describes one comma-separated position of a sentence.
// Index 0 is the keyword itself.
type Field struct {
	Index     int
	Name      string
	Dependent int // index of a second field handed to the parser, or -1

	parse func(rec any, value, dep string) error
}

// Time declares an HHMMSS[.fff] time-of-day field
func Time[M any](index int, name string, ref func(*M) **TimeOfDay) Field {
	return Field{Index: index, Name: name, Dependent: -1,
		parse: func(rec any, value, _ string) error {
			t, ok := parseTimeOfDay(value)
			if !ok {
				zap.L().Debug("unparsable NMEA time, using midnight",
					zap.Int("index", index), zap.String("value", value))
			}
			*ref(rec.(*M)) = &t
			return nil
		}}
}

// Latitude declares a DDMM.mmmmm field paired with an N/S letter at dirIndex
func Latitude[M any](index, dirIndex int, name string, ref func(*M) **Degree) Field {
	return degreeField(index, dirIndex, name, 90, North, South, ref)
}

// Longitude declares a DDDMM.mmmmm field paired with an E/W letter at dirIndex
func Longitude[M any](index, dirIndex int, name string, ref func(*M) **Degree) Field {
	return degreeField(index, dirIndex, name, 180, East, West, ref)
}

func degreeField[M any](index, dirIndex int, name string, limit int, pos, neg Hemisphere, ref func(*M) **Degree) Field {
	return Field{Index: index, Name: name, Dependent: dirIndex,
		parse: func(rec any, value, dep string) error {
			if len(dep) != 1 || (Hemisphere(dep[0]) != pos && Hemisphere(dep[0]) != neg) {
				return fmt.Errorf("%w: field %d %q (want %s or %s)", ErrInvalidDirection, dirIndex, dep, pos, neg)
			}
			d, err := parseDegree(value, limit)
			if err != nil {
				return &FieldError{Index: index, Name: name, Value: value, Err: err}
			}
			d.Hemisphere = Hemisphere(dep[0])
			*ref(rec.(*M)) = &d
			return nil
		}}
}

// Int declares a decimal integer field
func Int[M any](index int, name string, ref func(*M) **int) Field {
	return Field{Index: index, Name: name, Dependent: -1,
		parse: func(rec any, value, _ string) error {
			v, err := strconv.Atoi(value)
			if err != nil {
				return &FieldError{Index: index, Name: name, Value: value, Err: err}
			}
			*ref(rec.(*M)) = &v
			return nil
		}}
}

// Float declares a decimal floating point field
func Float[M any](index int, name string, ref func(*M) **float64) Field {
	return Field{Index: index, Name: name, Dependent: -1,
		parse: func(rec any, value, _ string) error {
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return &FieldError{Index: index, Name: name, Value: value, Err: err}
			}
			*ref(rec.(*M)) = &v
			return nil
		}}
}

// Text declares a field kept verbatim, such as a status or mode letter
func Text[M any](index int, name string, ref func(*M) **string) Field {
	return Field{Index: index, Name: name, Dependent: -1,
		parse: func(rec any, value, _ string) error {
			v := value
			*ref(rec.(*M)) = &v
			return nil
		}}
}

// Date declares a DDMMYY date field
func Date[M any](index int, name string, ref func(*M) **time.Time) Field {
	return Field{Index: index, Name: name, Dependent: -1,
		parse: func(rec any, value, _ string) error {
			v, err := time.Parse("020106", value)
			if err != nil {
				return &FieldError{Index: index, Name: name, Value: value, Err: err}
			}
			*ref(rec.(*M)) = &v
			return nil
		}}
}

func parseTimeOfDay(value string) (TimeOfDay, bool) {
	m := timePattern.FindStringSubmatch(value)
	if m == nil {
		return TimeOfDay{}, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	second, _ := strconv.Atoi(m[3])
	if hour > 23 {
		return TimeOfDay{}, false
	}

	ms := 0
	if frac := m[4]; frac != "" {
		for len(frac) < 3 {
			frac += "0"
		}
		ms, _ = strconv.Atoi(frac)
	}
	return TimeOfDay{Hour: hour, Minute: minute, Second: second, Millisecond: ms}, true
}

// parseDegree parses D{2,3}MM.mmmmm. limit bounds the absolute coordinate.
func parseDegree(value string, limit int) (Degree, error) {
	m := degreePattern.FindStringSubmatch(value)
	if m == nil {
		return Degree{}, fmt.Errorf("not a degree value")
	}
	deg, _ := strconv.Atoi(m[1])
	minutes, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Degree{}, err
	}
	if minutes >= 60 || deg > limit || (deg == limit && minutes > 0) {
		return Degree{}, errOutOfRange
	}
	return Degree{Degrees: deg, Minutes: minutes}, nil
}
