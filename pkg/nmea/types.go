// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nmea

import (
	"fmt"
	"time"
)

// Hemisphere is the direction letter paired with a coordinate
type Hemisphere byte

const (
	North Hemisphere = 'N'
	South Hemisphere = 'S'
	East  Hemisphere = 'E'
	West  Hemisphere = 'W'
)

func (h Hemisphere) String() string {
	return string(rune(h))
}

// Degree is a coordinate as transmitted: whole degrees, decimal minutes and
// hemisphere. Minutes are in [0, 60).
type Degree struct {
	Degrees    int
	Minutes    float64
	Hemisphere Hemisphere
}

// Decimal returns the signed decimal coordinate, negative for South and West
func (d Degree) Decimal() float64 {
	v := float64(d.Degrees) + d.Minutes/60
	if d.Hemisphere == South || d.Hemisphere == West {
		return -v
	}
	return v
}

func (d Degree) String() string {
	return fmt.Sprintf("%d°%.5f'%s", d.Degrees, d.Minutes, d.Hemisphere)
}

// TimeOfDay is a UTC time of day. The zero value is midnight and also stands
// in for unparsable times.
type TimeOfDay struct {
	Hour        int
	Minute      int
	Second      int
	Millisecond int
}

// Duration returns the time elapsed since midnight
func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t.Hour)*time.Hour +
		time.Duration(t.Minute)*time.Minute +
		time.Duration(t.Second)*time.Second +
		time.Duration(t.Millisecond)*time.Millisecond
}

// On combines the time of day with the UTC date of day
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Add(t.Duration())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d.%03d", t.Hour, t.Minute, t.Second, t.Millisecond)
}
