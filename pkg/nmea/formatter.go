// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nmea

import (
	"fmt"
	"strings"
)

// FormatSentence formats a decoded sentence into a human-readable line
func FormatSentence(s Sentence) string {
	var parts []string
	switch v := s.(type) {
	case *GGA:
		parts = append(parts, optional("time", v.Time), coordinate("lat", v.Latitude), coordinate("lon", v.Longitude),
			optional("fix", v.FixQuality), optional("sats", v.SatellitesUsed), optional("hdop", v.HDOP),
			optional("msl", v.AltitudeMSL), optional("geoid", v.GeoidSeparation))
	case *VTG:
		parts = append(parts, optional("cog", v.CourseTrue), optional("knots", v.SpeedKnots), optional("kph", v.SpeedKph))
	case *RMC:
		parts = append(parts, optional("time", v.Time), fmt.Sprintf("valid=%t", v.Valid()),
			coordinate("lat", v.Latitude), coordinate("lon", v.Longitude),
			optional("knots", v.SpeedKnots), optional("cog", v.Course))
		if v.Date != nil {
			parts = append(parts, "date="+v.Date.Format("2006-01-02"))
		}
	}
	return fmt.Sprintf("%s %s", s.Keyword(), strings.Join(parts, " "))
}

func optional[T any](name string, v *T) string {
	if v == nil {
		return name + "=-"
	}
	return fmt.Sprintf("%s=%v", name, *v)
}

func coordinate(name string, d *Degree) string {
	if d == nil {
		return name + "=-"
	}
	return fmt.Sprintf("%s=%.6f", name, d.Decimal())
}
