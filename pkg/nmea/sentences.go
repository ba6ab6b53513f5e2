// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package nmea

import "time"

// GGA is the GPS fix data sentence. Absent fields are nil.
type GGA struct {
	Time            *TimeOfDay
	Latitude        *Degree
	Longitude       *Degree
	FixQuality      *int
	SatellitesUsed  *int
	HDOP            *float64
	AltitudeMSL     *float64 // meters
	GeoidSeparation *float64 // meters
	DGPSAge         *float64 // seconds
	DGPSStation     *string
}

func (*GGA) Keyword() string { return "GPGGA" }

// VTG is the course over ground and ground speed sentence
type VTG struct {
	CourseTrue     *float64 // degrees
	CourseMagnetic *float64 // degrees
	SpeedKnots     *float64
	SpeedKph       *float64
	Mode           *string
}

func (*VTG) Keyword() string { return "GPVTG" }

// RMC is the recommended minimum navigation sentence
type RMC struct {
	Time              *TimeOfDay
	Status            *string // A = valid, V = warning
	Latitude          *Degree
	Longitude         *Degree
	SpeedKnots        *float64
	Course            *float64 // degrees true
	Date              *time.Time
	MagneticVariation *float64
	VariationDir      *string
	Mode              *string
}

func (*RMC) Keyword() string { return "GPRMC" }

// Valid reports whether the receiver flagged the data as valid
func (r *RMC) Valid() bool {
	return r.Status != nil && *r.Status == "A"
}

// Timestamp combines Date and Time when both are present
func (r *RMC) Timestamp() (time.Time, bool) {
	if r.Date == nil || r.Time == nil {
		return time.Time{}, false
	}
	return r.Time.On(*r.Date), true
}

// DefaultCatalog holds every sentence type known to this package
var DefaultCatalog = NewCatalog().MustRegister(
	Define[GGA](
		Time(1, "time", func(s *GGA) **TimeOfDay { return &s.Time }),
		Latitude(2, 3, "latitude", func(s *GGA) **Degree { return &s.Latitude }),
		Longitude(4, 5, "longitude", func(s *GGA) **Degree { return &s.Longitude }),
		Int(6, "fixQuality", func(s *GGA) **int { return &s.FixQuality }),
		Int(7, "satellites", func(s *GGA) **int { return &s.SatellitesUsed }),
		Float(8, "hdop", func(s *GGA) **float64 { return &s.HDOP }),
		Float(9, "altitude", func(s *GGA) **float64 { return &s.AltitudeMSL }),
		Float(11, "geoidSeparation", func(s *GGA) **float64 { return &s.GeoidSeparation }),
		Float(13, "dgpsAge", func(s *GGA) **float64 { return &s.DGPSAge }),
		Text(14, "dgpsStation", func(s *GGA) **string { return &s.DGPSStation }),
	),
	Define[VTG](
		Float(1, "courseTrue", func(s *VTG) **float64 { return &s.CourseTrue }),
		Float(3, "courseMagnetic", func(s *VTG) **float64 { return &s.CourseMagnetic }),
		Float(5, "speedKnots", func(s *VTG) **float64 { return &s.SpeedKnots }),
		Float(7, "speedKph", func(s *VTG) **float64 { return &s.SpeedKph }),
		Text(9, "mode", func(s *VTG) **string { return &s.Mode }),
	),
	Define[RMC](
		Time(1, "time", func(s *RMC) **TimeOfDay { return &s.Time }),
		Text(2, "status", func(s *RMC) **string { return &s.Status }),
		Latitude(3, 4, "latitude", func(s *RMC) **Degree { return &s.Latitude }),
		Longitude(5, 6, "longitude", func(s *RMC) **Degree { return &s.Longitude }),
		Float(7, "speedKnots", func(s *RMC) **float64 { return &s.SpeedKnots }),
		Float(8, "course", func(s *RMC) **float64 { return &s.Course }),
		Date(9, "date", func(s *RMC) **time.Time { return &s.Date }),
		Float(10, "magneticVariation", func(s *RMC) **float64 { return &s.MagneticVariation }),
		Text(11, "variationDir", func(s *RMC) **string { return &s.VariationDir }),
		Text(12, "mode", func(s *RMC) **string { return &s.Mode }),
	),
)
