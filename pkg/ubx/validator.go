// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ubx

import "fmt"

// AnomalyType represents different types of message anomalies
type AnomalyType int

const (
	AnomalyInvalidCount AnomalyType = iota
	AnomalyInvalidValue
	AnomalyOutOfRange
	AnomalyPoorGeometry
)

// Maximum PDOP (scaled by 0.01) before a solution is flagged
const maxPDOP = 2000

// ValidationError represents a message validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateMessage checks decoded values for anomalies.
// Returns a slice of validation errors (empty if the message is valid)
func ValidateMessage(m Message) []ValidationError {
	switch msg := m.(type) {
	case *NavPosLLH:
		return validatePosLLH(msg)
	case *NavStatus:
		return validateStatus(msg)
	case *NavDOP:
		return validateDOP(msg)
	case *NavSVInfo:
		return validateSVInfo(msg)
	case *CfgPrt:
		return validateCfgPrt(msg)
	}
	return nil
}

func validatePosLLH(m *NavPosLLH) []ValidationError {
	var errors []ValidationError
	if lat := m.Latitude(); lat < -90 || lat > 90 {
		errors = append(errors, ValidationError{
			Type:    AnomalyOutOfRange,
			Message: fmt.Sprintf("NAV-POSLLH latitude %.7f out of range", lat),
			Details: map[string]interface{}{"lat": m.Lat},
		})
	}
	if lon := m.Longitude(); lon < -180 || lon > 180 {
		errors = append(errors, ValidationError{
			Type:    AnomalyOutOfRange,
			Message: fmt.Sprintf("NAV-POSLLH longitude %.7f out of range", lon),
			Details: map[string]interface{}{"lon": m.Lon},
		})
	}
	return errors
}

func validateStatus(m *NavStatus) []ValidationError {
	if m.Fix() > FixTimeOnly {
		return []ValidationError{{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("NAV-STATUS gpsFix=%d (max %d)", m.GPSFix, FixTimeOnly),
			Details: map[string]interface{}{"gpsFix": m.GPSFix, "max": uint8(FixTimeOnly)},
		}}
	}
	return nil
}

func validateDOP(m *NavDOP) []ValidationError {
	if m.PDOP > maxPDOP {
		return []ValidationError{{
			Type:    AnomalyPoorGeometry,
			Message: fmt.Sprintf("NAV-DOP pDOP=%.2f exceeds %.2f", float64(m.PDOP)/100, float64(maxPDOP)/100),
			Details: map[string]interface{}{"pDOP": m.PDOP},
		}}
	}
	return nil
}

func validateSVInfo(m *NavSVInfo) []ValidationError {
	var errors []ValidationError
	if int(m.NumCh) != len(m.Channels) {
		errors = append(errors, ValidationError{
			Type:    AnomalyInvalidCount,
			Message: fmt.Sprintf("NAV-SVINFO numCh=%d but %d channels present", m.NumCh, len(m.Channels)),
			Details: map[string]interface{}{"numCh": m.NumCh, "channels": len(m.Channels)},
		})
	}
	for i, ch := range m.Channels {
		if ch.Elev < -90 || ch.Elev > 90 {
			errors = append(errors, ValidationError{
				Type:    AnomalyOutOfRange,
				Message: fmt.Sprintf("NAV-SVINFO channel %d elevation %d out of range", i, ch.Elev),
				Details: map[string]interface{}{"channel": i, "elev": ch.Elev},
			})
		}
		if ch.Azim < 0 || ch.Azim >= 360 {
			errors = append(errors, ValidationError{
				Type:    AnomalyOutOfRange,
				Message: fmt.Sprintf("NAV-SVINFO channel %d azimuth %d out of range", i, ch.Azim),
				Details: map[string]interface{}{"channel": i, "azim": ch.Azim},
			})
		}
	}
	return errors
}

func validateCfgPrt(m *CfgPrt) []ValidationError {
	if m.BaudRate == 0 {
		return []ValidationError{{
			Type:    AnomalyInvalidValue,
			Message: "CFG-PRT baudRate is zero",
			Details: map[string]interface{}{"portID": m.PortID},
		}}
	}
	return nil
}
