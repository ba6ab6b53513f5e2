// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ubx

import (
	"fmt"
	"strings"
	"time"
)

// FormatMessage formats a decoded message into a human-readable string
func FormatMessage(m Message, ts time.Time) string {
	def, ok := DefaultCatalog.Lookup(m.Key())
	if !ok {
		return fmt.Sprintf("[%s] %s (unknown)\n", ts.Format("15:04:05.000"), m.Key())
	}

	result := fmt.Sprintf("[%s] %s (%s)", ts.Format("15:04:05.000"), def.Name, def.Key)
	if summary := FormatSummary(m); summary != "" {
		result += " " + summary
	}
	result += "\n"
	result += FormatFields(def, m)
	return result
}

// FormatFrame formats a raw frame that could not be decoded
func FormatFrame(frame []byte, ts time.Time) string {
	if len(frame) < HeaderSize {
		return fmt.Sprintf("[%s] <%d bytes> % X\n", ts.Format("15:04:05.000"), len(frame), frame)
	}
	key := Key{Class: frame[2], ID: frame[3]}
	return fmt.Sprintf("[%s] %s len=%d\n  % X\n", ts.Format("15:04:05.000"),
		DefaultCatalog.Name(key), len(frame)-FrameOverhead, frame)
}

// FormatFields lists every field of m as name=value, one repeated item per line
func FormatFields(def *Definition, m Message) string {
	var sb strings.Builder
	var items [][]FieldValue

	sb.WriteString(" ")
	for _, fv := range def.Values(m) {
		if fv.Field.Kind == KindRepeated {
			items = fv.Items
			continue
		}
		fmt.Fprintf(&sb, " %s=%v", fv.Field.Name, fv.Value)
	}
	sb.WriteString("\n")

	for i, item := range items {
		fmt.Fprintf(&sb, "    [%d]", i)
		for _, sv := range item {
			fmt.Fprintf(&sb, " %s=%v", sv.Field.Name, sv.Value)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatSummary returns a short interpretation of well-known messages
func FormatSummary(m Message) string {
	switch msg := m.(type) {
	case *AckAck:
		return "ACK " + DefaultCatalog.Name(msg.Target())
	case *AckNak:
		return "NAK " + DefaultCatalog.Name(msg.Target())
	case *CfgPrt:
		c, p, s := msg.Framing()
		return fmt.Sprintf("port=%d baud=%d %s", msg.PortID, msg.BaudRate, formatFraming(c, p, s))
	case *CfgMsg:
		return fmt.Sprintf("%s rate=%d", DefaultCatalog.Name(msg.Target()), msg.Rate)
	case *CfgRate:
		return fmt.Sprintf("meas=%dms nav=%d", msg.MeasRate, msg.NavRate)
	case *NavPosLLH:
		return fmt.Sprintf("lat=%.7f lon=%.7f msl=%.3fm", msg.Latitude(), msg.Longitude(), msg.AltitudeMSL())
	case *NavStatus:
		return fmt.Sprintf("fix=%s ok=%t", msg.Fix(), msg.FixOK())
	case *NavDOP:
		return fmt.Sprintf("pDOP=%.2f hDOP=%.2f vDOP=%.2f", float64(msg.PDOP)/100, float64(msg.HDOP)/100, float64(msg.VDOP)/100)
	case *NavClock:
		return fmt.Sprintf("bias=%dns drift=%dns/s", msg.ClkB, msg.ClkD)
	case *NavSVInfo:
		used := 0
		for _, ch := range msg.Channels {
			if ch.Used() {
				used++
			}
		}
		return fmt.Sprintf("channels=%d used=%d", len(msg.Channels), used)
	case *MonRxr:
		return fmt.Sprintf("awake=%t", msg.Awake())
	}
	return ""
}

func formatFraming(c CharLength, p Parity, s StopBits) string {
	parity := "?"
	switch p {
	case ParityNone:
		parity = "N"
	case ParityEven:
		parity = "E"
	case ParityOdd:
		parity = "O"
	}
	stop := "?"
	switch s {
	case StopBits1:
		stop = "1"
	case StopBits1_5:
		stop = "1.5"
	case StopBits2:
		stop = "2"
	case StopBits0_5:
		stop = "0.5"
	}
	return fmt.Sprintf("%d%s%s", 5+int(c), parity, stop)
}
