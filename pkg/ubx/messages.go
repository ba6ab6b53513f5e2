// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ubx

// ============================================================
// ACK class
// ============================================================

// AckAck reports that a configuration message was accepted
type AckAck struct {
	ClassID   uint8
	MessageID uint8
}

func (*AckAck) Key() Key { return Key{ClassACK, IDAckAck} }

// Target returns the key of the acknowledged message
func (m *AckAck) Target() Key { return Key{m.ClassID, m.MessageID} }

// AckNak reports that a configuration message was rejected
type AckNak struct {
	ClassID   uint8
	MessageID uint8
}

func (*AckNak) Key() Key { return Key{ClassACK, IDAckNak} }

// Target returns the key of the rejected message
func (m *AckNak) Target() Key { return Key{m.ClassID, m.MessageID} }

// ============================================================
// CFG class
// ============================================================

// CharLength is the UART character length in CFG-PRT mode
type CharLength uint8

const (
	CharLength5 CharLength = iota
	CharLength6
	CharLength7
	CharLength8
)

// Parity is the UART parity setting in CFG-PRT mode
type Parity uint8

const (
	ParityEven Parity = 0
	ParityOdd  Parity = 1
	ParityNone Parity = 4
)

// StopBits is the UART stop bit setting in CFG-PRT mode
type StopBits uint8

const (
	StopBits1   StopBits = 0
	StopBits1_5 StopBits = 1
	StopBits2   StopBits = 2
	StopBits0_5 StopBits = 3
)

// Protocol mask bits for CFG-PRT in/out protocols
const (
	ProtoUBX  uint16 = 0x01
	ProtoNMEA uint16 = 0x02
	ProtoRTCM uint16 = 0x04
)

// cfgPrtModeReserved is always set in the mode bitfield
const cfgPrtModeReserved = 0x10

// CfgPrt configures an I/O port of the receiver
type CfgPrt struct {
	PortID       uint8
	Reserved1    uint8
	TxReady      uint16
	Mode         uint32
	BaudRate     uint32
	InProtoMask  uint16
	OutProtoMask uint16
	Flags        uint16
	Reserved5    uint16
}

func (*CfgPrt) Key() Key { return Key{ClassCFG, IDCfgPrt} }

// NewUARTConfig returns an 8N1 UART configuration speaking UBX and NMEA
func NewUARTConfig(portID uint8, baudRate uint32) *CfgPrt {
	m := &CfgPrt{
		PortID:       portID,
		BaudRate:     baudRate,
		InProtoMask:  ProtoUBX | ProtoNMEA,
		OutProtoMask: ProtoUBX | ProtoNMEA,
	}
	m.SetFraming(CharLength8, ParityNone, StopBits1)
	return m
}

// SetFraming encodes character length, parity and stop bits into Mode
func (m *CfgPrt) SetFraming(c CharLength, p Parity, s StopBits) {
	m.Mode = cfgPrtModeReserved | uint32(c&0x3)<<6 | uint32(p&0x7)<<9 | uint32(s&0x3)<<12
}

// Framing decodes character length, parity and stop bits from Mode
func (m *CfgPrt) Framing() (CharLength, Parity, StopBits) {
	return CharLength(m.Mode >> 6 & 0x3), Parity(m.Mode >> 9 & 0x7), StopBits(m.Mode >> 12 & 0x3)
}

// CfgMsg sets the output rate of a message on the current port
type CfgMsg struct {
	MsgClass uint8
	MsgID    uint8
	Rate     uint8 // per navigation solution, 0 disables
}

func (*CfgMsg) Key() Key { return Key{ClassCFG, IDCfgMsg} }

// NewCfgMsg builds a rate setting for the message identified by k
func NewCfgMsg(k Key, rate uint8) *CfgMsg {
	return &CfgMsg{MsgClass: k.Class, MsgID: k.ID, Rate: rate}
}

// Target returns the key of the configured message
func (m *CfgMsg) Target() Key { return Key{m.MsgClass, m.MsgID} }

// Time references for CFG-RATE
const (
	TimeRefUTC uint16 = 0
	TimeRefGPS uint16 = 1
)

// CfgRate sets the measurement and navigation rate
type CfgRate struct {
	MeasRate uint16 // ms
	NavRate  uint16 // measurement cycles per solution
	TimeRef  uint16
}

func (*CfgRate) Key() Key { return Key{ClassCFG, IDCfgRate} }

// ============================================================
// NAV class
// ============================================================

// NavPosECEF is the position solution in ECEF coordinates
type NavPosECEF struct {
	ITOW uint32 // ms
	X    int32  // cm
	Y    int32  // cm
	Z    int32  // cm
	PAcc uint32 // cm
}

func (*NavPosECEF) Key() Key { return Key{ClassNAV, IDNavPosECEF} }

// NavPosLLH is the geodetic position solution
type NavPosLLH struct {
	ITOW   uint32 // ms
	Lon    int32  // 1e-7 deg
	Lat    int32  // 1e-7 deg
	Height int32  // mm above ellipsoid
	HMSL   int32  // mm above mean sea level
	HAcc   uint32 // mm
	VAcc   uint32 // mm
}

func (*NavPosLLH) Key() Key { return Key{ClassNAV, IDNavPosLLH} }

// Latitude returns the latitude in decimal degrees
func (m *NavPosLLH) Latitude() float64 { return float64(m.Lat) * 1e-7 }

// Longitude returns the longitude in decimal degrees
func (m *NavPosLLH) Longitude() float64 { return float64(m.Lon) * 1e-7 }

// AltitudeMSL returns the height above mean sea level in meters
func (m *NavPosLLH) AltitudeMSL() float64 { return float64(m.HMSL) / 1000 }

// FixType is the gpsFix field of NAV-STATUS
type FixType uint8

const (
	FixNone FixType = iota
	FixDeadReckoning
	Fix2D
	Fix3D
	FixGPSDeadReckoning
	FixTimeOnly
)

func (f FixType) String() string {
	switch f {
	case FixNone:
		return "no fix"
	case FixDeadReckoning:
		return "dead reckoning"
	case Fix2D:
		return "2D"
	case Fix3D:
		return "3D"
	case FixGPSDeadReckoning:
		return "GPS+DR"
	case FixTimeOnly:
		return "time only"
	}
	return "unknown"
}

// NavStatus is the receiver navigation status
type NavStatus struct {
	ITOW    uint32 // ms
	GPSFix  uint8
	Flags   uint8
	FixStat uint8
	Flags2  uint8
	TTFF    uint32 // ms
	MSSS    uint32 // ms since startup
}

func (*NavStatus) Key() Key { return Key{ClassNAV, IDNavStatus} }

// Fix returns the fix type
func (m *NavStatus) Fix() FixType { return FixType(m.GPSFix) }

// FixOK reports whether the fix is within DOP and accuracy masks
func (m *NavStatus) FixOK() bool { return m.Flags&0x01 != 0 }

// NavDOP holds dilution of precision values scaled by 0.01
type NavDOP struct {
	ITOW uint32 // ms
	GDOP uint16
	PDOP uint16
	TDOP uint16
	VDOP uint16
	HDOP uint16
	NDOP uint16
	EDOP uint16
}

func (*NavDOP) Key() Key { return Key{ClassNAV, IDNavDOP} }

// NavClock is the receiver clock solution
type NavClock struct {
	ITOW uint32 // ms
	ClkB int32  // ns
	ClkD int32  // ns/s
	TAcc uint32 // ns
	FAcc uint32 // ps/s
}

func (*NavClock) Key() Key { return Key{ClassNAV, IDNavClock} }

// SVChannel is one tracking channel of NAV-SVINFO
type SVChannel struct {
	Chn     uint8
	SVID    uint8
	Flags   uint8
	Quality uint8
	CNo     uint8 // dBHz
	Elev    int8  // deg
	Azim    int16 // deg
	PRRes   int32 // cm
}

// NavSVInfo lists the satellites tracked by the receiver
type NavSVInfo struct {
	ITOW        uint32 // ms
	NumCh       uint8
	GlobalFlags uint8
	Reserved2   uint16
	Channels    []SVChannel
}

func (*NavSVInfo) Key() Key { return Key{ClassNAV, IDNavSVInfo} }

// NewNavSVInfo builds a NAV-SVINFO record with NumCh matching channels
func NewNavSVInfo(itow uint32, channels ...SVChannel) *NavSVInfo {
	return &NavSVInfo{ITOW: itow, NumCh: uint8(len(channels)), Channels: channels}
}

// Used reports whether the channel's satellite is used for navigation
func (c SVChannel) Used() bool { return c.Flags&0x01 != 0 }

// ============================================================
// MON class
// ============================================================

// MonRxr is the receiver state notification
type MonRxr struct {
	Flags uint8
}

func (*MonRxr) Key() Key { return Key{ClassMON, IDMonRxr} }

// Awake reports whether the receiver is not in backup mode
func (m *MonRxr) Awake() bool { return m.Flags&0x01 != 0 }

// ============================================================
// Catalog
// ============================================================

// DefaultCatalog holds every message type known to this package
var DefaultCatalog = NewCatalog().MustRegister(
	Define[AckNak]("ACK-NAK", Receivable,
		U1(0, "clsID", func(m *AckNak) *uint8 { return &m.ClassID }),
		U1(1, "msgID", func(m *AckNak) *uint8 { return &m.MessageID }),
	),
	Define[AckAck]("ACK-ACK", Receivable,
		U1(0, "clsID", func(m *AckAck) *uint8 { return &m.ClassID }),
		U1(1, "msgID", func(m *AckAck) *uint8 { return &m.MessageID }),
	),
	Define[CfgPrt]("CFG-PRT", Receivable|Sendable|Config,
		U1(0, "portID", func(m *CfgPrt) *uint8 { return &m.PortID }),
		U1(1, "reserved1", func(m *CfgPrt) *uint8 { return &m.Reserved1 }),
		U2(2, "txReady", func(m *CfgPrt) *uint16 { return &m.TxReady }),
		U4(3, "mode", func(m *CfgPrt) *uint32 { return &m.Mode }),
		U4(4, "baudRate", func(m *CfgPrt) *uint32 { return &m.BaudRate }),
		U2(5, "inProtoMask", func(m *CfgPrt) *uint16 { return &m.InProtoMask }),
		U2(6, "outProtoMask", func(m *CfgPrt) *uint16 { return &m.OutProtoMask }),
		U2(7, "flags", func(m *CfgPrt) *uint16 { return &m.Flags }),
		U2(8, "reserved5", func(m *CfgPrt) *uint16 { return &m.Reserved5 }),
	),
	Define[CfgMsg]("CFG-MSG", Receivable|Sendable|Config,
		U1(0, "msgClass", func(m *CfgMsg) *uint8 { return &m.MsgClass }),
		U1(1, "msgID", func(m *CfgMsg) *uint8 { return &m.MsgID }),
		U1(2, "rate", func(m *CfgMsg) *uint8 { return &m.Rate }),
	),
	Define[CfgRate]("CFG-RATE", Receivable|Sendable|Pollable|Config,
		U2(0, "measRate", func(m *CfgRate) *uint16 { return &m.MeasRate }),
		U2(1, "navRate", func(m *CfgRate) *uint16 { return &m.NavRate }),
		U2(2, "timeRef", func(m *CfgRate) *uint16 { return &m.TimeRef }),
	),
	Define[NavPosECEF]("NAV-POSECEF", Receivable|Pollable,
		U4(0, "iTOW", func(m *NavPosECEF) *uint32 { return &m.ITOW }),
		I4(1, "ecefX", func(m *NavPosECEF) *int32 { return &m.X }),
		I4(2, "ecefY", func(m *NavPosECEF) *int32 { return &m.Y }),
		I4(3, "ecefZ", func(m *NavPosECEF) *int32 { return &m.Z }),
		U4(4, "pAcc", func(m *NavPosECEF) *uint32 { return &m.PAcc }),
	),
	Define[NavPosLLH]("NAV-POSLLH", Receivable|Pollable,
		U4(0, "iTOW", func(m *NavPosLLH) *uint32 { return &m.ITOW }),
		I4(1, "lon", func(m *NavPosLLH) *int32 { return &m.Lon }),
		I4(2, "lat", func(m *NavPosLLH) *int32 { return &m.Lat }),
		I4(3, "height", func(m *NavPosLLH) *int32 { return &m.Height }),
		I4(4, "hMSL", func(m *NavPosLLH) *int32 { return &m.HMSL }),
		U4(5, "hAcc", func(m *NavPosLLH) *uint32 { return &m.HAcc }),
		U4(6, "vAcc", func(m *NavPosLLH) *uint32 { return &m.VAcc }),
	),
	Define[NavStatus]("NAV-STATUS", Receivable|Pollable,
		U4(0, "iTOW", func(m *NavStatus) *uint32 { return &m.ITOW }),
		U1(1, "gpsFix", func(m *NavStatus) *uint8 { return &m.GPSFix }),
		U1(2, "flags", func(m *NavStatus) *uint8 { return &m.Flags }),
		U1(3, "fixStat", func(m *NavStatus) *uint8 { return &m.FixStat }),
		U1(4, "flags2", func(m *NavStatus) *uint8 { return &m.Flags2 }),
		U4(5, "ttff", func(m *NavStatus) *uint32 { return &m.TTFF }),
		U4(6, "msss", func(m *NavStatus) *uint32 { return &m.MSSS }),
	),
	Define[NavDOP]("NAV-DOP", Receivable|Pollable,
		U4(1, "iTOW", func(m *NavDOP) *uint32 { return &m.ITOW }),
		U2(2, "gDOP", func(m *NavDOP) *uint16 { return &m.GDOP }),
		U2(3, "pDOP", func(m *NavDOP) *uint16 { return &m.PDOP }),
		U2(4, "tDOP", func(m *NavDOP) *uint16 { return &m.TDOP }),
		U2(5, "vDOP", func(m *NavDOP) *uint16 { return &m.VDOP }),
		U2(6, "hDOP", func(m *NavDOP) *uint16 { return &m.HDOP }),
		U2(7, "nDOP", func(m *NavDOP) *uint16 { return &m.NDOP }),
		U2(8, "eDOP", func(m *NavDOP) *uint16 { return &m.EDOP }),
	),
	Define[NavClock]("NAV-CLOCK", Receivable|Pollable,
		U4(0, "iTOW", func(m *NavClock) *uint32 { return &m.ITOW }),
		I4(1, "clkB", func(m *NavClock) *int32 { return &m.ClkB }),
		I4(2, "clkD", func(m *NavClock) *int32 { return &m.ClkD }),
		U4(3, "tAcc", func(m *NavClock) *uint32 { return &m.TAcc }),
		U4(4, "fAcc", func(m *NavClock) *uint32 { return &m.FAcc }),
	),
	Define[NavSVInfo]("NAV-SVINFO", Receivable|Pollable,
		U4(0, "iTOW", func(m *NavSVInfo) *uint32 { return &m.ITOW }),
		U1(1, "numCh", func(m *NavSVInfo) *uint8 { return &m.NumCh }),
		U1(2, "globalFlags", func(m *NavSVInfo) *uint8 { return &m.GlobalFlags }),
		U2(3, "reserved2", func(m *NavSVInfo) *uint16 { return &m.Reserved2 }),
		Repeated(4, "channels", 1, func(m *NavSVInfo) *[]SVChannel { return &m.Channels },
			U1(0, "chn", func(c *SVChannel) *uint8 { return &c.Chn }),
			U1(1, "svid", func(c *SVChannel) *uint8 { return &c.SVID }),
			U1(2, "flags", func(c *SVChannel) *uint8 { return &c.Flags }),
			U1(3, "quality", func(c *SVChannel) *uint8 { return &c.Quality }),
			U1(4, "cno", func(c *SVChannel) *uint8 { return &c.CNo }),
			I1(5, "elev", func(c *SVChannel) *int8 { return &c.Elev }),
			I2(6, "azim", func(c *SVChannel) *int16 { return &c.Azim }),
			I4(7, "prRes", func(c *SVChannel) *int32 { return &c.PRRes }),
		),
	),
	Define[MonRxr]("MON-RXR", Receivable,
		U1(0, "flags", func(m *MonRxr) *uint8 { return &m.Flags }),
	),
)

// Encode serializes a message using DefaultCatalog
func Encode(m Message) ([]byte, error) {
	return DefaultCatalog.Encode(m)
}

// Decode parses a frame using DefaultCatalog
func Decode(frame []byte) (Message, error) {
	return DefaultCatalog.Decode(frame)
}

// PollFrame returns the poll request for record type T from DefaultCatalog
func PollFrame[T Message]() ([]byte, error) {
	return DefaultCatalog.PollFrame(KeyOf[T]())
}
