package u2fhid

import (
	"encoding/binary"
	"fmt"
)

// Payload is one of InitPayload, MessagePayload, ErrorPayload or
// UnknownPayload.
type Payload interface {
	isPayload()
	String() string
}

// InitPayload is the U2FHID_INIT response.
type InitPayload struct {
	Nonce              [InitNonceSize]byte
	ChannelID          uint32
	ProtocolVersion    byte
	DeviceVersionMajor byte
	DeviceVersionMinor byte
	DeviceVersionBuild byte
	Capabilities       byte
}

const initPayloadSize = InitNonceSize + 4 + 5

func (InitPayload) isPayload() {}

// NotImplementsMSG reports whether the device set CAPABILITY_NMSG.
func (p InitPayload) NotImplementsMSG() bool {
	return p.Capabilities&CapabilityNMSG != 0
}

func (p InitPayload) String() string {
	return fmt.Sprintf("INIT{cid=%08x protocol v%d, device v%d.%d.%d, capabilities 0x%02x}",
		p.ChannelID, p.ProtocolVersion, p.DeviceVersionMajor, p.DeviceVersionMinor, p.DeviceVersionBuild, p.Capabilities)
}

// MessagePayload is a U2FHID_MSG response: an APDU response body followed
// by the SW1 SW2 status bytes.
type MessagePayload struct {
	Data []byte
	SW1  byte
	SW2  byte
}

func (MessagePayload) isPayload() {}

// OK reports whether the status word is 0x9000.
func (p MessagePayload) OK() bool {
	return p.SW1 == 0x90 && p.SW2 == 0x00
}

// Status returns SW1 SW2 as a single status word.
func (p MessagePayload) Status() uint16 {
	return uint16(p.SW1)<<8 | uint16(p.SW2)
}

func (p MessagePayload) String() string {
	return fmt.Sprintf("MSG{data=%s sw=%04x}", EncodeReportToString(p.Data), p.Status())
}

// ErrorPayload is a U2FHID_ERROR response.
type ErrorPayload struct {
	Code ErrorCode
}

func (ErrorPayload) isPayload() {}

func (p ErrorPayload) String() string {
	return fmt.Sprintf("ERROR{%s}", p.Code)
}

// UnknownPayload is anything that could not be decoded as one of the above.
type UnknownPayload struct{}

func (UnknownPayload) isPayload() {}

func (UnknownPayload) String() string { return "UNKNOWN" }

// ErrorCode is a U2FHID_ERROR code.
type ErrorCode int

const (
	ErrorNone ErrorCode = iota
	ErrorInvalidCommand
	ErrorInvalidParameter
	ErrorInvalidMessageLength
	ErrorInvalidMessageSequencing
	ErrorMessageTimeout
	ErrorChannelBusy
	ErrorChannelRequiresLock
	ErrorSyncCommandFailed
	ErrorUnspecified
	ErrorUnknown
)

// From u2f_hid.h ERR_* values
var errorCodes = map[byte]ErrorCode{
	0x00: ErrorNone,
	0x01: ErrorInvalidCommand,
	0x02: ErrorInvalidParameter,
	0x03: ErrorInvalidMessageLength,
	0x04: ErrorInvalidMessageSequencing,
	0x05: ErrorMessageTimeout,
	0x06: ErrorChannelBusy,
	0x0A: ErrorChannelRequiresLock,
	0x0B: ErrorSyncCommandFailed,
	0x7F: ErrorUnspecified,
}

// ParseErrorCode maps a raw error byte to an ErrorCode.
func ParseErrorCode(b byte) ErrorCode {
	if c, ok := errorCodes[b]; ok {
		return c
	}
	return ErrorUnknown
}

func (c ErrorCode) String() string {
	switch c {
	case ErrorNone:
		return "None"
	case ErrorInvalidCommand:
		return "InvalidCommand"
	case ErrorInvalidParameter:
		return "InvalidParameter"
	case ErrorInvalidMessageLength:
		return "InvalidMessageLength"
	case ErrorInvalidMessageSequencing:
		return "InvalidMessageSequencing"
	case ErrorMessageTimeout:
		return "MessageTimeout"
	case ErrorChannelBusy:
		return "ChannelBusy"
	case ErrorChannelRequiresLock:
		return "ChannelRequiresLock"
	case ErrorSyncCommandFailed:
		return "SyncCommandFailed"
	case ErrorUnspecified:
		return "Unspecified"
	default:
		return "Unknown"
	}
}

func decodePayload(cmd byte, d []byte) Payload {
	switch cmd {
	case CmdInit:
		return parseInit(d)
	case CmdMsg:
		return parseMessage(d)
	case CmdError:
		if len(d) == 0 {
			return ErrorPayload{Code: ErrorUnknown}
		}
		return ErrorPayload{Code: ParseErrorCode(d[0])}
	default:
		return UnknownPayload{}
	}
}

func parseInit(d []byte) Payload {
	if len(d) < initPayloadSize {
		return UnknownPayload{}
	}

	var p InitPayload
	copy(p.Nonce[:], d[:InitNonceSize])
	p.ChannelID = binary.BigEndian.Uint32(d[8:12])
	p.ProtocolVersion = d[12]
	p.DeviceVersionMajor = d[13]
	p.DeviceVersionMinor = d[14]
	p.DeviceVersionBuild = d[15]
	p.Capabilities = d[16]
	return p
}

func parseMessage(d []byte) Payload {
	if len(d) < 2 {
		return UnknownPayload{}
	}

	n := len(d) - 2
	data := make([]byte, n)
	copy(data, d[:n])
	return MessagePayload{
		Data: data,
		SW1:  d[n],
		SW2:  d[n+1],
	}
}
