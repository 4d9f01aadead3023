// Package u2fhid implements the single-packet subset of the FIDO U2F HID
// transport defined at
// https://fidoalliance.org/specs/fido-u2f-v1.2-ps-20170411/fido-u2f-hid-protocol-v1.2-ps-20170411.html

package u2fhid

import (
	"encoding/hex"
	"strings"
	"time"
)

const (
	// From u2f_hid.h
	ReportSize         = 64
	TransactionTimeout = 3000 * time.Millisecond

	FIDOUsagePage   uint16 = 0xF1D0
	FIDOUsageU2FHID uint16 = 0x01

	CIDBroadcast uint32 = 0xFFFFFFFF

	TypeInit byte = 0x80

	CmdPing  = TypeInit | 0x01
	CmdMsg   = TypeInit | 0x03
	CmdLock  = TypeInit | 0x04
	CmdInit  = TypeInit | 0x06
	CmdWink  = TypeInit | 0x08
	CmdSync  = TypeInit | 0x3C
	CmdError = TypeInit | 0x3F

	InitNonceSize = 8

	CapabilityWink byte = 0x01
	CapabilityLock byte = 0x02
	CapabilityCBOR byte = 0x04
	CapabilityNMSG byte = 0x08

	// Request reports carry a leading report id byte that responses don't.
	requestHeaderSize  = 8
	responseHeaderSize = 7

	// MaxPayload is the largest payload that fits in one request report.
	MaxPayload = ReportSize + 1 - requestHeaderSize
)

var (
	// U2F_VERSION command APDU: CLA INS P1 P2 followed by an extended Le of zero.
	VersionRequest = []byte{0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00}

	// VersionRequestBad is VersionRequest with two trailing zero bytes. Some
	// devices accept it; see https://github.com/mozilla/authenticator-rs/issues/190
	VersionRequestBad = []byte{0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

	// VersionResponse is the expected data of a successful U2F_VERSION, "U2F_V2".
	VersionResponse = []byte{0x55, 0x32, 0x46, 0x5F, 0x56, 0x32}
)

// EncodeReportToString renders a report as dash separated hex octets.
func EncodeReportToString(b []byte) string {
	hexDigits := hex.EncodeToString(b)
	var builder strings.Builder
	for i, r := range hexDigits {
		if i > 0 && i%2 == 0 {
			builder.WriteString("-")
		}
		builder.WriteRune(r)
	}
	return builder.String()
}
