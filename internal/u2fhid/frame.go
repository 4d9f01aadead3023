package u2fhid

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrPayloadTooLong is returned when a request does not fit in a single
// report. Continuation packets are not supported.
var ErrPayloadTooLong = errors.New("payload too long for a single report")

// RequestFrame is an outgoing initialization packet.
type RequestFrame struct {
	ChannelID uint32
	Command   byte
	Payload   []byte
}

// MarshalBinary encodes the frame, see Encode.
func (f RequestFrame) MarshalBinary() ([]byte, error) {
	return Encode(f.ChannelID, f.Command, f.Payload)
}

// Encode builds a 65 byte output report: report id 0, channel id, command,
// big-endian payload length and the payload, zero padded.
func Encode(cid uint32, cmd byte, payload []byte) ([]byte, error) {
	if len(payload)+requestHeaderSize > ReportSize+1 {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLong, len(payload), MaxPayload)
	}

	report := make([]byte, ReportSize+1)
	// report[0] is the report id and stays 0
	binary.BigEndian.PutUint32(report[1:5], cid)
	report[5] = cmd
	binary.BigEndian.PutUint16(report[6:8], uint16(len(payload)))
	copy(report[requestHeaderSize:], payload)
	return report, nil
}

// ResponseFrame is a decoded input report.
type ResponseFrame struct {
	ChannelID uint32
	Command   byte
	Payload   Payload
}

// Decode parses one input report as read from the device (no report id).
// It never fails: anything it cannot make sense of becomes UnknownPayload.
func Decode(b []byte) ResponseFrame {
	f := ResponseFrame{Payload: UnknownPayload{}}
	if len(b) >= 4 {
		f.ChannelID = binary.BigEndian.Uint32(b[:4])
	}
	if len(b) < responseHeaderSize {
		if len(b) > 4 {
			f.Command = b[4]
		}
		return f
	}

	f.Command = b[4]
	n := int(binary.BigEndian.Uint16(b[5:7]))
	// The bound is against the whole buffer minus the header, not against
	// what a single initialization packet could carry.
	if n == 0 || n > len(b)-responseHeaderSize {
		return f
	}

	f.Payload = decodePayload(f.Command, b[responseHeaderSize:responseHeaderSize+n])
	return f
}

func (f ResponseFrame) String() string {
	return fmt.Sprintf("cid=%08x cmd=%02x %s", f.ChannelID, f.Command, f.Payload)
}
