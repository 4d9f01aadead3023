// Package probe drives U2FHID devices through an INIT handshake and two
// U2F_VERSION requests, one well formed and one with two trailing bytes, and
// classifies how each device answered.
//
// Devices that accept the malformed request after rejecting the well formed
// one are defective, see https://github.com/mozilla/authenticator-rs/issues/190
package probe

import (
	"errors"
	"fmt"

	"github.com/seagrayinc/u2fhid-tester/internal/hid"
	"github.com/seagrayinc/u2fhid-tester/internal/u2fhid"
)

// Reasons a device is skipped. These never abort a run.
var (
	ErrNonceMismatch      = errors.New("unexpected nonce value")
	ErrUnexpectedResponse = errors.New("unexpected response type")
	ErrUnexpectedVersion  = errors.New("unexpected version response")
	ErrChannelMismatch    = errors.New("response channel id mismatch")
)

// ErrNoDevices is returned by Runner.Run when nothing matched.
var ErrNoDevices = errors.New("no FIDO U2FHID compatible USB devices detected")

// ChannelMismatchError records a response on a channel other than the one
// the request went to.
type ChannelMismatchError struct {
	Want uint32
	Got  uint32
}

func (e *ChannelMismatchError) Error() string {
	return fmt.Sprintf("%s: sent on %08x, response on %08x", ErrChannelMismatch, e.Want, e.Got)
}

func (e *ChannelMismatchError) Is(target error) bool {
	return target == ErrChannelMismatch
}

// State is a step of a device probe.
type State int

const (
	StateStart State = iota
	StateAwaitingInit
	StateInitReceived
	StateAwaitingVersionProbe
	StateVersionProbeReceived
	StateAwaitingMalformedProbe
	StateMalformedProbeReceived
	StateDone
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "Start"
	case StateAwaitingInit:
		return "AwaitingInit"
	case StateInitReceived:
		return "InitReceived"
	case StateAwaitingVersionProbe:
		return "AwaitingVersionProbe"
	case StateVersionProbeReceived:
		return "VersionProbeReceived"
	case StateAwaitingMalformedProbe:
		return "AwaitingMalformedProbe"
	case StateMalformedProbeReceived:
		return "MalformedProbeReceived"
	case StateDone:
		return "Done"
	case StateSkipped:
		return "Skipped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// OutcomeKind is how a device answered one U2F_VERSION request.
type OutcomeKind int

const (
	OutcomeNone OutcomeKind = iota
	// 9000 with "U2F_V2"
	OutcomeSuccess
	// 9000 with anything else
	OutcomeAPDUError
	OutcomeNonOKStatus
	OutcomeDeviceError
	OutcomeUnexpected
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNone:
		return "None"
	case OutcomeSuccess:
		return "Success"
	case OutcomeAPDUError:
		return "ApduError"
	case OutcomeNonOKStatus:
		return "NonOkStatus"
	case OutcomeDeviceError:
		return "DeviceError"
	case OutcomeUnexpected:
		return "Unexpected"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the recorded answer to one probe.
type Outcome struct {
	Kind   OutcomeKind
	Status uint16           // SW1 SW2 for MSG responses
	Code   u2fhid.ErrorCode // for OutcomeDeviceError
}

// Accepted reports whether the device answered the request normally.
func (o Outcome) Accepted() bool {
	return o.Kind == OutcomeSuccess
}

// Rejected reports whether the device refused the request, either at the
// ISO7816 level or with a U2FHID_ERROR.
func (o Outcome) Rejected() bool {
	return o.Kind == OutcomeNonOKStatus || o.Kind == OutcomeDeviceError
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeSuccess, OutcomeAPDUError, OutcomeNonOKStatus:
		return fmt.Sprintf("%s(%04x)", o.Kind, o.Status)
	case OutcomeDeviceError:
		return fmt.Sprintf("%s(%s)", o.Kind, o.Code)
	default:
		return o.Kind.String()
	}
}

// Direction of an Exchange.
type Direction int

const (
	Sent Direction = iota
	Received
)

func (d Direction) String() string {
	if d == Sent {
		return ">>>"
	}
	return "<<<"
}

// Exchange is one raw report sent to or read from a device.
type Exchange struct {
	Direction Direction
	Report    []byte
	Frame     *u2fhid.ResponseFrame // decoded, Received only
}

// Result is everything learned about one device during its probe.
type Result struct {
	Device         hid.Info
	ChannelID      uint32
	Init           *u2fhid.InitPayload
	WellFormed     Outcome
	Malformed      Outcome
	FIDO1Supported bool
	State          State
	// SkipReason is set when State is StateSkipped.
	SkipReason error
	Bucket     Bucket
	Exchanges  []Exchange
}

func (r *Result) skip(err error) *Result {
	r.State = StateSkipped
	r.SkipReason = err
	r.Bucket = BucketInconclusive
	return r
}
