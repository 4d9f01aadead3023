package probe

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/seagrayinc/u2fhid-tester/internal/hid"
	"github.com/seagrayinc/u2fhid-tester/internal/u2fhid"
)

// Prober runs the probe sequence against one opened device at a time.
type Prober struct {
	// Timeout bounds every response read, u2fhid.TransactionTimeout if zero.
	Timeout time.Duration
	// AbortOnDesync makes a channel id mismatch fail the whole run instead
	// of skipping the device.
	AbortOnDesync bool
	// Rand is the nonce source, crypto/rand if nil.
	Rand   io.Reader
	Logger *slog.Logger
}

func (p *Prober) timeout() time.Duration {
	if p.Timeout <= 0 {
		return u2fhid.TransactionTimeout
	}
	return p.Timeout
}

func (p *Prober) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// Probe takes dev from INIT through both version probes. Protocol problems
// are recorded in the returned Result; the error is only set for failures
// that should end the whole run, such as transport errors and timeouts.
func (p *Prober) Probe(ctx context.Context, dev hid.Device, info hid.Info) (*Result, error) {
	res := &Result{Device: info, State: StateStart}
	log := p.logger().With(slog.String("device", info.String()))

	var nonce [u2fhid.InitNonceSize]byte
	r := p.Rand
	if r == nil {
		r = rand.Reader
	}
	if _, err := io.ReadFull(r, nonce[:]); err != nil {
		return res, fmt.Errorf("generate nonce: %w", err)
	}

	log.Info("sending INIT")
	res.State = StateAwaitingInit
	frame, err := p.exchange(ctx, dev, res, u2fhid.CIDBroadcast, u2fhid.CmdInit, nonce[:])
	if err != nil {
		return p.fail(res, err)
	}

	ir, ok := frame.Payload.(u2fhid.InitPayload)
	if !ok {
		log.Warn("unexpected response to INIT", slog.String("payload", frame.Payload.String()))
		return res.skip(fmt.Errorf("%w: %s", ErrUnexpectedResponse, frame.Payload)), nil
	}
	if ir.Nonce != nonce {
		log.Warn("unexpected nonce value",
			slog.String("sent", u2fhid.EncodeReportToString(nonce[:])),
			slog.String("received", u2fhid.EncodeReportToString(ir.Nonce[:])))
		return res.skip(ErrNonceMismatch), nil
	}
	res.Init = &ir
	res.State = StateInitReceived
	log.Info("INIT response",
		slog.Int("protocol", int(ir.ProtocolVersion)),
		slog.String("version", fmt.Sprintf("%d.%d.%d", ir.DeviceVersionMajor, ir.DeviceVersionMinor, ir.DeviceVersionBuild)),
		slog.String("capabilities", fmt.Sprintf("0x%02x", ir.Capabilities)))

	// A device declaring NMSG must not be sent MSG frames.
	if ir.NotImplementsMSG() {
		log.Info("device set CAPABILITY_NMSG, does not support FIDOv1")
		res.Bucket = BucketNoFIDO1
		res.State = StateDone
		return res, nil
	}
	res.ChannelID = ir.ChannelID

	log.Info("sending properly formed VERSION request")
	res.State = StateAwaitingVersionProbe
	frame, err = p.exchange(ctx, dev, res, res.ChannelID, u2fhid.CmdMsg, u2fhid.VersionRequest)
	if err != nil {
		return p.fail(res, err)
	}
	res.WellFormed = evaluate(frame)
	res.State = StateVersionProbeReceived
	log.Info("properly formed VERSION response", slog.String("outcome", res.WellFormed.String()))
	if err := disqualified(res.WellFormed, frame); err != nil {
		return res.skip(err), nil
	}

	log.Info("sending malformed VERSION request")
	res.State = StateAwaitingMalformedProbe
	frame, err = p.exchange(ctx, dev, res, res.ChannelID, u2fhid.CmdMsg, u2fhid.VersionRequestBad)
	if err != nil {
		return p.fail(res, err)
	}
	res.Malformed = evaluate(frame)
	res.State = StateMalformedProbeReceived
	log.Info("malformed VERSION response", slog.String("outcome", res.Malformed.String()))
	if err := disqualified(res.Malformed, frame); err != nil {
		return res.skip(err), nil
	}

	res.Bucket = Classify(res.WellFormed, res.Malformed)
	res.FIDO1Supported = res.Bucket != BucketNoFIDO1
	res.State = StateDone
	return res, nil
}

// fail sorts exchange errors: a channel mismatch skips the device unless
// AbortOnDesync is set, everything else ends the run.
func (p *Prober) fail(res *Result, err error) (*Result, error) {
	if errors.Is(err, ErrChannelMismatch) && !p.AbortOnDesync {
		p.logger().Warn("protocol desynchronization, skipping device",
			slog.String("device", res.Device.String()), slog.Any("error", err))
		return res.skip(err), nil
	}
	return res, err
}

// exchange writes one request and reads one response, strictly alternating.
func (p *Prober) exchange(ctx context.Context, dev hid.Device, res *Result, cid uint32, cmd byte, payload []byte) (u2fhid.ResponseFrame, error) {
	if err := ctx.Err(); err != nil {
		return u2fhid.ResponseFrame{}, err
	}

	report, err := u2fhid.Encode(cid, cmd, payload)
	if err != nil {
		return u2fhid.ResponseFrame{}, err
	}

	p.logger().Debug(">>>", slog.String("report", u2fhid.EncodeReportToString(report)))
	res.Exchanges = append(res.Exchanges, Exchange{Direction: Sent, Report: report})
	if _, err := dev.Write(report); err != nil {
		return u2fhid.ResponseFrame{}, fmt.Errorf("error writing to device: %w", err)
	}

	buf := make([]byte, u2fhid.ReportSize)
	n, err := dev.ReadTimeout(buf, p.timeout())
	if err != nil {
		return u2fhid.ResponseFrame{}, fmt.Errorf("failure reading: %w", err)
	}

	frame := u2fhid.Decode(buf[:n])
	p.logger().Debug("<<<",
		slog.String("report", u2fhid.EncodeReportToString(buf[:n])),
		slog.String("frame", frame.String()))
	res.Exchanges = append(res.Exchanges, Exchange{Direction: Received, Report: buf[:n], Frame: &frame})

	if frame.ChannelID != cid {
		return frame, &ChannelMismatchError{Want: cid, Got: frame.ChannelID}
	}
	return frame, nil
}

func evaluate(f u2fhid.ResponseFrame) Outcome {
	switch pl := f.Payload.(type) {
	case u2fhid.MessagePayload:
		if !pl.OK() {
			return Outcome{Kind: OutcomeNonOKStatus, Status: pl.Status()}
		}
		if !bytes.Equal(pl.Data, u2fhid.VersionResponse) {
			return Outcome{Kind: OutcomeAPDUError, Status: pl.Status()}
		}
		return Outcome{Kind: OutcomeSuccess, Status: pl.Status()}
	case u2fhid.ErrorPayload:
		return Outcome{Kind: OutcomeDeviceError, Code: pl.Code}
	default:
		return Outcome{Kind: OutcomeUnexpected}
	}
}

func disqualified(o Outcome, f u2fhid.ResponseFrame) error {
	switch o.Kind {
	case OutcomeAPDUError:
		return fmt.Errorf("%w: %s", ErrUnexpectedVersion, f.Payload)
	case OutcomeUnexpected:
		return fmt.Errorf("%w: %s", ErrUnexpectedResponse, f.Payload)
	default:
		return nil
	}
}
