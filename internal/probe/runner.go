package probe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/seagrayinc/u2fhid-tester/internal/hid"
	"github.com/seagrayinc/u2fhid-tester/internal/u2fhid"
)

// Runner probes every candidate device, one at a time, in enumeration order.
type Runner struct {
	Manager hid.Manager
	Prober  *Prober
	// Extra devices to probe whatever usage page they report.
	Extra  []hid.VIDPID
	Logger *slog.Logger
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// IsU2FHID reports whether info is a FIDO U2FHID top-level collection.
func IsU2FHID(info hid.Info) bool {
	return info.UsagePage == u2fhid.FIDOUsagePage && info.Usage == u2fhid.FIDOUsageU2FHID
}

// Candidates lists the devices Run would probe.
func (r *Runner) Candidates() ([]hid.Info, error) {
	infos, err := r.Manager.List()
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}

	seen := map[string]bool{}
	var out []hid.Info
	for _, info := range infos {
		if seen[info.Path] || !r.wanted(info) {
			continue
		}
		seen[info.Path] = true
		out = append(out, info)
	}
	return out, nil
}

func (r *Runner) wanted(info hid.Info) bool {
	if IsU2FHID(info) {
		return true
	}
	for _, v := range r.Extra {
		if v.Matches(info) {
			return true
		}
	}
	return false
}

// Run probes all candidates and returns the report. A transport failure on
// any device aborts the run; the partial report is returned with the error.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	devices, err := r.Candidates()
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}

	prober := r.Prober
	if prober == nil {
		prober = &Prober{Logger: r.Logger}
	}

	report := &Report{}
	for _, info := range devices {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		r.logger().Info("testing device", slog.String("device", info.String()), slog.String("path", info.Path))
		res, err := r.probeOne(ctx, prober, info)
		if err != nil {
			return report, fmt.Errorf("device %s: %w", info, err)
		}
		report.add(res)

		attrs := []any{slog.String("device", info.String()), slog.String("bucket", res.Bucket.String())}
		if res.SkipReason != nil {
			attrs = append(attrs, slog.Any("reason", res.SkipReason))
		}
		r.logger().Info("device done", attrs...)
	}
	return report, nil
}

func (r *Runner) probeOne(ctx context.Context, prober *Prober, info hid.Info) (*Result, error) {
	dev, err := r.Manager.Open(info)
	if err != nil {
		return nil, fmt.Errorf("could not open device: %w", err)
	}
	defer func() {
		if err := dev.Close(); err != nil {
			r.logger().Warn("close device", slog.String("device", info.String()), slog.Any("error", err))
		}
	}()

	return prober.Probe(ctx, dev, info)
}
