package probe

import (
	"context"
	"errors"
	"testing"

	"github.com/seagrayinc/u2fhid-tester/internal/hid"
	"github.com/seagrayinc/u2fhid-tester/internal/u2fhid"
)

func fidoInfo(path string, vid, pid uint16) hid.Info {
	return hid.Info{
		Path:      path,
		VendorID:  vid,
		ProductID: pid,
		UsagePage: u2fhid.FIDOUsagePage,
		Usage:     u2fhid.FIDOUsageU2FHID,
	}
}

// One device per bucket plus a skipped one and a keyboard that must be
// left alone.
func TestRunnerSweep(t *testing.T) {
	keyboard := hid.Info{Path: "kbd", VendorID: 0x046d, ProductID: 0xc31c, UsagePage: 0x01, Usage: 0x06}
	compliant := fidoInfo("compliant", 0x1050, 0x0407)
	defective := fidoInfo("defective", 0x096e, 0x0858)
	lenient := fidoInfo("lenient", 0x20a0, 0x4287)
	ctap2only := fidoInfo("ctap2only", 0x1ea8, 0xfc25)
	noisy := fidoInfo("noisy", 0x311f, 0x4a2a)

	kbdDev := hid.NewMockDevice(nil)
	devices := map[string]*hid.MockDevice{
		"kbd":       kbdDev,
		"compliant": hid.NewMockDevice(token{wellFormed: versionOK, malformed: statusWord(0x67, 0x00)}.respond),
		"defective": hid.NewMockDevice(token{wellFormed: statusWord(0x67, 0x00), malformed: versionOK}.respond),
		"lenient":   hid.NewMockDevice(token{wellFormed: versionOK, malformed: versionOK}.respond),
		"ctap2only": hid.NewMockDevice(token{caps: u2fhid.CapabilityNMSG}.respond),
		"noisy":     hid.NewMockDevice(token{corruptNonce: true}.respond),
	}
	mgr := &hid.MockManager{
		Infos:   []hid.Info{keyboard, compliant, defective, lenient, ctap2only, noisy},
		Devices: map[string]hid.Device{},
	}
	for path, d := range devices {
		mgr.Devices[path] = d
	}

	r := &Runner{Manager: mgr, Prober: &Prober{Logger: testLogger}, Logger: testLogger}
	report, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if report.Probed != 5 || report.Inconclusive() != 1 {
		t.Fatalf("probed=%d inconclusive=%d", report.Probed, report.Inconclusive())
	}
	check := func(name string, got []hid.Info, want hid.Info) {
		t.Helper()
		if len(got) != 1 || got[0] != want {
			t.Errorf("%s: %v", name, got)
		}
	}
	check("rejected", report.Buckets.BadRequestRejected, compliant)
	check("only accepted", report.Buckets.BadRequestOnlyAccepted, defective)
	check("accepted", report.Buckets.BadRequestAccepted, lenient)
	check("no fido1", report.Buckets.NoFIDO1, ctap2only)

	if len(kbdDev.Written()) != 0 {
		t.Fatalf("keyboard was probed")
	}
	for path, d := range devices {
		if path != "kbd" && !d.Closed() {
			t.Errorf("%s left open", path)
		}
	}
	for i, want := range []string{"compliant", "defective", "lenient", "ctap2only", "noisy"} {
		if report.Results[i].Device.Path != want {
			t.Errorf("result %d: %s, want %s", i, report.Results[i].Device.Path, want)
		}
	}
}

func TestRunnerNoDevices(t *testing.T) {
	mgr := &hid.MockManager{Infos: []hid.Info{{Path: "kbd", UsagePage: 0x01, Usage: 0x06}}}
	_, err := (&Runner{Manager: mgr, Logger: testLogger}).Run(context.Background())
	if !errors.Is(err, ErrNoDevices) {
		t.Fatalf("expected ErrNoDevices, got %v", err)
	}
}

func TestRunnerExtraDevices(t *testing.T) {
	// no FIDO usage declared, and the same device listed twice
	bare := hid.Info{Path: "bare", VendorID: 0x1050, ProductID: 0x0407}
	other := hid.Info{Path: "other", VendorID: 0x1050, ProductID: 0x0406}
	mgr := &hid.MockManager{Infos: []hid.Info{bare, other, bare}}

	r := &Runner{Manager: mgr, Extra: []hid.VIDPID{{VendorID: 0x1050, ProductID: 0x0407}}}
	got, err := r.Candidates()
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(got) != 1 || got[0] != bare {
		t.Fatalf("candidates: %v", got)
	}
}

func TestRunnerAbortsOnTransportError(t *testing.T) {
	first := fidoInfo("first", 0x1050, 0x0407)
	second := fidoInfo("second", 0x1050, 0x0407)
	secondDev := hid.NewMockDevice(token{wellFormed: versionOK, malformed: versionOK}.respond)
	mgr := &hid.MockManager{
		Infos: []hid.Info{first, second},
		Devices: map[string]hid.Device{
			// never answers the malformed request
			"first":  hid.NewMockDevice(token{wellFormed: versionOK}.respond),
			"second": secondDev,
		},
	}

	report, err := (&Runner{Manager: mgr, Logger: testLogger}).Run(context.Background())
	if !errors.Is(err, hid.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if report == nil || report.Probed != 0 {
		t.Fatalf("report: %+v", report)
	}
	if len(secondDev.Written()) != 0 {
		t.Fatalf("run continued after a transport error")
	}
}

func TestRunnerOpenFailure(t *testing.T) {
	mgr := &hid.MockManager{Infos: []hid.Info{fidoInfo("missing", 1, 2)}}
	if _, err := (&Runner{Manager: mgr, Logger: testLogger}).Run(context.Background()); err == nil {
		t.Fatalf("expected open failure")
	}
}

func TestRunnerListFailure(t *testing.T) {
	listErr := errors.New("hidapi init failed")
	mgr := &hid.MockManager{ListErr: listErr}
	if _, err := (&Runner{Manager: mgr}).Run(context.Background()); !errors.Is(err, listErr) {
		t.Fatalf("expected list error, got %v", err)
	}
}
