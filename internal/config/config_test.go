package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"

	"github.com/seagrayinc/u2fhid-tester/internal/hid"
)

func parse(t *testing.T, args ...string) (*CLI, error) {
	t.Helper()
	var cli CLI
	k, err := kong.New(&cli, kong.Name("u2fhid-tester"), kong.Exit(func(int) { t.Fatalf("kong tried to exit") }))
	if err != nil {
		t.Fatalf("kong.New: %v", err)
	}
	_, err = k.Parse(args)
	return &cli, err
}

func TestDefaults(t *testing.T) {
	cli, err := parse(t)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cli.Backend != "auto" || cli.Timeout != 3*time.Second || cli.Format != "text" {
		t.Fatalf("defaults: %+v", cli)
	}
	if cli.AbortOnDesync || cli.List || len(cli.Device) != 0 {
		t.Fatalf("defaults: %+v", cli)
	}
	if cli.Level() != slog.LevelInfo {
		t.Fatalf("level: %s", cli.Level())
	}
}

func TestFlags(t *testing.T) {
	cli, err := parse(t,
		"--backend", "gohid",
		"--timeout", "500ms",
		"-d", "1050:0407",
		"--device", "096e:0858,20a0:4287",
		"--abort-on-desync",
		"--format", "json",
	)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cli.Backend != "gohid" || cli.ReadTimeout() != 500*time.Millisecond || !cli.AbortOnDesync || cli.Format != "json" {
		t.Fatalf("flags: %+v", cli)
	}

	devs, err := cli.Devices()
	if err != nil {
		t.Fatalf("devices: %v", err)
	}
	want := []hid.VIDPID{{VendorID: 0x1050, ProductID: 0x0407}, {VendorID: 0x096e, ProductID: 0x0858}, {VendorID: 0x20a0, ProductID: 0x4287}}
	if len(devs) != len(want) {
		t.Fatalf("devices: %v", devs)
	}
	for i := range want {
		if devs[i] != want[i] {
			t.Fatalf("device %d: %v want %v", i, devs[i], want[i])
		}
	}
}

func TestEnv(t *testing.T) {
	t.Setenv("U2FHID_BACKEND", "usbhid")
	t.Setenv("U2FHID_DEVICE", "1050:0407")
	t.Setenv("U2FHID_LOG_LEVEL", "warn")

	cli, err := parse(t)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cli.Backend != "usbhid" || len(cli.Device) != 1 || cli.Level() != slog.LevelWarn {
		t.Fatalf("env: %+v", cli)
	}
}

func TestInvalid(t *testing.T) {
	tests := map[string][]string{
		"backend": {"--backend", "libusb"},
		"device":  {"--device", "yubikey"},
		"format":  {"--format", "xml"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := parse(t, args...); err == nil {
				t.Fatalf("expected error for %v", args)
			}
		})
	}
}

func TestVerboseOverridesLevel(t *testing.T) {
	cli := &CLI{LogLevel: "error", Verbose: true}
	if cli.Level() != slog.LevelDebug {
		t.Fatalf("level: %s", cli.Level())
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cli := &CLI{LogLevel: "info", LogFormat: "json"}
	log := cli.Logger(&buf)

	log.Debug("hidden")
	log.Info("shown", slog.String("device", "1050:0407"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if rec["msg"] != "shown" || rec["device"] != "1050:0407" {
		t.Fatalf("record: %v", rec)
	}
}
