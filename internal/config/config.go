// Package config holds the command line surface of u2fhid-tester and builds
// the logger it runs with.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/seagrayinc/u2fhid-tester/internal/hid"
	"github.com/seagrayinc/u2fhid-tester/internal/u2fhid"
)

// CLI is the root flag set. Every flag can also be set from the environment.
type CLI struct {
	Backend       string        `enum:"auto,windows,gohid,karalabe,usbhid" default:"auto" env:"U2FHID_BACKEND" help:"HID backend (${enum})."`
	Timeout       time.Duration `default:"3s" env:"U2FHID_TIMEOUT" help:"Per response read timeout."`
	Device        []string      `short:"d" sep:"," env:"U2FHID_DEVICE" placeholder:"VID:PID" help:"Also probe this device whatever usage page it reports. Repeatable."`
	AbortOnDesync bool          `env:"U2FHID_ABORT_ON_DESYNC" help:"Abort the whole run on a channel id mismatch instead of skipping the device."`
	List          bool          `help:"List candidate devices and exit without probing."`
	Format        string        `enum:"text,json" default:"text" env:"U2FHID_FORMAT" help:"Final report format (${enum})."`
	LogLevel      string        `enum:"debug,info,warn,error" default:"info" env:"U2FHID_LOG_LEVEL" help:"Log level (${enum})."`
	LogFormat     string        `enum:"text,json" default:"text" env:"U2FHID_LOG_FORMAT" help:"Log format (${enum})."`
	Verbose       bool          `short:"v" help:"Enable verbose debug output, including raw reports."`
}

// Validate is called by kong after parsing.
func (c *CLI) Validate() error {
	if _, err := c.Devices(); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return fmt.Errorf("negative timeout %s", c.Timeout)
	}
	return nil
}

// Devices parses the --device flags.
func (c *CLI) Devices() ([]hid.VIDPID, error) {
	out := make([]hid.VIDPID, 0, len(c.Device))
	for _, s := range c.Device {
		v, err := hid.ParseVIDPID(strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ReadTimeout is the configured timeout, falling back to the U2FHID
// transaction timeout.
func (c *CLI) ReadTimeout() time.Duration {
	if c.Timeout <= 0 {
		return u2fhid.TransactionTimeout
	}
	return c.Timeout
}

// Level resolves --log-level, with --verbose forcing debug.
func (c *CLI) Level() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Logger builds the slog logger for w from the log flags.
func (c *CLI) Logger(w io.Writer) *slog.Logger {
	level := new(slog.LevelVar)
	level.Set(c.Level())

	opts := &slog.HandlerOptions{Level: level}
	switch c.LogFormat {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts))
	default:
		return slog.New(slog.NewTextHandler(w, opts))
	}
}
