package hid

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrTimeout is returned by ReadTimeout when no report arrived in time.
	ErrTimeout = errors.New("hid read timeout")

	// ErrUnknownBackend is returned by NewManager for an unregistered backend.
	ErrUnknownBackend = errors.New("unknown hid backend")
)

// Device represents an opened HID device capable of report I/O.
type Device interface {
	Write([]byte) (int, error)                      // send output report, p[0] is the report id
	ReadTimeout([]byte, time.Duration) (int, error) // read one input report
	Close() error
}

// Info represents a HID device descriptor.
type Info struct {
	Path         string
	VendorID     uint16
	ProductID    uint16
	Product      string
	Manufacturer string
	UsagePage    uint16
	Usage        uint16
}

// Name joins the manufacturer and product strings, whichever are present.
func (i Info) Name() string {
	switch {
	case i.Manufacturer != "" && i.Product != "":
		return i.Manufacturer + " " + i.Product
	case i.Manufacturer != "":
		return i.Manufacturer
	default:
		return i.Product
	}
}

func (i Info) String() string {
	return fmt.Sprintf("%04x:%04x: %s", i.VendorID, i.ProductID, i.Name())
}

// Manager enumerates and opens HID devices.
type Manager interface {
	List() ([]Info, error)
	Open(info Info) (Device, error)
}

// VIDPID identifies a device model.
type VIDPID struct {
	VendorID  uint16
	ProductID uint16
}

// ParseVIDPID parses "1050:0407" style hexadecimal pairs.
func ParseVIDPID(s string) (VIDPID, error) {
	v, p, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return VIDPID{}, fmt.Errorf("invalid device %q: want VID:PID", s)
	}
	vid, err := strconv.ParseUint(strings.TrimPrefix(v, "0x"), 16, 16)
	if err != nil {
		return VIDPID{}, fmt.Errorf("invalid vendor id %q: %w", v, err)
	}
	pid, err := strconv.ParseUint(strings.TrimPrefix(p, "0x"), 16, 16)
	if err != nil {
		return VIDPID{}, fmt.Errorf("invalid product id %q: %w", p, err)
	}
	return VIDPID{VendorID: uint16(vid), ProductID: uint16(pid)}, nil
}

func (v VIDPID) Matches(i Info) bool {
	return v.VendorID == i.VendorID && v.ProductID == i.ProductID
}

func (v VIDPID) String() string {
	return fmt.Sprintf("%04x:%04x", v.VendorID, v.ProductID)
}

var backends = map[string]func() (Manager, error){}

// preference order for the "auto" backend
var autoOrder = []string{"windows", "gohid", "karalabe", "usbhid"}

func register(name string, f func() (Manager, error)) {
	backends[name] = f
}

// Backends lists the backends compiled into this binary.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewManager returns the named HID manager, or the preferred one available
// on this platform for "auto" or "".
func NewManager(backend string) (Manager, error) {
	if backend == "" || backend == "auto" {
		for _, name := range autoOrder {
			if f, ok := backends[name]; ok {
				return f()
			}
		}
		return nil, fmt.Errorf("%w: none available", ErrUnknownBackend)
	}

	f, ok := backends[backend]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)", ErrUnknownBackend, backend, strings.Join(Backends(), ", "))
	}
	return f()
}
