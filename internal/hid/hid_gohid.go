//go:build cgo && !windows && !karalabe

package hid

import (
	"errors"
	"time"

	gohid "github.com/sstallion/go-hid"
)

func init() {
	register("gohid", newGoHIDManager)
}

// goHIDManager uses the system hidapi through cgo, with native timed reads.
type goHIDManager struct{}

// hidapi is initialized once per process and never released with
// gohid.Exit; its resources go away when the process exits.
func newGoHIDManager() (Manager, error) {
	if err := gohid.Init(); err != nil {
		return nil, err
	}
	return &goHIDManager{}, nil
}

func (m *goHIDManager) List() ([]Info, error) {
	var out []Info
	err := gohid.Enumerate(gohid.VendorIDAny, gohid.ProductIDAny, func(d *gohid.DeviceInfo) error {
		out = append(out, Info{
			Path:         d.Path,
			VendorID:     d.VendorID,
			ProductID:    d.ProductID,
			Product:      d.ProductStr,
			Manufacturer: d.MfrStr,
			UsagePage:    d.UsagePage,
			Usage:        d.Usage,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *goHIDManager) Open(info Info) (Device, error) {
	d, err := gohid.OpenPath(info.Path)
	if err != nil {
		return nil, err
	}
	return &goHIDDevice{d}, nil
}

type goHIDDevice struct{ d *gohid.Device }

func (d *goHIDDevice) Write(p []byte) (int, error) {
	return d.d.Write(p)
}

func (d *goHIDDevice) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	n, err := d.d.ReadWithTimeout(p, timeout)
	if errors.Is(err, gohid.ErrTimeout) {
		return 0, ErrTimeout
	}
	return n, err
}

func (d *goHIDDevice) Close() error { return d.d.Close() }
