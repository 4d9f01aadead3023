//go:build !windows

package hid

import (
	"time"

	usbhid "rafaelmartins.com/p/usbhid"
)

func init() {
	register("usbhid", newUSBHIDManager)
}

// usbManager is the pure Go backend. usbhid reads the top-level usage from
// the report descriptor during enumeration.
type usbManager struct{}

func newUSBHIDManager() (Manager, error) { return &usbManager{}, nil }

// usbhidDevice is the part of *usbhid.Device that describes a device.
type usbhidDevice interface {
	Path() string
	VendorId() uint16
	ProductId() uint16
	Product() string
	Manufacturer() string
	UsagePage() uint16
	Usage() uint16
}

func usbhidInfo(d usbhidDevice) Info {
	return Info{
		Path:         d.Path(),
		VendorID:     d.VendorId(),
		ProductID:    d.ProductId(),
		Product:      d.Product(),
		Manufacturer: d.Manufacturer(),
		UsagePage:    d.UsagePage(),
		Usage:        d.Usage(),
	}
}

func (m *usbManager) List() ([]Info, error) {
	devs, err := usbhid.Enumerate(nil)
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(devs))
	for _, d := range devs {
		out = append(out, usbhidInfo(d))
	}
	return out, nil
}

type usbDevice struct{ d *usbhid.Device }

func (m *usbManager) Open(info Info) (Device, error) {
	d, err := usbhid.Get(func(dev *usbhid.Device) bool {
		return dev.Path() == info.Path
	}, true, false)
	if err != nil {
		return nil, err
	}
	return &usbDevice{d}, nil
}

func (d *usbDevice) Write(p []byte) (int, error) {
	// p includes the report id at p[0]
	if len(p) == 0 {
		return 0, nil
	}
	if err := d.d.SetOutputReport(p[0], p[1:]); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (d *usbDevice) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	return readWithTimeout(d.read, p, timeout)
}

func (d *usbDevice) read(p []byte) (int, error) {
	_, buf, err := d.d.GetInputReport()
	if err != nil {
		return 0, err
	}
	return copy(p, buf), nil
}

func (d *usbDevice) Close() error { return d.d.Close() }
