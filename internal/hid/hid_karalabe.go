//go:build karalabe

package hid

import (
	"errors"
	"fmt"
	"time"

	"github.com/karalabe/usb"
)

func init() {
	register("karalabe", newKaralabeManager)
}

// karalabeManager enumerates through karalabe/usb's bundled hidapi. It is
// opt-in with the karalabe build tag: its vendored hidapi clashes with the
// system hidapi go-hid links against.
type karalabeManager struct {
	// enumerated devices by path; karalabe/usb opens from a DeviceInfo
	infos map[string]usb.DeviceInfo
}

func newKaralabeManager() (Manager, error) {
	if !usb.Supported() {
		return nil, errors.New("karalabe/usb: platform not supported")
	}
	return &karalabeManager{infos: map[string]usb.DeviceInfo{}}, nil
}

func (m *karalabeManager) List() ([]Info, error) {
	infos, err := usb.EnumerateHid(0, 0)
	if err != nil {
		return nil, fmt.Errorf("usb enumerate: %w", err)
	}

	out := make([]Info, 0, len(infos))
	for _, d := range infos {
		m.infos[d.Path] = d
		out = append(out, Info{
			Path:         d.Path,
			VendorID:     d.VendorID,
			ProductID:    d.ProductID,
			Product:      d.Product,
			Manufacturer: d.Manufacturer,
			UsagePage:    d.UsagePage,
			Usage:        d.Usage,
		})
	}
	return out, nil
}

func (m *karalabeManager) Open(info Info) (Device, error) {
	d, ok := m.infos[info.Path]
	if !ok {
		return nil, fmt.Errorf("device %s not enumerated", info.Path)
	}
	dev, err := d.Open()
	if err != nil {
		return nil, fmt.Errorf("open device: %w", err)
	}
	return &karalabeDevice{dev}, nil
}

type karalabeDevice struct{ dev usb.Device }

func (d *karalabeDevice) Write(p []byte) (int, error) {
	n, err := d.dev.Write(p)
	if err != nil {
		return n, fmt.Errorf("usb write: %w", err)
	}
	return n, nil
}

// ReadTimeout bounds karalabe/usb's blocking Read.
func (d *karalabeDevice) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	return readWithTimeout(d.dev.Read, p, timeout)
}

func (d *karalabeDevice) Close() error {
	return d.dev.Close()
}
