package hid

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestParseVIDPID(t *testing.T) {
	tests := []struct {
		in      string
		want    VIDPID
		wantErr bool
	}{
		{"1050:0407", VIDPID{0x1050, 0x0407}, false},
		{"0x096e:0x0858", VIDPID{0x096E, 0x0858}, false},
		{" 20a0:4287 ", VIDPID{0x20A0, 0x4287}, false},
		{"1050", VIDPID{}, true},
		{"10500:0407", VIDPID{}, true},
		{"zz:0407", VIDPID{}, true},
		{"1050:", VIDPID{}, true},
	}
	for _, tt := range tests {
		got, err := ParseVIDPID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%q: err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("%q: got %v want %v", tt.in, got, tt.want)
		}
	}
}

func TestVIDPIDMatches(t *testing.T) {
	v := VIDPID{0x1050, 0x0407}
	if !v.Matches(Info{VendorID: 0x1050, ProductID: 0x0407}) {
		t.Fatalf("expected match")
	}
	if v.Matches(Info{VendorID: 0x1050, ProductID: 0x0406}) {
		t.Fatalf("unexpected match")
	}
	if v.String() != "1050:0407" {
		t.Fatalf("String() = %q", v.String())
	}
}

func TestInfoName(t *testing.T) {
	tests := []struct {
		info Info
		want string
	}{
		{Info{Manufacturer: "Yubico", Product: "YubiKey OTP+FIDO+CCID"}, "Yubico YubiKey OTP+FIDO+CCID"},
		{Info{Manufacturer: "Yubico"}, "Yubico"},
		{Info{Product: "Security Key"}, "Security Key"},
		{Info{}, ""},
	}
	for _, tt := range tests {
		if got := tt.info.Name(); got != tt.want {
			t.Errorf("got %q want %q", got, tt.want)
		}
	}

	i := Info{VendorID: 0x1050, ProductID: 0x0407, Manufacturer: "Yubico", Product: "YubiKey"}
	if i.String() != "1050:0407: Yubico YubiKey" {
		t.Fatalf("String() = %q", i.String())
	}
}

func TestNewManagerUnknown(t *testing.T) {
	_, err := NewManager("no-such-backend")
	if !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestReadWithTimeout(t *testing.T) {
	fast := func(p []byte) (int, error) {
		return copy(p, []byte{1, 2, 3}), nil
	}
	buf := make([]byte, 8)
	n, err := readWithTimeout(fast, buf, time.Second)
	if err != nil || n != 3 || !bytes.Equal(buf[:n], []byte{1, 2, 3}) {
		t.Fatalf("fast read: n=%d err=%v buf=%x", n, err, buf)
	}

	release := make(chan struct{})
	defer close(release)
	slow := func(p []byte) (int, error) {
		<-release
		return 0, nil
	}
	if _, err := readWithTimeout(slow, buf, 10*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("slow read: expected ErrTimeout, got %v", err)
	}

	failing := func(p []byte) (int, error) { return 0, errors.New("gone") }
	if _, err := readWithTimeout(failing, buf, time.Second); err == nil || errors.Is(err, ErrTimeout) {
		t.Fatalf("failing read: got %v", err)
	}
}

func TestMockDevice(t *testing.T) {
	m := NewMockDevice(func(report []byte) [][]byte {
		return [][]byte{report[1:3], {0xff}}
	})

	if _, err := m.Write([]byte{0x00, 0xaa, 0xbb, 0xcc}); err != nil {
		t.Fatalf("write: %v", err)
	}

	buf := make([]byte, 64)
	n, err := m.ReadTimeout(buf, time.Second)
	if err != nil || !bytes.Equal(buf[:n], []byte{0xaa, 0xbb}) {
		t.Fatalf("first read: %x %v", buf[:n], err)
	}
	n, err = m.ReadTimeout(buf, time.Second)
	if err != nil || !bytes.Equal(buf[:n], []byte{0xff}) {
		t.Fatalf("second read: %x %v", buf[:n], err)
	}
	if _, err := m.ReadTimeout(buf, time.Second); !errors.Is(err, ErrTimeout) {
		t.Fatalf("third read: expected ErrTimeout, got %v", err)
	}

	if w := m.Written(); len(w) != 1 || !bytes.Equal(w[0], []byte{0x00, 0xaa, 0xbb, 0xcc}) {
		t.Fatalf("written: %x", w)
	}

	m.Close()
	if !m.Closed() {
		t.Fatalf("not closed")
	}
	if _, err := m.Write([]byte{0}); err == nil {
		t.Fatalf("write after close succeeded")
	}
}

func TestMockManager(t *testing.T) {
	dev := NewMockDevice(nil)
	m := &MockManager{
		Infos:   []Info{{Path: "a"}, {Path: "b"}},
		Devices: map[string]Device{"a": dev},
	}

	infos, err := m.List()
	if err != nil || len(infos) != 2 {
		t.Fatalf("list: %v %v", infos, err)
	}
	if d, err := m.Open(infos[0]); err != nil || d != dev {
		t.Fatalf("open a: %v %v", d, err)
	}
	if _, err := m.Open(infos[1]); err == nil {
		t.Fatalf("open b succeeded")
	}
}
