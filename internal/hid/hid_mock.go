package hid

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// MockDevice is a scripted Device. Every report passed to Write is handed to
// Respond and the reports it returns are queued for ReadTimeout. A read with
// nothing queued times out immediately.
type MockDevice struct {
	Respond  func(report []byte) [][]byte
	WriteErr error
	ReadErr  error

	mu      sync.Mutex
	written [][]byte
	pending [][]byte
	closed  bool
}

func NewMockDevice(respond func(report []byte) [][]byte) *MockDevice {
	return &MockDevice{Respond: respond}
}

func (m *MockDevice) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, errors.New("mock device closed")
	}
	if m.WriteErr != nil {
		return 0, m.WriteErr
	}

	report := append([]byte(nil), p...)
	m.written = append(m.written, report)
	if m.Respond != nil {
		m.pending = append(m.pending, m.Respond(report)...)
	}
	return len(p), nil
}

func (m *MockDevice) ReadTimeout(p []byte, _ time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, errors.New("mock device closed")
	}
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}
	if len(m.pending) == 0 {
		return 0, ErrTimeout
	}
	n := copy(p, m.pending[0])
	m.pending = m.pending[1:]
	return n, nil
}

func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Emit queues a report without a preceding write.
func (m *MockDevice) Emit(report []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, report)
}

// Written returns every report written so far.
func (m *MockDevice) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.written...)
}

func (m *MockDevice) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockManager serves a fixed device list; Devices maps Info.Path to the
// device Open returns.
type MockManager struct {
	Infos   []Info
	Devices map[string]Device
	ListErr error
}

func (m *MockManager) List() ([]Info, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Infos, nil
}

func (m *MockManager) Open(info Info) (Device, error) {
	d, ok := m.Devices[info.Path]
	if !ok {
		return nil, fmt.Errorf("mock: no device at %q", info.Path)
	}
	return d, nil
}
