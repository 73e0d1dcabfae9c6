package testutil

import (
	"time"
	"unsafe"

	"github.com/Norgate-AV/hookctl/internal/windows"
)

// FakeRegion is shared memory backed by ordinary, 8-byte aligned Go memory
type FakeRegion struct {
	Name   string
	Closed bool
	buf    []uint64
}

func NewFakeRegion(name string, size int) *FakeRegion {
	return &FakeRegion{Name: name, buf: make([]uint64, (size+7)/8)}
}

func (r *FakeRegion) Addr() unsafe.Pointer {
	return unsafe.Pointer(&r.buf[0])
}

func (r *FakeRegion) Close() error {
	r.Closed = true
	return nil
}

// MockSharedMemory implements interfaces.SharedMemory. Opening a name that is
// already open returns the same region, as the OS does for a live mapping.
type MockSharedMemory struct {
	Regions   map[string]*FakeRegion
	OpenCalls []string
	OpenErr   error
}

func NewMockSharedMemory() *MockSharedMemory {
	return &MockSharedMemory{Regions: map[string]*FakeRegion{}}
}

func (m *MockSharedMemory) WithOpenError(err error) *MockSharedMemory {
	m.OpenErr = err
	return m
}

func (m *MockSharedMemory) OpenMapping(name string, size int) (windows.Region, error) {
	m.OpenCalls = append(m.OpenCalls, name)

	if m.OpenErr != nil {
		return nil, m.OpenErr
	}

	if r, ok := m.Regions[name]; ok && !r.Closed {
		return r, nil
	}

	r := NewFakeRegion(name, size)
	m.Regions[name] = r

	return r, nil
}

// MockMessagePoster implements interfaces.MessagePoster and records every
// message. OnPost runs after recording, so tests can sample channel state at
// the moment each message goes out.
type MockMessagePoster struct {
	Messages []windows.Message
	PostErr  error
	OnPost   func(msg windows.Message)
}

func NewMockMessagePoster() *MockMessagePoster {
	return &MockMessagePoster{Messages: []windows.Message{}}
}

func (m *MockMessagePoster) WithPostError(err error) *MockMessagePoster {
	m.PostErr = err
	return m
}

func (m *MockMessagePoster) PostMessage(hwnd uintptr, msg uint32, wparam, lparam uintptr) error {
	if m.PostErr != nil {
		return m.PostErr
	}

	posted := windows.Message{Hwnd: hwnd, Msg: msg, WParam: wparam, LParam: lparam}
	m.Messages = append(m.Messages, posted)

	if m.OnPost != nil {
		m.OnPost(posted)
	}

	return nil
}

// Count returns how many messages of kind msg were posted
func (m *MockMessagePoster) Count(msg uint32) int {
	n := 0
	for _, posted := range m.Messages {
		if posted.Msg == msg {
			n++
		}
	}

	return n
}

// Of returns the posted messages of kind msg in order
func (m *MockMessagePoster) Of(msg uint32) []windows.Message {
	var out []windows.Message
	for _, posted := range m.Messages {
		if posted.Msg == msg {
			out = append(out, posted)
		}
	}

	return out
}

// Reset forgets recorded messages
func (m *MockMessagePoster) Reset() {
	m.Messages = []windows.Message{}
}

// RecordingSleeper implements interfaces.Sleeper without sleeping
type RecordingSleeper struct {
	Sleeps  []time.Duration
	OnSleep func(d time.Duration)
}

func NewRecordingSleeper() *RecordingSleeper {
	return &RecordingSleeper{Sleeps: []time.Duration{}}
}

func (s *RecordingSleeper) Sleep(d time.Duration) {
	s.Sleeps = append(s.Sleeps, d)

	if s.OnSleep != nil {
		s.OnSleep(d)
	}
}

// Total returns the sum of all recorded sleeps
func (s *RecordingSleeper) Total() time.Duration {
	var total time.Duration
	for _, d := range s.Sleeps {
		total += d
	}

	return total
}

// Reset forgets recorded sleeps
func (s *RecordingSleeper) Reset() {
	s.Sleeps = []time.Duration{}
}

// MockCapturer implements windows.Capturer
type MockCapturer struct {
	Hwnd       uintptr
	Frame      windows.Frame
	CaptureErr error
	Captures   int
	Closed     bool
}

func (c *MockCapturer) Capture() (windows.Frame, error) {
	c.Captures++

	if c.CaptureErr != nil {
		return windows.Frame{}, c.CaptureErr
	}

	return c.Frame, nil
}

func (c *MockCapturer) Close() error {
	c.Closed = true
	return nil
}

// MockScreencapProvider implements interfaces.ScreencapProvider
type MockScreencapProvider struct {
	Created   []*MockCapturer
	CreateErr error
	Frame     windows.Frame
}

func NewMockScreencapProvider() *MockScreencapProvider {
	return &MockScreencapProvider{
		Frame: windows.Frame{Pixels: make([]byte, 4*4*2), Width: 4, Height: 2},
	}
}

func (m *MockScreencapProvider) WithCreateError(err error) *MockScreencapProvider {
	m.CreateErr = err
	return m
}

func (m *MockScreencapProvider) NewScreencap(hwnd uintptr) (windows.Capturer, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}

	c := &MockCapturer{Hwnd: hwnd, Frame: m.Frame}
	m.Created = append(m.Created, c)

	return c, nil
}

// Last returns the most recently created capturer, or nil
func (m *MockScreencapProvider) Last() *MockCapturer {
	if len(m.Created) == 0 {
		return nil
	}

	return m.Created[len(m.Created)-1]
}
