package testutil

import (
	"encoding/binary"
	"errors"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/Norgate-AV/hookctl/internal/windows"
)

// FakeLoaderEntry is the address FakeSystem reports for LoadLibraryW
const FakeLoaderEntry uintptr = 0x7710_2000

// FakeModuleHandle is the exit code of a successful fake loader thread
const FakeModuleHandle uint32 = 0x6A40_0000

var errFakeNoProcess = errors.New("the parameter is incorrect")

// FakeProcess is a process known to FakeSystem
type FakeProcess struct {
	Pid      uint32
	Name     string
	Alive    bool
	ExitCode uint32
	Modules  []windows.ModuleEntry
}

// FakeWindow is a top-level window known to FakeSystem
type FakeWindow struct {
	Hwnd  uintptr
	Pid   uint32
	Class string
}

type fakeHandle struct {
	kind string
	pid  uint32
}

type OpenProcessCall struct {
	Pid    uint32
	Access uint32
}

type RemoteThreadCall struct {
	Process uintptr
	Start   uintptr
	Arg     uintptr
}

// FakeSystem simulates processes, windows and the remote loader. It implements
// interfaces.ProcessLister, interfaces.WindowEnumerator and interfaces.RemoteProcess.
type FakeSystem struct {
	Procs   []*FakeProcess
	Windows []FakeWindow

	// Failure knobs
	ListErr    error
	OpenErr    error // applied to every open except a limited query
	AllocErr   error
	WriteErr   error
	EntryErr   error
	ThreadErr  error
	WaitResult windows.WaitResult
	WaitErr    error
	ZeroExit   bool
	ModulesErr error

	// Recording
	EnumVisited []uintptr
	OpenCalls   []OpenProcessCall
	ThreadCalls []RemoteThreadCall
	Allocs      []uintptr
	Frees       []uintptr
	Written     map[uintptr][]byte

	handles    map[uintptr]fakeHandle
	nextHandle uintptr
	nextAlloc  uintptr
}

func NewFakeSystem() *FakeSystem {
	return &FakeSystem{
		Written:    map[uintptr][]byte{},
		handles:    map[uintptr]fakeHandle{},
		nextHandle: 0x100,
		nextAlloc:  0x1F00_0000,
		WaitResult: windows.WaitSignaled,
	}
}

// Helper methods for fluent configuration
func (f *FakeSystem) WithProcess(pid uint32, name string) *FakeSystem {
	f.Procs = append(f.Procs, &FakeProcess{
		Pid:   pid,
		Name:  name,
		Alive: true,
		Modules: []windows.ModuleEntry{
			{Name: name, Path: `C:\Games\` + name},
			{Name: "KERNEL32.DLL", Path: `C:\Windows\System32\KERNEL32.DLL`},
		},
	})

	return f
}

func (f *FakeSystem) WithWindow(hwnd uintptr, pid uint32, class string) *FakeSystem {
	f.Windows = append(f.Windows, FakeWindow{Hwnd: hwnd, Pid: pid, Class: class})
	return f
}

func (f *FakeSystem) WithModule(pid uint32, name string) *FakeSystem {
	if p := f.process(pid); p != nil {
		p.Modules = append(p.Modules, windows.ModuleEntry{Name: name, Path: `C:\hook\` + name})
	}

	return f
}

// Kill marks pid as exited and destroys its windows. The process stays
// openable, as a real process does while handles to it exist.
func (f *FakeSystem) Kill(pid uint32) {
	if p := f.process(pid); p != nil {
		p.Alive = false
		p.Modules = nil
	}

	kept := f.Windows[:0]
	for _, w := range f.Windows {
		if w.Pid != pid {
			kept = append(kept, w)
		}
	}
	f.Windows = kept
}

// Remove drops pid entirely so it can no longer be opened.
func (f *FakeSystem) Remove(pid uint32) {
	f.Kill(pid)

	kept := f.Procs[:0]
	for _, p := range f.Procs {
		if p.Pid != pid {
			kept = append(kept, p)
		}
	}
	f.Procs = kept
}

// OpenHandles returns the number of handles opened and not yet closed
func (f *FakeSystem) OpenHandles() int {
	return len(f.handles)
}

// LiveAllocations returns remote buffers that were never freed
func (f *FakeSystem) LiveAllocations() int {
	return len(f.Allocs) - len(f.Frees)
}

// HasModule reports whether name is loaded in pid
func (f *FakeSystem) HasModule(pid uint32, name string) bool {
	p := f.process(pid)
	if p == nil {
		return false
	}

	for _, m := range p.Modules {
		if strings.EqualFold(m.Name, name) {
			return true
		}
	}

	return false
}

func (f *FakeSystem) process(pid uint32) *FakeProcess {
	for _, p := range f.Procs {
		if p.Pid == pid {
			return p
		}
	}

	return nil
}

func (f *FakeSystem) newHandle(kind string, pid uint32) uintptr {
	h := f.nextHandle
	f.nextHandle += 4
	f.handles[h] = fakeHandle{kind: kind, pid: pid}

	return h
}

// interfaces.ProcessLister

func (f *FakeSystem) Processes() ([]windows.ProcessEntry, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}

	var entries []windows.ProcessEntry
	for _, p := range f.Procs {
		if p.Alive {
			entries = append(entries, windows.ProcessEntry{Pid: p.Pid, ExeName: p.Name})
		}
	}

	return entries, nil
}

// interfaces.WindowEnumerator

func (f *FakeSystem) EnumWindows(visit func(hwnd uintptr) bool) error {
	for _, w := range f.Windows {
		f.EnumVisited = append(f.EnumVisited, w.Hwnd)
		if !visit(w.Hwnd) {
			return nil
		}
	}

	return nil
}

func (f *FakeSystem) WindowPid(hwnd uintptr) uint32 {
	for _, w := range f.Windows {
		if w.Hwnd == hwnd {
			return w.Pid
		}
	}

	return 0
}

func (f *FakeSystem) ClassName(hwnd uintptr) string {
	for _, w := range f.Windows {
		if w.Hwnd == hwnd {
			return w.Class
		}
	}

	return ""
}

// interfaces.RemoteProcess

func (f *FakeSystem) Modules(pid uint32) ([]windows.ModuleEntry, error) {
	if f.ModulesErr != nil {
		return nil, f.ModulesErr
	}

	p := f.process(pid)
	if p == nil || !p.Alive {
		return nil, errFakeNoProcess
	}

	return append([]windows.ModuleEntry(nil), p.Modules...), nil
}

func (f *FakeSystem) OpenProcess(pid uint32, access uint32) (uintptr, error) {
	f.OpenCalls = append(f.OpenCalls, OpenProcessCall{Pid: pid, Access: access})

	if f.OpenErr != nil && access != windows.PROCESS_QUERY_LIMITED_INFORMATION {
		return 0, f.OpenErr
	}

	if f.process(pid) == nil {
		return 0, errFakeNoProcess
	}

	return f.newHandle("process", pid), nil
}

func (f *FakeSystem) CloseHandle(h uintptr) error {
	if _, ok := f.handles[h]; !ok {
		return errors.New("the handle is invalid")
	}

	delete(f.handles, h)
	return nil
}

func (f *FakeSystem) ProcessExitCode(process uintptr) (uint32, error) {
	h, ok := f.handles[process]
	if !ok || h.kind != "process" {
		return 0, errors.New("the handle is invalid")
	}

	p := f.process(h.pid)
	if p == nil {
		return 0, errFakeNoProcess
	}

	if p.Alive {
		return windows.STILL_ACTIVE, nil
	}

	return p.ExitCode, nil
}

func (f *FakeSystem) AllocRemote(process uintptr, size int) (uintptr, error) {
	if f.AllocErr != nil {
		return 0, f.AllocErr
	}

	addr := f.nextAlloc
	f.nextAlloc += 0x1000
	f.Allocs = append(f.Allocs, addr)

	return addr, nil
}

func (f *FakeSystem) WriteRemote(process uintptr, addr uintptr, data []byte) error {
	if f.WriteErr != nil {
		return f.WriteErr
	}

	f.Written[addr] = append([]byte(nil), data...)
	return nil
}

func (f *FakeSystem) FreeRemote(process uintptr, addr uintptr) error {
	f.Frees = append(f.Frees, addr)
	return nil
}

func (f *FakeSystem) LoaderEntryPoint() (uintptr, error) {
	if f.EntryErr != nil {
		return 0, f.EntryErr
	}

	return FakeLoaderEntry, nil
}

// CreateRemoteThread simulates LoadLibraryW: the UTF-16 path written at arg
// becomes a loaded module of the target unless ZeroExit is set.
func (f *FakeSystem) CreateRemoteThread(process uintptr, start uintptr, arg uintptr) (uintptr, error) {
	f.ThreadCalls = append(f.ThreadCalls, RemoteThreadCall{Process: process, Start: start, Arg: arg})

	if f.ThreadErr != nil {
		return 0, f.ThreadErr
	}

	h := f.handles[process]

	if start == FakeLoaderEntry && !f.ZeroExit && f.WaitResult == windows.WaitSignaled {
		path := decodeUTF16(f.Written[arg])
		if p := f.process(h.pid); p != nil && path != "" {
			p.Modules = append(p.Modules, windows.ModuleEntry{Name: path[strings.LastIndexAny(path, `\/`)+1:], Path: path})
		}
	}

	return f.newHandle("thread", h.pid), nil
}

func (f *FakeSystem) Wait(object uintptr, timeout time.Duration) (windows.WaitResult, error) {
	return f.WaitResult, f.WaitErr
}

func (f *FakeSystem) ThreadExitCode(thread uintptr) (uint32, error) {
	if f.ZeroExit {
		return 0, nil
	}

	return FakeModuleHandle, nil
}

func decodeUTF16(b []byte) string {
	units := make([]uint16, 0, len(b)/2)

	for i := 0; i+1 < len(b); i += 2 {
		u := binary.LittleEndian.Uint16(b[i:])
		if u == 0 {
			break
		}
		units = append(units, u)
	}

	return string(utf16.Decode(units))
}
