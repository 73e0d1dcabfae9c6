// Package channel implements the shared control record read by the injected
// hook library.
//
// The record has no lock. The injected side only trusts the target
// coordinates while Enabled is set, so writers must store the coordinates
// before setting Enabled and keep it set until the gesture has been sampled.
// Each field is written with a single aligned atomic store so a reader never
// sees a torn value and stores become visible in program order.
package channel

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"unsafe"

	"github.com/Norgate-AV/hookctl/internal/interfaces"
	"github.com/Norgate-AV/hookctl/internal/logger"
	"github.com/Norgate-AV/hookctl/internal/windows"
)

// DefaultName is the mapping name the hook library opens.
const DefaultName = "MSA_SharedMemory"

// ErrChannel reports a mapping that could not be created or a channel used
// before Init.
var ErrChannel = errors.New("shared control channel unavailable")

// Record is the wire layout shared with the hook library. It matches
//
//	struct { HWND hwnd; DWORD pid; int x; int y; bool enabled; }
//
// compiled for the same architecture. Field order and types must not change.
type Record struct {
	OwningWindow uintptr
	InjectedPid  uint32
	TargetX      int32
	TargetY      int32
	Enabled      bool
}

// RecordSize is the size of the mapping.
const RecordSize = int(unsafe.Sizeof(Record{}))

// Channel is the controller's end of the shared record.
type Channel struct {
	log    logger.LoggerInterface
	memory interfaces.SharedMemory
	name   string
	region windows.Region
	rec    *Record
}

func New(log logger.LoggerInterface, memory interfaces.SharedMemory, name string) *Channel {
	if name == "" {
		name = DefaultName
	}

	return &Channel{
		log:    log.With("channel"),
		memory: memory,
		name:   name,
	}
}

func (c *Channel) Name() string {
	return c.name
}

// Init creates or opens the mapping and binds it to hwnd with input
// disabled. Calling it again rebinds the same region.
func (c *Channel) Init(hwnd uintptr) error {
	if c.region == nil {
		region, err := c.memory.OpenMapping(c.name, RecordSize)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrChannel, c.name, err)
		}

		c.region = region
		c.rec = (*Record)(region.Addr())
		c.log.Debug("Mapped shared record", slog.String("name", c.name), slog.Int("size", RecordSize))
	}

	c.storeEnabled(false)
	atomic.StoreUintptr(&c.rec.OwningWindow, hwnd)

	return nil
}

// Valid reports whether the mapping is open.
func (c *Channel) Valid() bool {
	return c.rec != nil
}

// Cleanup releases the mapping. The record itself is left as is.
func (c *Channel) Cleanup() error {
	if c.region == nil {
		return nil
	}

	err := c.region.Close()
	c.region = nil
	c.rec = nil

	if err != nil {
		return fmt.Errorf("releasing %s: %w", c.name, err)
	}

	c.log.Debug("Released shared record", slog.String("name", c.name))
	return nil
}

func (c *Channel) SetTarget(x, y int32) error {
	if c.rec == nil {
		return ErrChannel
	}

	atomic.StoreInt32(&c.rec.TargetX, x)
	atomic.StoreInt32(&c.rec.TargetY, y)
	c.log.Trace("Target", slog.Int("x", int(x)), slog.Int("y", int(y)))

	return nil
}

func (c *Channel) SetEnabled(enabled bool) error {
	if c.rec == nil {
		return ErrChannel
	}

	c.storeEnabled(enabled)
	c.log.Trace("Enabled", slog.Bool("enabled", enabled))

	return nil
}

func (c *Channel) SetOwningWindow(hwnd uintptr) error {
	if c.rec == nil {
		return ErrChannel
	}

	atomic.StoreUintptr(&c.rec.OwningWindow, hwnd)
	return nil
}

func (c *Channel) SetInjectedPid(pid uint32) error {
	if c.rec == nil {
		return ErrChannel
	}

	atomic.StoreUint32(&c.rec.InjectedPid, pid)
	return nil
}

// Record reads back the whole record.
func (c *Channel) Record() (Record, error) {
	if c.rec == nil {
		return Record{}, ErrChannel
	}

	return Record{
		OwningWindow: atomic.LoadUintptr(&c.rec.OwningWindow),
		InjectedPid:  atomic.LoadUint32(&c.rec.InjectedPid),
		TargetX:      atomic.LoadInt32(&c.rec.TargetX),
		TargetY:      atomic.LoadInt32(&c.rec.TargetY),
		Enabled:      atomic.LoadUint32(c.enabledWord())&0xFF != 0,
	}, nil
}

// enabledWord addresses Enabled together with the three padding bytes that
// follow it, giving a 4-byte aligned word for atomic access.
func (c *Channel) enabledWord() *uint32 {
	return (*uint32)(unsafe.Pointer(&c.rec.Enabled))
}

func (c *Channel) storeEnabled(enabled bool) {
	var v uint32
	if enabled {
		v = 1
	}

	atomic.StoreUint32(c.enabledWord(), v)
}
