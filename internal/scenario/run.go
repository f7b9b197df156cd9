package scenario

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/A1Liu/os/internal/physmem"
	"github.com/A1Liu/os/kernel"
	"github.com/A1Liu/os/kernel/hal/bootboot"
	"github.com/A1Liu/os/kernel/kfmt"
	"github.com/A1Liu/os/kernel/mem"
	"github.com/A1Liu/os/kernel/mem/pmm"
	"github.com/A1Liu/os/kernel/mem/pmm/allocator"
)

var (
	// ErrHalted is returned when the allocator detects corrupted state and
	// halts the kernel.
	ErrHalted = errors.New("kernel halted")

	// ErrUnknownRef is returned when a release op names a block that was
	// never allocated or is already released.
	ErrUnknownRef = errors.New("unknown block reference")

	// ErrOutsideArena is returned when a release or mark op targets frames
	// that the arena does not back.
	ErrOutsideArena = errors.New("frames outside the arena")

	// ErrRefInUse is returned when an allocation op reuses the ref of a
	// live block.
	ErrRefInUse = errors.New("block reference in use")

	// sessionMu allows a single session at a time; the kernel packages keep
	// their output sink, halt hook and boot info in package state.
	sessionMu sync.Mutex
)

// haltSignal is the panic value raised in place of halting the CPU.
type haltSignal struct{}

// FrameState describes a frame in a Report.
type FrameState uint8

// Frame states.
const (
	FrameUnmanaged FrameState = iota
	FrameAllocated
	FrameFree
)

// String implements fmt.Stringer for FrameState.
func (s FrameState) String() string {
	switch s {
	case FrameAllocated:
		return "allocated"
	case FrameFree:
		return "free"
	default:
		return "unmanaged"
	}
}

// Options configures a Session.
type Options struct {
	// Logger receives kernel output at debug level and session progress.
	// Output is discarded when nil.
	Logger *slog.Logger

	// ValidateEachOp runs the heap validator after every op.
	ValidateEachOp bool
}

// OpResult records the outcome of a single op.
type OpResult struct {
	Index      int    `json:"index"`
	Op         string `json:"op"`
	Ref        string `json:"ref,omitempty"`
	Addr       uint64 `json:"addr,omitempty"`
	Size       uint64 `json:"size,omitempty"`
	Changed    uint64 `json:"changed,omitempty"`
	Error      string `json:"error,omitempty"`
	FreeMemory uint64 `json:"free_memory"`
}

// Report summarizes the allocator state of a session.
type Report struct {
	Name        string              `json:"name"`
	Halted      bool                `json:"halted"`
	FrameCount  uint64              `json:"frame_count"`
	InitialFree uint64              `json:"initial_free"`
	FreeMemory  uint64              `json:"free_memory"`
	ClassLens   [pmm.ClassCount]int `json:"class_lens"`
	Live        map[string]uint64   `json:"live,omitempty"`
	Ops         []OpResult          `json:"ops"`
	Diagnostics []string            `json:"diagnostics,omitempty"`
	Frames      []FrameState        `json:"-"`
}

// Session is an allocator initialized from a scenario memory map that ops can
// be applied to one at a time. Only one session can be open at a time; Close
// must be called to release it.
type Session struct {
	name   string
	arena  *physmem.Arena
	info   []byte
	logger *slog.Logger
	klog   *kernelLog
	opts   Options

	alloc    allocator.BuddyAllocator
	refs     map[string]allocator.Block
	ops      []OpResult
	initFree mem.Size
	halted   bool

	prevHalt func()
}

// NewSession maps an arena large enough for the free regions of s, hands the
// scenario memory map to the allocator as a BOOTBOOT info block and
// initializes the allocator.
func NewSession(s *Scenario, opts Options) (*Session, error) {
	arenaSize := s.Arena
	if arenaSize == 0 {
		arenaSize = Size(mem.AlignUp(uintptr(s.FreeEnd()), uintptr(mem.PageSize)))
	}
	if arenaSize < s.FreeEnd() {
		return nil, fmt.Errorf("%w: arena of 0x%x bytes cannot hold free memory up to 0x%x", ErrInvalidScenario, uint64(arenaSize), uint64(s.FreeEnd()))
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	sessionMu.Lock()

	arena, err := physmem.New(mem.Size(arenaSize))
	if err != nil {
		sessionMu.Unlock()
		return nil, err
	}

	ss := &Session{
		name:   s.Name,
		arena:  arena,
		info:   BuildInfo(s.Regions),
		logger: logger,
		klog:   &kernelLog{logger: logger},
		opts:   opts,
		refs:   make(map[string]allocator.Block),
	}

	kfmt.SetOutputSink(&kfmt.PrefixWriter{Sink: ss.klog, Prefix: []byte(kernelPrefix)})
	ss.prevHalt = kfmt.SetHaltFn(func() { panic(haltSignal{}) })
	bootboot.SetInfoPtr(uintptr(unsafe.Pointer(&ss.info[0])))

	var kerr *kernel.Error
	err = ss.guard(func() {
		kerr = ss.alloc.Init(arena.DirectMap(), bootboot.MemoryMap())
	})
	if err == nil && kerr != nil {
		err = kerr
	}
	if err != nil {
		ss.Close()
		return nil, fmt.Errorf("allocator init: %w", err)
	}

	ss.initFree = ss.alloc.FreeMemory()
	logger.Info("allocator ready", "frames", ss.alloc.FrameCount(), "free", uint64(ss.initFree))
	return ss, nil
}

// Close releases the session arena and restores the kernel package state.
func (ss *Session) Close() error {
	if ss.arena == nil {
		return nil
	}

	ss.klog.Flush()
	bootboot.SetInfoPtr(0)
	kfmt.SetHaltFn(ss.prevHalt)
	kfmt.SetOutputSink(nil)

	err := ss.arena.Close()
	ss.arena = nil
	sessionMu.Unlock()
	return err
}

// guard runs fn and converts a kernel halt into ErrHalted. After a halt the
// allocator state is unreliable and the session refuses further ops.
func (ss *Session) guard(fn func()) (err error) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if _, ok := rec.(haltSignal); !ok {
			panic(rec)
		}

		ss.klog.Flush()
		ss.halted = true
		ss.logger.Error("allocator halted")
		err = ErrHalted
	}()

	fn()
	return nil
}

// Apply runs a single op. Allocation failures are recorded in the result;
// an error is returned for malformed ops, unknown refs and kernel halts.
func (ss *Session) Apply(op Op) (OpResult, error) {
	result := OpResult{Index: len(ss.ops), Op: op.Op, Ref: op.Ref}

	if ss.halted {
		return result, ErrHalted
	}
	if err := op.Validate(); err != nil {
		return result, err
	}

	var opErr error
	err := ss.guard(func() {
		opErr = ss.apply(op, &result)
		if opErr == nil && ss.opts.ValidateEachOp {
			ss.alloc.Validate()
		}
	})
	if err == nil {
		err = opErr
	}
	if err != nil {
		return result, err
	}

	result.FreeMemory = uint64(ss.alloc.FreeMemory())
	ss.ops = append(ss.ops, result)
	ss.logger.Debug("op applied", "index", result.Index, "op", op.Op, "ref", op.Ref, "error", result.Error)
	return result, nil
}

func (ss *Session) apply(op Op, result *OpResult) error {
	switch op.Op {
	case OpAlloc, OpTry, OpZeroed:
		if _, exists := ss.refs[op.Ref]; exists {
			return fmt.Errorf("%w: %q", ErrRefInUse, op.Ref)
		}

		var (
			block allocator.Block
			kerr  *kernel.Error
		)
		switch op.Op {
		case OpAlloc:
			block, kerr = ss.alloc.AllocPages(op.Count)
		case OpTry:
			block, kerr = ss.alloc.TryAllocPages(op.Count)
		default:
			block, kerr = ss.alloc.ZeroedPages(op.Count)
		}

		if kerr != nil {
			result.Error = kerr.Error()
			return nil
		}

		ss.refs[op.Ref] = block
		result.Addr = uint64(ss.physical(block.Addr))
		result.Size = uint64(block.Size)

	case OpRelease:
		addr, count := ss.kernelAddress(op.Addr), op.Count
		if op.Ref != "" {
			block, ok := ss.refs[op.Ref]
			if !ok {
				return fmt.Errorf("%w: %q", ErrUnknownRef, op.Ref)
			}
			delete(ss.refs, op.Ref)
			addr, count = block.Addr, block.Frames()
		} else if err := ss.checkArena(op); err != nil {
			return err
		}

		result.Addr = uint64(ss.physical(addr))
		result.Size = uint64(count) << mem.PageShift
		ss.alloc.ReleasePages(addr, count)

	case OpMark:
		if err := ss.checkArena(op); err != nil {
			return err
		}
		result.Addr = uint64(op.Addr)
		result.Changed = ss.alloc.MarkUsability(ss.kernelAddress(op.Addr), op.Count, op.Usable)

	case OpValidate:
		ss.alloc.Validate()
	}

	return nil
}

// checkArena rejects explicit frame ranges the arena does not back. The
// allocator manages frames up to the end of the last map entry, which may lie
// well past the end of the arena.
func (ss *Session) checkArena(op Op) error {
	if op.Count < 0 || !ss.arena.Contains(uint64(op.Addr), mem.Size(op.Count)<<mem.PageShift) {
		return fmt.Errorf("%w: %d frames at 0x%x", ErrOutsideArena, op.Count, uint64(op.Addr))
	}
	return nil
}

func (ss *Session) physical(addr uintptr) uintptr {
	return ss.arena.DirectMap().PhysicalAddress(addr)
}

func (ss *Session) kernelAddress(phys Size) uintptr {
	return ss.arena.DirectMap().KernelAddress(uintptr(phys))
}

// Report returns the current allocator state. Once the allocator has halted
// only the op history and the kernel diagnostics are reported.
func (ss *Session) Report() *Report {
	ss.klog.Flush()

	report := &Report{
		Name:        ss.name,
		Halted:      ss.halted,
		InitialFree: uint64(ss.initFree),
		Ops:         ss.ops,
		Diagnostics: ss.klog.tail,
	}
	if ss.halted {
		return report
	}

	report.FrameCount = ss.alloc.FrameCount()
	report.FreeMemory = uint64(ss.alloc.FreeMemory())
	for class := range report.ClassLens {
		report.ClassLens[class] = ss.alloc.ClassLen(class)
	}

	if len(ss.refs) != 0 {
		report.Live = make(map[string]uint64, len(ss.refs))
		for ref, block := range ss.refs {
			report.Live[ref] = uint64(block.Size)
		}
	}

	report.Frames = make([]FrameState, ss.alloc.FrameCount())
	for frame := range report.Frames {
		usable, free := ss.alloc.FrameState(pmm.Frame(frame))
		switch {
		case free:
			report.Frames[frame] = FrameFree
		case usable:
			report.Frames[frame] = FrameAllocated
		}
	}

	return report
}

// Run executes every op of s in a fresh session and returns the final
// report. If an op fails or the allocator halts, Run returns the report
// collected so far along with the error.
func Run(s *Scenario, opts Options) (*Report, error) {
	ss, err := NewSession(s, opts)
	if err != nil {
		return nil, err
	}
	defer ss.Close()

	for i, op := range s.Ops {
		if _, err := ss.Apply(op); err != nil {
			return ss.Report(), fmt.Errorf("op %d (%s): %w", i, op.Op, err)
		}
	}

	return ss.Report(), nil
}
