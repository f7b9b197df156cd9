package kfmt

import (
	"github.com/A1Liu/os/kernel"
	"github.com/A1Liu/os/kernel/cpu"
)

var (
	// cpuHaltFn is mocked by tests and is automatically inlined by the compiler.
	cpuHaltFn = cpu.Halt

	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}
)

// Panic prints the supplied error (if not nil) followed by the panic banner
// and halts the CPU. Calls to Panic never return.
func Panic(e interface{}) {
	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	Printf("\n-----------------------------------\n")
	if err != nil {
		Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	Printf("*** kernel panic: system halted ***")
	Printf("\n-----------------------------------\n")

	cpuHaltFn()
}

// SetHaltFn replaces the function that Panic calls to stop the CPU and
// returns the previously installed one. Hosted tools use it to turn a kernel
// panic into something they can recover from.
func SetHaltFn(fn func()) func() {
	prev := cpuHaltFn
	cpuHaltFn = fn
	return prev
}
