// Package cpu exposes the handful of privileged instructions the memory
// manager needs.
package cpu

// Halt disables interrupts and stops instruction execution. It never returns:
// the CPU halts again if an NMI wakes it.
func Halt()
