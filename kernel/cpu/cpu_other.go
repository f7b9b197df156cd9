//go:build !amd64

// Package cpu exposes the handful of privileged instructions the memory
// manager needs.
package cpu

// Halt spins forever. Architectures other than amd64 only run the kernel
// packages hosted (tests and tools), where there is nothing to halt.
func Halt() {
	for {
	}
}
