package kernel

// Error describes a kernel error. Kernel errors are declared as package-level
// pointers to Error because errors.New needs the Go allocator, which does not
// exist until physical memory management has been brought up.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
