// Command pmmsim runs the kernel physical memory allocator on the host. It
// loads scenario files describing a firmware memory map and a script of
// allocator operations, and reports, renders or interactively explores the
// resulting allocator state.
package main

func main() {
	execute()
}
