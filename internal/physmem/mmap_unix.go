//go:build unix

package physmem

import "golang.org/x/sys/unix"

func mapMemory(size int) ([]byte, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}

	// Most tests touch a small fraction of an arena; let the host back it
	// lazily.
	_ = unix.Madvise(data, unix.MADV_RANDOM)
	return data, nil
}

func unmapMemory(data []byte) error {
	return unix.Munmap(data)
}
