//go:build unix

package mmapfile

import (
	"os"

	"golang.org/x/sys/unix"
)

type advice int

const (
	adviseNormal advice = iota
	adviseSequential
	adviseRandom
	adviseWillNeed
)

func osMap(f *os.File, offset int64, size int, writable bool) ([]byte, error) {
	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}
	return unix.Mmap(int(f.Fd()), offset, size, prot, unix.MAP_SHARED)
}

func osUnmap(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Munmap(data)
}

func osSync(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Msync(data, unix.MS_SYNC)
}

func osAdvise(data []byte, a advice) error {
	if len(data) == 0 {
		return nil
	}
	var flag int
	switch a {
	case adviseSequential:
		flag = unix.MADV_SEQUENTIAL
	case adviseRandom:
		flag = unix.MADV_RANDOM
	case adviseWillNeed:
		flag = unix.MADV_WILLNEED
	default:
		flag = unix.MADV_NORMAL
	}
	err := unix.Madvise(data, flag)
	if err == unix.EINVAL {
		// Non-page-aligned slice; the hint is advisory, ignore.
		return nil
	}
	return err
}

// Allocate hole-punches (deallocates) the given byte range within the
// file. Nothing in this module calls it: freeing a blob does not
// return disk space. Per spec §9, this has no real equivalent on Windows.
func Allocate(f *os.File, offset int64, size int64) error {
	return unix.Fallocate(int(f.Fd()), unix.FALLOC_FL_PUNCH_HOLE|unix.FALLOC_FL_KEEP_SIZE, offset, size)
}
