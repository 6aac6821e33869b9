//go:build darwin
// +build darwin

package buffer_pool_manager

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// macOS has no O_DIRECT, the closest equivalent is disabling the cache on the open descriptor with F_NOCACHE.
func OpenFileDirectIO(filePath string, flags int, permissions os.FileMode) (*os.File, error) {

	fd, err := unix.Open(filePath, flags, uint32(permissions))

	if err != nil {
		return nil, err
	}

	file := os.NewFile(uintptr(fd), filePath)

	if _, _, errNum := syscall.Syscall(syscall.SYS_FCNTL, uintptr(fd), syscall.F_NOCACHE, uintptr(1)); errNum != 0 {

		file.Close()
		return nil, fmt.Errorf("error while opening file in DIRECT I/O mode")
	}

	return file, nil
}
