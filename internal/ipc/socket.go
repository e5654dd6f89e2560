package ipc

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// restrictSocket limits who may connect; the socket grants capture and
// session control to anyone who can open it.
func restrictSocket(path string, mode os.FileMode) error {
	if mode == 0 {
		return nil
	}
	if err := unix.Chmod(path, uint32(mode.Perm())); err != nil {
		return fmt.Errorf("restrict socket permissions: %w", err)
	}
	return nil
}
