package queue

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// freeBytes reports the space available to unprivileged writers under dir.
func freeBytes(dir string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", dir, err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

func (s *Store) checkFreeSpace(incoming int) error {
	if s.minFree == 0 || s.freeSpace == nil {
		return nil
	}
	available, err := s.freeSpace(s.dir)
	if err != nil {
		return err
	}
	need := s.minFree + uint64(incoming)
	if available < need {
		return fmt.Errorf("%w: %d bytes free, %d required", ErrQuotaExceeded, available, need)
	}
	return nil
}
