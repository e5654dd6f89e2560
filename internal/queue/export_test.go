package queue

// SetFreeSpaceFunc replaces the filesystem probe used by the Put preflight.
func SetFreeSpaceFunc(s *Store, minFree uint64, fn func(string) (uint64, error)) {
	s.minFree = minFree
	s.freeSpace = fn
}
