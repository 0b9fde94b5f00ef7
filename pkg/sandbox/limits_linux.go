//go:build linux

package sandbox

import (
	"errors"

	"golang.org/x/sys/unix"
)

// applyLimits sets kernel resource limits on a running process.
func applyLimits(pid int, l Limits) error {
	var errs []error
	set := func(resource int, v uint64) {
		if v == 0 {
			return
		}
		rl := unix.Rlimit{Cur: v, Max: v}
		if err := unix.Prlimit(pid, resource, &rl, nil); err != nil {
			errs = append(errs, err)
		}
	}
	set(unix.RLIMIT_CPU, l.CPUSeconds)
	set(unix.RLIMIT_AS, l.MemoryBytes)
	set(unix.RLIMIT_NOFILE, l.OpenFiles)
	set(unix.RLIMIT_FSIZE, l.FileSizeBytes)
	return errors.Join(errs...)
}
