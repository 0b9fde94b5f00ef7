//go:build !linux

package sandbox

// applyLimits is a no-op where prlimit is unavailable; the wall-clock
// timeout and output caps still apply.
func applyLimits(int, Limits) error { return nil }
