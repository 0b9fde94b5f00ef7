package remote

import "context"

// Acquirer locates a sandbox server for one run.
type Acquirer interface {
	// Acquire returns the base URL of a sandbox server. The release
	// function must be called once the run is finished.
	Acquire(ctx context.Context) (sandboxURL string, release func(), err error)
}

// StaticURL always returns the same sandbox server.
type StaticURL string

var _ Acquirer = StaticURL("")

// Acquire returns the fixed URL and a no-op release.
func (u StaticURL) Acquire(context.Context) (string, func(), error) {
	return string(u), func() {}, nil
}
