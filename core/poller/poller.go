// Package poller wraps the platform readiness API (epoll or kqueue) used by
// the acceptor to wait on the listening socket.
package poller

import "time"

// Poller is the I/O multiplexing interface
type Poller interface {
	// Add watches fd for readability.
	Add(fd int) error
	Remove(fd int) error
	// Wait blocks for at most timeout and returns the ready descriptors.
	// An interrupted wait returns no descriptors and no error.
	Wait(timeout time.Duration) ([]int, error)
	Close() error
}
