package core

import (
	"errors"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// acceptConnections drains the listener's accept queue. Each accepted
// socket becomes a session task; the loop returns once the queue is empty
// or the listener fails.
func (e *Engine) acceptConnections() {
	for !e.closing.Load() {
		nfd, _, err := e.accept(e.lfd)
		if err != nil {
			switch {
			case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EWOULDBLOCK):
				return
			case errors.Is(err, unix.EINTR), errors.Is(err, unix.ECONNABORTED):
				continue
			case errors.Is(err, unix.EBADF), errors.Is(err, unix.EINVAL):
				// listener closed underneath us
				return
			}
			// EMFILE and friends persist while the listener stays
			// readable; back off instead of spinning on the poller.
			e.acceptDelay = nextAcceptDelay(e.acceptDelay)
			e.acceptErrs.Do(func() {
				e.log.Warn().Err(err).Dur("backoff", e.acceptDelay).Msg("Accept failed")
			})
			e.sleep(e.acceptDelay)
			return
		}
		e.acceptDelay = 0
		unix.CloseOnExec(nfd)

		conn, err := fdConn(nfd)
		if err != nil {
			e.acceptErrs.Do(func() {
				e.log.Warn().Err(err).Msg("Wrapping accepted socket failed")
			})
			continue
		}

		e.stats.accepted.Add(1)
		e.metrics.ConnAccepted()
		e.submit(conn)
	}
}

// nextAcceptDelay doubles d from 5ms up to one poll interval.
func nextAcceptDelay(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	return min(2*d, pollInterval)
}

// fdConn turns an accepted descriptor into a net.Conn driven by the Go
// runtime poller. nfd is always consumed.
func fdConn(nfd int) (net.Conn, error) {
	f := os.NewFile(uintptr(nfd), "tcp-conn")
	defer f.Close()

	conn, err := net.FileConn(f)
	if err != nil {
		return nil, err
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}
	return conn, nil
}
