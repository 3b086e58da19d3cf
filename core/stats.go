package core

import (
	"github.com/Amogh-2404/Tez/core/pools"
)

// Stats is a snapshot of engine counters.
type Stats struct {
	Pool           pools.WorkerPoolStats `json:"pool"`
	Accepted       uint64                `json:"accepted"`
	Rejected       uint64                `json:"rejected"`
	Requests       uint64                `json:"requests"`
	ActiveSessions int64                 `json:"active_sessions"`
	// HeadBufferAllocs counts head buffers the pool had to allocate.
	HeadBufferAllocs uint64 `json:"head_buffer_allocs"`
}

// Stats returns current engine statistics.
func (e *Engine) Stats() Stats {
	return Stats{
		Pool:           e.pool.Stats(),
		Accepted:       e.stats.accepted.Load(),
		Rejected:       e.stats.rejected.Load(),
		Requests:       e.stats.requests.Load(),
		ActiveSessions: e.stats.active.Load(),

		HeadBufferAllocs: e.bufs.Allocs(),
	}
}
