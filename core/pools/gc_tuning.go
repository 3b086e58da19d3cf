package pools

import (
	"runtime"
	"runtime/debug"
	"time"
)

// GCConfig holds GC tuning parameters
type GCConfig struct {
	// Percent sets the garbage collection target percentage.
	// 0 keeps the runtime default.
	Percent int

	// MemoryLimit sets the soft memory limit in bytes.
	// 0 = no limit
	MemoryLimit int64
}

// ApplyGCConfig applies cfg and reports the previous GC percentage.
func ApplyGCConfig(cfg GCConfig) (previous int) {
	previous = -1
	if cfg.Percent > 0 {
		previous = debug.SetGCPercent(cfg.Percent)
	}

	if cfg.MemoryLimit > 0 {
		debug.SetMemoryLimit(cfg.MemoryLimit)
	}

	return previous
}

// GCStats holds garbage collection statistics
type GCStats struct {
	NumGC        uint32        `json:"num_gc"`
	PauseTotal   time.Duration `json:"pause_total"`
	LastPause    time.Duration `json:"last_pause"`
	AvgPause     time.Duration `json:"avg_pause"`
	AllocBytes   uint64        `json:"alloc_bytes"`
	TotalAlloc   uint64        `json:"total_alloc"`
	Sys          uint64        `json:"sys"`
	NumGoroutine int           `json:"goroutines"`
}

// GetGCStats returns current GC statistics
func GetGCStats() GCStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := GCStats{
		NumGC:        ms.NumGC,
		AllocBytes:   ms.Alloc,
		TotalAlloc:   ms.TotalAlloc,
		Sys:          ms.Sys,
		NumGoroutine: runtime.NumGoroutine(),
	}

	if ms.NumGC > 0 {
		// PauseNs is a ring of the last 256 pauses
		stats.LastPause = time.Duration(ms.PauseNs[(ms.NumGC+255)%256])
		stats.PauseTotal = time.Duration(ms.PauseTotalNs)
		stats.AvgPause = stats.PauseTotal / time.Duration(ms.NumGC)
	}

	return stats
}
