package api

import (
	"net/http"
	"runtime"
	"time"
)

// HealthResponse reports liveness plus a view of the loaded pattern set,
// so a probe can tell an empty registry from a healthy one.
type HealthResponse struct {
	Status          string       `json:"status"`
	Timestamp       time.Time    `json:"timestamp"`
	Uptime          string       `json:"uptime,omitempty"`
	Patterns        int          `json:"patterns"`
	PatternsEnabled int          `json:"patterns_enabled"`
	Goroutines      int          `json:"goroutines"`
	Memory          *MemoryStats `json:"memory,omitempty"`
}

// MemoryStats represents memory usage statistics.
type MemoryStats struct {
	AllocMB      uint64 `json:"alloc_mb"`
	TotalAllocMB uint64 `json:"total_alloc_mb"`
	SysMB        uint64 `json:"sys_mb"`
	NumGC        uint32 `json:"num_gc"`
}

var startTime = time.Now()

// HandleHealth returns the health status of the application.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	enabled := 0
	defs := s.set.Definitions()
	for i := range defs {
		if defs[i].Enabled {
			enabled++
		}
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:          "ok",
		Timestamp:       time.Now(),
		Uptime:          time.Since(startTime).String(),
		Patterns:        len(defs),
		PatternsEnabled: enabled,
		Goroutines:      runtime.NumGoroutine(),
		Memory: &MemoryStats{
			AllocMB:      m.Alloc / 1024 / 1024,
			TotalAllocMB: m.TotalAlloc / 1024 / 1024,
			SysMB:        m.Sys / 1024 / 1024,
			NumGC:        m.NumGC,
		},
	})
}
