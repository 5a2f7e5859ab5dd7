// Package observability aggregates live relay telemetry for the health
// endpoint and the periodic stats log line.
package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// RelayStats is the snapshot served by /health and logged by the reporter.
type RelayStats struct {
	Connections       int     `json:"connections"`
	MessagesRelayed   uint64  `json:"messages_relayed"`
	MessagesPerSecond float64 `json:"messages_per_second"`
	AIReplies         uint64  `json:"ai_replies"`
	AIFailures        uint64  `json:"ai_failures"`
	SendFailures      uint64  `json:"send_failures"`
	AllocMemMb        uint64  `json:"alloc_mem_mb"`
	NumGC             uint32  `json:"num_gc"`
	Goroutines        int     `json:"goroutines"`
	UptimeSeconds     int64   `json:"uptime_seconds"`
}

// StatsManager collects counters from the runtime. Increments are atomic
// so the hot path never takes the mutex; the mutex only guards the
// assembled snapshot and the rate window.
type StatsManager struct {
	log *slog.Logger

	messagesRelayed atomic.Uint64
	aiReplies       atomic.Uint64
	aiFailures      atomic.Uint64
	sendFailures    atomic.Uint64

	// connectionCount is injected so the manager does not hold a
	// reference into the runtime package.
	connectionCount func() int

	mu         sync.RWMutex
	lastCheck  time.Time
	lastTotal  uint64
	latestRate float64
	startedAt  time.Time
}

func NewStatsManager(log *slog.Logger, connectionCount func() int) *StatsManager {
	now := time.Now()
	return &StatsManager{
		log:             log,
		connectionCount: connectionCount,
		lastCheck:       now,
		startedAt:       now,
	}
}

func (m *StatsManager) MessageRelayed() { m.messagesRelayed.Add(1) }
func (m *StatsManager) AIReply()        { m.aiReplies.Add(1) }
func (m *StatsManager) AIFailure()      { m.aiFailures.Add(1) }
func (m *StatsManager) SendFailure()    { m.sendFailures.Add(1) }

// Snapshot assembles the current stats, refreshing the message rate from
// the elapsed window since the previous call.
func (m *StatsManager) Snapshot() RelayStats {
	m.mu.Lock()
	now := time.Now()
	total := m.messagesRelayed.Load()
	if elapsed := now.Sub(m.lastCheck).Seconds(); elapsed >= 1 {
		m.latestRate = float64(total-m.lastTotal) / elapsed
		m.lastTotal = total
		m.lastCheck = now
	}
	rate := m.latestRate
	started := m.startedAt
	m.mu.Unlock()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := RelayStats{
		MessagesRelayed:   total,
		MessagesPerSecond: rate,
		AIReplies:         m.aiReplies.Load(),
		AIFailures:        m.aiFailures.Load(),
		SendFailures:      m.sendFailures.Load(),
		AllocMemMb:        mem.Alloc / 1024 / 1024,
		NumGC:             mem.NumGC,
		Goroutines:        runtime.NumGoroutine(),
		UptimeSeconds:     int64(now.Sub(started).Seconds()),
	}
	if m.connectionCount != nil {
		stats.Connections = m.connectionCount()
	}
	return stats
}

// Report is the snapshot in the key/value form the stats reporter logs.
func (m *StatsManager) Report() map[string]any {
	s := m.Snapshot()
	return map[string]any{
		"connections":  s.Connections,
		"messages":     s.MessagesRelayed,
		"msg_per_sec":  s.MessagesPerSecond,
		"ai_replies":   s.AIReplies,
		"ai_failures":  s.AIFailures,
		"send_fail":    s.SendFailures,
		"alloc_mem_mb": s.AllocMemMb,
		"goroutines":   s.Goroutines,
	}
}
