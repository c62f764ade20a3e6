package game

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/pveneroso/gogoame-2/internal/catalog"
)

// RequestKind identifies an external mutation request.
type RequestKind uint8

const (
	RequestSpawn RequestKind = iota
	RequestDragStart
	RequestDragMove
	RequestDragEnd
	RequestConfig
	RequestRegenerate
	RequestRestart
)

func (k RequestKind) String() string {
	switch k {
	case RequestSpawn:
		return "spawn"
	case RequestDragStart:
		return "drag_start"
	case RequestDragMove:
		return "drag_move"
	case RequestDragEnd:
		return "drag_end"
	case RequestConfig:
		return "config"
	case RequestRegenerate:
		return "regenerate"
	case RequestRestart:
		return "restart"
	default:
		return "unknown"
	}
}

// Request is one queued mutation, applied at the next tick boundary.
type Request struct {
	Kind       RequestKind
	Symbol     catalog.SymbolID
	X, Y       float64
	Values     map[string]any
	Source     string // client id, for logs
	ReceivedAt time.Time
}

// RequestQueue is a bounded, non-blocking queue between HTTP/WS handlers and
// the tick goroutine. Producers never block; a full queue drops the request.
type RequestQueue struct {
	requests chan Request

	// Metrics
	enqueued    atomic.Uint64
	processed   atomic.Uint64
	dropped     atomic.Uint64
	avgWaitTime atomic.Int64 // nanoseconds, exponential moving average
}

// NewRequestQueue creates a queue holding at most size pending requests.
func NewRequestQueue(size int) *RequestQueue {
	if size <= 0 {
		size = 256
	}
	return &RequestQueue{requests: make(chan Request, size)}
}

// Enqueue adds a request (non-blocking).
// Returns true if enqueued, false if the queue is full (request dropped).
func (q *RequestQueue) Enqueue(req Request) bool {
	req.ReceivedAt = time.Now()

	select {
	case q.requests <- req:
		q.enqueued.Add(1)
		return true
	default:
		q.dropped.Add(1)
		if q.dropped.Load()%100 == 1 {
			log.Printf("⚠️ RequestQueue full, dropped %s from %s (total dropped: %d)",
				req.Kind, req.Source, q.dropped.Load())
		}
		return false
	}
}

// Drain hands every pending request to fn in arrival order without blocking.
func (q *RequestQueue) Drain(fn func(Request)) int {
	n := 0
	for {
		select {
		case req := <-q.requests:
			q.updateAvgWaitTime(time.Since(req.ReceivedAt))
			fn(req)
			q.processed.Add(1)
			n++
		default:
			return n
		}
	}
}

// updateAvgWaitTime updates exponential moving average
func (q *RequestQueue) updateAvgWaitTime(waitTime time.Duration) {
	current := q.avgWaitTime.Load()
	newAvg := (current*9 + waitTime.Nanoseconds()) / 10
	q.avgWaitTime.Store(newAvg)
}

// Stats returns current queue statistics
func (q *RequestQueue) Stats() QueueStats {
	return QueueStats{
		Enqueued:       q.enqueued.Load(),
		Processed:      q.processed.Load(),
		Dropped:        q.dropped.Load(),
		Pending:        uint64(len(q.requests)),
		BufferSize:     uint64(cap(q.requests)),
		AvgWaitTimeMs:  float64(q.avgWaitTime.Load()) / 1e6,
		BufferUsagePct: float64(len(q.requests)) / float64(cap(q.requests)) * 100,
	}
}

// QueueStats holds queue metrics
type QueueStats struct {
	Enqueued       uint64  `json:"enqueued"`
	Processed      uint64  `json:"processed"`
	Dropped        uint64  `json:"dropped"`
	Pending        uint64  `json:"pending"`
	BufferSize     uint64  `json:"buffer_size"`
	AvgWaitTimeMs  float64 `json:"avg_wait_time_ms"`
	BufferUsagePct float64 `json:"buffer_usage_pct"`
}

// apply executes a request against the simulation. Failures are logged and
// dropped; nothing inside a tick surfaces an error.
func (s *Simulation) apply(req Request) {
	switch req.Kind {
	case RequestSpawn:
		s.SpawnSymbol(req.Symbol)
	case RequestDragStart:
		s.DragStart(req.X, req.Y)
	case RequestDragMove:
		s.DragMove(req.X, req.Y)
	case RequestDragEnd:
		s.DragEnd()
	case RequestConfig:
		if err := s.SetConfig(req.Values); err != nil {
			log.Printf("⚠️ Config change from %s rejected: %v", req.Source, err)
		}
	case RequestRegenerate:
		if err := s.RegenerateCatalog(); err != nil {
			log.Printf("⚠️ Catalog regeneration failed: %v", err)
		}
	case RequestRestart:
		s.Restart()
	}
}
