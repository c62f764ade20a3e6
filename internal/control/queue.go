package control

import (
	"hash/fnv"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// CommandQueue provides a non-blocking queue for client commands with worker
// pool processing. This decouples WebSocket read loops from engine calls.
// Commands from one client always land on the same worker, so a drag arrives
// at the engine in the order it was drawn.
type CommandQueue struct {
	shards   []chan Command
	handler  *Handler
	wg       sync.WaitGroup
	running  atomic.Bool
	stopChan chan struct{}

	// Metrics
	enqueued    atomic.Uint64
	processed   atomic.Uint64
	rejected    atomic.Uint64
	dropped     atomic.Uint64
	avgWaitTime atomic.Int64 // nanoseconds, exponential moving average
}

// QueueConfig holds configuration for the command queue
type QueueConfig struct {
	BufferSize int // Commands buffered per worker (default: 256)
	Workers    int // Number of worker goroutines (default: 4)
}

// DefaultQueueConfig returns sensible defaults for production
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		BufferSize: 256,
		Workers:    4,
	}
}

// NewCommandQueue creates a new command queue with worker pool
func NewCommandQueue(handler *Handler, config QueueConfig) *CommandQueue {
	if config.BufferSize <= 0 {
		config.BufferSize = 256
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}

	shards := make([]chan Command, config.Workers)
	for i := range shards {
		shards[i] = make(chan Command, config.BufferSize)
	}

	return &CommandQueue{
		shards:   shards,
		handler:  handler,
		stopChan: make(chan struct{}),
	}
}

// Start launches the worker pool
func (q *CommandQueue) Start() {
	if q.running.Swap(true) {
		return // Already running
	}

	log.Printf("🚀 CommandQueue starting with %d workers, buffer size %d", len(q.shards), cap(q.shards[0]))

	for i := range q.shards {
		q.wg.Add(1)
		go q.worker(q.shards[i])
	}
}

// Stop gracefully shuts down the queue
func (q *CommandQueue) Stop() {
	if !q.running.Swap(false) {
		return // Not running
	}

	close(q.stopChan)
	q.wg.Wait()

	log.Printf("📊 CommandQueue stopped - enqueued: %d, processed: %d, rejected: %d, dropped: %d",
		q.enqueued.Load(), q.processed.Load(), q.rejected.Load(), q.dropped.Load())
}

// Enqueue adds a command to the queue (non-blocking)
// Returns true if enqueued, false if the client's shard is full (command dropped)
func (q *CommandQueue) Enqueue(cmd Command) bool {
	cmd.ReceivedAt = time.Now()

	select {
	case q.shardFor(cmd.Client) <- cmd:
		q.enqueued.Add(1)
		return true
	default:
		// Queue full - drop command to prevent backpressure
		q.dropped.Add(1)
		if q.dropped.Load()%100 == 1 {
			log.Printf("⚠️ CommandQueue full, dropped %s from %s (total dropped: %d)",
				cmd.Kind, cmd.Client, q.dropped.Load())
		}
		return false
	}
}

func (q *CommandQueue) shardFor(client string) chan Command {
	h := fnv.New32a()
	h.Write([]byte(client))
	return q.shards[h.Sum32()%uint32(len(q.shards))]
}

// worker processes commands from one shard
func (q *CommandQueue) worker(commands chan Command) {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopChan:
			return
		case cmd := <-commands:
			waitTime := time.Since(cmd.ReceivedAt)
			q.updateAvgWaitTime(waitTime)

			// Warn if commands are waiting too long
			if waitTime > 100*time.Millisecond {
				log.Printf("⚠️ Command from %s waited %.1fms in queue",
					cmd.Client, float64(waitTime.Microseconds())/1000)
			}

			err := q.handler.ProcessCommand(cmd)
			if err != nil {
				q.rejected.Add(1)
			}
			if cmd.Reply != nil {
				cmd.Reply(err)
			}
			q.processed.Add(1)
		}
	}
}

// updateAvgWaitTime updates exponential moving average
func (q *CommandQueue) updateAvgWaitTime(waitTime time.Duration) {
	current := q.avgWaitTime.Load()
	// EMA with alpha = 0.1 (smooth over ~10 samples)
	newAvg := (current*9 + waitTime.Nanoseconds()) / 10
	q.avgWaitTime.Store(newAvg)
}

// Stats returns current queue statistics
func (q *CommandQueue) Stats() QueueStats {
	var pending, size int
	for _, s := range q.shards {
		pending += len(s)
		size += cap(s)
	}
	return QueueStats{
		Enqueued:       q.enqueued.Load(),
		Processed:      q.processed.Load(),
		Rejected:       q.rejected.Load(),
		Dropped:        q.dropped.Load(),
		Pending:        uint64(pending),
		BufferSize:     uint64(size),
		AvgWaitTimeMs:  float64(q.avgWaitTime.Load()) / 1e6,
		BufferUsagePct: float64(pending) / float64(size) * 100,
	}
}

// QueueStats holds queue metrics
type QueueStats struct {
	Enqueued       uint64  `json:"enqueued"`
	Processed      uint64  `json:"processed"`
	Rejected       uint64  `json:"rejected"`
	Dropped        uint64  `json:"dropped"`
	Pending        uint64  `json:"pending"`
	BufferSize     uint64  `json:"buffer_size"`
	AvgWaitTimeMs  float64 `json:"avg_wait_time_ms"`
	BufferUsagePct float64 `json:"buffer_usage_pct"`
}
