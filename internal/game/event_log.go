package game

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/pveneroso/gogoame-2/internal/config"
)

const (
	EventBufferSize      = 1024                   // Circular buffer size
	BatchFlushSize       = 64                     // Events per batch write
	BatchFlushInterval   = 100 * time.Millisecond // How often to flush
	SourceLimiterCleanup = 5 * time.Minute        // Cleanup interval for source limiters
)

// EventLog provides bounded, rate-limited event logging with backpressure
type EventLog struct {
	// Circular buffer; the engine goroutine produces, writerLoop consumes.
	// bufMu guards buffer and both heads.
	bufMu     sync.Mutex
	buffer    [EventBufferSize]Event
	writeHead uint64 // producer position
	readHead  uint64 // consumer position

	// Rate limiting so a collision storm cannot flood the journal
	globalLimiter  *rate.Limiter
	sourceLimit    rate.Limit
	sourceBurst    int
	sourceLimiters sync.Map // map[string]*sourceLimiterEntry

	// Async writer
	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	// File output
	filePath string
	file     *os.File
	writer   *bufio.Writer
	fileMu   sync.Mutex

	// Stats for monitoring
	droppedCount uint64 // atomic
	totalCount   uint64 // atomic
}

// sourceLimiterEntry tracks per-source rate limiting
type sourceLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64 // unix nano
}

// NewEventLog creates a new bounded event log
func NewEventLog(cfg config.EventLogConfig) *EventLog {
	globalBurst := int(cfg.MaxEventsPerSec / 10)
	if globalBurst < 1 {
		globalBurst = 1
	}
	sourceBurst := int(cfg.MaxEventsPerSource / 10)
	if sourceBurst < 1 {
		sourceBurst = 1
	}
	return &EventLog{
		globalLimiter: rate.NewLimiter(rate.Limit(cfg.MaxEventsPerSec), globalBurst),
		sourceLimit:   rate.Limit(cfg.MaxEventsPerSource),
		sourceBurst:   sourceBurst,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the async writer goroutine. An empty path keeps the log in memory.
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}

	el.filePath = filePath

	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return errors.Wrapf(err, "open event log %s", filePath)
		}
		el.file = file
		el.writer = bufio.NewWriterSize(file, 64*1024)
	}

	el.running.Store(true)
	el.writerWg.Add(2)
	go el.writerLoop()
	go el.cleanupLoop()

	return nil
}

// Stop gracefully shuts down the event log
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		if !el.running.Load() {
			return
		}
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()

		el.fileMu.Lock()
		if el.file != nil {
			el.writer.Flush()
			el.file.Close()
		}
		el.fileMu.Unlock()
	})
}

// Emit adds an event with rate limiting
// Returns false if rate limited or not running
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}

	if !el.globalLimiter.Allow() {
		atomic.AddUint64(&el.droppedCount, 1)
		return false
	}

	// Per-source rate limit (one event type cannot starve the rest)
	if event.Source != "" {
		limiter := el.getSourceLimiter(event.Source)
		if !limiter.Allow() {
			atomic.AddUint64(&el.droppedCount, 1)
			return false
		}
	}

	el.bufMu.Lock()
	el.writeHead++
	// Buffer full: drop oldest (rolling window)
	if el.writeHead-el.readHead > EventBufferSize {
		el.readHead++
		atomic.AddUint64(&el.droppedCount, 1)
	}
	el.buffer[el.writeHead%EventBufferSize] = event
	el.bufMu.Unlock()

	atomic.AddUint64(&el.totalCount, 1)
	return true
}

// EmitAll emits a tick's events in order and returns how many were accepted
func (el *EventLog) EmitAll(events []Event) int {
	accepted := 0
	for i := range events {
		if el.Emit(events[i]) {
			accepted++
		}
	}
	return accepted
}

// getSourceLimiter returns/creates a per-source rate limiter
func (el *EventLog) getSourceLimiter(source string) *rate.Limiter {
	now := time.Now().UnixNano()
	if entry, ok := el.sourceLimiters.Load(source); ok {
		e := entry.(*sourceLimiterEntry)
		e.lastUsed.Store(now)
		return e.limiter
	}

	entry := &sourceLimiterEntry{
		limiter: rate.NewLimiter(el.sourceLimit, el.sourceBurst),
	}
	entry.lastUsed.Store(now)
	actual, _ := el.sourceLimiters.LoadOrStore(source, entry)
	return actual.(*sourceLimiterEntry).limiter
}

// writerLoop batches and writes events to disk asynchronously
func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)

	for {
		select {
		case <-el.stopChan:
			// Final flush: drain everything left in the ring
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}

		case <-ticker.C:
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					break
				}
				el.flushBatch(batch)
			}
		}
	}
}

// cleanupLoop removes stale source limiters to prevent memory leak
func (el *EventLog) cleanupLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(SourceLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-el.stopChan:
			return
		case <-ticker.C:
			el.cleanupSourceLimiters()
		}
	}
}

func (el *EventLog) cleanupSourceLimiters() {
	cutoff := time.Now().Add(-SourceLimiterCleanup).UnixNano()
	el.sourceLimiters.Range(func(key, value any) bool {
		entry := value.(*sourceLimiterEntry)
		if entry.lastUsed.Load() < cutoff {
			el.sourceLimiters.Delete(key)
		}
		return true
	})
}

// collectBatch reads available events from circular buffer
func (el *EventLog) collectBatch(batch []Event) []Event {
	el.bufMu.Lock()
	defer el.bufMu.Unlock()

	for el.readHead < el.writeHead && len(batch) < BatchFlushSize {
		el.readHead++
		batch = append(batch, el.buffer[el.readHead%EventBufferSize])
	}
	return batch
}

// flushBatch writes events to disk (append-only, newline-delimited JSON)
func (el *EventLog) flushBatch(batch []Event) {
	el.fileMu.Lock()
	defer el.fileMu.Unlock()

	if el.writer == nil {
		return
	}

	for _, event := range batch {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		el.writer.Write(data)
		el.writer.WriteByte('\n')
	}
	el.writer.Flush()
}

// GetStats returns metrics for monitoring
func (el *EventLog) GetStats() map[string]interface{} {
	el.bufMu.Lock()
	pending := el.writeHead - el.readHead
	el.bufMu.Unlock()

	return map[string]interface{}{
		"total":   atomic.LoadUint64(&el.totalCount),
		"dropped": atomic.LoadUint64(&el.droppedCount),
		"pending": pending,
		"running": el.running.Load(),
		"path":    el.filePath,
	}
}

// GetDroppedCount returns the number of dropped events
func (el *EventLog) GetDroppedCount() uint64 {
	return atomic.LoadUint64(&el.droppedCount)
}

// GetTotalCount returns the total number of events accepted
func (el *EventLog) GetTotalCount() uint64 {
	return atomic.LoadUint64(&el.totalCount)
}
