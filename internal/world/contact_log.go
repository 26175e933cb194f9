package world

import (
	"encoding/json"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	ContactBufferSize    = 1024                   // Circular buffer size
	MaxContactsPerSec    = 10000                  // Global rate limit
	MaxContactsPerSprite = 120                    // Per-sprite rate limit per second
	BatchFlushSize       = 64                     // Records per batch write
	BatchFlushInterval   = 100 * time.Millisecond // How often to flush
	SpriteLimiterCleanup = 5 * time.Minute        // Cleanup interval for sprite limiters
	ContactRecordVersion = 1
)

// ContactRecord is one line of the contact log.
type ContactRecord struct {
	Version   uint8  `json:"version"`
	Sequence  uint64 `json:"sequence"`
	Timestamp int64  `json:"timestamp"` // Unix nano
	Contact
}

// ContactLog is a bounded, rate-limited, append-only JSONL writer of contacts.
// A busy tick drops records rather than stalling the simulation.
type ContactLog struct {
	buffer    [ContactBufferSize]ContactRecord
	writeHead uint64 // atomic
	readHead  uint64 // atomic

	globalLimiter  *rate.Limiter
	spriteLimiters sync.Map // map[uint32]*spriteLimiterEntry

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	file   *os.File
	fileMu sync.Mutex

	droppedCount uint64 // atomic
	totalCount   uint64 // atomic
}

type spriteLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64
}

// NewContactLog creates a stopped contact log.
func NewContactLog() *ContactLog {
	return &ContactLog{
		globalLimiter: rate.NewLimiter(MaxContactsPerSec, MaxContactsPerSec/10),
		stopChan:      make(chan struct{}),
	}
}

// Start opens path for append and begins the async writer. An empty path counts records
// without writing them.
func (cl *ContactLog) Start(path string) error {
	if cl.running.Load() {
		return nil
	}
	if path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		cl.file = file
	}

	cl.running.Store(true)
	cl.writerWg.Add(2)
	go cl.writerLoop()
	go cl.cleanupLoop()
	return nil
}

// Stop flushes pending records and closes the file. A stopped log cannot be restarted.
func (cl *ContactLog) Stop() {
	if !cl.running.Load() {
		return
	}
	cl.stopOnce.Do(func() {
		cl.running.Store(false)
		close(cl.stopChan)
		cl.writerWg.Wait()

		cl.fileMu.Lock()
		if cl.file != nil {
			cl.file.Close()
		}
		cl.fileMu.Unlock()
	})
}

// Emit queues a contact. Returns false if the log is stopped or the contact was rate limited.
func (cl *ContactLog) Emit(c Contact) bool {
	if !cl.running.Load() {
		return false
	}
	if !cl.globalLimiter.Allow() {
		atomic.AddUint64(&cl.droppedCount, 1)
		return false
	}
	if !cl.spriteLimiter(c.A).Allow() {
		atomic.AddUint64(&cl.droppedCount, 1)
		return false
	}

	head := atomic.AddUint64(&cl.writeHead, 1)
	tail := atomic.LoadUint64(&cl.readHead)
	if head-tail >= ContactBufferSize {
		// Drop the oldest record.
		atomic.AddUint64(&cl.readHead, 1)
		atomic.AddUint64(&cl.droppedCount, 1)
	}

	cl.buffer[head%ContactBufferSize] = ContactRecord{
		Version:   ContactRecordVersion,
		Sequence:  head,
		Timestamp: time.Now().UnixNano(),
		Contact:   c,
	}
	atomic.AddUint64(&cl.totalCount, 1)
	return true
}

func (cl *ContactLog) spriteLimiter(id uint32) *rate.Limiter {
	now := time.Now().UnixNano()
	if v, ok := cl.spriteLimiters.Load(id); ok {
		e := v.(*spriteLimiterEntry)
		e.lastUsed.Store(now)
		return e.limiter
	}
	entry := &spriteLimiterEntry{limiter: rate.NewLimiter(MaxContactsPerSprite, MaxContactsPerSprite/4)}
	entry.lastUsed.Store(now)
	actual, _ := cl.spriteLimiters.LoadOrStore(id, entry)
	return actual.(*spriteLimiterEntry).limiter
}

func (cl *ContactLog) writerLoop() {
	defer cl.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]ContactRecord, 0, BatchFlushSize)
	for {
		select {
		case <-cl.stopChan:
			for {
				batch = cl.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				cl.flushBatch(batch)
			}
		case <-ticker.C:
			batch = cl.collectBatch(batch[:0])
			if len(batch) > 0 {
				cl.flushBatch(batch)
			}
		}
	}
}

func (cl *ContactLog) cleanupLoop() {
	defer cl.writerWg.Done()

	ticker := time.NewTicker(SpriteLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-cl.stopChan:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-SpriteLimiterCleanup).UnixNano()
			cl.spriteLimiters.Range(func(key, value interface{}) bool {
				if value.(*spriteLimiterEntry).lastUsed.Load() < cutoff {
					cl.spriteLimiters.Delete(key)
				}
				return true
			})
		}
	}
}

func (cl *ContactLog) collectBatch(batch []ContactRecord) []ContactRecord {
	head := atomic.LoadUint64(&cl.writeHead)
	tail := atomic.LoadUint64(&cl.readHead)

	for i := tail + 1; i <= head && len(batch) < BatchFlushSize; i++ {
		batch = append(batch, cl.buffer[i%ContactBufferSize])
	}
	if len(batch) > 0 {
		atomic.AddUint64(&cl.readHead, uint64(len(batch)))
	}
	return batch
}

// flushBatch appends records as newline-delimited JSON.
func (cl *ContactLog) flushBatch(batch []ContactRecord) {
	cl.fileMu.Lock()
	defer cl.fileMu.Unlock()

	if cl.file == nil {
		return
	}
	for _, rec := range batch {
		data, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		cl.file.Write(append(data, '\n'))
	}
}

// GetStats returns counters for monitoring.
func (cl *ContactLog) GetStats() map[string]interface{} {
	head := atomic.LoadUint64(&cl.writeHead)
	tail := atomic.LoadUint64(&cl.readHead)

	return map[string]interface{}{
		"total":   atomic.LoadUint64(&cl.totalCount),
		"dropped": atomic.LoadUint64(&cl.droppedCount),
		"pending": head - tail,
		"running": cl.running.Load(),
	}
}

// String summarizes the counters for log lines.
func (cl *ContactLog) String() string {
	return "contacts total=" + strconv.FormatUint(atomic.LoadUint64(&cl.totalCount), 10) +
		" dropped=" + strconv.FormatUint(atomic.LoadUint64(&cl.droppedCount), 10)
}
