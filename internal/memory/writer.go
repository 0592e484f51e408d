package memory

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hollowmere/npccore/internal/npctypes"
)

// minQueueCapacity is the floor applied to any configured queue capacity.
const minQueueCapacity = 100

// BoundedWriter is the single-consumer, many-producer async writer that
// shields the world tick from memory-store latency. Enqueue never
// blocks: when the queue is full the oldest pending write is dropped in
// favor of the new one, preserving recency under load.
type BoundedWriter struct {
	store           NpcMemoryStore
	maxWritesPerSec int
	capacity        int

	mu      sync.Mutex
	pending []npctypes.MemoryWrite
	notify  chan struct{}

	dropped atomic.Int64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewBoundedWriter starts the worker goroutine immediately.
func NewBoundedWriter(store NpcMemoryStore, capacity, maxWritesPerSec int) *BoundedWriter {
	if capacity < minQueueCapacity {
		capacity = minQueueCapacity
	}
	if maxWritesPerSec <= 0 {
		maxWritesPerSec = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &BoundedWriter{
		store:           store,
		maxWritesPerSec: maxWritesPerSec,
		capacity:        capacity,
		pending:         make([]npctypes.MemoryWrite, 0, capacity),
		notify:          make(chan struct{}, 1),
		cancel:          cancel,
		done:            make(chan struct{}),
	}
	go w.run(ctx)
	return w
}

// Enqueue offers a write to the queue without blocking. Returns false if
// the write was rejected outright (never happens today — overflow drops
// the oldest entry instead) for forward compatibility with stricter
// backpressure policies.
func (w *BoundedWriter) Enqueue(write npctypes.MemoryWrite) bool {
	w.mu.Lock()
	if len(w.pending) >= w.capacity {
		w.pending = w.pending[1:] // drop oldest
		w.dropped.Add(1)
	}
	w.pending = append(w.pending, write)
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
	return true
}

// DroppedCount reports how many writes have been dropped for overflow.
func (w *BoundedWriter) DroppedCount() int64 { return w.dropped.Load() }

// Close cancels the worker, drains remaining queued writes best-effort,
// and waits for the worker goroutine to exit. The underlying store is
// the caller's to dispose.
func (w *BoundedWriter) Close() {
	w.cancel()
	<-w.done
}

func (w *BoundedWriter) run(ctx context.Context) {
	defer close(w.done)
	defer func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("memory writer: drain write panicked, stopping drain", "recovered", r)
			}
		}()
		for write, ok := w.pop(); ok; write, ok = w.pop() {
			if err := w.store.Add(context.Background(), write); err != nil {
				slog.Warn("memory writer: drain write failed, dropping", "error", err, "memory_id", write.ID)
			}
		}
	}()
	interval := time.Duration(max64(0, 1000/int64(w.maxWritesPerSec))) * time.Millisecond

	for {
		write, ok := w.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-w.notify:
				continue
			case <-time.After(50 * time.Millisecond):
				continue
			}
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("memory writer: write panicked, swallowing", "recovered", r)
				}
			}()
			if err := w.store.Add(ctx, write); err != nil {
				slog.Warn("memory writer: write failed, dropping", "error", err, "memory_id", write.ID)
			}
		}()

		if interval > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
			}
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (w *BoundedWriter) pop() (npctypes.MemoryWrite, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) == 0 {
		return npctypes.MemoryWrite{}, false
	}
	write := w.pending[0]
	w.pending = w.pending[1:]
	return write, true
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
