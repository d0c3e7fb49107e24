package dom

import (
	"sync"
	"time"

	"github.com/hazyhaar/masukame/dom/mutation"
)

// DebounceConfig tunes a Debouncer. Zero fields take defaults.
type DebounceConfig struct {
	Window    time.Duration // quiet period before a flush; 250ms
	MaxWait   time.Duration // longest a record waits under a steady stream; 4 windows
	MaxBuffer int           // records that force an immediate flush; 1000
}

// Debouncer coalesces mutation records into compressed flushes. It fires
// once the feed has been quiet for Window, or MaxWait after the first
// pending record, or as soon as MaxBuffer records are pending.
type Debouncer struct {
	cfg   DebounceConfig
	flush func([]mutation.Record)

	mu      sync.Mutex
	pending []mutation.Record
	since   time.Time
	timer   *time.Timer
	closed  bool
}

// NewDebouncer returns a Debouncer. Timed flushes run on their own
// goroutine; buffer-full flushes run on the caller's.
func NewDebouncer(cfg DebounceConfig, flush func([]mutation.Record)) *Debouncer {
	if cfg.Window <= 0 {
		cfg.Window = 250 * time.Millisecond
	}
	if cfg.MaxWait < cfg.Window {
		cfg.MaxWait = 4 * cfg.Window
	}
	if cfg.MaxBuffer <= 0 {
		cfg.MaxBuffer = 1000
	}
	return &Debouncer{cfg: cfg, flush: flush}
}

// Add queues records and reports whether they caused an immediate flush.
func (d *Debouncer) Add(recs ...mutation.Record) bool {
	d.mu.Lock()
	if d.closed || len(recs) == 0 {
		d.mu.Unlock()
		return false
	}
	now := time.Now()
	if len(d.pending) == 0 {
		d.since = now
	}
	d.pending = append(d.pending, recs...)

	if len(d.pending) >= d.cfg.MaxBuffer {
		out := d.takeLocked()
		d.mu.Unlock()
		d.flush(out)
		return true
	}

	wait := d.cfg.Window
	if left := d.since.Add(d.cfg.MaxWait).Sub(now); left < wait {
		wait = max(left, 0)
	}
	if d.timer == nil {
		d.timer = time.AfterFunc(wait, d.Flush)
	} else {
		d.timer.Reset(wait)
	}
	d.mu.Unlock()
	return false
}

// Flush emits pending records now.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	out := d.takeLocked()
	d.mu.Unlock()
	if len(out) > 0 {
		d.flush(out)
	}
}

// Close drops pending records; later Adds are ignored.
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
}

func (d *Debouncer) takeLocked() []mutation.Record {
	if len(d.pending) == 0 {
		return nil
	}
	out := mutation.Compress(d.pending)
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
	}
	return out
}
