// Package reaper implements an inactivity monitor for connections, adapted
// from github.com/One-com/gone/netutil/reaper. Instead of net.Conn's
// Read/Write, this variant tracks activity for any Watched value (the vconn
// package registers its connections here) and declares one dead once its
// armed deadline has passed with no activity bump since the previous poll,
// invoking the connection's OnReaperTimeout callback rather than closing it
// directly. That decision belongs to the caller (the pool's event handler
// or the SM), not the reaper.
package reaper

import (
	"sync"
	"sync/atomic"
	"time"
)

// Watched is anything the reaper can poll for activity and notify on
// timeout. vconn.TCPVConn implements this to plug into the pool's
// INACTIVITY_TIMEOUT / ACTIVE_TIMEOUT event delivery.
type Watched interface {
	// ActivityCount returns a monotonically increasing counter bumped on
	// every read or write. The reaper only cares whether it changed.
	ActivityCount() uint64
	// Deadline returns the time after which, with no activity, the watched
	// connection should be timed out, and whether a deadline is armed at
	// all.
	Deadline() (time.Time, bool)
	// OnReaperTimeout is invoked by the reaper goroutine when Deadline has
	// passed with no activity recorded since the last poll.
	OnReaperTimeout()
}

type entry struct {
	w            Watched
	lastActivity uint64
}

// Reaper polls a set of Watched connections on a fixed interval and fires
// OnReaperTimeout for any whose deadline has passed with no activity.
type Reaper struct {
	interval time.Duration

	mu      sync.Mutex
	entries map[Watched]*entry

	stop chan struct{}
	once sync.Once
}

// New creates a Reaper polling every interval. Call Run to start the
// background goroutine.
func New(interval time.Duration) *Reaper {
	return &Reaper{
		interval: interval,
		entries:  make(map[Watched]*entry),
		stop:     make(chan struct{}),
	}
}

// Watch registers w for inactivity polling.
func (r *Reaper) Watch(w Watched) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[w] = &entry{w: w, lastActivity: w.ActivityCount()}
}

// Forget removes w from polling, e.g. once it has been closed or handed off
// to a component (the SM) which manages its own timeouts.
func (r *Reaper) Forget(w Watched) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, w)
}

// Run starts the polling loop; it returns when Stop is called.
func (r *Reaper) Run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// Stop halts the polling goroutine. Safe to call multiple times.
func (r *Reaper) Stop() {
	r.once.Do(func() { close(r.stop) })
}

func (r *Reaper) sweep() {
	now := time.Now()

	r.mu.Lock()
	due := make([]*entry, 0)
	for _, e := range r.entries {
		deadline, armed := e.w.Deadline()
		if !armed {
			continue
		}
		active := e.w.ActivityCount()
		if active != e.lastActivity {
			e.lastActivity = active
			continue
		}
		if now.After(deadline) {
			due = append(due, e)
		}
	}
	for _, e := range due {
		delete(r.entries, e.w)
	}
	r.mu.Unlock()

	for _, e := range due {
		e.w.OnReaperTimeout()
	}
}

// ActivityCounter is an atomic activity counter embeddable by Watched
// implementations so they don't each need to reinvent the atomic bump.
type ActivityCounter struct {
	n uint64
}

// Bump records an activity event.
func (a *ActivityCounter) Bump() { atomic.AddUint64(&a.n, 1) }

// Load returns the current count.
func (a *ActivityCounter) Load() uint64 { return atomic.LoadUint64(&a.n) }
