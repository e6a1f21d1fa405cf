// Package conntrack implements the connection-tracking-group back-reference
// a PoolableSession may carry: a per-origin count of live connections and a
// configured floor below which the session pool's event handler should
// resist tearing down an idle keep-alive connection on timeout. The counting
// discipline (a mutex-guarded integer bumped on open/close) is adapted from
// github.com/One-com/gone/netutil/pool's channelPool.openconns bookkeeping.
package conntrack

import "sync"

// Group tracks how many connections are currently open to one origin and
// the minimum number of them that should be kept alive even when idle.
type Group struct {
	mu               sync.Mutex
	count            int
	minKeepAliveConn int
}

// NewGroup returns a Group with the given keep-alive floor.
func NewGroup(minKeepAliveConns int) *Group {
	return &Group{minKeepAliveConn: minKeepAliveConns}
}

// Open records a newly opened connection to this origin.
func (g *Group) Open() {
	g.mu.Lock()
	g.count++
	g.mu.Unlock()
}

// Close records a connection to this origin going away.
func (g *Group) Close() {
	g.mu.Lock()
	if g.count > 0 {
		g.count--
	}
	g.mu.Unlock()
}

// Count returns the current number of tracked connections.
func (g *Group) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

// MinKeepAliveConns returns the configured keep-alive floor.
func (g *Group) MinKeepAliveConns() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.minKeepAliveConn
}

// AtOrBelowFloor reports whether the tracked count is at or below the
// keep-alive floor -- the condition the session pool's event handler uses to
// decide whether to preserve a timing-out idle connection.
func (g *Group) AtOrBelowFloor() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count <= g.minKeepAliveConn
}
