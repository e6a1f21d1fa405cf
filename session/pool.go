package session

import (
	"net"
	"sync"

	"github.com/mattyw/trafficserver/log"
	"github.com/mattyw/trafficserver/vconn"
)

// SessionPool is a composite-keyed multi-map of pooled sessions plus the
// mutex that serializes both lookups and the reactor's own event delivery
// into it. It is grounded on ServerSessionPool's m_ip_pool/m_fqdn_pool pair
// of intrusive multi-maps; Go's garbage collector and plain slices remove
// the need for the intrusive links and the iterator-invalidation care the
// original's purge() takes, so add/remove are ordinary slice operations
// under the pool's own mutex.
//
// Callers outside of HandleEvent (sessionmanager's lock helper) are
// expected to hold the pool's mutex, via Lock/TryLock/Unlock, around calls
// to Acquire, Release and Purge -- mirroring the original, where
// acquireSession/releaseSession/purge run under a lock taken by their
// caller, not by ServerSessionPool itself. HandleEvent is the exception:
// it is invoked directly by a vconnection's reactor dispatch, so it takes
// the lock itself.
type SessionPool struct {
	mu sync.Mutex

	byAddr map[string][]*PoolableSession
	byHost map[[16]byte][]*PoolableSession

	log *log.Logger
}

// NewPool constructs an empty SessionPool. Pass nil for logger to use
// log.Default().
func NewPool(logger *log.Logger) *SessionPool {
	if logger == nil {
		logger = log.Default()
	}
	return &SessionPool{
		byAddr: make(map[string][]*PoolableSession),
		byHost: make(map[[16]byte][]*PoolableSession),
		log:    logger,
	}
}

// Lock acquires the pool's mutex, blocking.
func (p *SessionPool) Lock() { p.mu.Lock() }

// TryLock attempts to acquire the pool's mutex without blocking.
func (p *SessionPool) TryLock() bool { return p.mu.TryLock() }

// Unlock releases the pool's mutex.
func (p *SessionPool) Unlock() { p.mu.Unlock() }

// Acquire searches for a pooled session matching (addr, hostnameHash, mask)
// under ctx, removing it from both indexes unless it is multiplexing.
// Precondition: caller holds the pool's mutex.
//
// The search branches exactly like ServerSessionPool::acquireSession: a
// HOSTONLY-without-IP mask searches the hostname bucket (matching by port
// plus hash, so any address answering for that host/port qualifies);
// anything with IP set searches the address bucket instead. Within a
// bucket, sessions are walked oldest-first (index 0 first, matching
// insertion order) and the first full match wins.
func (p *SessionPool) Acquire(addr net.Addr, hostnameHash [16]byte, mask MatchMask, ctx MatchContext) (Result, *PoolableSession) {
	var found *PoolableSession

	switch {
	case mask&MatchHostOnly != 0 && mask&MatchIP == 0:
		bucket := p.byHost[hostnameHash]
		port := portOf(addr)
		for _, s := range bucket {
			if portOf(s.RemoteAddr()) != port {
				continue
			}
			if !p.satisfiesExtra(ctx, s, mask) {
				continue
			}
			found = s
			break
		}
		if found == nil && len(bucket) > 0 {
			if logf, ok := p.log.DEBUGok(); ok {
				logf("origin pool: fqdn bucket probed, no full match", "hostname_hash", hostnameHash, "candidates", len(bucket))
			}
		}
	case mask&MatchIP != 0:
		bucket := p.byAddr[addrKey(addr)]
		for _, s := range bucket {
			if mask&MatchHostOnly != 0 && s.HostnameHash != hostnameHash {
				continue
			}
			if !p.satisfiesExtra(ctx, s, mask) {
				continue
			}
			found = s
			break
		}
	default:
		return NotFound, nil
	}

	if found == nil {
		return NotFound, nil
	}
	if !found.IsMultiplexing {
		p.removeLocked(found)
	}
	return Done, found
}

func (p *SessionPool) satisfiesExtra(ctx MatchContext, s *PoolableSession, mask MatchMask) bool {
	if mask&MatchSNI != 0 && !validateSNI(ctx, s) {
		return false
	}
	if mask&MatchHostSNISync != 0 && !validateHostSNI(ctx, s) {
		return false
	}
	if mask&MatchCert != 0 && !validateCert(ctx, s) {
		return false
	}
	return true
}

// Release re-arms s for pooled idle life (open-ended read to observe remote
// close, zero-length quiesce write, refreshed inactivity timer, cancelled
// active timer) and re-indexes
// it. target receives the events for s while it sits pooled -- in practice
// always the SessionPool itself. Precondition: caller holds the pool's
// mutex.
func (p *SessionPool) Release(s *PoolableSession, target vconn.EventTarget) {
	s.State = Pooled
	s.NetVC.DoIORead(target, 1<<62)
	s.NetVC.DoIOWrite(target, 0)
	s.NetVC.SetInactivityTimeout(s.NetVC.InactivityTimeout())
	s.NetVC.CancelActiveTimeout()
	p.addLocked(s)
}

// Purge closes and drops every pooled session. It snapshots the address
// index before closing anything, then clears both indexes outright --
// preserving the original's habit of walking only m_ip_pool while purging,
// then separately clearing m_fqdn_pool, rather than walking both. Go's
// value-copied snapshot has none of the intrusive-iterator hazards that
// pattern defends against in the original; it is kept here only because a
// session double-listed defensively in the future should still only be
// closed once.
func (p *SessionPool) Purge() {
	seen := make(map[*PoolableSession]struct{})
	var snapshot []*PoolableSession
	for _, bucket := range p.byAddr {
		for _, s := range bucket {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			snapshot = append(snapshot, s)
		}
	}
	p.byAddr = make(map[string][]*PoolableSession)
	p.byHost = make(map[[16]byte][]*PoolableSession)

	for _, s := range snapshot {
		s.NetVC.Close()
	}
}

// Add inserts s into both indexes, taking the pool's mutex itself. Use this
// from outside the manager's lock-helper protocol (e.g. seeding a pool in
// tests); Release is the path used during normal operation.
func (p *SessionPool) Add(s *PoolableSession) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addLocked(s)
}

// Remove deletes s from both indexes, taking the pool's mutex itself.
func (p *SessionPool) Remove(s *PoolableSession) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(s)
}

func (p *SessionPool) addLocked(s *PoolableSession) {
	ak := addrKey(s.RemoteAddr())
	p.byAddr[ak] = append(p.byAddr[ak], s)
	p.byHost[s.HostnameHash] = append(p.byHost[s.HostnameHash], s)
}

func (p *SessionPool) removeLocked(s *PoolableSession) {
	ak := addrKey(s.RemoteAddr())
	p.byAddr[ak] = removeFromSlice(p.byAddr[ak], s)
	if len(p.byAddr[ak]) == 0 {
		delete(p.byAddr, ak)
	}
	p.byHost[s.HostnameHash] = removeFromSlice(p.byHost[s.HostnameHash], s)
	if len(p.byHost[s.HostnameHash]) == 0 {
		delete(p.byHost, s.HostnameHash)
	}
}

func removeFromSlice(bucket []*PoolableSession, s *PoolableSession) []*PoolableSession {
	for i, cand := range bucket {
		if cand == s {
			return append(bucket[:i], bucket[i+1:]...)
		}
	}
	return bucket
}
