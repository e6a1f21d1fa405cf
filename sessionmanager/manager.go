// Package sessionmanager implements the per-process coordinator that sits
// between HTTP state machines and the keep-alive session pools: it decides
// which pool(s) a request should consult given the configured sharing
// policy, drives the lock-then-migrate-then-hand-off protocol for a single
// pool, and answers SIGHUP-triggered keep-alive purges. It is grounded on
// _examples/original_source/src/proxy/http/HttpSessionManager.cc's
// HttpSessionManager class.
package sessionmanager

import (
	"context"
	"net"
	"sync"

	"github.com/mattyw/trafficserver/log"
	"github.com/mattyw/trafficserver/metric"
	"github.com/mattyw/trafficserver/reactor"
	"github.com/mattyw/trafficserver/session"
	"github.com/mattyw/trafficserver/smtxn"
	"github.com/mattyw/trafficserver/vconn"
)

// Manager coordinates one global pool and a family of per-thread pools
// (lazily created on first use by each worker) according to the configured
// sharing policy.
type Manager struct {
	policy session.SharingPool

	globalPool *session.SessionPool

	mu          sync.Mutex
	threadPools map[int64]*session.SessionPool

	pooledConns       *metric.Gauge
	migrationFailures *metric.Counter

	log *log.Logger
}

// New constructs a Manager. Pass nil for metrics or logger to use the
// package defaults (metric.DefaultClient, log.Default()).
func New(cfg Config, metrics *metric.Client, logger *log.Logger) *Manager {
	if metrics == nil {
		metrics = metric.DefaultClient
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		policy:            cfg.Policy(),
		globalPool:        session.NewPool(logger),
		threadPools:       make(map[int64]*session.SessionPool),
		pooledConns:       metrics.Gauge("pooled_server_connections"),
		migrationFailures: metrics.Counter("origin_shutdown_migration_failure"),
		log:               logger,
	}
}

// poolFor returns the pool a given sharing type resolves to on th, creating
// a thread pool on first use the way ATS lazily attaches a
// ServerSessionPool to each EThread.
func (m *Manager) poolFor(poolType session.SharingPool, th *reactor.Thread) *session.SessionPool {
	if poolType != session.Thread {
		return m.globalPool
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.threadPools[th.ID()]
	if !ok {
		p = session.NewPool(m.log)
		m.threadPools[th.ID()] = p
	}
	return p
}

// AcquireSession implements the bound-session fast path followed by
// policy-driven pool dispatch: THREAD consults only the calling worker's
// thread pool; HYBRID tries that thread pool first, falling back to the
// global pool (try-locked) if it does not return Done; GLOBAL and
// GLOBAL_LOCKED go straight to the global pool, the latter blocking for its
// lock instead of trying it.
func (m *Manager) AcquireSession(ctx context.Context, sm smtxn.RequestContext, txn smtxn.ClientTxn, addr net.Addr, hostname string) (session.Result, *session.PoolableSession) {
	hostnameHash := session.HashHostname(hostname)
	mask := sm.MatchMask()

	if bound := txn.BoundServerSession(); bound != nil {
		txn.AttachServerSession(nil)
		if session.Match(bound, addr, hostnameHash, mask, sm) {
			bound.State = session.InUse
			if !sm.CreateServerTxn(bound) {
				if !bound.IsMultiplexing {
					bound.NetVC.Close()
				}
				return session.Retry, nil
			}
			return session.Done, bound
		}
		m.ReleaseSession(ctx, bound)
	}

	if m.policy == session.Thread {
		return m.acquireFromPool(ctx, addr, hostnameHash, mask, sm, session.Thread)
	}

	if m.policy == session.Hybrid {
		if result, s := m.acquireFromPool(ctx, addr, hostnameHash, mask, sm, session.Thread); result == session.Done {
			return result, s
		}
	}

	switch m.policy {
	case session.Global, session.Hybrid:
		return m.acquireFromPool(ctx, addr, hostnameHash, mask, sm, session.Global)
	case session.GlobalLocked:
		return m.acquireFromPool(ctx, addr, hostnameHash, mask, sm, session.GlobalLocked)
	default:
		return session.NotFound, nil
	}
}

// acquireFromPool runs the single-pool inner protocol: acquire the lock,
// pull a candidate out of the pool, release the lock, migrate the
// candidate's vconnection onto the calling thread if it lived on another
// one, then hand it to the SM.
func (m *Manager) acquireFromPool(ctx context.Context, addr net.Addr, hostnameHash [16]byte, mask session.MatchMask, sm smtxn.RequestContext, poolType session.SharingPool) (session.Result, *session.PoolableSession) {
	th := reactor.Current(ctx)
	pool := m.poolFor(poolType, th)

	if !tryLockPool(pool, poolType) {
		return session.Retry, nil
	}

	result, s := pool.Acquire(addr, hostnameHash, mask, sm)

	needMigration := poolType != session.Thread && s != nil && !s.NetVC.Thread().Equal(th)
	if needMigration {
		s.NetVC.Thread().Lock()
		s.NetVC.DoIORead(pool, 0)
		s.NetVC.SetInactivityTimeout(s.NetVC.InactivityTimeout())
		s.NetVC.Thread().Unlock()
	}

	pool.Unlock()

	if s == nil {
		return result, nil
	}

	// Latch the decrement to "a session was acquired from the pool",
	// not to how the rest of this hand-off turns out: a migration or
	// CreateServerTxn failure below still means pool.Acquire already
	// handed s out (and, unless s is multiplexing, removed it from the
	// pool's indexes), so the gauge falls here.
	if result == session.Done {
		m.pooledConns.Dec()
	}

	if needMigration {
		newVC, ok := s.NetVC.MigrateToCurrentThread(th)
		if !ok {
			s.NetVC.Close()
			m.migrationFailures.Inc()
			return session.NotFound, nil
		}
		if newVC != s.NetVC {
			newVC.SetInactivityTimeout(newVC.InactivityTimeout())
			s.NetVC = newVC
		}
	}

	if !sm.CreateServerTxn(s) {
		if !s.IsMultiplexing {
			s.NetVC.Close()
		}
		return session.Retry, nil
	}
	s.State = session.InUse
	return session.Done, s
}

// ReleaseSession returns s to whichever pool its SharingPool field
// currently names. Under HYBRID, if that pool's lock cannot be obtained
// (contention on the global pool), the session is retargeted to the
// calling thread's own pool and the release is retried there once --
// mirroring the original's one-level recursive fallback, never looping
// further.
func (m *Manager) ReleaseSession(ctx context.Context, s *session.PoolableSession) session.Result {
	th := reactor.Current(ctx)
	pool := m.poolFor(s.SharingPool, th)

	if tryLockPool(pool, s.SharingPool) {
		pool.Release(s, pool)
		pool.Unlock()
		m.pooledConns.Inc()
		return session.Done
	}

	if m.policy == session.Hybrid && s.SharingPool != session.Thread {
		s.SharingPool = session.Thread
		return m.ReleaseSession(ctx, s)
	}
	return session.Retry
}

// PurgeKeepalives closes every session in the global pool, best-effort: if
// the global pool's lock is currently held elsewhere the purge is simply
// skipped rather than blocked on. It always targets the global pool
// regardless of the configured sharing policy, matching the original,
// which purges only the shared pool on SIGHUP-style keep-alive resets.
func (m *Manager) PurgeKeepalives() {
	if !m.globalPool.TryLock() {
		if logf, ok := m.log.DEBUGok(); ok {
			logf("origin pool: purge_keepalives skipped, global pool busy")
		}
		return
	}
	defer m.globalPool.Unlock()
	m.globalPool.Purge()
}

var _ vconn.EventTarget = (*session.SessionPool)(nil)
