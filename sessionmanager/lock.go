package sessionmanager

import "github.com/mattyw/trafficserver/session"

// tryLockPool implements the lock-helper contract: GLOBAL_LOCKED blocks for
// the pool's mutex, everything else (THREAD, GLOBAL) tries and reports
// failure immediately rather than blocking a worker on contention.
func tryLockPool(pool *session.SessionPool, poolType session.SharingPool) bool {
	if poolType == session.GlobalLocked {
		pool.Lock()
		return true
	}
	return pool.TryLock()
}
