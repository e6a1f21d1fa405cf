package session

import "github.com/mattyw/trafficserver/vconn"

// HandleEvent implements vconn.EventTarget for a pooled session's idle-life
// events, grounded on ServerSessionPool::eventHandler. Unlike Acquire,
// Release and Purge, it takes the pool's own mutex itself: in the original
// this runs as the pool's Continuation handler, invoked by the event
// processor with the pool's mutex already held by construction; here there
// is no such implicit locking around a goroutine-delivered callback, so the
// method takes it explicitly.
func (p *SessionPool) HandleEvent(event vconn.EventCode, vc vconn.NetVConnection) {
	p.mu.Lock()
	defer p.mu.Unlock()

	bucket := p.byAddr[addrKey(vc.RemoteAddr())]
	var s *PoolableSession
	for _, cand := range bucket {
		if cand.NetVC == vc {
			s = cand
			break
		}
	}
	if s == nil {
		if logf, ok := p.log.WARNok(); ok {
			logf("origin pool: event for untracked vconnection", "event", event, "remote_addr", vc.RemoteAddr())
		}
		return
	}

	if (event == vconn.InactivityTimeout || event == vconn.ActiveTimeout) &&
		s.State == Pooled && s.ConnTrackGroup != nil && s.ConnTrackGroup.AtOrBelowFloor() {
		// Closing this session would take the (address, egress) group
		// below its configured floor of kept-alive connections; keep it
		// pooled and just restart its idle clock.
		if logf, ok := p.log.DEBUGok(); ok {
			logf("origin pool: preserving session at keepalive floor", "remote_addr", vc.RemoteAddr(), "event", event)
		}
		s.NetVC.SetInactivityTimeout(s.NetVC.InactivityTimeout())
		return
	}

	p.removeLocked(s)
	s.NetVC.Close()
}
