package session

import (
	"testing"

	"github.com/mattyw/trafficserver/netutil/conntrack"
	"github.com/mattyw/trafficserver/vconn"
)

func TestAcquireByIPRemovesFromBothIndexes(t *testing.T) {
	p := NewPool(nil)
	vc := newFakeVC("10.0.0.1:80", "", "")
	s := New(vc, "example.com", Thread, false, nil)
	p.Add(s)

	p.Lock()
	result, got := p.Acquire(fakeAddr("10.0.0.1:80"), s.HostnameHash, MatchIP, fakeCtx{scheme: HTTP})
	p.Unlock()

	if result != Done || got != s {
		t.Fatalf("Acquire = (%v, %v), want (Done, s)", result, got)
	}
	if len(p.byAddr[addrKey(fakeAddr("10.0.0.1:80"))]) != 0 {
		t.Fatal("session still present in address index after acquire")
	}
	if len(p.byHost[s.HostnameHash]) != 0 {
		t.Fatal("session still present in host index after acquire")
	}
}

func TestAcquireHostOnlyMatchesAnyAddressSamePortAndHash(t *testing.T) {
	p := NewPool(nil)
	vc := newFakeVC("10.0.0.1:443", "", "")
	s := New(vc, "example.com", Thread, false, nil)
	p.Add(s)

	p.Lock()
	result, got := p.Acquire(fakeAddr("10.9.9.9:443"), HashHostname("example.com"), MatchHostOnly, fakeCtx{scheme: HTTP})
	p.Unlock()

	if result != Done || got != s {
		t.Fatalf("Acquire = (%v, %v), want (Done, s)", result, got)
	}
}

func TestAcquireOldestFirst(t *testing.T) {
	p := NewPool(nil)
	older := New(newFakeVC("10.0.0.1:80", "", ""), "example.com", Thread, false, nil)
	newer := New(newFakeVC("10.0.0.1:80", "", ""), "example.com", Thread, false, nil)
	p.Add(older)
	p.Add(newer)

	p.Lock()
	_, got := p.Acquire(fakeAddr("10.0.0.1:80"), older.HostnameHash, MatchIP, fakeCtx{scheme: HTTP})
	p.Unlock()

	if got != older {
		t.Fatal("expected the oldest inserted session to be selected first")
	}
}

func TestAcquireNotFoundOnEmptyPool(t *testing.T) {
	p := NewPool(nil)
	p.Lock()
	result, got := p.Acquire(fakeAddr("10.0.0.1:80"), [16]byte{}, MatchIP, fakeCtx{scheme: HTTP})
	p.Unlock()
	if result != NotFound || got != nil {
		t.Fatalf("Acquire = (%v, %v), want (NotFound, nil)", result, got)
	}
}

func TestAcquireMultiplexingSessionStaysIndexed(t *testing.T) {
	p := NewPool(nil)
	vc := newFakeVC("10.0.0.1:80", "", "")
	s := New(vc, "example.com", Thread, true, nil)
	p.Add(s)

	p.Lock()
	result, got := p.Acquire(fakeAddr("10.0.0.1:80"), s.HostnameHash, MatchIP, fakeCtx{scheme: HTTP})
	p.Unlock()

	if result != Done || got != s {
		t.Fatalf("Acquire = (%v, %v), want (Done, s)", result, got)
	}
	if len(p.byAddr[addrKey(fakeAddr("10.0.0.1:80"))]) != 1 {
		t.Fatal("multiplexing session should remain indexed after acquire")
	}
}

func TestReleaseReindexesAndResetsState(t *testing.T) {
	p := NewPool(nil)
	vc := newFakeVC("10.0.0.1:80", "", "")
	s := New(vc, "example.com", Thread, false, nil)
	s.State = InUse
	vc.timeout = 30

	p.Lock()
	p.Release(s, p)
	p.Unlock()

	if s.State != Pooled {
		t.Fatalf("State = %v, want Pooled", s.State)
	}
	if vc.timeout != 30 {
		t.Fatal("expected inactivity timeout to be re-armed with its previous value")
	}
	if len(p.byAddr[addrKey(vc.addr)]) != 1 {
		t.Fatal("expected session to be reindexed by address after release")
	}
}

func TestPurgeClosesAndEmptiesPool(t *testing.T) {
	p := NewPool(nil)
	a := New(newFakeVC("10.0.0.1:80", "", ""), "a.example.com", Thread, false, nil)
	b := New(newFakeVC("10.0.0.2:80", "", ""), "b.example.com", Thread, false, nil)
	p.Add(a)
	p.Add(b)

	p.Purge()

	if !a.NetVC.(*fakeVC).closed || !b.NetVC.(*fakeVC).closed {
		t.Fatal("expected both sessions to be closed by purge")
	}
	if len(p.byAddr) != 0 || len(p.byHost) != 0 {
		t.Fatal("expected both indexes to be empty after purge")
	}
}

func TestHandleEventClosesUntrackedNoOp(t *testing.T) {
	p := NewPool(nil)
	vc := newFakeVC("10.0.0.1:80", "", "")
	p.HandleEvent(vconn.EOS, vc)
	if vc.closed {
		t.Fatal("untracked vconnection should not be closed")
	}
}

func TestHandleEventEOSClosesPooledSession(t *testing.T) {
	p := NewPool(nil)
	vc := newFakeVC("10.0.0.1:80", "", "")
	s := New(vc, "example.com", Thread, false, nil)
	p.Add(s)

	p.HandleEvent(vconn.EOS, vc)

	if !vc.closed {
		t.Fatal("expected session to be closed on EOS")
	}
	if len(p.byAddr) != 0 {
		t.Fatal("expected session removed from address index after close")
	}
}

func TestHandleEventInactivityTimeoutPreservesFloorSession(t *testing.T) {
	p := NewPool(nil)
	vc := newFakeVC("10.0.0.1:80", "", "")
	group := conntrack.NewGroup(1)
	group.Open() // count == 1, equals the floor
	s := New(vc, "example.com", Thread, false, group)
	p.Add(s)

	p.HandleEvent(vconn.InactivityTimeout, vc)

	if vc.closed {
		t.Fatal("expected session at the keepalive floor to be preserved, not closed")
	}
	if len(p.byAddr) != 1 {
		t.Fatal("expected session to remain indexed")
	}
}

func TestHandleEventInactivityTimeoutClosesAboveFloor(t *testing.T) {
	p := NewPool(nil)
	vc := newFakeVC("10.0.0.1:80", "", "")
	group := conntrack.NewGroup(1)
	group.Open()
	group.Open() // count == 2, above the floor of 1
	s := New(vc, "example.com", Thread, false, group)
	p.Add(s)

	p.HandleEvent(vconn.InactivityTimeout, vc)

	if !vc.closed {
		t.Fatal("expected session above the keepalive floor to be closed")
	}
}
