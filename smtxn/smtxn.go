// Package smtxn defines the narrow contract sessionmanager needs from the
// HTTP state machine and client transaction on the other side of the origin
// pool -- the bound-session slot on a client transaction and the request
// state a state machine exposes for matching and hand-off. Both are ATS's
// HttpSM/HttpTransact::State and Http1ClientSession in the original;
// neither is implemented by this module, which only consumes them.
package smtxn

import "github.com/mattyw/trafficserver/session"

// RequestContext is what a state machine exposes about the request it is
// currently trying to connect upstream for: enough to run the matching
// predicate, plus the hand-off callback sessionmanager calls once it has
// selected (or opened) a session.
type RequestContext interface {
	session.MatchContext

	// MatchMask reports which identity predicates this request's
	// transaction configuration requires a reused session to satisfy.
	MatchMask() session.MatchMask

	// CreateServerTxn installs s as the state machine's server-side
	// transaction. It returns false if the state machine could not use
	// the session (e.g. it went stale between selection and hand-off),
	// in which case the caller must treat the acquisition as failed.
	CreateServerTxn(s *session.PoolableSession) bool
}

// ClientTxn is the client-facing transaction a session may be bound to
// across multiple requests (an explicitly pinned server connection, as
// opposed to one picked fresh from a pool each time).
type ClientTxn interface {
	// BoundServerSession returns the session this client transaction is
	// currently pinned to, or nil if none.
	BoundServerSession() *session.PoolableSession

	// AttachServerSession changes the pinned session, or clears it when
	// passed nil.
	AttachServerSession(s *session.PoolableSession)
}
