package smtxn

import "github.com/mattyw/trafficserver/session"

// FakeRequestContext is a minimal RequestContext usable from tests outside
// this package: sessionmanager's own tests build one per case instead of
// standing up a real state machine.
type FakeRequestContext struct {
	SchemeValue session.Scheme
	Mask        session.MatchMask
	SNI         string
	Cert        string
	Host        string

	// AcceptTxn controls CreateServerTxn's return value. Defaults to
	// accepting every session offered.
	AcceptTxn func(s *session.PoolableSession) bool

	Accepted []*session.PoolableSession
}

func (c *FakeRequestContext) Scheme() session.Scheme       { return c.SchemeValue }
func (c *FakeRequestContext) MatchMask() session.MatchMask { return c.Mask }
func (c *FakeRequestContext) OutboundSNI() string          { return c.SNI }
func (c *FakeRequestContext) OutboundCert() string         { return c.Cert }
func (c *FakeRequestContext) RequestHost() string          { return c.Host }

func (c *FakeRequestContext) CreateServerTxn(s *session.PoolableSession) bool {
	ok := true
	if c.AcceptTxn != nil {
		ok = c.AcceptTxn(s)
	}
	if ok {
		c.Accepted = append(c.Accepted, s)
	}
	return ok
}

// FakeClientTxn is a minimal ClientTxn for tests.
type FakeClientTxn struct {
	Bound *session.PoolableSession
}

func (c *FakeClientTxn) BoundServerSession() *session.PoolableSession { return c.Bound }

func (c *FakeClientTxn) AttachServerSession(s *session.PoolableSession) { c.Bound = s }
