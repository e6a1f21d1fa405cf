package session

import (
	"crypto/md5"
	"net"
	"strings"

	"github.com/mattyw/trafficserver/netutil/conntrack"
	"github.com/mattyw/trafficserver/vconn"
)

// HashHostname fingerprints a hostname the way the origin pool indexes it.
// MD5 is used purely as a fast, fixed-width (128-bit) fingerprint, the same
// role CryptoHash plays in the original. The hostname itself is not stored
// on the session, so HOSTONLY matching compares only this hash and the
// port. The hostname is hashed as given, with no case normalization, matching the
// original's acquire_session, which hashes the raw hostname bytes.
func HashHostname(hostname string) [16]byte {
	return md5.Sum([]byte(hostname))
}

// PoolableSession is one origin connection eligible for keep-alive reuse.
// It is grounded on the original's ServerSessionPool member session
// (Http1ServerSession / PoolableSession in the C++), trimmed to the fields
// the matching predicate and event handler actually consult.
type PoolableSession struct {
	NetVC vconn.NetVConnection

	HostnameHash [16]byte

	State        State
	SharingPool  SharingPool
	IsMultiplexing bool

	// ConnTrackGroup back-references the outbound-connection-count
	// tracker for this session's (address, egress interface) group, used
	// to decide whether closing this session on an idle timeout would
	// drop the group below its configured floor.
	ConnTrackGroup *conntrack.Group
}

// New wraps netvc as a freshly pooled session.
func New(netvc vconn.NetVConnection, hostname string, sharing SharingPool, multiplexing bool, group *conntrack.Group) *PoolableSession {
	return &PoolableSession{
		NetVC:          netvc,
		HostnameHash:   HashHostname(hostname),
		State:          Pooled,
		SharingPool:    sharing,
		IsMultiplexing: multiplexing,
		ConnTrackGroup: group,
	}
}

// SNIServername returns the SNI the session's netvc was established with.
func (s *PoolableSession) SNIServername() string { return s.NetVC.SNIServername() }

// ClientCertName returns the client certificate identity the session's
// netvc was established with.
func (s *PoolableSession) ClientCertName() string { return s.NetVC.ClientCertName() }

// RemoteAddr returns the origin address the session is connected to.
func (s *PoolableSession) RemoteAddr() net.Addr { return s.NetVC.RemoteAddr() }

func portOf(addr net.Addr) string {
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return ""
	}
	return port
}

func addrEqual(a, b net.Addr) bool {
	return a.String() == b.String()
}

// matchIPHostOnly evaluates the IP and HOSTONLY bits of mask, ANDing
// together whichever of the two are set. This mirrors
// ServerSessionPool::match: the two checks cascade rather than combine
// independently, but since the second only runs given the first already
// held, the net effect is a logical AND over whichever bits are present.
func matchIPHostOnly(s *PoolableSession, addr net.Addr, hostnameHash [16]byte, mask MatchMask) bool {
	ok := mask != 0
	if ok && mask&MatchIP != 0 {
		ok = addrEqual(s.RemoteAddr(), addr)
	}
	if ok && mask&MatchHostOnly != 0 {
		ok = portOf(addr) == portOf(s.RemoteAddr()) && s.HostnameHash == hostnameHash
	}
	return ok
}

// validateSNI implements the MatchSNI predicate: on HTTPS, the session's SNI
// and the outbound SNI must both be empty or both be equal.
func validateSNI(ctx MatchContext, s *PoolableSession) bool {
	if ctx.Scheme() != HTTPS {
		return true
	}
	sessionSNI := s.SNIServername()
	proposedSNI := ctx.OutboundSNI()
	if sessionSNI == "" || proposedSNI == "" {
		return sessionSNI == "" && proposedSNI == ""
	}
	return sessionSNI == proposedSNI
}

// validateHostSNI implements the MatchHostSNISync predicate. It is a
// case-insensitive prefix comparison of the session's SNI against the
// current request host, truncated to the request host's length -- the
// same strncasecmp(session_sni, req_host, req_host.length()) the original
// performs, deliberately kept even though it means a session opened for
// "example.com.evil" case-insensitively matches a request for
// "example.com" (see DESIGN.md).
func validateHostSNI(ctx MatchContext, s *PoolableSession) bool {
	if ctx.Scheme() != HTTPS {
		return true
	}
	sessionSNI := s.SNIServername()
	if sessionSNI == "" {
		return true
	}
	reqHost := ctx.RequestHost()
	if len(sessionSNI) < len(reqHost) {
		return false
	}
	return strings.EqualFold(sessionSNI[:len(reqHost)], reqHost)
}

// validateCert implements the MatchCert predicate.
func validateCert(ctx MatchContext, s *PoolableSession) bool {
	if ctx.Scheme() != HTTPS {
		return true
	}
	return s.ClientCertName() == ctx.OutboundCert()
}

// Match reports whether s satisfies every predicate mask enables against
// (addr, hostnameHash, ctx). It is used for the SM's bound-session
// fast-path check, where there is exactly one candidate to test rather than
// a bucket to search.
func Match(s *PoolableSession, addr net.Addr, hostnameHash [16]byte, mask MatchMask, ctx MatchContext) bool {
	if !matchIPHostOnly(s, addr, hostnameHash, mask) {
		return false
	}
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

func addrKey(addr net.Addr) string { return addr.String() }
