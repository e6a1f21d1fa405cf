package sessionmanager

import (
	"io"
	"strings"
	"time"

	"github.com/mattyw/trafficserver/jconf"
	"github.com/mattyw/trafficserver/session"
)

// Config holds the process-wide keep-alive pool settings, loaded from a
// JSON-with-comments file the way the rest of this codebase loads config,
// via jconf.ParseInto.
type Config struct {
	// SharingPool selects which pool(s) AcquireSession consults: THREAD,
	// GLOBAL, GLOBAL_LOCKED or HYBRID.
	SharingPool string `json:"sharing_pool"`

	// SharingMatch is the default set of identity predicates ("IP",
	// "HOSTONLY", "SNI", "HOSTSNISYNC", "CERT", space-separated) new
	// transactions should require of a reused session, mirroring
	// records.yaml's proxy.config.http.server_session_sharing.match. A
	// transaction's own smtxn.RequestContext.MatchMask always takes
	// precedence; this only documents the process-wide default those
	// implementations are expected to seed themselves from.
	SharingMatch string `json:"sharing_match"`

	// ReaperIntervalMS is how often the inactivity reaper sweeps for
	// timed-out pooled sessions, in milliseconds.
	ReaperIntervalMS int `json:"reaper_interval_ms"`
}

// DefaultConfig mirrors the original's compiled-in defaults: a hybrid pool,
// IP+HOSTONLY+SNI+CERT matching, and a one-second reaper sweep.
func DefaultConfig() Config {
	return Config{
		SharingPool:      "HYBRID",
		SharingMatch:     "IP HOSTONLY SNI CERT",
		ReaperIntervalMS: 1000,
	}
}

// MatchMask parses SharingMatch into a session.MatchMask, ignoring
// unrecognized tokens.
func (c Config) MatchMask() session.MatchMask {
	var mask session.MatchMask
	tokens := strings.Fields(c.SharingMatch)
	for _, tok := range tokens {
		switch tok {
		case "IP":
			mask |= session.MatchIP
		case "HOSTONLY":
			mask |= session.MatchHostOnly
		case "SNI":
			mask |= session.MatchSNI
		case "HOSTSNISYNC":
			mask |= session.MatchHostSNISync
		case "CERT":
			mask |= session.MatchCert
		}
	}
	return mask
}

// Load reads and parses a Config from r.
func Load(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	if err := jconf.ParseInto(r, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Policy translates the configured SharingPool string into a
// session.SharingPool, defaulting to Hybrid on an unrecognized or empty
// value.
func (c Config) Policy() session.SharingPool {
	switch c.SharingPool {
	case "THREAD":
		return session.Thread
	case "GLOBAL":
		return session.Global
	case "GLOBAL_LOCKED":
		return session.GlobalLocked
	default:
		return session.Hybrid
	}
}

// ReaperInterval returns the configured reaper sweep interval.
func (c Config) ReaperInterval() time.Duration {
	if c.ReaperIntervalMS <= 0 {
		return time.Second
	}
	return time.Duration(c.ReaperIntervalMS) * time.Millisecond
}
