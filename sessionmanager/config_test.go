package sessionmanager

import (
	"strings"
	"testing"

	"github.com/mattyw/trafficserver/session"
)

func TestDefaultConfigPolicyAndMask(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Policy() != session.Hybrid {
		t.Fatalf("Policy() = %v, want Hybrid", cfg.Policy())
	}
	want := session.MatchIP | session.MatchHostOnly | session.MatchSNI | session.MatchCert
	if got := cfg.MatchMask(); got != want {
		t.Fatalf("MatchMask() = %v, want %v", got, want)
	}
}

func TestLoadParsesCommentedConfig(t *testing.T) {
	src := `{
		// use a single shared pool with a blocking lock
		"sharing_pool": "GLOBAL_LOCKED",
		"sharing_match": "IP SNI",
		"reaper_interval_ms": 5000
	}`
	cfg, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Policy() != session.GlobalLocked {
		t.Fatalf("Policy() = %v, want GlobalLocked", cfg.Policy())
	}
	if got := cfg.MatchMask(); got != session.MatchIP|session.MatchSNI {
		t.Fatalf("MatchMask() = %v, want IP|SNI", got)
	}
	if cfg.ReaperInterval().Milliseconds() != 5000 {
		t.Fatalf("ReaperInterval() = %v, want 5s", cfg.ReaperInterval())
	}
}
