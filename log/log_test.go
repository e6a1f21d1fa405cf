package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelGating(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "test", WARN)

	l.DEBUG("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below configured level, got %q", buf.String())
	}

	l.WARN("should appear", "k", "v")
	if !strings.Contains(buf.String(), "should appear") {
		t.Fatalf("expected message in output, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "k=v") {
		t.Fatalf("expected kv pair in output, got %q", buf.String())
	}
}

func TestDEBUGokGuardsWork(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "test", NOTICE)

	if logf, ok := l.DEBUGok(); ok {
		logf("unreachable")
	}
	if buf.Len() != 0 {
		t.Fatalf("DEBUGok should have reported disabled, got output %q", buf.String())
	}

	l.SetLevel(DEBUG)
	if logf, ok := l.DEBUGok(); ok {
		logf("reachable")
	} else {
		t.Fatal("expected DEBUGok to report enabled after SetLevel(DEBUG)")
	}
	if !strings.Contains(buf.String(), "reachable") {
		t.Fatalf("expected message logged, got %q", buf.String())
	}
}

func TestKVExpansion(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "test", INFO)
	l.INFO("msg", KV{"a": 1})
	if !strings.Contains(buf.String(), "a=1") {
		t.Fatalf("expected KV map expanded, got %q", buf.String())
	}
}

func TestOddArgsNormalized(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "test", INFO)
	l.INFO("msg", "onlykey")
	if !strings.Contains(buf.String(), "LOG_ERROR") {
		t.Fatalf("expected odd-arg marker in output, got %q", buf.String())
	}
}
