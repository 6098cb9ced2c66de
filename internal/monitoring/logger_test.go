package monitoring

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) { called = true })
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	// nil installs a no-op
	called = false
	SetLogger(nil)
	Logf("test")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestSetLogWriters_RoutesStreams(t *testing.T) {
	defer Configure(false, false)

	var ops, diag bytes.Buffer
	SetLogWriters(LogWriters{Ops: &ops, Diag: &diag})

	Opsf("link %s", "lost")
	Diagf("decode failed: %q", "abc")
	Tracef("read %d bytes", 5)

	if !strings.Contains(ops.String(), "[mcuscope] ") || !strings.Contains(ops.String(), "link lost") {
		t.Errorf("ops stream = %q", ops.String())
	}
	if !strings.Contains(diag.String(), `decode failed: "abc"`) {
		t.Errorf("diag stream = %q", diag.String())
	}
	if strings.Contains(ops.String(), "decode failed") {
		t.Error("diag message leaked into ops stream")
	}
}

func TestSetLogWriters_NilDisables(t *testing.T) {
	defer Configure(false, false)

	SetLogWriters(LogWriters{})
	// Must not panic with every stream disabled.
	Opsf("x")
	Diagf("x")
	Tracef("x")
}
