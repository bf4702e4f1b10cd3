package debugger

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/google/go-dap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePort_DefaultsWhenEnvUnset(t *testing.T) {
	os.Unsetenv(PortEnv)
	assert.Equal(t, DefaultPort, resolvePort())
}

func TestResolvePort_HonorsEnvOverride(t *testing.T) {
	os.Setenv(PortEnv, "9999")
	defer os.Unsetenv(PortEnv)
	assert.Equal(t, 9999, resolvePort())
}

// TestAttach_NowaitReturnsBeforeClientConnects covers spec §6's boot-time
// behavior override: with DEBUGGER_NOWAIT=true, Attach must not block
// waiting for a client to complete launch.
func TestAttach_NowaitReturnsBeforeClientConnects(t *testing.T) {
	os.Setenv(NowaitEnv, "true")
	defer os.Unsetenv(NowaitEnv)

	d := New(Options{})
	done := make(chan error, 1)
	go func() { done <- d.Attach("127.0.0.1:0") }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Attach blocked despite DEBUGGER_NOWAIT=true")
	}
}

// TestAttach_BlocksUntilLaunch covers the default (waiting) boot-time
// behavior: Attach only returns once a client completes launch.
func TestAttach_BlocksUntilLaunch(t *testing.T) {
	os.Unsetenv(NowaitEnv)

	d := New(Options{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	done := make(chan error, 1)
	go func() { done <- d.Attach(addr) }()

	select {
	case <-done:
		t.Fatal("Attach returned before any client connected")
	case <-time.After(100 * time.Millisecond):
	}

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	req := &dap.LaunchRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Seq: 1, Type: "request"},
			Command:         "launch",
		},
	}
	require.NoError(t, dap.WriteProtocolMessage(conn, req))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Attach did not unblock after launch")
	}
}
