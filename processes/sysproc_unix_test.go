//go:build unix

package processes

import (
	"context"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsConnRefused(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}
	assert.True(t, isConnRefused(refused))

	unreachable := &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ENETUNREACH)}
	assert.False(t, isConnRefused(unreachable))
}

func TestIsConnRefusedOnRealDial(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	_, err = (&net.Dialer{}).DialContext(context.Background(), "tcp", addr)
	require.Error(t, err)
	assert.True(t, isConnRefused(err), "unexpected error: %v", err)
}
