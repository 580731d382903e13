package processes

import (
	"context"
	"errors"
	"io"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tomyedwab/starknet-devnet/internal/fakedevnet"
)

func TestSpawnBecomesAlive(t *testing.T) {
	supervisor, registry := newTestSupervisor(t)
	output := NewOutputBuffer(100)

	process, err := supervisor.Spawn(context.Background(), fakeDevnetCommand(t), SpawnConfig{
		Env:    fakedevnet.Env(fakedevnet.ModeServe),
		Stdout: output,
		Stderr: io.Discard,
	})
	require.NoError(t, err)

	assert.Equal(t, StateAlive, process.State())
	assert.True(t, strings.HasPrefix(process.URL, "http://127.0.0.1:"))
	assert.Contains(t, process.Args, "--host")
	assert.Contains(t, process.Args, "--port")
	assert.True(t, registry.Contains(process))
	assert.True(t, registry.CleanupInstalled())

	checker := NewHTTPHealthChecker(time.Second)
	assert.True(t, checker.IsAlive(context.Background(), process.URL))

	require.True(t, process.Kill(nil))
	waitDone(t, process)

	assert.Equal(t, StateKilled, process.State())
	assert.False(t, checker.IsAlive(context.Background(), process.URL))
	assert.False(t, process.Kill(nil), "killing an exited process must report false")
	require.Eventually(t, func() bool { return !registry.Contains(process) }, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, output.String(), "listening on")
}

func TestSpawnConcurrentGetDistinctPorts(t *testing.T) {
	supervisor, _ := newTestSupervisor(t)
	command := fakeDevnetCommand(t)

	const count = 3
	var wg sync.WaitGroup
	processes := make([]*ManagedProcess, count)
	errs := make([]error, count)
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			processes[i], errs[i] = supervisor.Spawn(context.Background(), command, SpawnConfig{
				Env:    fakedevnet.Env(fakedevnet.ModeServe),
				Stdout: io.Discard,
				Stderr: io.Discard,
			})
		}(i)
	}
	wg.Wait()

	urls := make(map[string]bool)
	for i := 0; i < count; i++ {
		require.NoError(t, errs[i])
		urls[processes[i].URL] = true
	}
	assert.Len(t, urls, count)

	for _, process := range processes {
		process.Kill(nil)
		waitDone(t, process)
	}
}

func TestSpawnInvalidCommand(t *testing.T) {
	supervisor, registry := newTestSupervisor(t)

	_, err := supervisor.Spawn(context.Background(), "starknet-devnet-does-not-exist", SpawnConfig{})
	require.Error(t, err)
	assert.True(t, IsSpawnError(err))
	assert.True(t, errors.Is(err, exec.ErrNotFound))
	assert.Equal(t, 0, registry.Len())
}

func TestSpawnInvalidCommandReleasesPort(t *testing.T) {
	pm, err := NewPortManager(WithPortRange(23011, 23011, 1))
	require.NoError(t, err)
	registry, _ := newTestRegistry(t)
	supervisor, err := NewSupervisor(Config{PortManager: pm, Registry: registry, Logger: discardLogger()})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := supervisor.Spawn(context.Background(), "starknet-devnet-does-not-exist", SpawnConfig{})
		assert.True(t, IsSpawnError(err), "attempt %d: %v", i, err)
	}
}

// verifyNoPollingLeft fails the test if any goroutine besides the registry's
// signal handler outlives the spawn.
func verifyNoPollingLeft(t *testing.T, opts ...goleak.Option) {
	t.Helper()
	opts = append(opts, goleak.IgnoreAnyFunction("github.com/tomyedwab/starknet-devnet/processes.(*Registry).awaitSignal"))
	goleak.VerifyNone(t, opts...)
}

func TestSpawnEarlyExit(t *testing.T) {
	defer verifyNoPollingLeft(t, goleak.IgnoreCurrent())
	supervisor, registry := newTestSupervisor(t)
	stderr := NewOutputBuffer(10)

	_, err := supervisor.Spawn(context.Background(), fakeDevnetCommand(t), SpawnConfig{
		Args:   []string{"--faulty-param", "123"},
		Env:    fakedevnet.Env(fakedevnet.ModeServe),
		Stdout: io.Discard,
		Stderr: stderr,
	})
	require.Error(t, err)
	require.True(t, IsEarlyExitError(err), "unexpected error: %v", err)

	var pErr *Error
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, 2, pErr.ExitCode)
	assert.Contains(t, err.Error(), "Devnet exited with code 2")
	assert.Contains(t, stderr.String(), "unexpected argument '--faulty-param'")
	require.Eventually(t, func() bool { return registry.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSpawnOnOccupiedPortExitsEarly(t *testing.T) {
	supervisor, _ := newTestSupervisor(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	port := strconv.Itoa(listener.Addr().(*net.TCPAddr).Port)

	const maxStartup = 5 * time.Second
	start := time.Now()
	_, err = supervisor.Spawn(context.Background(), fakeDevnetCommand(t), SpawnConfig{
		Args:       []string{"--port", port},
		Env:        fakedevnet.Env(fakedevnet.ModeServe),
		Stdout:     io.Discard,
		Stderr:     io.Discard,
		MaxStartup: maxStartup,
	})
	require.Error(t, err)
	assert.True(t, IsEarlyExitError(err), "unexpected error: %v", err)
	assert.Contains(t, err.Error(), "Devnet exited with code 1")
	assert.Less(t, time.Since(start), maxStartup/2)
}

func TestSpawnStartupTimeout(t *testing.T) {
	defer verifyNoPollingLeft(t, goleak.IgnoreCurrent())
	supervisor, registry := newTestSupervisor(t)

	start := time.Now()
	_, err := supervisor.Spawn(context.Background(), fakeDevnetCommand(t), SpawnConfig{
		Env:        fakedevnet.Env(fakedevnet.ModeHang),
		MaxStartup: 200 * time.Millisecond,
	})
	require.Error(t, err)
	assert.True(t, IsStartupTimeoutError(err), "unexpected error: %v", err)
	assert.Contains(t, err.Error(), "increase the startup time")
	assert.Less(t, time.Since(start), 3*time.Second)

	// The hanging child is terminated and reaped.
	require.Eventually(t, func() bool { return registry.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestSpawnContextCancelled(t *testing.T) {
	supervisor, registry := newTestSupervisor(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := supervisor.Spawn(ctx, fakeDevnetCommand(t), SpawnConfig{
		Env: fakedevnet.Env(fakedevnet.ModeHang),
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Eventually(t, func() bool { return registry.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestSpawnHonorsProvidedPort(t *testing.T) {
	supervisor, _ := newTestSupervisor(t)

	pm, err := NewPortManager(WithPortRange(24007, 65535, 89))
	require.NoError(t, err)
	port, err := pm.AllocatePort(context.Background())
	require.NoError(t, err)

	args := []string{"--port", port, "--accounts", "3"}
	process, err := supervisor.Spawn(context.Background(), fakeDevnetCommand(t), SpawnConfig{
		Args:   args,
		Env:    fakedevnet.Env(fakedevnet.ModeServe),
		Stdout: io.Discard,
		Stderr: io.Discard,
	})
	require.NoError(t, err)
	defer func() {
		process.Kill(nil)
		waitDone(t, process)
	}()

	assert.Equal(t, "http://127.0.0.1:"+port, process.URL)
	assert.Equal(t, []string{"--port", port, "--accounts", "3"}, args, "caller args must not be modified")
	assert.Empty(t, process.port)
}

func TestSpawnKeepAliveIsNotRegistered(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	supervisor, registry := newTestSupervisor(t)

	process, err := supervisor.Spawn(context.Background(), fakeDevnetCommand(t), SpawnConfig{
		Env:       fakedevnet.Env(fakedevnet.ModeServe),
		Stdout:    io.Discard,
		Stderr:    io.Discard,
		KeepAlive: true,
	})
	require.NoError(t, err)

	assert.False(t, registry.Contains(process))
	assert.False(t, registry.CleanupInstalled())
	assert.Equal(t, 0, registry.Drain(nil))
	assert.False(t, process.HasExited())

	require.True(t, process.Kill(nil))
	waitDone(t, process)
}
