package processes

import (
	"context"
	"io"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomyedwab/starknet-devnet/internal/fakedevnet"
)

func spawnFake(t *testing.T, supervisor *Supervisor) *ManagedProcess {
	t.Helper()
	process, err := supervisor.Spawn(context.Background(), fakeDevnetCommand(t), SpawnConfig{
		Env:    fakedevnet.Env(fakedevnet.ModeServe),
		Stdout: io.Discard,
		Stderr: io.Discard,
	})
	require.NoError(t, err)
	return process
}

func TestRegistryDrain(t *testing.T) {
	supervisor, registry := newTestSupervisor(t)
	first := spawnFake(t, supervisor)
	second := spawnFake(t, supervisor)
	assert.Equal(t, 2, registry.Len())

	assert.Equal(t, 2, registry.Drain(nil))
	waitDone(t, first)
	waitDone(t, second)

	assert.Equal(t, 0, registry.Drain(nil), "draining twice must not signal anything")
	require.Eventually(t, func() bool { return registry.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRegistrySignalDrainsAndExits(t *testing.T) {
	registry, exits := newTestRegistry(t)
	pm, err := NewPortManager(WithPortRange(22013, 65535, 101))
	require.NoError(t, err)
	supervisor, err := NewSupervisor(Config{PortManager: pm, Registry: registry, Logger: discardLogger(), PollInterval: 20 * time.Millisecond})
	require.NoError(t, err)
	process := spawnFake(t, supervisor)

	registry.handleSignal(syscall.SIGINT)

	select {
	case code := <-exits:
		assert.Equal(t, 1, code)
	case <-time.After(time.Second):
		t.Fatal("signal handler did not exit")
	}
	waitDone(t, process)
	assert.Equal(t, StateKilled, process.State())
}

func TestRegistryInstallCleanupOnce(t *testing.T) {
	registry, _ := newTestRegistry(t)
	assert.False(t, registry.CleanupInstalled())

	registry.InstallCleanup()
	registry.InstallCleanup()
	assert.True(t, registry.CleanupInstalled())
}

func TestRegistryRecoverAndCleanup(t *testing.T) {
	supervisor, registry := newTestSupervisor(t)
	process := spawnFake(t, supervisor)

	assert.PanicsWithValue(t, "boom", func() {
		defer registry.RecoverAndCleanup()
		panic("boom")
	})
	waitDone(t, process)
}

func TestRegistryRecoverAndCleanupWithoutPanic(t *testing.T) {
	supervisor, registry := newTestSupervisor(t)
	process := spawnFake(t, supervisor)

	assert.NotPanics(t, func() {
		defer registry.RecoverAndCleanup()
	})
	assert.False(t, process.HasExited())

	registry.Cleanup()
	waitDone(t, process)
}
