package processes

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

const (
	// DefaultDevnetHost is the host Devnet binds to when none is given.
	DefaultDevnetHost = "127.0.0.1"
	// DefaultDevnetPort is Devnet's own default port. The search starts one step above it.
	DefaultDevnetPort = 5050

	defaultPortStep     = 1000
	maxPortNumber       = 65535
	defaultProbeTimeout = time.Second
)

// PortManager hands out TCP ports that nothing is listening on.
//
// Candidates are probed by connecting to them: a refused connection means the port is
// free, an accepted one means it is taken. Any other dial error aborts the search.
// Ports handed out are remembered until released so that concurrent spawns never
// receive the same port before the first child has bound it.
type PortManager struct {
	mu           sync.Mutex
	host         string
	minPort      int
	maxPort      int
	step         int
	probeTimeout time.Duration
	allocated    map[int]bool // Tracks allocated ports

	dial func(ctx context.Context, network, address string) (net.Conn, error)
}

// PortManagerOption configures a PortManager.
type PortManagerOption func(*PortManager)

// WithProbeHost sets the host used for probing. Defaults to DefaultDevnetHost.
func WithProbeHost(host string) PortManagerOption {
	return func(pm *PortManager) {
		pm.host = host
	}
}

// WithPortRange sets the first candidate, the last allowed port and the step between candidates.
func WithPortRange(minPort, maxPort, step int) PortManagerOption {
	return func(pm *PortManager) {
		pm.minPort = minPort
		pm.maxPort = maxPort
		pm.step = step
	}
}

// WithProbeTimeout bounds a single connection attempt.
func WithProbeTimeout(timeout time.Duration) PortManagerOption {
	return func(pm *PortManager) {
		pm.probeTimeout = timeout
	}
}

// NewPortManager creates a new PortManager instance.
// By default it searches DefaultDevnetPort+1000, +2000, ... up to 65535 on 127.0.0.1.
func NewPortManager(opts ...PortManagerOption) (*PortManager, error) {
	pm := &PortManager{
		host:         DefaultDevnetHost,
		minPort:      DefaultDevnetPort + defaultPortStep,
		maxPort:      maxPortNumber,
		step:         defaultPortStep,
		probeTimeout: defaultProbeTimeout,
		allocated:    make(map[int]bool),
	}
	for _, opt := range opts {
		opt(pm)
	}

	if pm.minPort <= 0 || pm.maxPort <= 0 || pm.minPort > pm.maxPort || pm.maxPort > maxPortNumber {
		return nil, fmt.Errorf("invalid port range: min %d, max %d", pm.minPort, pm.maxPort)
	}
	if pm.step <= 0 {
		return nil, fmt.Errorf("invalid port step: %d", pm.step)
	}
	if pm.dial == nil {
		dialer := &net.Dialer{Timeout: pm.probeTimeout}
		pm.dial = dialer.DialContext
	}
	return pm, nil
}

// AllocatePort finds and allocates a free TCP port.
// It returns the port as a decimal string, a NoFreePort error if the range is exhausted,
// or the dial error if a probe failed for any reason other than a refused connection.
func (pm *PortManager) AllocatePort(ctx context.Context) (string, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for port := pm.minPort; port <= pm.maxPort; port += pm.step {
		if pm.allocated[port] {
			continue
		}

		free, err := pm.isFreePort(ctx, port)
		if err != nil {
			return "", fmt.Errorf("failed to probe port %d: %w", port, err)
		}
		if free {
			pm.allocated[port] = true
			return strconv.Itoa(port), nil
		}
	}

	return "", NewNoFreePortError()
}

// ReleasePort marks a previously allocated port as available again.
func (pm *PortManager) ReleasePort(port string) {
	p, err := strconv.Atoi(port)
	if err != nil {
		return
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.allocated, p)
}

func (pm *PortManager) isFreePort(ctx context.Context, port int) (bool, error) {
	conn, err := pm.dial(ctx, "tcp", net.JoinHostPort(pm.host, strconv.Itoa(port)))
	if err == nil {
		conn.Close()
		return false, nil
	}
	if isConnRefused(err) {
		return true, nil
	}
	return false, err
}
