package processes

import (
	"context"
	"net"

	"github.com/samber/lo"
)

const (
	hostFlag = "--host"
	portFlag = "--port"
)

// PortAllocator supplies a free port when the arguments do not name one.
type PortAllocator interface {
	AllocatePort(ctx context.Context) (string, error)
}

// EnsureURL returns the effective argument list and the URL the process will serve on.
//
// A --host or --port already present in args is honored verbatim. Missing ones are
// appended: the host defaults to DefaultDevnetHost and the port is taken from
// allocator. The returned allocatedPort is empty when the caller chose the port.
// args itself is never modified.
func EnsureURL(ctx context.Context, args []string, allocator PortAllocator) (effective []string, url string, allocatedPort string, err error) {
	effective = append(make([]string, 0, len(args)+4), args...)

	host, ok := flagValue(effective, hostFlag)
	if !ok {
		host = DefaultDevnetHost
		effective = append(effective, hostFlag, host)
	}

	port, ok := flagValue(effective, portFlag)
	if !ok {
		port, err = allocator.AllocatePort(ctx)
		if err != nil {
			return nil, "", "", err
		}
		allocatedPort = port
		effective = append(effective, portFlag, port)
	}

	return effective, "http://" + net.JoinHostPort(host, port), allocatedPort, nil
}

// flagValue returns the argument following flag. A trailing flag without a value
// counts as present with an empty value so it is never duplicated.
func flagValue(args []string, flag string) (string, bool) {
	idx := lo.IndexOf(args, flag)
	if idx == -1 {
		return "", false
	}
	if idx+1 >= len(args) {
		return "", true
	}
	return args[idx+1], true
}
