package devnet

import (
	"fmt"

	"github.com/tomyedwab/starknet-devnet/processes"
	"github.com/tomyedwab/starknet-devnet/rpc"
)

const (
	// DefaultHTTPTimeout bounds a single RPC request made by a Provider.
	DefaultHTTPTimeout = rpc.DefaultTimeout

	// DefaultHost and DefaultPort are where Devnet listens when started without arguments.
	DefaultHost = processes.DefaultDevnetHost
	DefaultPort = processes.DefaultDevnetPort

	// DefaultCommand is the executable SpawnInstalled looks up in PATH.
	DefaultCommand = "starknet-devnet"

	// LatestCompatibleVersion is the release SpawnVersion uses for "latest".
	LatestCompatibleVersion = "v0.5.1"

	latestVersionAlias = "latest"
)

// DefaultURL is the URL of a Devnet started without --host and --port.
var DefaultURL = fmt.Sprintf("http://%s:%d", DefaultHost, DefaultPort)
