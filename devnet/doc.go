// Package devnet spawns and talks to a local Starknet Devnet.
//
// A Devnet can be started from an executable in PATH, from an explicit command, or
// from a released version that is downloaded on first use. Spawning waits until the
// node answers its health endpoint and returns a handle with a Provider bound to the
// node's URL. Unless KeepAlive is set, spawned nodes are killed when the host program
// receives SIGINT, SIGTERM or SIGQUIT.
//
// # Basic Usage
//
//	d, err := devnet.SpawnInstalled(ctx, devnet.Config{
//		Args: []string{"--seed", "42", "--accounts", "3"},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer d.Kill(nil)
//
//	accounts, err := d.Provider().GetPredeployedAccounts(ctx, false)
//	...
//	minted, err := d.Provider().Mint(ctx, accounts[0].Address, big.NewInt(1e18), devnet.UnitWEI)
//
// A program should also drain the registry on its normal exit path:
//
//	defer processes.DefaultRegistry.Cleanup()
//
// # Connecting to an existing Devnet
//
//	provider := devnet.NewProvider("http://127.0.0.1:5050", rpc.WithTimeout(time.Minute))
//	if !provider.IsAlive(ctx) {
//		log.Fatal("devnet is not running")
//	}
//
// # Error Handling
//
// Spawn failures are *processes.Error values; use processes.IsEarlyExitError,
// processes.IsStartupTimeoutError and friends to tell them apart. Requests rejected by
// Devnet fail with *rpc.RPCError carrying the server's code and message, and requests
// exceeding the client timeout fail with *rpc.ProviderError:
//
//	if err := provider.Load(ctx, path); err != nil {
//		if rpcErr, ok := rpc.AsRPCError(err); ok {
//			log.Printf("devnet refused: %d %s", rpcErr.Code, rpcErr.Message)
//		}
//	}
package devnet
