package devnet

import (
	"context"

	"github.com/tomyedwab/starknet-devnet/rpc"
)

// Cheats toggles account impersonation, which lets Devnet accept transactions from
// accounts whose private key it does not hold.
type Cheats struct {
	client *rpc.Client
}

// ImpersonateAccount starts impersonating address until StopImpersonateAccount is called.
func (c *Cheats) ImpersonateAccount(ctx context.Context, address string) error {
	_, err := c.client.SendRequest(ctx, "devnet_impersonateAccount", map[string]string{
		"account_address": address,
	})
	return err
}

func (c *Cheats) StopImpersonateAccount(ctx context.Context, address string) error {
	_, err := c.client.SendRequest(ctx, "devnet_stopImpersonateAccount", map[string]string{
		"account_address": address,
	})
	return err
}

// AutoImpersonate impersonates every account missing from the local state.
func (c *Cheats) AutoImpersonate(ctx context.Context) error {
	_, err := c.client.SendRequest(ctx, "devnet_autoImpersonate", nil)
	return err
}

func (c *Cheats) StopAutoImpersonate(ctx context.Context) error {
	_, err := c.client.SendRequest(ctx, "devnet_stopAutoImpersonate", nil)
	return err
}
