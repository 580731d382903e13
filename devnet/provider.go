package devnet

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/tomyedwab/starknet-devnet/processes"
	"github.com/tomyedwab/starknet-devnet/rpc"
)

// Provider talks to a running Devnet. It is safe for concurrent use.
type Provider struct {
	url    string
	client *rpc.Client
	health processes.HealthChecker

	// Postman relays messages between L1 and L2.
	Postman *Postman
	// Cheats toggles test-only behavior such as account impersonation.
	Cheats *Cheats
}

// NewProvider creates a provider for the Devnet at url, DefaultURL if empty.
func NewProvider(url string, options ...rpc.ClientOption) *Provider {
	if url == "" {
		url = DefaultURL
	}
	client := rpc.NewClient(url, options...)
	return &Provider{
		url:     url,
		client:  client,
		health:  processes.NewHTTPHealthCheckerWithClient(client.HTTPClient()),
		Postman: &Postman{client: client},
		Cheats:  &Cheats{client: client},
	}
}

// URL returns the base URL of the Devnet
func (p *Provider) URL() string {
	return p.url
}

// RPC returns the underlying JSON-RPC client for methods without a typed wrapper.
func (p *Provider) RPC() *rpc.Client {
	return p.client
}

// IsAlive reports whether the Devnet answers its health endpoint. It never fails.
func (p *Provider) IsAlive(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.client.Timeout())
	defer cancel()
	return p.health.IsAlive(ctx, p.url)
}

// Restart resets the Devnet state, optionally including L1 to L2 messaging.
func (p *Provider) Restart(ctx context.Context, restartL1ToL2Messaging bool) error {
	_, err := p.client.SendRequest(ctx, "devnet_restart", map[string]bool{
		"restart_l1_to_l2_messaging": restartL1ToL2Messaging,
	})
	return err
}

// Mint generates funds at address. An empty unit mints DefaultMintUnit.
// The amount is written into the request verbatim so it is never rounded.
func (p *Provider) Mint(ctx context.Context, address string, amount *big.Int, unit BalanceUnit) (*MintResponse, error) {
	if amount == nil {
		return nil, fmt.Errorf("mint amount is required")
	}
	if unit == "" {
		unit = DefaultMintUnit
	}
	encodedAddress, err := json.Marshal(address)
	if err != nil {
		return nil, err
	}
	encodedUnit, err := json.Marshal(unit)
	if err != nil {
		return nil, err
	}
	params := fmt.Sprintf(`{"address": %s, "amount": %s, "unit": %s}`, encodedAddress, amount.String(), encodedUnit)

	raw, err := rpc.Call[struct {
		NewBalance json.RawMessage `json:"new_balance"`
		Unit       BalanceUnit     `json:"unit"`
		TxHash     string          `json:"tx_hash"`
	}](ctx, p.client, "devnet_mint", params)
	if err != nil {
		return nil, err
	}

	newBalance, err := parseBigInt(raw.NewBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to parse minted balance: %w", err)
	}
	return &MintResponse{NewBalance: newBalance, Unit: raw.Unit, TxHash: raw.TxHash}, nil
}

// GetPredeployedAccounts lists the accounts Devnet funded on startup.
func (p *Provider) GetPredeployedAccounts(ctx context.Context, withBalance bool) ([]PredeployedAccount, error) {
	return rpc.Call[[]PredeployedAccount](ctx, p.client, "devnet_getPredeployedAccounts", map[string]bool{
		"with_balance": withBalance,
	})
}

// GetAccountBalance returns the balance of address in unit at block. An empty unit
// queries DefaultMintUnit and a zero BlockID queries the latest block.
func (p *Provider) GetAccountBalance(ctx context.Context, address string, unit BalanceUnit, block BlockID) (*AccountBalance, error) {
	if unit == "" {
		unit = DefaultMintUnit
	}
	if block == (BlockID{}) {
		block = Tag(BlockTagLatest)
	}
	blockID, err := block.ToRPC()
	if err != nil {
		return nil, err
	}

	raw, err := rpc.Call[struct {
		Amount json.RawMessage `json:"amount"`
		Unit   BalanceUnit     `json:"unit"`
	}](ctx, p.client, "devnet_getAccountBalance", map[string]any{
		"address":  address,
		"unit":     unit,
		"block_id": blockID,
	})
	if err != nil {
		return nil, err
	}

	amount, err := parseBigInt(raw.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}
	return &AccountBalance{Amount: amount, Unit: raw.Unit}, nil
}

// GetConfig returns the configuration the Devnet was started with.
func (p *Provider) GetConfig(ctx context.Context) (map[string]any, error) {
	return rpc.Call[map[string]any](ctx, p.client, "devnet_getConfig", nil)
}

// CreateBlock closes the pending block.
func (p *Provider) CreateBlock(ctx context.Context) (*NewBlockResponse, error) {
	return callPtr[NewBlockResponse](ctx, p.client, "devnet_createBlock", nil)
}

// AbortBlocks aborts every block from startingBlock (inclusive) to the head.
func (p *Provider) AbortBlocks(ctx context.Context, startingBlock BlockID) (*AbortedBlocksResponse, error) {
	blockID, err := startingBlock.ToRPC()
	if err != nil {
		return nil, err
	}
	return callPtr[AbortedBlocksResponse](ctx, p.client, "devnet_abortBlocks", map[string]any{
		"starting_block_id": blockID,
	})
}

// SetTime sets the time of the next block, in unix seconds.
func (p *Provider) SetTime(ctx context.Context, time uint64, generateBlock bool) (*SetTimeResponse, error) {
	return callPtr[SetTimeResponse](ctx, p.client, "devnet_setTime", map[string]any{
		"time":           time,
		"generate_block": generateBlock,
	})
}

// IncreaseTime moves time forward by seconds and creates a block.
func (p *Provider) IncreaseTime(ctx context.Context, seconds uint64) (*IncreaseTimeResponse, error) {
	return callPtr[IncreaseTimeResponse](ctx, p.client, "devnet_increaseTime", map[string]uint64{
		"time": seconds,
	})
}

// GetTime returns the timestamp of the latest block, in unix seconds.
func (p *Provider) GetTime(ctx context.Context) (uint64, error) {
	block, err := rpc.Call[struct {
		Timestamp uint64 `json:"timestamp"`
	}](ctx, p.client, "starknet_getBlockWithTxHashes", map[string]any{
		"block_id": string(BlockTagLatest),
	})
	if err != nil {
		return 0, err
	}
	return block.Timestamp, nil
}

// Dump serializes the Devnet state to path. An empty path uses the dump path
// Devnet was started with.
func (p *Provider) Dump(ctx context.Context, path string) error {
	params := map[string]string{}
	if path != "" {
		params["path"] = path
	}
	_, err := p.client.SendRequest(ctx, "devnet_dump", params)
	return err
}

// Load replaces the Devnet state with the one dumped at path.
func (p *Provider) Load(ctx context.Context, path string) error {
	_, err := p.client.SendRequest(ctx, "devnet_load", map[string]string{"path": path})
	return err
}

// SetGasPrices changes the gas prices of the next block and returns the prices in effect.
func (p *Provider) SetGasPrices(ctx context.Context, prices GasPrices, generateBlock bool) (*GasPrices, error) {
	// *big.Int marshals as a JSON number, so large prices keep full precision.
	params := struct {
		GasPriceFri     *big.Int `json:"gas_price_fri,omitempty"`
		DataGasPriceFri *big.Int `json:"data_gas_price_fri,omitempty"`
		L2GasPriceFri   *big.Int `json:"l2_gas_price_fri,omitempty"`
		GenerateBlock   bool     `json:"generate_block"`
	}{prices.L1GasPrice, prices.L1DataGasPrice, prices.L2GasPrice, generateBlock}

	raw, err := rpc.Call[map[string]json.RawMessage](ctx, p.client, "devnet_setGasPrice", params)
	if err != nil {
		return nil, err
	}

	result := &GasPrices{}
	for key, target := range map[string]**big.Int{
		"gas_price_fri":      &result.L1GasPrice,
		"data_gas_price_fri": &result.L1DataGasPrice,
		"l2_gas_price_fri":   &result.L2GasPrice,
	} {
		value, err := parseBigInt(raw[key])
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", key, err)
		}
		*target = value
	}
	return result, nil
}

func callPtr[T any](ctx context.Context, client *rpc.Client, method string, params any) (*T, error) {
	result, err := rpc.Call[T](ctx, client, method, params)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

