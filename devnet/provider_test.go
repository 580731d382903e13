package devnet

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomyedwab/starknet-devnet/rpc"
)

func TestNewProviderDefaults(t *testing.T) {
	provider := NewProvider("")
	assert.Equal(t, "http://127.0.0.1:5050", provider.URL())
	assert.Equal(t, DefaultHTTPTimeout, provider.RPC().Timeout())

	provider = NewProvider("http://localhost:1234", rpc.WithTimeout(time.Minute))
	assert.Equal(t, time.Minute, provider.RPC().Timeout())
}

func TestProviderIsAlive(t *testing.T) {
	server := newRecordingServer(t, nil)
	assert.True(t, NewProvider(server.URL).IsAlive(context.Background()))

	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := closed.URL
	closed.Close()
	assert.False(t, NewProvider(url).IsAlive(context.Background()))
}

func TestProviderMintKeepsPrecision(t *testing.T) {
	server := newRecordingServer(t, map[string]string{
		"devnet_mint": `{"new_balance":"340282366920938463463374607431768211456","unit":"FRI","tx_hash":"0xabc"}`,
	})
	provider := NewProvider(server.URL)

	amount, ok := new(big.Int).SetString("340282366920938463463374607431768211456", 10)
	require.True(t, ok)

	resp, err := provider.Mint(context.Background(), "0x1", amount, "")
	require.NoError(t, err)
	assert.Equal(t, 0, amount.Cmp(resp.NewBalance))
	assert.Equal(t, UnitFRI, resp.Unit)
	assert.Equal(t, "0xabc", resp.TxHash)

	req := server.last(t)
	assert.Equal(t, "devnet_mint", req.Method)
	assert.JSONEq(t, `{"address":"0x1","amount":340282366920938463463374607431768211456,"unit":"FRI"}`, string(req.Params))
	assert.Contains(t, string(req.Params), "340282366920938463463374607431768211456")
}

func TestProviderMintNumericBalance(t *testing.T) {
	server := newRecordingServer(t, map[string]string{
		"devnet_mint": `{"new_balance":1000,"unit":"WEI","tx_hash":"0x1"}`,
	})

	resp, err := NewProvider(server.URL).Mint(context.Background(), "0x1", big.NewInt(1000), UnitWEI)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), resp.NewBalance.Int64())
	assert.Contains(t, string(server.last(t).Params), `"WEI"`)

	_, err = NewProvider(server.URL).Mint(context.Background(), "0x1", nil, UnitWEI)
	assert.Error(t, err)
}

func TestProviderRequests(t *testing.T) {
	server := newRecordingServer(t, map[string]string{
		"devnet_createBlock":            `{"block_hash":"0x5"}`,
		"devnet_abortBlocks":            `{"aborted":["0x5","0x4"]}`,
		"devnet_setTime":                `{"block_timestamp":1700000000,"block_hash":"0x6"}`,
		"devnet_increaseTime":           `{"timestamp_increased_by":100,"block_hash":"0x7"}`,
		"devnet_getAccountBalance":      `{"amount":"0x10","unit":"WEI"}`,
		"devnet_getConfig":              `{"seed":42,"total_accounts":3}`,
		"starknet_getBlockWithTxHashes": `{"timestamp":1700000100,"block_number":7}`,
	})
	provider := NewProvider(server.URL)
	ctx := context.Background()

	block, err := provider.CreateBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0x5", block.BlockHash)
	assert.JSONEq(t, `{}`, string(server.last(t).Params))

	aborted, err := provider.AbortBlocks(ctx, BlockHash("0x4"))
	require.NoError(t, err)
	assert.Equal(t, []string{"0x5", "0x4"}, aborted.Aborted)
	assert.JSONEq(t, `{"starting_block_id":{"block_hash":"0x4"}}`, string(server.last(t).Params))

	_, err = provider.AbortBlocks(ctx, BlockHash("nope"))
	assert.ErrorContains(t, err, "Invalid block ID")

	setTime, err := provider.SetTime(ctx, 1700000000, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(1700000000), setTime.BlockTimestamp)
	assert.JSONEq(t, `{"time":1700000000,"generate_block":true}`, string(server.last(t).Params))

	increased, err := provider.IncreaseTime(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), increased.TimestampIncreasedBy)
	assert.JSONEq(t, `{"time":100}`, string(server.last(t).Params))

	balance, err := provider.GetAccountBalance(ctx, "0x1", UnitWEI, BlockNumber(3))
	require.NoError(t, err)
	assert.Equal(t, int64(16), balance.Amount.Int64())
	assert.JSONEq(t, `{"address":"0x1","unit":"WEI","block_id":{"block_number":3}}`, string(server.last(t).Params))

	_, err = provider.GetAccountBalance(ctx, "0x1", "", BlockID{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"address":"0x1","unit":"FRI","block_id":"latest"}`, string(server.last(t).Params))

	config, err := provider.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(42), config["seed"])

	now, err := provider.GetTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1700000100), now)
	assert.JSONEq(t, `{"block_id":"latest"}`, string(server.last(t).Params))

	require.NoError(t, provider.Restart(ctx, true))
	req := server.last(t)
	assert.Equal(t, "devnet_restart", req.Method)
	assert.JSONEq(t, `{"restart_l1_to_l2_messaging":true}`, string(req.Params))

	require.NoError(t, provider.Dump(ctx, ""))
	assert.JSONEq(t, `{}`, string(server.last(t).Params))
	require.NoError(t, provider.Dump(ctx, "/tmp/dump.json"))
	assert.JSONEq(t, `{"path":"/tmp/dump.json"}`, string(server.last(t).Params))
	require.NoError(t, provider.Load(ctx, "/tmp/dump.json"))
	req = server.last(t)
	assert.Equal(t, "devnet_load", req.Method)
	assert.JSONEq(t, `{"path":"/tmp/dump.json"}`, string(req.Params))
}

func TestProviderSetGasPrices(t *testing.T) {
	server := newRecordingServer(t, map[string]string{
		"devnet_setGasPrice": `{"gas_price_fri":1000000000000000000000,"data_gas_price_fri":"0x2","l2_gas_price_fri":3}`,
	})
	provider := NewProvider(server.URL)

	huge, _ := new(big.Int).SetString("1000000000000000000000", 10)
	prices, err := provider.SetGasPrices(context.Background(), GasPrices{L1GasPrice: huge, L2GasPrice: big.NewInt(3)}, true)
	require.NoError(t, err)

	assert.JSONEq(t, `{"gas_price_fri":1000000000000000000000,"l2_gas_price_fri":3,"generate_block":true}`, string(server.last(t).Params))
	assert.Equal(t, 0, huge.Cmp(prices.L1GasPrice))
	assert.Equal(t, int64(2), prices.L1DataGasPrice.Int64())
	assert.Equal(t, int64(3), prices.L2GasPrice.Int64())
}

func TestPostmanRequests(t *testing.T) {
	server := newRecordingServer(t, map[string]string{
		"devnet_postmanFlush":                `{"messages_to_l1":[],"messages_to_l2":[],"generated_l2_transactions":["0x9"],"l1_provider":"dry run"}`,
		"devnet_postmanLoad":                 `{"messaging_contract_address":"0xe7f1"}`,
		"devnet_postmanSendMessageToL2":      `{"transaction_hash":"0xaa"}`,
		"devnet_postmanConsumeMessageFromL2": `{"message_hash":"0xbb"}`,
	})
	postman := NewProvider(server.URL).Postman
	ctx := context.Background()

	flushed, err := postman.Flush(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"0x9"}, flushed.GeneratedL2Transactions)
	assert.JSONEq(t, `{"dry_run":true}`, string(server.last(t).Params))

	loaded, err := postman.LoadL1MessagingContract(ctx, "http://127.0.0.1:8545", "", "")
	require.NoError(t, err)
	assert.Equal(t, "0xe7f1", loaded.MessagingContractAddress)
	assert.JSONEq(t, `{"network_url":"http://127.0.0.1:8545"}`, string(server.last(t).Params))

	_, err = postman.LoadL1MessagingContract(ctx, "http://127.0.0.1:8545", "0x1", "31337")
	require.NoError(t, err)
	assert.JSONEq(t, `{"network_url":"http://127.0.0.1:8545","address":"0x1","network_id":"31337"}`, string(server.last(t).Params))

	sent, err := postman.SendMessageToL2(ctx, "0x2", "0x3", "0x4", []*big.Int{big.NewInt(10), big.NewInt(255)}, big.NewInt(0), big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, "0xaa", sent.TransactionHash)
	assert.JSONEq(t, `{
		"l2_contract_address":"0x2",
		"entry_point_selector":"0x3",
		"l1_contract_address":"0x4",
		"payload":["0xa","0xff"],
		"nonce":"0x0",
		"paid_fee_on_l1":"0x1"
	}`, string(server.last(t).Params))

	consumed, err := postman.ConsumeMessageFromL2(ctx, "0x2", "0x4", []*big.Int{big.NewInt(16)})
	require.NoError(t, err)
	assert.Equal(t, "0xbb", consumed.MessageHash)
	assert.JSONEq(t, `{"from_address":"0x2","to_address":"0x4","payload":["0x10"]}`, string(server.last(t).Params))
}

func TestCheatsRequests(t *testing.T) {
	server := newRecordingServer(t, nil)
	cheats := NewProvider(server.URL).Cheats
	ctx := context.Background()

	require.NoError(t, cheats.ImpersonateAccount(ctx, "0x1"))
	req := server.last(t)
	assert.Equal(t, "devnet_impersonateAccount", req.Method)
	assert.JSONEq(t, `{"account_address":"0x1"}`, string(req.Params))

	require.NoError(t, cheats.StopImpersonateAccount(ctx, "0x1"))
	assert.Equal(t, "devnet_stopImpersonateAccount", server.last(t).Method)

	require.NoError(t, cheats.AutoImpersonate(ctx))
	req = server.last(t)
	assert.Equal(t, "devnet_autoImpersonate", req.Method)
	assert.JSONEq(t, `{}`, string(req.Params))

	require.NoError(t, cheats.StopAutoImpersonate(ctx))
	assert.Equal(t, "devnet_stopAutoImpersonate", server.last(t).Method)
}
