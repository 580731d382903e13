package devnet

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// BalanceUnit is the currency a balance is denominated in.
type BalanceUnit string

const (
	UnitWEI BalanceUnit = "WEI"
	UnitFRI BalanceUnit = "FRI"
)

// DefaultMintUnit is used by Mint when no unit is given.
const DefaultMintUnit = UnitFRI

// PredeployedAccount is an account Devnet deploys and funds on startup.
type PredeployedAccount struct {
	Address        string `json:"address"`
	PrivateKey     string `json:"private_key"`
	PublicKey      string `json:"public_key"`
	InitialBalance string `json:"initial_balance"`
	// Balance is only filled when requested, keyed by token ("eth", "strk").
	Balance map[string]PredeployedBalance `json:"balance,omitempty"`
}

type PredeployedBalance struct {
	Amount string      `json:"amount"`
	Unit   BalanceUnit `json:"unit"`
}

type MintResponse struct {
	NewBalance *big.Int
	Unit       BalanceUnit
	TxHash     string
}

type AccountBalance struct {
	Amount *big.Int
	Unit   BalanceUnit
}

type NewBlockResponse struct {
	BlockHash string `json:"block_hash"`
}

type AbortedBlocksResponse struct {
	Aborted []string `json:"aborted"`
}

type SetTimeResponse struct {
	BlockTimestamp uint64 `json:"block_timestamp"`
	BlockHash      string `json:"block_hash,omitempty"`
}

type IncreaseTimeResponse struct {
	TimestampIncreasedBy uint64 `json:"timestamp_increased_by"`
	BlockHash            string `json:"block_hash"`
}

// GasPrices are denominated in FRI. Nil fields are left unchanged by SetGasPrices.
type GasPrices struct {
	L1GasPrice     *big.Int
	L1DataGasPrice *big.Int
	L2GasPrice     *big.Int
}

// parseBigInt accepts a JSON number or a JSON string holding a decimal or 0x-prefixed integer.
func parseBigInt(raw json.RawMessage) (*big.Int, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return nil, nil
	}
	text = strings.Trim(text, `"`)
	value, ok := new(big.Int).SetString(text, 0)
	if !ok {
		return nil, fmt.Errorf("invalid integer %s", string(raw))
	}
	return value, nil
}

// toHex renders v the way Devnet expects felts in message payloads.
func toHex(v *big.Int) string {
	if v == nil {
		return "0x0"
	}
	return "0x" + v.Text(16)
}
