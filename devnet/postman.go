package devnet

import (
	"context"
	"math/big"

	"github.com/samber/lo"

	"github.com/tomyedwab/starknet-devnet/rpc"
)

type L1ToL2Message struct {
	L2ContractAddress  string   `json:"l2_contract_address"`
	EntryPointSelector string   `json:"entry_point_selector"`
	L1ContractAddress  string   `json:"l1_contract_address"`
	Payload            []string `json:"payload"`
	PaidFeeOnL1        string   `json:"paid_fee_on_l1"`
	Nonce              string   `json:"nonce"`
}

type L2ToL1Message struct {
	FromAddress string   `json:"from_address"`
	ToAddress   string   `json:"to_address"`
	Payload     []string `json:"payload"`
}

type FlushResponse struct {
	MessagesToL1            []L2ToL1Message `json:"messages_to_l1"`
	MessagesToL2            []L1ToL2Message `json:"messages_to_l2"`
	GeneratedL2Transactions []string        `json:"generated_l2_transactions"`
	L1Provider              string          `json:"l1_provider"`
}

type LoadL1MessagingContractResponse struct {
	MessagingContractAddress string `json:"messaging_contract_address"`
}

type L1ToL2MockTxResponse struct {
	TransactionHash string `json:"transaction_hash"`
}

type L2ToL1MockTxResponse struct {
	MessageHash string `json:"message_hash"`
}

// Postman drives Devnet's L1 <-> L2 message relay.
type Postman struct {
	client *rpc.Client
}

// Flush relays every pending message in both directions. With dryRun set nothing
// is sent to L1 and the messages are only reported.
func (p *Postman) Flush(ctx context.Context, dryRun bool) (*FlushResponse, error) {
	return callPtr[FlushResponse](ctx, p.client, "devnet_postmanFlush", map[string]bool{
		"dry_run": dryRun,
	})
}

// LoadL1MessagingContract connects Devnet to the L1 node at networkURL. An empty address
// deploys a new messaging contract; networkID is optional.
func (p *Postman) LoadL1MessagingContract(ctx context.Context, networkURL, address, networkID string) (*LoadL1MessagingContractResponse, error) {
	params := map[string]string{"network_url": networkURL}
	if address != "" {
		params["address"] = address
	}
	if networkID != "" {
		params["network_id"] = networkID
	}
	return callPtr[LoadL1MessagingContractResponse](ctx, p.client, "devnet_postmanLoad", params)
}

// SendMessageToL2 mocks an L1 transaction sending a message to an L2 contract.
func (p *Postman) SendMessageToL2(ctx context.Context, l2ContractAddress, entryPointSelector, l1ContractAddress string, payload []*big.Int, nonce, paidFeeOnL1 *big.Int) (*L1ToL2MockTxResponse, error) {
	return callPtr[L1ToL2MockTxResponse](ctx, p.client, "devnet_postmanSendMessageToL2", L1ToL2Message{
		L2ContractAddress:  l2ContractAddress,
		EntryPointSelector: entryPointSelector,
		L1ContractAddress:  l1ContractAddress,
		Payload:            hexPayload(payload),
		Nonce:              toHex(nonce),
		PaidFeeOnL1:        toHex(paidFeeOnL1),
	})
}

// ConsumeMessageFromL2 mocks an L1 transaction consuming a message sent from L2.
func (p *Postman) ConsumeMessageFromL2(ctx context.Context, fromAddress, toAddress string, payload []*big.Int) (*L2ToL1MockTxResponse, error) {
	return callPtr[L2ToL1MockTxResponse](ctx, p.client, "devnet_postmanConsumeMessageFromL2", L2ToL1Message{
		FromAddress: fromAddress,
		ToAddress:   toAddress,
		Payload:     hexPayload(payload),
	})
}

func hexPayload(payload []*big.Int) []string {
	return lo.Map(payload, func(v *big.Int, _ int) string {
		return toHex(v)
	})
}
