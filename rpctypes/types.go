// Package rpctypes implement types commonly used in the Flashbots codebase for receiving and senging requests
package rpctypes

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Note on optional Signer field:
// * when receiving from Flashbots or other builders this field should be set
// * otherwise its set from the request signature by orderflow proxy
//   in this case it can be empty! @should we prohibit that?

// eth_sendBundle

type EthSendBundleArgs struct {
	Txs               []hexutil.Bytes `json:"txs"`
	BlockNumber       *hexutil.Uint64 `json:"blockNumber"`
	MinTimestamp      *uint64         `json:"minTimestamp,omitempty"`
	MaxTimestamp      *uint64         `json:"maxTimestamp,omitempty"`
	RevertingTxHashes []common.Hash   `json:"revertingTxHashes,omitempty"`
	ReplacementUUID   *string         `json:"replacementUuid,omitempty"`
	Version           *string         `json:"version,omitempty"`

	// fields available only when receiving from the Flashbots or other builders, not users
	ReplacementNonce *uint64         `json:"replacementNonce,omitempty"`
	SigningAddress   *common.Address `json:"signingAddress,omitempty"`

	DroppingTxHashes []common.Hash   `json:"droppingTxHashes,omitempty"` // not supported (from beaverbuild)
	UUID             *string         `json:"uuid,omitempty"`             // not supported (from beaverbuild)
	RefundPercent    *uint64         `json:"refundPercent,omitempty"`    // not supported (from beaverbuild)
	RefundRecipient  *common.Address `json:"refundRecipient,omitempty"`  // not supported (from beaverbuild)
	RefundTxHashes   []string        `json:"refundTxHashes,omitempty"`   // not supported (from titanbuilder)
}

// eth_sendRawTransaction

type EthSendRawTransactionArgs hexutil.Bytes

func (tx EthSendRawTransactionArgs) MarshalText() ([]byte, error) {
	return hexutil.Bytes(tx).MarshalText()
}

func (tx *EthSendRawTransactionArgs) UnmarshalJSON(input []byte) error {
	return (*hexutil.Bytes)(tx).UnmarshalJSON(input)
}

func (tx *EthSendRawTransactionArgs) UnmarshalText(input []byte) error {
	return (*hexutil.Bytes)(tx).UnmarshalText(input)
}

// eth_cancelBundle

type EthCancelBundleArgs struct {
	ReplacementUUID string          `json:"replacementUuid"`
	SigningAddress  *common.Address `json:"signingAddress"`
}
