package tipstypes

import (
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/sha3"
)

// EntryPointVersion distinguishes the ERC-4337 envelope shape: v0.6 uses
// flat gas/fee fields, v0.7 packs them into accountGasLimits/gasFees
// (spec.md §3).
type EntryPointVersion string

const (
	EntryPointV06 EntryPointVersion = "v0.6"
	EntryPointV07 EntryPointVersion = "v0.7"
)

// UserOperation is the decoded ERC-4337 envelope, normalized across the
// v0.6/v0.7 wire shapes. Version is derived at decode time from field
// presence: a v0.7 envelope carries factory/paymaster data split into the
// packed *Data fields instead of v0.6's flat initCode/paymasterAndData.
type UserOperation struct {
	Version EntryPointVersion `json:"version"`

	Sender   common.Address `json:"sender"`
	Nonce    *big.Int       `json:"nonce"`
	CallData hexutil.Bytes  `json:"callData"`
	Signature hexutil.Bytes `json:"signature"`

	// v0.6 flat fields
	InitCode             hexutil.Bytes `json:"initCode,omitempty"`
	CallGasLimit         *big.Int      `json:"callGasLimit,omitempty"`
	VerificationGasLimit *big.Int      `json:"verificationGasLimit,omitempty"`
	PreVerificationGas   *big.Int      `json:"preVerificationGas,omitempty"`
	MaxFeePerGas         *big.Int      `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *big.Int      `json:"maxPriorityFeePerGas,omitempty"`
	PaymasterAndData     hexutil.Bytes `json:"paymasterAndData,omitempty"`

	// v0.7 packed/split fields
	Factory             *common.Address `json:"factory,omitempty"`
	FactoryData         hexutil.Bytes   `json:"factoryData,omitempty"`
	Paymaster           *common.Address `json:"paymaster,omitempty"`
	PaymasterVerificationGasLimit *big.Int `json:"paymasterVerificationGasLimit,omitempty"`
	PaymasterPostOpGasLimit       *big.Int `json:"paymasterPostOpGasLimit,omitempty"`
	PaymasterData       hexutil.Bytes   `json:"paymasterData,omitempty"`

	EntryPoint common.Address `json:"entryPoint"`
}

// userOperationWire is the raw wire shape used to sniff v0.6 vs v0.7 by
// field presence at decode time (spec.md §3).
type userOperationWire struct {
	Sender               common.Address  `json:"sender"`
	Nonce                *hexutil.Big    `json:"nonce"`
	CallData             hexutil.Bytes   `json:"callData"`
	Signature            hexutil.Bytes   `json:"signature"`
	InitCode             hexutil.Bytes   `json:"initCode"`
	CallGasLimit         *hexutil.Big    `json:"callGasLimit"`
	VerificationGasLimit *hexutil.Big    `json:"verificationGasLimit"`
	PreVerificationGas   *hexutil.Big    `json:"preVerificationGas"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas"`
	PaymasterAndData     hexutil.Bytes   `json:"paymasterAndData"`

	Factory                       *common.Address `json:"factory"`
	FactoryData                   hexutil.Bytes   `json:"factoryData"`
	Paymaster                     *common.Address `json:"paymaster"`
	PaymasterVerificationGasLimit *hexutil.Big    `json:"paymasterVerificationGasLimit"`
	PaymasterPostOpGasLimit       *hexutil.Big    `json:"paymasterPostOpGasLimit"`
	PaymasterData                 hexutil.Bytes   `json:"paymasterData"`
}

func bigOrZero(v *hexutil.Big) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return (*big.Int)(v)
}

// DecodeUserOperation decodes a UserOperation envelope, distinguishing
// v0.6 from v0.7 by the presence of the v0.7-only fields (factory,
// paymaster, or any of the packed paymaster gas limits).
func DecodeUserOperation(raw json.RawMessage, entryPoint common.Address) (*UserOperation, error) {
	var wire userOperationWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, ErrDecoding
	}

	uo := &UserOperation{
		Sender:               wire.Sender,
		Nonce:                bigOrZero(wire.Nonce),
		CallData:             wire.CallData,
		Signature:            wire.Signature,
		CallGasLimit:         bigOrZero(wire.CallGasLimit),
		VerificationGasLimit: bigOrZero(wire.VerificationGasLimit),
		PreVerificationGas:   bigOrZero(wire.PreVerificationGas),
		MaxFeePerGas:         bigOrZero(wire.MaxFeePerGas),
		MaxPriorityFeePerGas: bigOrZero(wire.MaxPriorityFeePerGas),
		EntryPoint:           entryPoint,
	}

	isV07 := wire.Factory != nil || wire.Paymaster != nil ||
		wire.PaymasterVerificationGasLimit != nil || wire.PaymasterPostOpGasLimit != nil

	if isV07 {
		uo.Version = EntryPointV07
		uo.Factory = wire.Factory
		uo.FactoryData = wire.FactoryData
		uo.Paymaster = wire.Paymaster
		uo.PaymasterVerificationGasLimit = bigOrZero(wire.PaymasterVerificationGasLimit)
		uo.PaymasterPostOpGasLimit = bigOrZero(wire.PaymasterPostOpGasLimit)
		uo.PaymasterData = wire.PaymasterData
	} else {
		uo.Version = EntryPointV06
		uo.InitCode = wire.InitCode
		uo.PaymasterAndData = wire.PaymasterAndData
	}

	return uo, nil
}

// Hash computes the canonical 32-byte userOpHash used as the event-log
// key (spec.md §3): keccak over sender, the 32-byte nonce, callData,
// entryPoint and the 32-byte chainId. It is not the EntryPoint contract's
// getUserOpHash, which also covers the gas, fee, initCode and paymaster
// fields.
func (uo *UserOperation) Hash(chainID *big.Int) common.Hash {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(uo.Sender.Bytes())
	hasher.Write(common.LeftPadBytes(uo.Nonce.Bytes(), 32))
	hasher.Write(uo.CallData)
	hasher.Write(uo.EntryPoint.Bytes())
	hasher.Write(common.LeftPadBytes(chainID.Bytes(), 32))
	return common.BytesToHash(hasher.Sum(nil))
}
