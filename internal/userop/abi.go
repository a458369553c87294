// Package userop implements the UserOp Bundler (spec.md §4.5): it batches
// validated UserOperations per entry point and assembles the enshrined
// EntryPoint.handleOps transaction the builder inserts into the block.
package userop

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/flashbots/tips/tipstypes"
)

// HandleOpsSelector is the 4-byte selector for
// handleOps(PackedUserOperation[],address) (spec.md §4.5).
var HandleOpsSelector = [4]byte{0x1f, 0xad, 0x94, 0x8c}

// packedUserOp mirrors the ERC-4337 v0.7 PackedUserOperation tuple layout,
// used only to drive go-ethereum's abi.Arguments.Pack — it is never
// constructed from a generated contract binding because none exists in
// the retrieved pack for EntryPoint v0.7.
type packedUserOp struct {
	Sender             common.Address
	Nonce              *big.Int
	InitCode           []byte
	CallData           []byte
	AccountGasLimits   [32]byte
	PreVerificationGas *big.Int
	GasFees            [32]byte
	PaymasterAndData   []byte
	Signature          []byte
}

var packedUserOpComponents = []abi.ArgumentMarshaling{
	{Name: "sender", Type: "address"},
	{Name: "nonce", Type: "uint256"},
	{Name: "initCode", Type: "bytes"},
	{Name: "callData", Type: "bytes"},
	{Name: "accountGasLimits", Type: "bytes32"},
	{Name: "preVerificationGas", Type: "uint256"},
	{Name: "gasFees", Type: "bytes32"},
	{Name: "paymasterAndData", Type: "bytes"},
	{Name: "signature", Type: "bytes"},
}

func handleOpsArguments() (abi.Arguments, error) {
	opsType, err := abi.NewType("tuple[]", "", packedUserOpComponents)
	if err != nil {
		return nil, fmt.Errorf("userop: building PackedUserOperation[] type: %w", err)
	}
	addressType, err := abi.NewType("address", "", nil)
	if err != nil {
		return nil, fmt.Errorf("userop: building address type: %w", err)
	}
	return abi.Arguments{{Type: opsType}, {Type: addressType}}, nil
}

// packUint128Pair bit-packs two values into a single bytes32, hi occupying
// the upper 16 bytes and lo the lower 16, per the v0.7
// accountGasLimits/gasFees layout (spec.md §4.5).
func packUint128Pair(hi, lo *big.Int) [32]byte {
	var out [32]byte
	copy(out[0:16], common.LeftPadBytes(hi.Bytes(), 16))
	copy(out[16:32], common.LeftPadBytes(lo.Bytes(), 16))
	return out
}

func toPackedUserOp(uo *tipstypes.UserOperation) packedUserOp {
	var initCode []byte
	if uo.Factory != nil {
		initCode = append(initCode, uo.Factory.Bytes()...)
		initCode = append(initCode, uo.FactoryData...)
	}

	var paymasterAndData []byte
	if uo.Paymaster != nil {
		paymasterAndData = append(paymasterAndData, uo.Paymaster.Bytes()...)
		paymasterAndData = append(paymasterAndData, common.LeftPadBytes(uo.PaymasterVerificationGasLimit.Bytes(), 16)...)
		paymasterAndData = append(paymasterAndData, common.LeftPadBytes(uo.PaymasterPostOpGasLimit.Bytes(), 16)...)
		paymasterAndData = append(paymasterAndData, uo.PaymasterData...)
	}

	return packedUserOp{
		Sender:             uo.Sender,
		Nonce:              uo.Nonce,
		InitCode:           initCode,
		CallData:           uo.CallData,
		AccountGasLimits:   packUint128Pair(uo.VerificationGasLimit, uo.CallGasLimit),
		PreVerificationGas: uo.PreVerificationGas,
		GasFees:            packUint128Pair(uo.MaxPriorityFeePerGas, uo.MaxFeePerGas),
		PaymasterAndData:   paymasterAndData,
		Signature:          uo.Signature,
	}
}

// PackHandleOps ABI-encodes handleOps(PackedUserOperation[],address)
// calldata for ops against beneficiary, v0.7-packed per spec.md §4.5.
func PackHandleOps(ops []*tipstypes.UserOperation, beneficiary common.Address) ([]byte, error) {
	args, err := handleOpsArguments()
	if err != nil {
		return nil, err
	}

	packed := make([]packedUserOp, len(ops))
	for i, op := range ops {
		packed[i] = toPackedUserOp(op)
	}

	encodedArgs, err := args.Pack(packed, beneficiary)
	if err != nil {
		return nil, fmt.Errorf("userop: packing handleOps arguments: %w", err)
	}

	calldata := make([]byte, 0, len(HandleOpsSelector)+len(encodedArgs))
	calldata = append(calldata, HandleOpsSelector[:]...)
	calldata = append(calldata, encodedArgs...)
	return calldata, nil
}
