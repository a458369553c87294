package tipstypes_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/flashbots/tips/tipstypes"
	"github.com/stretchr/testify/require"
)

const v06Wire = `{
	"sender": "0x0000000000000000000000000000000000000001",
	"nonce": "0x1",
	"initCode": "0x",
	"callData": "0x1234",
	"callGasLimit": "0x5208",
	"verificationGasLimit": "0x5208",
	"preVerificationGas": "0x5208",
	"maxFeePerGas": "0x1",
	"maxPriorityFeePerGas": "0x1",
	"paymasterAndData": "0x",
	"signature": "0x"
}`

const v07Wire = `{
	"sender": "0x0000000000000000000000000000000000000001",
	"nonce": "0x1",
	"callData": "0x1234",
	"callGasLimit": "0x5208",
	"verificationGasLimit": "0x5208",
	"preVerificationGas": "0x5208",
	"maxFeePerGas": "0x1",
	"maxPriorityFeePerGas": "0x1",
	"paymaster": "0x0000000000000000000000000000000000000002",
	"paymasterVerificationGasLimit": "0x5208",
	"paymasterPostOpGasLimit": "0x5208",
	"paymasterData": "0x",
	"signature": "0x"
}`

func TestDecodeUserOperation_V06(t *testing.T) {
	entryPoint := common.HexToAddress("0xEP")
	uo, err := tipstypes.DecodeUserOperation([]byte(v06Wire), entryPoint)
	require.NoError(t, err)
	require.Equal(t, tipstypes.EntryPointV06, uo.Version)
	require.Nil(t, uo.Paymaster)
}

func TestDecodeUserOperation_V07(t *testing.T) {
	entryPoint := common.HexToAddress("0xEP")
	uo, err := tipstypes.DecodeUserOperation([]byte(v07Wire), entryPoint)
	require.NoError(t, err)
	require.Equal(t, tipstypes.EntryPointV07, uo.Version)
	require.NotNil(t, uo.Paymaster)
}

func TestUserOperationHash_Deterministic(t *testing.T) {
	entryPoint := common.HexToAddress("0xEP")
	uo1, err := tipstypes.DecodeUserOperation([]byte(v06Wire), entryPoint)
	require.NoError(t, err)
	uo2, err := tipstypes.DecodeUserOperation([]byte(v06Wire), entryPoint)
	require.NoError(t, err)

	chainID := big.NewInt(8453)
	require.Equal(t, uo1.Hash(chainID), uo2.Hash(chainID))
}
