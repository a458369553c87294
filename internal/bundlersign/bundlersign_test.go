package bundlersign_test

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/flashbots/tips/internal/bundlersign"
	"github.com/stretchr/testify/require"
)

func TestSignTx(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := hex.EncodeToString(crypto.FromECDSA(key))

	chainID := big.NewInt(8453)
	signer, err := bundlersign.New(hexKey, chainID)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), signer.Address())

	to := common.HexToAddress("0x000000000000000000000000000000000000e0")
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     0,
		GasFeeCap: big.NewInt(1),
		GasTipCap: big.NewInt(1),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(0),
	})

	signed, err := signer.SignTx(tx)
	require.NoError(t, err)

	sender, err := types.Sender(types.NewLondonSigner(chainID), signed)
	require.NoError(t, err)
	require.Equal(t, signer.Address(), sender)
}

func TestNew_InvalidKey(t *testing.T) {
	_, err := bundlersign.New("not-hex", big.NewInt(1))
	require.Error(t, err)
}
