// Package bundlersign signs the enshrined handleOps transaction the UserOp
// Bundler submits to the builder. It reuses the teacher's crypto primitives
// (the same go-ethereum crypto.Sign the signature package wraps for the
// X-Flashbots-Signature header) for EIP-155 transaction signing instead of
// request-body signing.
package bundlersign

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer signs bundler transactions with the bundler's hot key
// (BUNDLER_PRIVATE_KEY).
type Signer struct {
	privateKey *ecdsa.PrivateKey
	chainID    *big.Int
}

// New wraps privateKeyHex (no 0x prefix) into a Signer for chainID.
func New(privateKeyHex string, chainID *big.Int) (*Signer, error) {
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("bundlersign: parsing private key: %w", err)
	}
	return &Signer{privateKey: privateKey, chainID: chainID}, nil
}

// Address returns the bundler's sending address.
func (s *Signer) Address() common.Address {
	return crypto.PubkeyToAddress(s.privateKey.PublicKey)
}

// SignTx signs tx with the bundler's key using the London signer for the
// configured chain id.
func (s *Signer) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	signer := types.NewLondonSigner(s.chainID)
	signed, err := types.SignTx(tx, signer, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("bundlersign: signing transaction: %w", err)
	}
	return signed, nil
}
