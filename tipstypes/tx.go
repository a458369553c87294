package tipstypes

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Tx is the canonical attributes TIPS derives from a signed transaction
// envelope without re-signing it. The envelope itself is kept opaque
// (spec.md §3) — TIPS never reconstructs or re-encodes it, only forwards
// the bytes it received.
type Tx struct {
	Raw     []byte         `json:"raw"`
	Hash    common.Hash    `json:"hash"`
	Sender  common.Address `json:"sender"`
	Nonce   uint64         `json:"nonce"`
	ChainID *big.Int       `json:"chainId"`
	Gas     uint64         `json:"gas"`
}

// DecodeTx decodes a raw signed transaction envelope and derives the
// attributes needed for admission (hash, sender, nonce, chain id, gas)
// without requiring the caller to re-sign or re-serialize anything.
func DecodeTx(raw []byte) (*Tx, error) {
	var tx types.Transaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, ErrDecoding
	}

	chainID := tx.ChainId()
	signer := types.LatestSignerForChainID(chainID)
	sender, err := types.Sender(signer, &tx)
	if err != nil {
		return nil, ErrDecoding
	}

	return &Tx{
		Raw:     raw,
		Hash:    tx.Hash(),
		Sender:  sender,
		Nonce:   tx.Nonce(),
		ChainID: chainID,
		Gas:     tx.Gas(),
	}, nil
}
