package solana

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

var ErrMissingSigner = errors.New("missing signer")

// AssembleTransaction compiles the instructions into a transaction paid for
// by payer, anchors it to blockhash and signs it with every key in signers.
//
// Each account flagged as a signer in the compiled message must have a key
// in signers, otherwise ErrMissingSigner is returned. Keys for accounts that
// are not signers are rejected. Signers may be given in any order, and the
// same inputs always produce the same bytes.
func AssembleTransaction(payer ed25519.PublicKey, blockhash Blockhash, signers []ed25519.PrivateKey, instructions ...Instruction) (Transaction, error) {
	if len(payer) != ed25519.PublicKeySize {
		return Transaction{}, errors.Errorf("invalid payer size: %d", len(payer))
	}

	tx := NewTransaction(payer, instructions...)
	tx.SetBlockhash(blockhash)

	provided := make(map[string]struct{}, len(signers))
	for _, s := range signers {
		if len(s) != ed25519.PrivateKeySize {
			return Transaction{}, errors.Errorf("invalid signer key size: %d", len(s))
		}
		provided[string(s.Public().(ed25519.PublicKey))] = struct{}{}
	}

	for _, required := range tx.Signers() {
		if _, ok := provided[string(required)]; !ok {
			return Transaction{}, errors.Wrap(ErrMissingSigner, base58.Encode(required))
		}
	}

	if err := tx.Sign(signers...); err != nil {
		return Transaction{}, err
	}

	if size := len(tx.Marshal()); size > MaxTransactionSize {
		return Transaction{}, errors.Errorf("transaction size %d exceeds %d", size, MaxTransactionSize)
	}

	return tx, nil
}
