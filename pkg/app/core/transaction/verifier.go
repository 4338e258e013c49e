package transaction

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/tokenswap/pkg/crypto"
)

// WitnessSet is the set of addresses that signed a transaction
type WitnessSet map[common.Address]struct{}

// CheckWitness reports whether addr signed the transaction
func (w WitnessSet) CheckWitness(addr common.Address) bool {
	_, ok := w[addr]
	return ok
}

// Addresses lists the signers in no particular order
func (w WitnessSet) Addresses() []common.Address {
	out := make([]common.Address, 0, len(w))
	for a := range w {
		out = append(out, a)
	}
	return out
}

// Verifier handles transaction signature verification
type Verifier struct {
	eip712Signer *crypto.EIP712Signer
}

// NewVerifier creates a new transaction verifier
func NewVerifier(domain crypto.EIP712Domain) *Verifier {
	return &Verifier{eip712Signer: crypto.NewEIP712Signer(domain)}
}

// Signer returns the EIP-712 signer bound to the verifier's domain
func (v *Verifier) Signer() *crypto.EIP712Signer { return v.eip712Signer }

// Hash returns the transaction hash, the EIP-712 digest every witness signs
func (v *Verifier) Hash(tx *SignedTransaction) (common.Hash, error) {
	inv, err := tx.ToEIP712()
	if err != nil {
		return common.Hash{}, err
	}
	return v.eip712Signer.HashInvocation(inv)
}

// Witnesses recovers every signer of tx. A single unrecoverable signature
// fails the whole transaction.
func (v *Verifier) Witnesses(tx *SignedTransaction) (WitnessSet, common.Hash, error) {
	hash, err := v.Hash(tx)
	if err != nil {
		return nil, common.Hash{}, fmt.Errorf("failed to hash transaction: %w", err)
	}

	set := make(WitnessSet, len(tx.Signatures))
	for i, sig := range tx.Signatures {
		addr, err := crypto.RecoverAddress(hash.Bytes(), sig)
		if err != nil {
			return nil, common.Hash{}, fmt.Errorf("signature %d: %w", i, err)
		}
		set[addr] = struct{}{}
	}
	return set, hash, nil
}
