package transaction

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/uhyunpark/tokenswap/pkg/crypto"
)

// MaxSignatures bounds the witnesses one transaction may carry
const MaxSignatures = 16

// Invocation names an exchange operation and its positional arguments
type Invocation struct {
	Op   string          `json:"op"`
	Args []hexutil.Bytes `json:"args"`
}

// Output is a native asset transfer carried by the transaction. From must
// witness the transaction.
type Output struct {
	From  common.Address `json:"from"`
	Asset common.Hash    `json:"asset"`
	To    common.Address `json:"to"`
	Value *hexutil.Big   `json:"value"`
}

// SignedTransaction is the wire format submitted by wallets:
//
//	{
//	  "op": "create",
//	  "args": ["0x742d...", "0x...", "0x64", ...],
//	  "outputs": [{"from": "0x...", "asset": "0x...", "to": "0x...", "value": "0x64"}],
//	  "nonce": "0x2a",
//	  "signatures": ["0x1234..."]
//	}
//
// Every signature is over the EIP-712 digest of (op, args, outputs, nonce),
// which is also the transaction hash.
type SignedTransaction struct {
	Invocation
	Outputs    []Output        `json:"outputs,omitempty"`
	Nonce      *hexutil.Big    `json:"nonce"`
	Signatures []hexutil.Bytes `json:"signatures"`
}

// New builds an unsigned transaction
func New(op string, args [][]byte, outputs []Output, nonce *big.Int) *SignedTransaction {
	tx := &SignedTransaction{
		Invocation: Invocation{Op: op},
		Outputs:    outputs,
		Nonce:      (*hexutil.Big)(nonce),
	}
	for _, a := range args {
		tx.Args = append(tx.Args, common.CopyBytes(a))
	}
	return tx
}

// RawArgs returns the arguments as plain byte slices
func (tx *SignedTransaction) RawArgs() [][]byte {
	out := make([][]byte, len(tx.Args))
	for i, a := range tx.Args {
		out[i] = a
	}
	return out
}

// ArgsHash is keccak256 of the RLP list of arguments
func (tx *SignedTransaction) ArgsHash() common.Hash {
	enc, _ := rlp.EncodeToBytes(tx.RawArgs())
	return ethcrypto.Keccak256Hash(enc)
}

type rlpOutput struct {
	From  common.Address
	Asset common.Hash
	To    common.Address
	Value *big.Int
}

// OutputsHash is keccak256 of the RLP list of outputs
func (tx *SignedTransaction) OutputsHash() (common.Hash, error) {
	outs := make([]rlpOutput, len(tx.Outputs))
	for i, o := range tx.Outputs {
		outs[i] = rlpOutput{From: o.From, Asset: o.Asset, To: o.To, Value: o.Value.ToInt()}
	}
	enc, err := rlp.EncodeToBytes(outs)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode outputs: %w", err)
	}
	return ethcrypto.Keccak256Hash(enc), nil
}

// ToEIP712 returns the typed data every signature covers
func (tx *SignedTransaction) ToEIP712() (*crypto.InvocationEIP712, error) {
	outputsHash, err := tx.OutputsHash()
	if err != nil {
		return nil, err
	}
	return &crypto.InvocationEIP712{
		Operation:   tx.Op,
		ArgsHash:    tx.ArgsHash(),
		OutputsHash: outputsHash,
		Nonce:       tx.Nonce.ToInt(),
	}, nil
}

// Sign appends the signer's witness
func (tx *SignedTransaction) Sign(eip712 *crypto.EIP712Signer, signer *crypto.Signer) error {
	inv, err := tx.ToEIP712()
	if err != nil {
		return err
	}
	sig, err := eip712.SignInvocation(signer, inv)
	if err != nil {
		return err
	}
	tx.Signatures = append(tx.Signatures, sig)
	return nil
}

// Serialize converts SignedTransaction to JSON bytes
func (tx *SignedTransaction) Serialize() ([]byte, error) {
	return json.Marshal(tx)
}

// Deserialize parses JSON bytes into SignedTransaction
func Deserialize(data []byte) (*SignedTransaction, error) {
	var tx SignedTransaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
	}
	return &tx, nil
}

// Validate performs basic validation on transaction structure
func (tx *SignedTransaction) Validate() error {
	if tx.Op == "" {
		return fmt.Errorf("missing operation")
	}
	if tx.Nonce == nil {
		return fmt.Errorf("missing nonce")
	}
	if tx.Nonce.ToInt().Sign() < 0 || tx.Nonce.ToInt().BitLen() > 256 {
		return fmt.Errorf("nonce out of range")
	}
	for i, o := range tx.Outputs {
		if o.Value == nil || o.Value.ToInt().Sign() <= 0 {
			return fmt.Errorf("output %d: value must be positive", i)
		}
	}
	if len(tx.Signatures) > MaxSignatures {
		return fmt.Errorf("too many signatures: %d > %d", len(tx.Signatures), MaxSignatures)
	}
	for i, sig := range tx.Signatures {
		if len(sig) != crypto.SignatureLength {
			return fmt.Errorf("signature %d must be %d bytes, got %d", i, crypto.SignatureLength, len(sig))
		}
	}
	return nil
}

// ParseTransaction decodes and validates a raw transaction
func ParseTransaction(data []byte) (*SignedTransaction, error) {
	tx, err := Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transaction: %w", err)
	}
	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}
	return tx, nil
}
