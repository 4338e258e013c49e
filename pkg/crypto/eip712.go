package crypto

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// EIP712Domain represents the domain separator for EIP-712 typed data.
// VerifyingContract is the exchange address, so a signature witnesses a
// transaction for exactly one exchange on one chain.
type EIP712Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// InvocationEIP712 is the typed data a wallet signs to witness a transaction
type InvocationEIP712 struct {
	Operation   string      // "deposit", "create", "accept", "remove", ...
	ArgsHash    common.Hash // keccak256 of the RLP-encoded argument list
	OutputsHash common.Hash // keccak256 of the RLP-encoded native outputs
	Nonce       *big.Int    // sender-chosen, makes identical invocations distinct
}

// EIP712Signer hashes and signs invocations under a fixed domain
type EIP712Signer struct {
	domain EIP712Domain
}

// NewEIP712Signer creates a new EIP-712 signer with given domain
func NewEIP712Signer(domain EIP712Domain) *EIP712Signer {
	return &EIP712Signer{domain: domain}
}

// DefaultDomain returns the devnet domain for the exchange at the given address
func DefaultDomain(exchange common.Address) EIP712Domain {
	return EIP712Domain{
		Name:              "TokenSwap",
		Version:           "1",
		ChainID:           big.NewInt(1337), // Local dev chain
		VerifyingContract: exchange,
	}
}

// Domain returns the signer's domain
func (e *EIP712Signer) Domain() EIP712Domain { return e.domain }

var invocationTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Invocation": []apitypes.Type{
		{Name: "operation", Type: "string"},
		{Name: "argsHash", Type: "bytes32"},
		{Name: "outputsHash", Type: "bytes32"},
		{Name: "nonce", Type: "uint256"},
	},
}

func (e *EIP712Signer) typedData(inv *InvocationEIP712) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       invocationTypes,
		PrimaryType: "Invocation",
		Domain: apitypes.TypedDataDomain{
			Name:              e.domain.Name,
			Version:           e.domain.Version,
			ChainId:           (*math.HexOrDecimal256)(e.domain.ChainID),
			VerifyingContract: e.domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"operation":   inv.Operation,
			"argsHash":    inv.ArgsHash.Hex(),
			"outputsHash": inv.OutputsHash.Hex(),
			"nonce":       inv.Nonce.String(),
		},
	}
}

// HashInvocation returns the EIP-712 digest of an invocation. The digest is
// also the transaction hash the exchange sees.
func (e *EIP712Signer) HashInvocation(inv *InvocationEIP712) (common.Hash, error) {
	if inv.Nonce == nil {
		return common.Hash{}, fmt.Errorf("missing nonce")
	}
	typedData := e.typedData(inv)

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash domain: %w", err)
	}

	typedDataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash message: %w", err)
	}

	// keccak256("\x19\x01" || domainSeparator || typedDataHash)
	return crypto.Keccak256Hash([]byte("\x19\x01"), domainSeparator, typedDataHash), nil
}

// SignInvocation signs an invocation and returns the signature
func (e *EIP712Signer) SignInvocation(signer *Signer, inv *InvocationEIP712) ([]byte, error) {
	hash, err := e.HashInvocation(inv)
	if err != nil {
		return nil, fmt.Errorf("failed to hash invocation: %w", err)
	}

	signature, err := signer.Sign(hash.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to sign invocation: %w", err)
	}
	return signature, nil
}

// RecoverInvocationSigner recovers the address that signed an invocation
func (e *EIP712Signer) RecoverInvocationSigner(inv *InvocationEIP712, signature []byte) (common.Address, error) {
	hash, err := e.HashInvocation(inv)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to hash invocation: %w", err)
	}
	return RecoverAddress(hash.Bytes(), signature)
}

// InvocationToJSON renders the typed data for eth_signTypedData_v4 wallets
func (e *EIP712Signer) InvocationToJSON(inv *InvocationEIP712) (string, error) {
	jsonBytes, err := json.MarshalIndent(e.typedData(inv), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(jsonBytes), nil
}
