package crypto

import (
	"bytes"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	eth_crypto "github.com/ethereum/go-ethereum/crypto"
)

func TestGenerateKey(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	if signer.Address() == (common.Address{}) {
		t.Error("generated zero address")
	}

	// 32 bytes
	if len(signer.PrivateKeyHex()) != 64 {
		t.Errorf("private key hex length = %d, want 64", len(signer.PrivateKeyHex()))
	}
}

func TestFromPrivateKeyHex(t *testing.T) {
	signer1, _ := GenerateKey()
	privHex := signer1.PrivateKeyHex()

	for _, in := range []string{privHex, "0x" + privHex, "0X" + strings.ToUpper(privHex)} {
		signer2, err := FromPrivateKeyHex(in)
		if err != nil {
			t.Fatalf("failed to load key %q: %v", in, err)
		}
		if signer2.Address() != signer1.Address() {
			t.Errorf("address = %s, want %s", signer2.Address().Hex(), signer1.Address().Hex())
		}
	}

	if _, err := FromPrivateKeyHex("0x1234"); err == nil {
		t.Error("short key should not load")
	}
}

func TestSignAndVerify(t *testing.T) {
	signer, _ := GenerateKey()
	hash := eth_crypto.Keccak256Hash([]byte("swap 100 for 50")).Bytes()

	signature, err := signer.Sign(hash)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	if len(signature) != SignatureLength {
		t.Errorf("signature length = %d, want %d", len(signature), SignatureLength)
	}

	if !VerifySignature(signer.Address(), hash, signature) {
		t.Error("signature verification failed")
	}

	wrongAddr := common.HexToAddress("0x0000000000000000000000000000000000000001")
	if VerifySignature(wrongAddr, hash, signature) {
		t.Error("signature should not verify with wrong address")
	}

	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		t.Fatalf("failed to recover address: %v", err)
	}
	if recovered != signer.Address() {
		t.Errorf("recovered address = %s, want %s", recovered.Hex(), signer.Address().Hex())
	}

	if _, err := signer.Sign([]byte("not a digest")); err == nil {
		t.Error("signing a non-32-byte hash should fail")
	}
}

func TestInvalidSignature(t *testing.T) {
	signer, _ := GenerateKey()
	hash := common.BytesToHash([]byte("test")).Bytes()

	if VerifySignature(signer.Address(), hash, []byte{1, 2, 3}) {
		t.Error("invalid signature should not verify")
	}
	if _, err := RecoverAddress([]byte("short"), make([]byte, SignatureLength)); err == nil {
		t.Error("invalid hash should not recover")
	}
	if _, err := RecoverAddress(hash, make([]byte, SignatureLength)); err == nil {
		t.Error("zero signature should not recover")
	}
}

func TestGenerateNonce(t *testing.T) {
	nonce1, err := GenerateNonce(16)
	if err != nil {
		t.Fatalf("failed to generate nonce: %v", err)
	}
	nonce2, err := GenerateNonce(16)
	if err != nil {
		t.Fatalf("failed to generate second nonce: %v", err)
	}

	if len(nonce1) != 16 {
		t.Errorf("nonce length = %d, want 16", len(nonce1))
	}
	if bytes.Equal(nonce1, nonce2) {
		t.Error("generated identical nonces")
	}
}

func testInvocation() *InvocationEIP712 {
	return &InvocationEIP712{
		Operation:   "create",
		ArgsHash:    eth_crypto.Keccak256Hash([]byte("args")),
		OutputsHash: eth_crypto.Keccak256Hash([]byte("outputs")),
		Nonce:       big.NewInt(42),
	}
}

func TestInvocationSignAndRecover(t *testing.T) {
	signer, _ := GenerateKey()
	eip712 := NewEIP712Signer(DefaultDomain(common.HexToAddress("0xe8c4a4e")))
	inv := testInvocation()

	sig, err := eip712.SignInvocation(signer, inv)
	if err != nil {
		t.Fatalf("failed to sign invocation: %v", err)
	}

	recovered, err := eip712.RecoverInvocationSigner(inv, sig)
	if err != nil {
		t.Fatalf("failed to recover signer: %v", err)
	}
	if recovered != signer.Address() {
		t.Errorf("recovered = %s, want %s", recovered.Hex(), signer.Address().Hex())
	}

	// any field change moves the digest
	changed := testInvocation()
	changed.Nonce = big.NewInt(43)
	recovered, err = eip712.RecoverInvocationSigner(changed, sig)
	if err == nil && recovered == signer.Address() {
		t.Error("signature should not cover a different nonce")
	}

	if _, err := eip712.HashInvocation(&InvocationEIP712{Operation: "create"}); err == nil {
		t.Error("invocation without nonce should not hash")
	}
}

func TestInvocationDomainSeparation(t *testing.T) {
	inv := testInvocation()

	h1, err := NewEIP712Signer(DefaultDomain(common.HexToAddress("0x01"))).HashInvocation(inv)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, err := NewEIP712Signer(DefaultDomain(common.HexToAddress("0x02"))).HashInvocation(inv)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 == h2 {
		t.Error("digests for different exchanges must differ")
	}

	otherChain := DefaultDomain(common.HexToAddress("0x01"))
	otherChain.ChainID = big.NewInt(1)
	h3, err := NewEIP712Signer(otherChain).HashInvocation(inv)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 == h3 {
		t.Error("digests for different chains must differ")
	}
}

func TestInvocationToJSON(t *testing.T) {
	eip712 := NewEIP712Signer(DefaultDomain(common.HexToAddress("0xe8c4a4e")))
	out, err := eip712.InvocationToJSON(testInvocation())
	if err != nil {
		t.Fatalf("failed to render: %v", err)
	}
	for _, want := range []string{`"primaryType": "Invocation"`, `"TokenSwap"`, `"operation": "create"`} {
		if !strings.Contains(out, want) {
			t.Errorf("typed data missing %s:\n%s", want, out)
		}
	}
}
