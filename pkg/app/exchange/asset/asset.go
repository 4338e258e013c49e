package asset

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/zeebo/errs"
)

const (
	NativeIDLength   = 32
	ContractIDLength = 20
)

// ErrInvalidID is returned for identifiers of neither recognised length.
var ErrInvalidID = errs.Class("invalid asset id")

// Kind discriminates native ledger assets from token contracts
type Kind uint8

const (
	KindNative Kind = iota + 1
	KindContract
)

func (k Kind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindContract:
		return "contract"
	default:
		return "unknown"
	}
}

// Ref identifies an asset. Exactly one of the two ids is meaningful,
// selected by Kind. The zero Ref is invalid.
type Ref struct {
	kind     Kind
	native   common.Hash
	contract common.Address
}

// Native returns a reference to a native ledger asset
func Native(id common.Hash) Ref {
	return Ref{kind: KindNative, native: id}
}

// Contract returns a reference to an external token contract
func Contract(addr common.Address) Ref {
	return Ref{kind: KindContract, contract: addr}
}

// Parse decides the asset kind from the identifier length.
func Parse(b []byte) (Ref, error) {
	switch len(b) {
	case NativeIDLength:
		return Native(common.BytesToHash(b)), nil
	case ContractIDLength:
		return Contract(common.BytesToAddress(b)), nil
	default:
		return Ref{}, ErrInvalidID.New("length %d", len(b))
	}
}

// MustParseHex parses a 0x-prefixed identifier and panics on failure.
// Intended for tests and fixtures.
func MustParseHex(s string) Ref {
	r, err := Parse(common.FromHex(s))
	if err != nil {
		panic(err)
	}
	return r
}

func (r Ref) Kind() Kind       { return r.kind }
func (r Ref) IsNative() bool   { return r.kind == KindNative }
func (r Ref) IsContract() bool { return r.kind == KindContract }
func (r Ref) Valid() bool      { return r.kind == KindNative || r.kind == KindContract }

// NativeID returns the native asset id; only meaningful when IsNative
func (r Ref) NativeID() common.Hash { return r.native }

// ContractAddress returns the token contract address; only meaningful when IsContract
func (r Ref) ContractAddress() common.Address { return r.contract }

// Bytes returns the raw identifier used in storage keys and hashes
func (r Ref) Bytes() []byte {
	switch r.kind {
	case KindNative:
		return r.native.Bytes()
	case KindContract:
		return r.contract.Bytes()
	default:
		return nil
	}
}

func (r Ref) String() string {
	switch r.kind {
	case KindNative:
		return r.native.Hex()
	case KindContract:
		return r.contract.Hex()
	default:
		return "<invalid asset>"
	}
}

// MarshalText encodes the identifier as 0x-prefixed hex
func (r Ref) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, ErrInvalidID.New("marshal of zero ref")
	}
	return []byte(r.String()), nil
}

// UnmarshalText parses a 0x-prefixed identifier
func (r *Ref) UnmarshalText(text []byte) error {
	raw, err := hexutil.Decode(string(text))
	if err != nil {
		return ErrInvalidID.Wrap(err)
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// TradingPair is the ordered (offered, wanted) combination that buckets orders
type TradingPair struct {
	Offer Ref
	Want  Ref
}

// Bytes returns offer || want
func (p TradingPair) Bytes() []byte {
	o, w := p.Offer.Bytes(), p.Want.Bytes()
	out := make([]byte, 0, len(o)+len(w))
	out = append(out, o...)
	return append(out, w...)
}

func (p TradingPair) String() string {
	return fmt.Sprintf("%s/%s", p.Offer, p.Want)
}

// ParsePair splits a concatenated pair. Pairs of 40 and 64 bytes split
// unambiguously; a 52-byte pair is read native-first.
func ParsePair(b []byte) (TradingPair, error) {
	var split int
	switch len(b) {
	case 2 * ContractIDLength:
		split = ContractIDLength
	case 2 * NativeIDLength:
		split = NativeIDLength
	case NativeIDLength + ContractIDLength:
		split = NativeIDLength
	default:
		return TradingPair{}, ErrInvalidID.New("pair length %d", len(b))
	}
	offer, err := Parse(b[:split])
	if err != nil {
		return TradingPair{}, err
	}
	want, err := Parse(b[split:])
	if err != nil {
		return TradingPair{}, err
	}
	return TradingPair{Offer: offer, Want: want}, nil
}
