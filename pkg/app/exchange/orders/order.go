package orders

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/zeebo/errs"

	"github.com/uhyunpark/tokenswap/pkg/app/exchange/asset"
)

// ErrCorrupt is returned when a stored order record cannot be decoded.
var ErrCorrupt = errs.Class("corrupt order record")

// MaxAmountBits bounds order amounts so they hash as 32-byte words
const MaxAmountBits = 256

// Order is a limit order escrowed by the exchange.
// OfferAmount and WantAmount fix the rate; Available is what remains to fill.
type Order struct {
	Creator     common.Address `json:"creator"`
	Offer       asset.Ref      `json:"offer"`
	Want        asset.Ref      `json:"want"`
	OfferAmount *big.Int       `json:"offerAmount"`
	WantAmount  *big.Int       `json:"wantAmount"`
	Available   *big.Int       `json:"available"`
	Nonce       hexutil.Bytes  `json:"nonce"`
}

// Exists reports whether the order was loaded from a live record.
// A zero creator is the "not found" sentinel.
func (o Order) Exists() bool {
	return o.Creator != (common.Address{})
}

// Pair returns the order's trading pair
func (o Order) Pair() asset.TradingPair {
	return asset.TradingPair{Offer: o.Offer, Want: o.Want}
}

// Hash returns the content address of the order:
// keccak256(creator || offer || want || u256(offerAmount) || u256(wantAmount) || nonce)
func (o Order) Hash() common.Hash {
	return crypto.Keccak256Hash(
		o.Creator.Bytes(),
		o.Offer.Bytes(),
		o.Want.Bytes(),
		math.PaddedBigBytes(o.OfferAmount, 32),
		math.PaddedBigBytes(o.WantAmount, 32),
		o.Nonce,
	)
}

// record is the RLP layout of a stored order
type record struct {
	Creator     common.Address
	OfferID     []byte
	WantID      []byte
	OfferAmount *big.Int
	WantAmount  *big.Int
	Available   *big.Int
	Nonce       []byte
}

func encode(o Order) ([]byte, error) {
	return rlp.EncodeToBytes(&record{
		Creator:     o.Creator,
		OfferID:     o.Offer.Bytes(),
		WantID:      o.Want.Bytes(),
		OfferAmount: o.OfferAmount,
		WantAmount:  o.WantAmount,
		Available:   o.Available,
		Nonce:       o.Nonce,
	})
}

func decode(raw []byte) (Order, error) {
	var rec record
	if err := rlp.DecodeBytes(raw, &rec); err != nil {
		return Order{}, ErrCorrupt.Wrap(err)
	}
	offer, err := asset.Parse(rec.OfferID)
	if err != nil {
		return Order{}, ErrCorrupt.Wrap(err)
	}
	want, err := asset.Parse(rec.WantID)
	if err != nil {
		return Order{}, ErrCorrupt.Wrap(err)
	}
	return Order{
		Creator:     rec.Creator,
		Offer:       offer,
		Want:        want,
		OfferAmount: rec.OfferAmount,
		WantAmount:  rec.WantAmount,
		Available:   rec.Available,
		Nonce:       rec.Nonce,
	}, nil
}
