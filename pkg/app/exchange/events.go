package exchange

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/tokenswap/pkg/app/exchange/asset"
)

// Event is a notification for off-chain observers. Events are only
// meaningful once the invocation that produced them has committed.
type Event interface {
	Name() string
	// Key groups related events, e.g. every event of one order
	Key() []byte
}

type OrderCreated struct {
	Creator     common.Address `json:"creator"`
	OrderHash   common.Hash    `json:"orderHash"`
	OfferToken  asset.Ref      `json:"offerToken"`
	OfferAmount *big.Int       `json:"offerAmount"`
	WantToken   asset.Ref      `json:"wantToken"`
	WantAmount  *big.Int       `json:"wantAmount"`
}

func (OrderCreated) Name() string  { return "created" }
func (e OrderCreated) Key() []byte { return e.OrderHash.Bytes() }

type OrderAccepted struct {
	Filler       common.Address `json:"filler"`
	OrderHash    common.Hash    `json:"orderHash"`
	AmountFilled *big.Int       `json:"amountFilled"`
	AmountTaken  *big.Int       `json:"amountTaken"`
	OfferToken   asset.Ref      `json:"offerToken"`
	OfferAmount  *big.Int       `json:"offerAmount"`
	WantToken    asset.Ref      `json:"wantToken"`
	WantAmount   *big.Int       `json:"wantAmount"`
	Remaining    *big.Int       `json:"remaining"`
}

func (OrderAccepted) Name() string  { return "accepted" }
func (e OrderAccepted) Key() []byte { return e.OrderHash.Bytes() }

type OrderRemoved struct {
	Creator   common.Address `json:"creator"`
	OrderHash common.Hash    `json:"orderHash"`
	Refunded  *big.Int       `json:"refunded"`
}

func (OrderRemoved) Name() string  { return "removed" }
func (e OrderRemoved) Key() []byte { return e.OrderHash.Bytes() }

type Deposited struct {
	Caller common.Address `json:"caller"`
	Asset  asset.Ref      `json:"asset"`
	Amount *big.Int       `json:"amount"`
}

func (Deposited) Name() string  { return "deposited" }
func (e Deposited) Key() []byte { return e.Caller.Bytes() }
