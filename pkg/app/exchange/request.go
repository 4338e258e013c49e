package exchange

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/tokenswap/pkg/app/exchange/asset"
)

// Operation names accepted by DecodeInvocation
const (
	OpDeposit     = "deposit"
	OpCreate      = "create"
	OpAccept      = "accept"
	OpRemove      = "remove"
	OpWhitelist   = "whitelist"
	OpEnforcement = "enforcement"
)

// Request is one decoded exchange operation. The set of variants is closed.
type Request interface {
	Op() string
	isRequest()
}

// DepositRequest moves funds proven by the invoking transaction into escrow
type DepositRequest struct {
	Caller common.Address
	Asset  asset.Ref
	Amount *big.Int
}

// CreateRequest escrows OfferAmount of Offer in a new order wanting WantAmount of Want
type CreateRequest struct {
	Creator     common.Address
	Offer       asset.Ref
	OfferAmount *big.Int
	Want        asset.Ref
	WantAmount  *big.Int
	Nonce       []byte
}

// AcceptRequest fills an order by supplying AmountToFill of its want asset
type AcceptRequest struct {
	Filler       common.Address
	Pair         asset.TradingPair
	OrderHash    common.Hash
	AmountToFill *big.Int
}

// RemoveRequest cancels an order and refunds what is left
type RemoveRequest struct {
	Pair      asset.TradingPair
	OrderHash common.Hash
}

// WhitelistRequest lists or delists a token contract (admin only)
type WhitelistRequest struct {
	Token  common.Address
	Listed bool
}

// EnforcementRequest toggles whitelist enforcement (admin only)
type EnforcementRequest struct {
	Enabled bool
}

func (DepositRequest) Op() string     { return OpDeposit }
func (CreateRequest) Op() string      { return OpCreate }
func (AcceptRequest) Op() string      { return OpAccept }
func (RemoveRequest) Op() string      { return OpRemove }
func (WhitelistRequest) Op() string   { return OpWhitelist }
func (EnforcementRequest) Op() string { return OpEnforcement }

func (DepositRequest) isRequest()     {}
func (CreateRequest) isRequest()      {}
func (AcceptRequest) isRequest()      {}
func (RemoveRequest) isRequest()      {}
func (WhitelistRequest) isRequest()   {}
func (EnforcementRequest) isRequest() {}
