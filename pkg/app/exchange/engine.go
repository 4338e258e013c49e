package exchange

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/tokenswap/pkg/app/exchange/deposit"
	"github.com/uhyunpark/tokenswap/pkg/app/exchange/ledger"
	"github.com/uhyunpark/tokenswap/pkg/app/exchange/orders"
	"github.com/uhyunpark/tokenswap/pkg/storage"
)

type (
	TxContext     = deposit.TxContext
	Output        = deposit.Output
	TokenTransfer = deposit.TokenTransfer
	TokenResolver = deposit.TokenResolver
)

// Witness answers whether the invoking transaction is authorized by addr
type Witness interface {
	CheckWitness(addr common.Address) bool
}

// Env is everything one invocation may touch. Store must be private to the
// invocation: the caller commits it on success and discards it on error.
type Env struct {
	Store   storage.KV
	Witness Witness
	Tx      TxContext
	Tokens  TokenResolver
}

// Result carries the notifications of a successful invocation
type Result struct {
	Events []Event
}

// Engine runs exchange transitions. It keeps no state between calls.
type Engine struct {
	self  common.Address
	admin common.Address
	log   *zap.SugaredLogger
}

// NewEngine creates an engine for the exchange deployed at self. admin may
// change the token whitelist; the zero address disables admin operations.
func NewEngine(self, admin common.Address, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{self: self, admin: admin, log: log.Named("exchange")}
}

// Address returns the exchange's own address
func (e *Engine) Address() common.Address { return e.self }

// state binds the components to one invocation's store
type state struct {
	ledger    *ledger.Ledger
	orders    *orders.Store
	whitelist *deposit.Whitelist
	verifier  *deposit.Verifier
}

func (e *Engine) bind(kv storage.KV) state {
	wl := deposit.NewWhitelist(kv)
	return state{
		ledger:    ledger.New(kv),
		orders:    orders.NewStore(kv),
		whitelist: wl,
		verifier:  deposit.NewVerifier(e.self, kv, wl),
	}
}

// Execute applies one request. On error, writes already made to env.Store
// must be discarded by the caller.
func (e *Engine) Execute(env Env, req Request) (Result, error) {
	st := e.bind(env.Store)

	var (
		res Result
		err error
	)
	switch r := req.(type) {
	case DepositRequest:
		res, err = e.deposit(st, env, r)
	case CreateRequest:
		res, err = e.create(st, env, r)
	case AcceptRequest:
		res, err = e.accept(st, env, r)
	case RemoveRequest:
		res, err = e.remove(st, env, r)
	case WhitelistRequest:
		res, err = e.setWhitelisted(st, env, r)
	case EnforcementRequest:
		res, err = e.setEnforcement(st, env, r)
	default:
		err = ErrUnknownOperation.New("%T", req)
	}

	if err != nil {
		e.log.Debugw("transition_rejected", "op", opName(req), "reason", Reason(err), "err", err)
		return Result{}, err
	}
	e.log.Infow("transition_applied", "op", req.Op(), "events", len(res.Events))
	return res, nil
}

func opName(req Request) string {
	if req == nil {
		return ""
	}
	return req.Op()
}

func (e *Engine) deposit(st state, env Env, r DepositRequest) (Result, error) {
	if r.Amount == nil || r.Amount.Sign() <= 0 {
		return Result{}, ErrInvalidAmount.New("deposit of %v", r.Amount)
	}
	if err := st.verifier.Verify(env.Tx, env.Tokens, r.Caller, r.Asset, r.Amount); err != nil {
		return Result{}, err
	}
	if err := st.ledger.Credit(r.Caller, r.Asset, r.Amount); err != nil {
		return Result{}, err
	}
	return Result{Events: []Event{Deposited{Caller: r.Caller, Asset: r.Asset, Amount: r.Amount}}}, nil
}

func (e *Engine) create(st state, env Env, r CreateRequest) (Result, error) {
	if !validTerm(r.OfferAmount) || !validTerm(r.WantAmount) {
		return Result{}, ErrInvalidTerms.New("offer %v for want %v", r.OfferAmount, r.WantAmount)
	}
	if !r.Offer.Valid() || !r.Want.Valid() {
		return Result{}, ErrInvalidArgument.New("order assets %s/%s", r.Offer, r.Want)
	}
	if !witnessed(env, r.Creator) {
		return Result{}, ErrUnauthorized.New("creator %s", r.Creator.Hex())
	}

	o := orders.Order{
		Creator:     r.Creator,
		Offer:       r.Offer,
		Want:        r.Want,
		OfferAmount: new(big.Int).Set(r.OfferAmount),
		WantAmount:  new(big.Int).Set(r.WantAmount),
		Available:   new(big.Int).Set(r.OfferAmount),
		Nonce:       r.Nonce,
	}
	pair, hash := o.Pair(), o.Hash()

	existing, err := st.orders.Get(pair, hash)
	if err != nil {
		return Result{}, err
	}
	if existing.Exists() {
		return Result{}, ErrDuplicateOrder.New("%s", hash.Hex())
	}

	if err := st.ledger.Debit(r.Creator, r.Offer, r.OfferAmount); err != nil {
		return Result{}, err
	}
	if err := st.orders.Put(pair, hash, o); err != nil {
		return Result{}, err
	}

	return Result{Events: []Event{OrderCreated{
		Creator:     o.Creator,
		OrderHash:   hash,
		OfferToken:  o.Offer,
		OfferAmount: o.OfferAmount,
		WantToken:   o.Want,
		WantAmount:  o.WantAmount,
	}}}, nil
}

func (e *Engine) accept(st state, env Env, r AcceptRequest) (Result, error) {
	o, err := st.orders.Get(r.Pair, r.OrderHash)
	if err != nil {
		return Result{}, err
	}
	if !o.Exists() {
		return Result{}, ErrOrderNotFound.New("%s", r.OrderHash.Hex())
	}
	if r.Filler == o.Creator {
		return Result{}, ErrSelfTrade.New("%s", r.Filler.Hex())
	}
	if !witnessed(env, r.Filler) {
		return Result{}, ErrUnauthorized.New("filler %s", r.Filler.Hex())
	}
	if r.AmountToFill == nil || r.AmountToFill.Sign() <= 0 {
		return Result{}, ErrInvalidAmount.New("fill of %v", r.AmountToFill)
	}

	// floor(offer * fill / want); rounding dust stays with the creator
	take := new(big.Int).Mul(o.OfferAmount, r.AmountToFill)
	take.Quo(take, o.WantAmount)
	if take.Cmp(o.Available) > 0 {
		return Result{}, ErrOverFill.New("take %s exceeds available %s", take, o.Available)
	}

	if err := st.ledger.Debit(r.Filler, o.Want, r.AmountToFill); err != nil {
		return Result{}, err
	}
	if take.Sign() > 0 {
		if err := st.ledger.Credit(r.Filler, o.Offer, take); err != nil {
			return Result{}, err
		}
	}
	if err := st.ledger.Credit(o.Creator, o.Want, r.AmountToFill); err != nil {
		return Result{}, err
	}

	o.Available = new(big.Int).Sub(o.Available, take)
	if err := st.orders.Put(r.Pair, r.OrderHash, o); err != nil {
		return Result{}, err
	}

	return Result{Events: []Event{OrderAccepted{
		Filler:       r.Filler,
		OrderHash:    r.OrderHash,
		AmountFilled: r.AmountToFill,
		AmountTaken:  take,
		OfferToken:   o.Offer,
		OfferAmount:  o.OfferAmount,
		WantToken:    o.Want,
		WantAmount:   o.WantAmount,
		Remaining:    o.Available,
	}}}, nil
}

func (e *Engine) remove(st state, env Env, r RemoveRequest) (Result, error) {
	o, err := st.orders.Get(r.Pair, r.OrderHash)
	if err != nil {
		return Result{}, err
	}
	if !o.Exists() {
		return Result{}, ErrOrderNotFound.New("%s", r.OrderHash.Hex())
	}
	if !witnessed(env, o.Creator) {
		return Result{}, ErrUnauthorized.New("creator %s", o.Creator.Hex())
	}

	if err := st.ledger.Credit(o.Creator, o.Offer, o.Available); err != nil {
		return Result{}, err
	}
	if err := st.orders.Delete(r.Pair, r.OrderHash); err != nil {
		return Result{}, err
	}

	return Result{Events: []Event{OrderRemoved{
		Creator:   o.Creator,
		OrderHash: r.OrderHash,
		Refunded:  o.Available,
	}}}, nil
}

func (e *Engine) setWhitelisted(st state, env Env, r WhitelistRequest) (Result, error) {
	if !e.adminWitnessed(env) {
		return Result{}, ErrUnauthorized.New("whitelist change requires admin")
	}
	if r.Listed {
		return Result{}, st.whitelist.Add(r.Token)
	}
	return Result{}, st.whitelist.Remove(r.Token)
}

func (e *Engine) setEnforcement(st state, env Env, r EnforcementRequest) (Result, error) {
	if !e.adminWitnessed(env) {
		return Result{}, ErrUnauthorized.New("enforcement change requires admin")
	}
	return Result{}, st.whitelist.SetWhitelistEnforcement(r.Enabled)
}

func (e *Engine) adminWitnessed(env Env) bool {
	return e.admin != (common.Address{}) && witnessed(env, e.admin)
}

func witnessed(env Env, addr common.Address) bool {
	return env.Witness != nil && env.Witness.CheckWitness(addr)
}

func validTerm(n *big.Int) bool {
	return n != nil && n.Sign() > 0 && n.BitLen() <= orders.MaxAmountBits
}
