package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zeebo/errs"

	"github.com/uhyunpark/tokenswap/pkg/app/exchange/asset"
	"github.com/uhyunpark/tokenswap/pkg/storage"
)

var (
	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errs.Class("invalid amount")
	// ErrInsufficientFunds is returned when a debit would go negative.
	ErrInsufficientFunds = errs.Class("insufficient funds")
)

// Ledger maps (owner, asset) to escrowed balances.
//
// Every call reads the current value from kv and writes the result back
// immediately, so consecutive calls inside one invocation always see each
// other's effects. Zero balances are deleted, never stored.
type Ledger struct {
	kv storage.KV
}

func New(kv storage.KV) *Ledger {
	return &Ledger{kv: kv}
}

// BalanceOf returns the balance, zero when no record exists
func (l *Ledger) BalanceOf(owner common.Address, a asset.Ref) (*big.Int, error) {
	raw, err := l.kv.Get(storage.BalanceKey(owner.Bytes(), a.Bytes()))
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}

// Credit adds amount to the balance, creating the record if absent
func (l *Ledger) Credit(owner common.Address, a asset.Ref, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount.New("credit of %v", amount)
	}
	bal, err := l.BalanceOf(owner, a)
	if err != nil {
		return err
	}
	return l.write(owner, a, bal.Add(bal, amount))
}

// Debit subtracts amount from the balance. The record is left untouched
// when the balance is too small.
func (l *Ledger) Debit(owner common.Address, a asset.Ref, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount.New("debit of %v", amount)
	}
	bal, err := l.BalanceOf(owner, a)
	if err != nil {
		return err
	}
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientFunds.New("%s holds %s of %s, needs %s", owner.Hex(), bal, a, amount)
	}
	return l.write(owner, a, bal.Sub(bal, amount))
}

func (l *Ledger) write(owner common.Address, a asset.Ref, bal *big.Int) error {
	key := storage.BalanceKey(owner.Bytes(), a.Bytes())
	if bal.Sign() == 0 {
		return l.kv.Delete(key)
	}
	return l.kv.Set(key, bal.Bytes())
}
