package swap

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/tokenswap/pkg/app/exchange"
	"github.com/uhyunpark/tokenswap/pkg/app/exchange/asset"
	"github.com/uhyunpark/tokenswap/pkg/app/exchange/ledger"
	"github.com/uhyunpark/tokenswap/pkg/storage"
)

// Token is an in-state fungible token contract. Its balances live in its
// own storage context and only move with the sender's witness.
type Token struct {
	id      common.Address
	ledger  *ledger.Ledger
	witness exchange.Witness
}

func newToken(kv storage.KV, id common.Address, witness exchange.Witness) *Token {
	return &Token{
		id:      id,
		ledger:  ledger.New(storage.NewPrefixed(kv, tokenContext(id))),
		witness: witness,
	}
}

// BalanceOf returns owner's token balance
func (t *Token) BalanceOf(owner common.Address) (*big.Int, error) {
	return t.ledger.BalanceOf(owner, asset.Contract(t.id))
}

// Transfer moves amount from one holder to another. It reports false,
// rather than failing, for unwitnessed or unfunded transfers.
func (t *Token) Transfer(from, to common.Address, amount *big.Int) (bool, error) {
	if amount == nil || amount.Sign() <= 0 {
		return false, nil
	}
	if t.witness == nil || !t.witness.CheckWitness(from) {
		return false, nil
	}
	if err := t.ledger.Debit(from, asset.Contract(t.id), amount); err != nil {
		if ledger.ErrInsufficientFunds.Has(err) {
			return false, nil
		}
		return false, err
	}
	if err := t.ledger.Credit(to, asset.Contract(t.id), amount); err != nil {
		return false, err
	}
	return true, nil
}

func (t *Token) mint(to common.Address, amount *big.Int) error {
	return t.ledger.Credit(to, asset.Contract(t.id), amount)
}

// tokenRegistry resolves deployed token contracts inside one invocation
type tokenRegistry struct {
	kv      storage.KV
	system  storage.KV
	witness exchange.Witness
}

func (r tokenRegistry) Resolve(token common.Address) (exchange.TokenTransfer, bool) {
	deployed, err := r.system.Get(tokenDeployedKey(token))
	if err != nil || deployed == nil {
		return nil, false
	}
	return newToken(r.kv, token, r.witness), true
}
