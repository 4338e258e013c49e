package deposit

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zeebo/errs"

	"github.com/uhyunpark/tokenswap/pkg/app/exchange/asset"
	"github.com/uhyunpark/tokenswap/pkg/storage"
)

var (
	ErrAmountMismatch      = errs.Class("amount mismatch")
	ErrDuplicateDeposit    = errs.Class("duplicate deposit")
	ErrAssetNotWhitelisted = errs.Class("asset not whitelisted")
	ErrTransferRejected    = errs.Class("transfer rejected")
)

// Output is a native asset transfer attached to the invoking transaction
type Output struct {
	Asset common.Hash
	To    common.Address
	Value *big.Int
}

// TxContext is what the verifier needs to know about the invoking transaction
type TxContext struct {
	Hash    common.Hash
	Outputs []Output
}

// TokenTransfer is the transfer entry point of an external token contract
type TokenTransfer interface {
	Transfer(from, to common.Address, amount *big.Int) (bool, error)
}

// TokenResolver binds a token contract address to its transfer entry point
type TokenResolver interface {
	Resolve(token common.Address) (TokenTransfer, bool)
}

// Verifier proves that funds claimed by a deposit reached the exchange
type Verifier struct {
	exchange  common.Address
	kv        storage.KV
	whitelist *Whitelist
}

func NewVerifier(exchange common.Address, kv storage.KV, whitelist *Whitelist) *Verifier {
	return &Verifier{exchange: exchange, kv: kv, whitelist: whitelist}
}

// Verify checks a deposit of amount of a by caller. On success the proof is
// consumed: the native replay marker is set, or the token transfer has run.
func (v *Verifier) Verify(tx TxContext, tokens TokenResolver, caller common.Address, a asset.Ref, amount *big.Int) error {
	switch a.Kind() {
	case asset.KindNative:
		return v.verifyNative(tx, a, amount)
	case asset.KindContract:
		return v.verifyContract(tokens, caller, a.ContractAddress(), amount)
	default:
		return asset.ErrInvalidID.New("deposit of %s", a)
	}
}

func (v *Verifier) verifyNative(tx TxContext, a asset.Ref, amount *big.Int) error {
	sum := new(big.Int)
	for _, out := range tx.Outputs {
		if out.Asset == a.NativeID() && out.To == v.exchange && out.Value != nil {
			sum.Add(sum, out.Value)
		}
	}
	if sum.Cmp(amount) != 0 {
		return ErrAmountMismatch.New("outputs to exchange carry %s, claimed %s", sum, amount)
	}

	key := storage.DepositKey(tx.Hash.Bytes(), a.Bytes())
	seen, err := v.kv.Get(key)
	if err != nil {
		return err
	}
	if seen != nil {
		return ErrDuplicateDeposit.New("tx %s already deposited %s", tx.Hash.Hex(), a)
	}
	return v.kv.Set(key, storage.Marker)
}

func (v *Verifier) verifyContract(tokens TokenResolver, caller, token common.Address, amount *big.Int) error {
	ok, err := v.whitelist.IsWhitelisted(token)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAssetNotWhitelisted.New("%s", token.Hex())
	}

	if tokens == nil {
		return ErrTransferRejected.New("no token contracts available")
	}
	contract, found := tokens.Resolve(token)
	if !found {
		return ErrTransferRejected.New("unknown token contract %s", token.Hex())
	}
	ok, err = contract.Transfer(caller, v.exchange, amount)
	if err != nil {
		return err
	}
	if !ok {
		return ErrTransferRejected.New("%s refused transfer of %s from %s", token.Hex(), amount, caller.Hex())
	}
	return nil
}
