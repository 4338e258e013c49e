package swap

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/tokenswap/pkg/app/exchange/asset"
	"github.com/uhyunpark/tokenswap/pkg/app/exchange/deposit"
	"github.com/uhyunpark/tokenswap/pkg/app/exchange/ledger"
	"github.com/uhyunpark/tokenswap/pkg/app/exchange/orders"
	"github.com/uhyunpark/tokenswap/pkg/storage"
)

// Read-only views over committed state.

// Balance returns owner's escrowed balance of a held by the exchange
func (a *App) Balance(owner common.Address, ref asset.Ref) (*big.Int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return ledger.New(storage.NewPrefixed(a.store, exchangeContext)).BalanceOf(owner, ref)
}

// Order returns an open order; check Exists on the result
func (a *App) Order(pair asset.TradingPair, hash common.Hash) (orders.Order, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return orders.NewStore(storage.NewPrefixed(a.store, exchangeContext)).Get(pair, hash)
}

// Orders lists the open orders of a trading pair
func (a *App) Orders(pair asset.TradingPair) ([]orders.Order, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return orders.NewStore(storage.NewPrefixed(a.store, exchangeContext)).List(pair)
}

// Whitelisted reports whether token may currently be deposited
func (a *App) Whitelisted(token common.Address) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return deposit.NewWhitelist(storage.NewPrefixed(a.store, exchangeContext)).IsWhitelisted(token)
}

// TokenBalance returns owner's balance inside a token contract
func (a *App) TokenBalance(token, owner common.Address) (*big.Int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return newToken(a.store, token, nil).BalanceOf(owner)
}

// NativeBalance returns owner's balance of a native asset
func (a *App) NativeBalance(owner common.Address, id common.Hash) (*big.Int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return ledger.New(storage.NewPrefixed(a.store, nativeContext)).BalanceOf(owner, asset.Native(id))
}

// Height returns the number of produced blocks
func (a *App) Height() (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	raw, err := storage.NewPrefixed(a.store, systemContext).Get(heightKey)
	if err != nil {
		return 0, err
	}
	return decodeHeight(raw), nil
}

// StateRoot returns the digest of every committed write set
func (a *App) StateRoot() (common.Hash, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stateRoot()
}

// Genesis operations write straight to committed state. They bypass
// witnesses and are meant for devnet setup and tests.

// MintToken deploys token if needed and credits amount to owner
func (a *App) MintToken(token, owner common.Address, amount *big.Int) error {
	return a.genesis(func(b *storage.Batch) error {
		if err := storage.NewPrefixed(b, systemContext).Set(tokenDeployedKey(token), storage.Marker); err != nil {
			return err
		}
		return newToken(b, token, nil).mint(owner, amount)
	})
}

// MintNative credits amount of a native asset to owner
func (a *App) MintNative(id common.Hash, owner common.Address, amount *big.Int) error {
	return a.genesis(func(b *storage.Batch) error {
		return ledger.New(storage.NewPrefixed(b, nativeContext)).Credit(owner, asset.Native(id), amount)
	})
}

// InitWhitelist sets whitelist enforcement without an admin witness
func (a *App) InitWhitelist(enabled bool) error {
	return a.genesis(func(b *storage.Batch) error {
		return deposit.NewWhitelist(storage.NewPrefixed(b, exchangeContext)).SetWhitelistEnforcement(enabled)
	})
}

func (a *App) genesis(fn func(b *storage.Batch) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	b := a.store.Begin()
	defer b.Discard()
	if err := fn(b); err != nil {
		return fmt.Errorf("failed to apply genesis write: %w", err)
	}
	if err := sealWrites(b); err != nil {
		return err
	}
	return b.Commit()
}
