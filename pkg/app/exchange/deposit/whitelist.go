package deposit

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/tokenswap/pkg/storage"
)

// Whitelist is the persisted tradability configuration for token contracts.
// Enforcement is a single global switch; while it is off every token is
// tradable without an entry.
type Whitelist struct {
	kv storage.KV
}

func NewWhitelist(kv storage.KV) *Whitelist {
	return &Whitelist{kv: kv}
}

// EnforcementEnabled reports whether explicit entries are required
func (w *Whitelist) EnforcementEnabled() (bool, error) {
	raw, err := w.kv.Get(storage.WhitelistStateKey())
	if err != nil {
		return false, err
	}
	return !bytes.Equal(raw, storage.Marker), nil
}

// SetWhitelistEnforcement turns entry checks on or off
func (w *Whitelist) SetWhitelistEnforcement(enabled bool) error {
	if enabled {
		return w.kv.Delete(storage.WhitelistStateKey())
	}
	return w.kv.Set(storage.WhitelistStateKey(), storage.Marker)
}

// IsWhitelisted reports whether token may be deposited and traded
func (w *Whitelist) IsWhitelisted(token common.Address) (bool, error) {
	enforced, err := w.EnforcementEnabled()
	if err != nil {
		return false, err
	}
	if !enforced {
		return true, nil
	}
	raw, err := w.kv.Get(storage.WhitelistKey(token.Bytes()))
	if err != nil {
		return false, err
	}
	return raw != nil, nil
}

// Add lists a token contract
func (w *Whitelist) Add(token common.Address) error {
	return w.kv.Set(storage.WhitelistKey(token.Bytes()), storage.Marker)
}

// Remove delists a token contract
func (w *Whitelist) Remove(token common.Address) error {
	return w.kv.Delete(storage.WhitelistKey(token.Bytes()))
}
