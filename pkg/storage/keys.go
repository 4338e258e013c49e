package storage

// Key schema for the exchange contract's storage context.
//
// The exchange never sees other contracts' keys: the host scopes every
// contract to its own context (see Prefixed), so the layout below is the
// whole key space of the exchange:
//
//   <owner 20B><assetID 20|32B>          → balance (big-endian, minimal bytes)
//   <pair 40|52|64B><orderHash 32B>      → RLP order record
//   <txHash 32B><assetID 32B>            → 0x01 deposit-seen marker
//   "contractWhitelist"<assetID 20B>     → 0x01 whitelisted token
//   "stateContractWhitelist"             → 0x01 disables whitelist enforcement
//
// Key lengths of the variable-shape records never coincide, so no namespace
// prefix is needed inside the context.

const (
	prefixWhitelist   = "contractWhitelist"
	keyWhitelistState = "stateContractWhitelist"
)

// Marker is the single value byte used by presence-only records.
var Marker = []byte{0x01}

// BalanceKey returns the key for an (owner, asset) balance
// Format: owner || assetID
func BalanceKey(owner, assetID []byte) []byte {
	return concat(owner, assetID)
}

// OrderKey returns the key for an order record
// Format: tradingPair || orderHash
func OrderKey(pair, orderHash []byte) []byte {
	return concat(pair, orderHash)
}

// OrderPrefix returns the prefix shared by every order of a trading pair
func OrderPrefix(pair []byte) []byte {
	return concat(pair)
}

// DepositKey returns the one-time deposit marker key
// Format: txHash || assetID
func DepositKey(txHash, assetID []byte) []byte {
	return concat(txHash, assetID)
}

// WhitelistKey returns the key marking a token contract as tradable
// Format: "contractWhitelist" || assetID
func WhitelistKey(assetID []byte) []byte {
	return concat([]byte(prefixWhitelist), assetID)
}

// WhitelistStateKey returns the global enforcement toggle key
func WhitelistStateKey() []byte {
	return []byte(keyWhitelistState)
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
// Trailing 0xff bytes are dropped before incrementing; nil means unbounded
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	for i := len(bound) - 1; i >= 0; i-- {
		if bound[i] < 0xff {
			bound[i]++
			return bound[:i+1]
		}
	}
	return nil
}
