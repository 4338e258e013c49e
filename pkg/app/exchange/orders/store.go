package orders

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/tokenswap/pkg/app/exchange/asset"
	"github.com/uhyunpark/tokenswap/pkg/storage"
)

// Store persists orders under pair || orderHash
type Store struct {
	kv storage.KV
}

func NewStore(kv storage.KV) *Store {
	return &Store{kv: kv}
}

// Get loads an order. A missing record yields the zero Order; check Exists.
func (s *Store) Get(pair asset.TradingPair, hash common.Hash) (Order, error) {
	raw, err := s.kv.Get(storage.OrderKey(pair.Bytes(), hash.Bytes()))
	if err != nil || raw == nil {
		return Order{}, err
	}
	return decode(raw)
}

// Put writes the order, or deletes the record once nothing is left to fill
func (s *Store) Put(pair asset.TradingPair, hash common.Hash, o Order) error {
	key := storage.OrderKey(pair.Bytes(), hash.Bytes())
	if o.Available == nil || o.Available.Sign() == 0 {
		return s.kv.Delete(key)
	}
	raw, err := encode(o)
	if err != nil {
		return ErrCorrupt.Wrap(err)
	}
	return s.kv.Set(key, raw)
}

// Delete removes the order record
func (s *Store) Delete(pair asset.TradingPair, hash common.Hash) error {
	return s.kv.Delete(storage.OrderKey(pair.Bytes(), hash.Bytes()))
}

// List returns the open orders of a pair in hash order
func (s *Store) List(pair asset.TradingPair) ([]Order, error) {
	prefix := pair.Bytes()
	want := len(prefix) + common.HashLength

	var out []Order
	err := s.kv.Iterate(storage.OrderPrefix(prefix), func(key, value []byte) error {
		// balance and marker keys can share the prefix but are shorter than
		// any order key
		if len(key) != want {
			return nil
		}
		o, err := decode(value)
		if err != nil {
			return err
		}
		if !bytes.Equal(o.Pair().Bytes(), prefix) || o.Hash() != common.BytesToHash(key[len(prefix):]) {
			return ErrCorrupt.New("record under %x does not match its key", key)
		}
		out = append(out, o)
		return nil
	})
	return out, err
}
