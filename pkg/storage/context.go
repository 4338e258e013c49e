package storage

// Prefixed scopes a KV to one contract's storage context. Keys handed to and
// returned from the wrapped view never include the context prefix.
type Prefixed struct {
	kv     KV
	prefix []byte
}

// NewPrefixed returns the storage context identified by prefix
func NewPrefixed(kv KV, prefix []byte) *Prefixed {
	return &Prefixed{kv: kv, prefix: append([]byte(nil), prefix...)}
}

func (p *Prefixed) Get(key []byte) ([]byte, error) {
	return p.kv.Get(concat(p.prefix, key))
}

func (p *Prefixed) Set(key, value []byte) error {
	return p.kv.Set(concat(p.prefix, key), value)
}

func (p *Prefixed) Delete(key []byte) error {
	return p.kv.Delete(concat(p.prefix, key))
}

func (p *Prefixed) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	n := len(p.prefix)
	return p.kv.Iterate(concat(p.prefix, prefix), func(key, value []byte) error {
		return fn(key[n:], value)
	})
}

var _ KV = (*Prefixed)(nil)
