package swap

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

// Storage contexts. Every contract sees only its own context; the host keeps
// native balances and bookkeeping in contexts no contract can reach.
//
//	"x/"             exchange contract
//	"t/" <token> "/" token contract balances
//	"n/"             native asset balances
//	"s/"             host bookkeeping
var (
	exchangeContext = []byte("x/")
	nativeContext   = []byte("n/")
	systemContext   = []byte("s/")
)

func tokenContext(token common.Address) []byte {
	out := append([]byte("t/"), token.Bytes()...)
	return append(out, '/')
}

// Keys inside the system context
var (
	heightKey = []byte("height")
	rootKey   = []byte("root")
)

func tokenDeployedKey(token common.Address) []byte {
	return append([]byte("token/"), token.Bytes()...)
}

func appliedTxKey(hash common.Hash) []byte {
	return append([]byte("tx/"), hash.Bytes()...)
}

func encodeHeight(h uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h)
	return buf[:]
}

func decodeHeight(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
