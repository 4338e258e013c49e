package mempool

import (
	"encoding/json"
	"sync"

	"github.com/uhyunpark/tokenswap/pkg/app/exchange"
)

// TxType classifies transactions into proposal buckets.
type TxType int

const (
	TxNonOrder TxType = iota
	TxCancel
	TxOrder
)

// ClassifyRaw classifies a raw transaction by its JSON "op" field:
//
//	deposit, whitelist, enforcement -> TxNonOrder
//	remove                          -> TxCancel
//	create, accept                  -> TxOrder
//
// Malformed transactions land in TxOrder; they fail when applied.
func ClassifyRaw(b []byte) TxType {
	if len(b) == 0 || b[0] != '{' {
		return TxOrder
	}

	var envelope struct {
		Op string `json:"op"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return TxOrder
	}

	switch envelope.Op {
	case exchange.OpDeposit, exchange.OpWhitelist, exchange.OpEnforcement:
		return TxNonOrder
	case exchange.OpRemove:
		return TxCancel
	default:
		return TxOrder
	}
}

// Mempool maintains three queues applied in this order:
// (1) non-order, (2) cancel, (3) orders.
// Deposits land before the orders that spend them, and cancels run before
// fills in the same block. Within each bucket, FIFO by admission order.
type Mempool struct {
	mu       sync.Mutex
	nonOrder [][]byte
	cancel   [][]byte
	orders   [][]byte
}

func NewMempool() *Mempool {
	return &Mempool{}
}

// PushRaw classifies and enqueues a tx.
func (m *Mempool) PushRaw(b []byte) {
	cp := append([]byte(nil), b...)
	m.mu.Lock()
	defer m.mu.Unlock()
	switch ClassifyRaw(b) {
	case TxNonOrder:
		m.nonOrder = append(m.nonOrder, cp)
	case TxCancel:
		m.cancel = append(m.cancel, cp)
	default:
		m.orders = append(m.orders, cp)
	}
}

// SelectForProposal returns up to maxBytes worth of txs in bucket order,
// removing selected txs from the mempool. maxBytes <= 0 means no limit.
func (m *Mempool) SelectForProposal(maxBytes int64) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out [][]byte
	var used int64
	full := false

	// once a tx does not fit, later buckets wait too so they never jump ahead
	pull := func(q *[][]byte) {
		for !full && len(*q) > 0 {
			tx := (*q)[0]
			n := int64(len(tx))
			if maxBytes > 0 && used+n > maxBytes {
				full = true
				return
			}
			out = append(out, tx)
			used += n
			*q = (*q)[1:]
		}
	}

	pull(&m.nonOrder)
	pull(&m.cancel)
	pull(&m.orders)

	return out
}

// Len returns total pending txs.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nonOrder) + len(m.cancel) + len(m.orders)
}
