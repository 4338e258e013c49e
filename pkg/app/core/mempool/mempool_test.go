package mempool

import (
	"testing"
)

func TestClassifyRaw(t *testing.T) {
	tests := []struct {
		name     string
		tx       string
		expected TxType
	}{
		{
			name:     "deposit",
			tx:       `{"op":"deposit","args":[],"nonce":"0x1"}`,
			expected: TxNonOrder,
		},
		{
			name:     "whitelist admin op",
			tx:       `{"op":"whitelist","args":[],"nonce":"0x1"}`,
			expected: TxNonOrder,
		},
		{
			name:     "remove",
			tx:       `{"op":"remove","args":[],"nonce":"0x1"}`,
			expected: TxCancel,
		},
		{
			name:     "create",
			tx:       `{"op":"create","args":[],"nonce":"0x1"}`,
			expected: TxOrder,
		},
		{
			name:     "accept",
			tx:       `{"op":"accept","args":[],"nonce":"0x1"}`,
			expected: TxOrder,
		},
		{
			name:     "invalid JSON defaults to order",
			tx:       `{"invalid": "json"`,
			expected: TxOrder,
		},
		{
			name:     "non-JSON defaults to order",
			tx:       "UNKNOWN:foo",
			expected: TxOrder,
		},
		{
			name:     "empty transaction",
			tx:       "",
			expected: TxOrder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyRaw([]byte(tt.tx))
			if got != tt.expected {
				t.Errorf("ClassifyRaw() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMempool_Ordering(t *testing.T) {
	m := NewMempool()

	create1 := `{"op":"create","nonce":"0x1"}`
	accept1 := `{"op":"accept","nonce":"0x2"}`
	remove1 := `{"op":"remove","nonce":"0x3"}`
	deposit1 := `{"op":"deposit","nonce":"0x4"}`
	create2 := `{"op":"create","nonce":"0x5"}`

	m.PushRaw([]byte(create1))
	m.PushRaw([]byte(accept1))
	m.PushRaw([]byte(remove1))
	m.PushRaw([]byte(deposit1))
	m.PushRaw([]byte(create2))

	txs := m.SelectForProposal(0)
	if len(txs) != 5 {
		t.Fatalf("expected 5 txs, got %d", len(txs))
	}

	// deposits, then cancels, then orders (FIFO within each bucket)
	expectOrder := []string{deposit1, remove1, create1, accept1, create2}
	for i, expected := range expectOrder {
		if string(txs[i]) != expected {
			t.Errorf("tx[%d] mismatch\ngot:  %q\nwant: %q", i, string(txs[i]), expected)
		}
	}

	if m.Len() != 0 {
		t.Errorf("expected empty mempool, got %d", m.Len())
	}
}

func TestMempool_MaxBytes(t *testing.T) {
	m := NewMempool()

	m.PushRaw([]byte("O:1")) // 3 bytes
	m.PushRaw([]byte("O:2")) // 3 bytes
	m.PushRaw([]byte("O:3")) // 3 bytes

	txs := m.SelectForProposal(6) // Only fits 2 txs
	if len(txs) != 2 {
		t.Errorf("expected 2 txs with maxBytes=6, got %d", len(txs))
	}

	if m.Len() != 1 {
		t.Errorf("expected 1 tx remaining, got %d", m.Len())
	}
}

func TestMempool_FullBucketBlocksLaterBuckets(t *testing.T) {
	m := NewMempool()

	large := `{"op":"deposit","nonce":"0x1","pad":"xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"}`
	small := `{"op":"create"}`
	m.PushRaw([]byte(large))
	m.PushRaw([]byte(small))

	txs := m.SelectForProposal(int64(len(small)))
	if len(txs) != 0 {
		t.Fatalf("expected nothing selected ahead of the pending deposit, got %d", len(txs))
	}
	if m.Len() != 2 {
		t.Errorf("expected 2 txs remaining, got %d", m.Len())
	}
}
