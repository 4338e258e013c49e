package abci

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/tokenswap/pkg/app/exchange"
)

type RequestPrepareProposal struct{ Height, MaxTxBytes int64 }
type ResponsePrepareProposal struct{ Txs [][]byte }
type RequestProcessProposal struct {
	Height int64
	Txs    [][]byte
}
type ResponseProcessProposal struct{ Accept bool }
type RequestFinalizeBlock struct {
	Height int64
	Txs    [][]byte
}
type ResponseFinalizeBlock struct {
	Results []TxResult
	AppHash common.Hash // digest of application state after execution
}

// TxResult reports the outcome of one transaction. A failed transaction
// leaves no state behind.
type TxResult struct {
	TxHash common.Hash      `json:"txHash"`
	Op     string           `json:"op"`
	OK     bool             `json:"ok"`
	Reason string           `json:"reason,omitempty"`
	Error  string           `json:"error,omitempty"`
	Events []exchange.Event `json:"events,omitempty"`
}

// Application is the block lifecycle a proposer drives
type Application interface {
	PrepareProposal(RequestPrepareProposal) ResponsePrepareProposal
	ProcessProposal(RequestProcessProposal) ResponseProcessProposal
	FinalizeBlock(RequestFinalizeBlock) (ResponseFinalizeBlock, error)
}
