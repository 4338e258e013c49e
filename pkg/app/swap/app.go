package swap

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/uhyunpark/tokenswap/pkg/abci"
	"github.com/uhyunpark/tokenswap/pkg/app/core/mempool"
	"github.com/uhyunpark/tokenswap/pkg/app/core/transaction"
	"github.com/uhyunpark/tokenswap/pkg/app/exchange"
	"github.com/uhyunpark/tokenswap/pkg/app/exchange/asset"
	"github.com/uhyunpark/tokenswap/pkg/app/exchange/ledger"
	"github.com/uhyunpark/tokenswap/pkg/crypto"
	"github.com/uhyunpark/tokenswap/pkg/notify"
	"github.com/uhyunpark/tokenswap/pkg/storage"
)

// Reasons reported by the host itself, next to exchange.Reason values
const (
	ReasonMalformed      = "Malformed"
	ReasonBadSignature   = "BadSignature"
	ReasonAlreadyApplied = "AlreadyApplied"
)

// Config binds the app to one exchange deployment
type Config struct {
	Exchange      common.Address
	Admin         common.Address
	MaxBlockBytes int64
}

// Receipt reports the outcome of one transaction
type Receipt = abci.TxResult

// Block groups the receipts of one proposal
type Block struct {
	Height    uint64      `json:"height"`
	Receipts  []Receipt   `json:"receipts"`
	StateRoot common.Hash `json:"stateRoot"`
}

// App hosts the exchange contract: it verifies transactions, runs each one
// in its own storage batch and publishes events after commit.
type App struct {
	mu       sync.Mutex
	blockMu  sync.Mutex
	cfg      Config
	store    *storage.Store
	engine   *exchange.Engine
	verifier *transaction.Verifier
	mempool  *mempool.Mempool
	notifier notify.Notifier
	log      *zap.SugaredLogger
}

func NewApp(cfg Config, store *storage.Store, notifier notify.Notifier, log *zap.SugaredLogger) *App {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &App{
		cfg:      cfg,
		store:    store,
		engine:   exchange.NewEngine(cfg.Exchange, cfg.Admin, log),
		verifier: transaction.NewVerifier(crypto.DefaultDomain(cfg.Exchange)),
		mempool:  mempool.NewMempool(),
		notifier: notifier,
		log:      log.Named("app"),
	}
}

// Domain returns the EIP-712 domain wallets must sign under
func (a *App) Domain() crypto.EIP712Domain {
	return a.verifier.Signer().Domain()
}

// PushTx queues a raw transaction for the next block
func (a *App) PushTx(raw []byte) { a.mempool.PushRaw(raw) }

// Pending returns the number of queued transactions
func (a *App) Pending() int { return a.mempool.Len() }

var _ abci.Application = (*App)(nil)

// ProduceBlock proposes the queued transactions and finalizes them as the
// next block
func (a *App) ProduceBlock(ctx context.Context) (Block, error) {
	height, err := a.Height()
	if err != nil {
		return Block{}, err
	}
	next := int64(height) + 1

	prep := a.PrepareProposal(abci.RequestPrepareProposal{Height: next, MaxTxBytes: a.cfg.MaxBlockBytes})
	if !a.ProcessProposal(abci.RequestProcessProposal{Height: next, Txs: prep.Txs}).Accept {
		return Block{}, fmt.Errorf("proposal at height %d rejected", next)
	}

	res, err := a.finalize(ctx, abci.RequestFinalizeBlock{Height: next, Txs: prep.Txs})
	if err != nil {
		return Block{}, err
	}
	return Block{Height: uint64(next), Receipts: res.Results, StateRoot: res.AppHash}, nil
}

// PrepareProposal selects queued transactions in bucket order
func (a *App) PrepareProposal(req abci.RequestPrepareProposal) abci.ResponsePrepareProposal {
	return abci.ResponsePrepareProposal{Txs: a.mempool.SelectForProposal(req.MaxTxBytes)}
}

// ProcessProposal only checks the size limit. Invalid transactions are
// accepted and fail with a receipt when finalized.
func (a *App) ProcessProposal(req abci.RequestProcessProposal) abci.ResponseProcessProposal {
	var size int64
	for _, raw := range req.Txs {
		size += int64(len(raw))
	}
	return abci.ResponseProcessProposal{Accept: a.cfg.MaxBlockBytes <= 0 || size <= a.cfg.MaxBlockBytes}
}

// FinalizeBlock applies a decided block
func (a *App) FinalizeBlock(req abci.RequestFinalizeBlock) (abci.ResponseFinalizeBlock, error) {
	return a.finalize(context.Background(), req)
}

func (a *App) finalize(ctx context.Context, req abci.RequestFinalizeBlock) (abci.ResponseFinalizeBlock, error) {
	a.blockMu.Lock()
	defer a.blockMu.Unlock()

	height, err := a.Height()
	if err != nil {
		return abci.ResponseFinalizeBlock{}, fmt.Errorf("failed to read height: %w", err)
	}
	if req.Height <= 0 || uint64(req.Height) != height+1 {
		return abci.ResponseFinalizeBlock{}, fmt.Errorf("finalize height %d, expected %d", req.Height, height+1)
	}

	results := make([]abci.TxResult, 0, len(req.Txs))
	for _, raw := range req.Txs {
		results = append(results, a.ApplyTx(ctx, raw))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := storage.NewPrefixed(a.store, systemContext).Set(heightKey, encodeHeight(uint64(req.Height))); err != nil {
		return abci.ResponseFinalizeBlock{}, fmt.Errorf("failed to store height: %w", err)
	}

	root, err := a.stateRoot()
	if err != nil {
		return abci.ResponseFinalizeBlock{}, err
	}

	ok := 0
	for _, r := range results {
		if r.OK {
			ok++
		}
	}
	if len(results) > 0 {
		a.log.Infow("block_finalized", "height", req.Height, "txs", len(results), "ok", ok, "state_root", root.Hex())
	}
	return abci.ResponseFinalizeBlock{Results: results, AppHash: root}, nil
}

// ApplyTx verifies and executes one transaction atomically
func (a *App) ApplyTx(ctx context.Context, raw []byte) Receipt {
	a.mu.Lock()
	defer a.mu.Unlock()

	rcpt := a.applyLocked(raw)
	if !rcpt.OK {
		a.log.Infow("tx_rejected", "tx", rcpt.TxHash.Hex(), "op", rcpt.Op, "reason", rcpt.Reason, "err", rcpt.Error)
		return rcpt
	}
	a.log.Infow("tx_applied", "tx", rcpt.TxHash.Hex(), "op", rcpt.Op, "events", len(rcpt.Events))

	if len(rcpt.Events) > 0 {
		if err := a.notifier.Publish(ctx, rcpt.TxHash, rcpt.Events); err != nil {
			a.log.Warnw("publish_failed", "tx", rcpt.TxHash.Hex(), "err", err)
		}
	}
	return rcpt
}

func (a *App) applyLocked(raw []byte) Receipt {
	tx, err := transaction.ParseTransaction(raw)
	if err != nil {
		return failed(Receipt{}, ReasonMalformed, err)
	}
	rcpt := Receipt{Op: tx.Op}

	witnesses, hash, err := a.verifier.Witnesses(tx)
	if err != nil {
		return failed(rcpt, ReasonBadSignature, err)
	}
	rcpt.TxHash = hash

	req, err := exchange.DecodeInvocation(tx.Op, tx.RawArgs())
	if err != nil {
		return failed(rcpt, exchange.Reason(err), err)
	}

	batch := a.store.Begin()
	defer batch.Discard()

	system := storage.NewPrefixed(batch, systemContext)
	seen, err := system.Get(appliedTxKey(hash))
	if err != nil {
		return failed(rcpt, exchange.Reason(err), err)
	}
	if seen != nil {
		return failed(rcpt, ReasonAlreadyApplied, fmt.Errorf("transaction %s already applied", hash.Hex()))
	}

	outputs, err := a.payOutputs(batch, witnesses, tx.Outputs)
	if err != nil {
		return failed(rcpt, exchange.Reason(err), err)
	}

	env := exchange.Env{
		Store:   storage.NewPrefixed(batch, exchangeContext),
		Witness: witnesses,
		Tx:      exchange.TxContext{Hash: hash, Outputs: outputs},
		Tokens:  tokenRegistry{kv: batch, system: system, witness: witnesses},
	}
	res, err := a.engine.Execute(env, req)
	if err != nil {
		return failed(rcpt, exchange.Reason(err), err)
	}

	if err := system.Set(appliedTxKey(hash), storage.Marker); err != nil {
		return failed(rcpt, exchange.Reason(err), err)
	}
	if err := sealWrites(batch); err != nil {
		return failed(rcpt, exchange.Reason(err), err)
	}
	if err := batch.Commit(); err != nil {
		return failed(rcpt, exchange.Reason(err), err)
	}

	rcpt.OK = true
	rcpt.Events = res.Events
	return rcpt
}

// payOutputs moves native assets for each output and returns them in the
// form the exchange's deposit verifier reads.
func (a *App) payOutputs(kv storage.KV, witnesses transaction.WitnessSet, outs []transaction.Output) ([]exchange.Output, error) {
	native := ledger.New(storage.NewPrefixed(kv, nativeContext))
	converted := make([]exchange.Output, 0, len(outs))
	for _, o := range outs {
		if !witnesses.CheckWitness(o.From) {
			return nil, exchange.ErrUnauthorized.New("output from %s", o.From.Hex())
		}
		value := o.Value.ToInt()
		id := asset.Native(o.Asset)
		if err := native.Debit(o.From, id, value); err != nil {
			return nil, err
		}
		if err := native.Credit(o.To, id, value); err != nil {
			return nil, err
		}
		converted = append(converted, exchange.Output{Asset: o.Asset, To: o.To, Value: new(big.Int).Set(value)})
	}
	return converted, nil
}

func failed(r Receipt, reason string, err error) Receipt {
	r.OK = false
	r.Reason = reason
	r.Error = err.Error()
	return r
}

// sealWrites folds the batch's write set into the running state root and
// stores the new root in the same batch. The root chains every committed
// write set, so a block costs only what it writes.
func sealWrites(b *storage.Batch) error {
	system := storage.NewPrefixed(b, systemContext)
	prev, err := system.Get(rootKey)
	if err != nil {
		return err
	}
	root := ethcrypto.Keccak256Hash(prev, ethcrypto.Keccak256(b.Repr()))
	return system.Set(rootKey, root.Bytes())
}

func (a *App) stateRoot() (common.Hash, error) {
	raw, err := storage.NewPrefixed(a.store, systemContext).Get(rootKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to read state root: %w", err)
	}
	return common.BytesToHash(raw), nil
}

// Close releases the notifier; the store belongs to the caller
func (a *App) Close() error {
	return a.notifier.Close()
}
