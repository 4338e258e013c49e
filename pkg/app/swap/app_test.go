package swap

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/uhyunpark/tokenswap/pkg/abci"
	"github.com/uhyunpark/tokenswap/pkg/app/core/transaction"
	"github.com/uhyunpark/tokenswap/pkg/app/exchange"
	"github.com/uhyunpark/tokenswap/pkg/app/exchange/asset"
	"github.com/uhyunpark/tokenswap/pkg/app/exchange/orders"
	"github.com/uhyunpark/tokenswap/pkg/crypto"
	"github.com/uhyunpark/tokenswap/pkg/storage"
)

var (
	exchangeAddr = common.HexToAddress("0xe8c4a4e")
	idA          = common.HexToHash("0xaa")
	idB          = common.HexToHash("0xbb")
	assetA       = asset.Native(idA)
	assetB       = asset.Native(idB)
	tokenAddr    = common.HexToAddress("0x70ce4")
)

type recorder struct {
	mu     sync.Mutex
	events []exchange.Event
}

func (r *recorder) Publish(_ context.Context, _ common.Hash, events []exchange.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

func (r *recorder) Close() error { return nil }

type fixture struct {
	t      *testing.T
	app    *App
	events *recorder
	eip712 *crypto.EIP712Signer
	nonce  int64

	admin, alice, bob *crypto.Signer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{t: t, events: &recorder{}}
	for _, s := range []**crypto.Signer{&f.admin, &f.alice, &f.bob} {
		*s, err = crypto.GenerateKey()
		require.NoError(t, err)
	}

	f.app = NewApp(Config{Exchange: exchangeAddr, Admin: f.admin.Address()}, store, f.events, zaptest.NewLogger(t).Sugar())
	f.eip712 = crypto.NewEIP712Signer(f.app.Domain())
	return f
}

func (f *fixture) raw(req exchange.Request, outputs []transaction.Output, signers ...*crypto.Signer) []byte {
	f.t.Helper()
	op, args, err := exchange.EncodeInvocation(req)
	require.NoError(f.t, err)

	f.nonce++
	tx := transaction.New(op, args, outputs, big.NewInt(f.nonce))
	for _, s := range signers {
		require.NoError(f.t, tx.Sign(f.eip712, s))
	}
	raw, err := tx.Serialize()
	require.NoError(f.t, err)
	return raw
}

func (f *fixture) apply(req exchange.Request, outputs []transaction.Output, signers ...*crypto.Signer) Receipt {
	f.t.Helper()
	return f.app.ApplyTx(context.Background(), f.raw(req, outputs, signers...))
}

func (f *fixture) pay(from *crypto.Signer, id common.Hash, value int64) []transaction.Output {
	return []transaction.Output{{From: from.Address(), Asset: id, To: exchangeAddr, Value: hexBig(value)}}
}

func (f *fixture) deposit(who *crypto.Signer, id common.Hash, amount int64) Receipt {
	f.t.Helper()
	req := exchange.DepositRequest{Caller: who.Address(), Asset: asset.Native(id), Amount: big.NewInt(amount)}
	return f.apply(req, f.pay(who, id, amount), who)
}

func (f *fixture) balance(owner *crypto.Signer, ref asset.Ref) int64 {
	f.t.Helper()
	bal, err := f.app.Balance(owner.Address(), ref)
	require.NoError(f.t, err)
	return bal.Int64()
}

func (f *fixture) native(owner common.Address, id common.Hash) int64 {
	f.t.Helper()
	bal, err := f.app.NativeBalance(owner, id)
	require.NoError(f.t, err)
	return bal.Int64()
}

func hexBig(v int64) *hexutil.Big { return (*hexutil.Big)(big.NewInt(v)) }

func TestNativeDepositThroughOutputs(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.MintNative(idA, f.alice.Address(), big.NewInt(100)))

	raw := f.raw(exchange.DepositRequest{Caller: f.alice.Address(), Asset: assetA, Amount: big.NewInt(40)},
		f.pay(f.alice, idA, 40), f.alice)

	rcpt := f.app.ApplyTx(context.Background(), raw)
	require.True(t, rcpt.OK, rcpt.Error)
	require.NotEqual(t, common.Hash{}, rcpt.TxHash)
	require.Equal(t, int64(40), f.balance(f.alice, assetA))
	require.Equal(t, int64(60), f.native(f.alice.Address(), idA))
	require.Equal(t, int64(40), f.native(exchangeAddr, idA))
	require.Len(t, f.events.events, 1)
	require.IsType(t, exchange.Deposited{}, f.events.events[0])

	// the same signed transaction cannot run twice
	again := f.app.ApplyTx(context.Background(), raw)
	require.False(t, again.OK)
	require.Equal(t, ReasonAlreadyApplied, again.Reason)
	require.Equal(t, int64(40), f.balance(f.alice, assetA))
	require.Equal(t, int64(60), f.native(f.alice.Address(), idA))
	require.Len(t, f.events.events, 1)
}

func TestFailedTransactionLeavesNoState(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.MintNative(idA, f.alice.Address(), big.NewInt(100)))

	// the claimed amount does not match the output, so the payment is rolled back too
	rcpt := f.apply(exchange.DepositRequest{Caller: f.alice.Address(), Asset: assetA, Amount: big.NewInt(50)},
		f.pay(f.alice, idA, 40), f.alice)
	require.False(t, rcpt.OK)
	require.Equal(t, "AmountMismatch", rcpt.Reason)
	require.Equal(t, int64(100), f.native(f.alice.Address(), idA))
	require.Equal(t, int64(0), f.native(exchangeAddr, idA))
	require.Equal(t, int64(0), f.balance(f.alice, assetA))
	require.Empty(t, f.events.events)

	// spending someone else's native funds needs their witness
	rcpt = f.apply(exchange.DepositRequest{Caller: f.bob.Address(), Asset: assetA, Amount: big.NewInt(40)},
		f.pay(f.alice, idA, 40), f.bob)
	require.False(t, rcpt.OK)
	require.Equal(t, "Unauthorized", rcpt.Reason)
	require.Equal(t, int64(100), f.native(f.alice.Address(), idA))

	// unfunded output
	rcpt = f.deposit(f.bob, idA, 1)
	require.False(t, rcpt.OK)
	require.Equal(t, "InsufficientFunds", rcpt.Reason)
}

func TestRejectsMalformedAndBadSignatures(t *testing.T) {
	f := newFixture(t)

	rcpt := f.app.ApplyTx(context.Background(), []byte("not json"))
	require.False(t, rcpt.OK)
	require.Equal(t, ReasonMalformed, rcpt.Reason)

	op, args, err := exchange.EncodeInvocation(exchange.EnforcementRequest{Enabled: false})
	require.NoError(t, err)
	tx := transaction.New(op, args, nil, big.NewInt(1))
	tx.Signatures = append(tx.Signatures, make([]byte, crypto.SignatureLength))
	raw, err := tx.Serialize()
	require.NoError(t, err)

	rcpt = f.app.ApplyTx(context.Background(), raw)
	require.False(t, rcpt.OK)
	require.Equal(t, ReasonBadSignature, rcpt.Reason)

	// a valid signature by the wrong key is not a witness for the admin
	rcpt = f.apply(exchange.EnforcementRequest{Enabled: false}, nil, f.alice)
	require.False(t, rcpt.OK)
	require.Equal(t, "Unauthorized", rcpt.Reason)

	rcpt = f.apply(exchange.EnforcementRequest{Enabled: false}, nil, f.admin)
	require.True(t, rcpt.OK, rcpt.Error)
}

func TestTradeThroughBlocks(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.MintNative(idA, f.alice.Address(), big.NewInt(100)))
	require.NoError(t, f.app.MintNative(idB, f.bob.Address(), big.NewInt(50)))

	create := exchange.CreateRequest{
		Creator:     f.alice.Address(),
		Offer:       assetA,
		OfferAmount: big.NewInt(100),
		Want:        assetB,
		WantAmount:  big.NewInt(50),
		Nonce:       []byte("n1"),
	}
	hash := orders.Order{
		Creator:     create.Creator,
		Offer:       create.Offer,
		Want:        create.Want,
		OfferAmount: create.OfferAmount,
		WantAmount:  create.WantAmount,
		Nonce:       create.Nonce,
	}.Hash()
	pair := asset.TradingPair{Offer: assetA, Want: assetB}

	// pushed before the deposits that fund them; the block still runs deposits first
	f.app.PushTx(f.raw(create, nil, f.alice))
	f.app.PushTx(f.raw(exchange.AcceptRequest{Filler: f.bob.Address(), Pair: pair, OrderHash: hash, AmountToFill: big.NewInt(25)}, nil, f.bob))
	f.app.PushTx(f.raw(exchange.DepositRequest{Caller: f.alice.Address(), Asset: assetA, Amount: big.NewInt(100)}, f.pay(f.alice, idA, 100), f.alice))
	f.app.PushTx(f.raw(exchange.DepositRequest{Caller: f.bob.Address(), Asset: assetB, Amount: big.NewInt(50)}, f.pay(f.bob, idB, 50), f.bob))
	require.Equal(t, 4, f.app.Pending())

	block, err := f.app.ProduceBlock(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(1), block.Height)
	require.Len(t, block.Receipts, 4)
	require.Equal(t, []string{exchange.OpDeposit, exchange.OpDeposit, exchange.OpCreate, exchange.OpAccept},
		[]string{block.Receipts[0].Op, block.Receipts[1].Op, block.Receipts[2].Op, block.Receipts[3].Op})
	for _, r := range block.Receipts {
		require.True(t, r.OK, r.Error)
	}
	require.Zero(t, f.app.Pending())

	require.Equal(t, int64(25), f.balance(f.bob, assetB))
	require.Equal(t, int64(50), f.balance(f.bob, assetA))
	require.Equal(t, int64(25), f.balance(f.alice, assetB))

	o, err := f.app.Order(pair, hash)
	require.NoError(t, err)
	require.True(t, o.Exists())
	require.Equal(t, int64(50), o.Available.Int64())

	open, err := f.app.Orders(pair)
	require.NoError(t, err)
	require.Len(t, open, 1)

	// only the creator can remove
	rcpt := f.apply(exchange.RemoveRequest{Pair: pair, OrderHash: hash}, nil, f.bob)
	require.Equal(t, "Unauthorized", rcpt.Reason)

	rcpt = f.apply(exchange.RemoveRequest{Pair: pair, OrderHash: hash}, nil, f.alice)
	require.True(t, rcpt.OK, rcpt.Error)
	require.Equal(t, int64(50), rcpt.Events[0].(exchange.OrderRemoved).Refunded.Int64())
	require.Equal(t, int64(50), f.balance(f.alice, assetA))

	open, err = f.app.Orders(pair)
	require.NoError(t, err)
	require.Empty(t, open)

	next, err := f.app.ProduceBlock(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(2), next.Height)
	require.Empty(t, next.Receipts)
	require.NotEqual(t, block.StateRoot, next.StateRoot)

	height, err := f.app.Height()
	require.NoError(t, err)
	require.Equal(t, uint64(2), height)

	var names []string
	for _, ev := range f.events.events {
		names = append(names, ev.Name())
	}
	require.Equal(t, []string{"deposited", "deposited", "created", "accepted", "removed"}, names)
}

func TestTokenDepositNeedsWhitelistAndWitness(t *testing.T) {
	f := newFixture(t)
	tok := asset.Contract(tokenAddr)
	require.NoError(t, f.app.MintToken(tokenAddr, f.alice.Address(), big.NewInt(30)))

	deposit := func(amount int64, signer *crypto.Signer) Receipt {
		return f.apply(exchange.DepositRequest{Caller: f.alice.Address(), Asset: tok, Amount: big.NewInt(amount)}, nil, signer)
	}

	require.Equal(t, "AssetNotWhitelisted", deposit(10, f.alice).Reason)

	rcpt := f.apply(exchange.WhitelistRequest{Token: tokenAddr, Listed: true}, nil, f.admin)
	require.True(t, rcpt.OK, rcpt.Error)
	listed, err := f.app.Whitelisted(tokenAddr)
	require.NoError(t, err)
	require.True(t, listed)

	// the token refuses to move alice's funds on bob's signature
	require.Equal(t, "TransferRejected", deposit(10, f.bob).Reason)

	rcpt = deposit(10, f.alice)
	require.True(t, rcpt.OK, rcpt.Error)
	require.Equal(t, int64(10), f.balance(f.alice, tok))

	held, err := f.app.TokenBalance(tokenAddr, exchangeAddr)
	require.NoError(t, err)
	require.Equal(t, int64(10), held.Int64())
	left, err := f.app.TokenBalance(tokenAddr, f.alice.Address())
	require.NoError(t, err)
	require.Equal(t, int64(20), left.Int64())

	require.Equal(t, "TransferRejected", deposit(21, f.alice).Reason)

	// whitelisted but never deployed
	other := common.HexToAddress("0x0dd")
	rcpt = f.apply(exchange.WhitelistRequest{Token: other, Listed: true}, nil, f.admin)
	require.True(t, rcpt.OK, rcpt.Error)
	rcpt = f.apply(exchange.DepositRequest{Caller: f.alice.Address(), Asset: asset.Contract(other), Amount: big.NewInt(1)}, nil, f.alice)
	require.Equal(t, "TransferRejected", rcpt.Reason)
}

func TestInitWhitelistDisablesEnforcement(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.MintToken(tokenAddr, f.alice.Address(), big.NewInt(5)))
	require.NoError(t, f.app.InitWhitelist(false))

	rcpt := f.apply(exchange.DepositRequest{Caller: f.alice.Address(), Asset: asset.Contract(tokenAddr), Amount: big.NewInt(5)}, nil, f.alice)
	require.True(t, rcpt.OK, rcpt.Error)
	require.Equal(t, int64(5), f.balance(f.alice, asset.Contract(tokenAddr)))
}

func TestFinalizeBlockChecksHeight(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.MintNative(idA, f.alice.Address(), big.NewInt(10)))
	tx := f.raw(exchange.DepositRequest{Caller: f.alice.Address(), Asset: assetA, Amount: big.NewInt(10)}, f.pay(f.alice, idA, 10), f.alice)

	_, err := f.app.FinalizeBlock(abci.RequestFinalizeBlock{Height: 2, Txs: [][]byte{tx}})
	require.Error(t, err)
	require.Equal(t, int64(0), f.balance(f.alice, assetA))

	res, err := f.app.FinalizeBlock(abci.RequestFinalizeBlock{Height: 1, Txs: [][]byte{tx, []byte("{}")}})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	require.True(t, res.Results[0].OK, res.Results[0].Error)
	require.Equal(t, ReasonMalformed, res.Results[1].Reason)
	require.NotEqual(t, common.Hash{}, res.AppHash)
	require.Equal(t, int64(10), f.balance(f.alice, assetA))
}

func TestProcessProposalSizeLimit(t *testing.T) {
	f := newFixture(t)
	f.app.cfg.MaxBlockBytes = 8

	require.True(t, f.app.ProcessProposal(abci.RequestProcessProposal{Height: 1, Txs: [][]byte{[]byte("12345678")}}).Accept)
	require.False(t, f.app.ProcessProposal(abci.RequestProcessProposal{Height: 1, Txs: [][]byte{[]byte("12345"), []byte("6789")}}).Accept)
}

func TestStateRootFollowsCommittedWrites(t *testing.T) {
	f := newFixture(t)
	other := newFixture(t)
	holder := common.HexToAddress("0x40")

	empty, err := f.app.StateRoot()
	require.NoError(t, err)
	require.Equal(t, common.Hash{}, empty)

	// the same genesis writes yield the same root
	require.NoError(t, f.app.MintNative(idA, holder, big.NewInt(100)))
	require.NoError(t, other.app.MintNative(idA, holder, big.NewInt(100)))
	root, err := f.app.StateRoot()
	require.NoError(t, err)
	require.NotEqual(t, common.Hash{}, root)
	otherRoot, err := other.app.StateRoot()
	require.NoError(t, err)
	require.Equal(t, root, otherRoot)

	// a failed transaction leaves the root alone
	rcpt := f.deposit(f.alice, idA, 10)
	require.False(t, rcpt.OK)
	after, err := f.app.StateRoot()
	require.NoError(t, err)
	require.Equal(t, root, after)

	require.NoError(t, f.app.MintNative(idA, f.alice.Address(), big.NewInt(10)))
	funded, err := f.app.StateRoot()
	require.NoError(t, err)
	rcpt = f.deposit(f.alice, idA, 10)
	require.True(t, rcpt.OK, rcpt.Error)
	after, err = f.app.StateRoot()
	require.NoError(t, err)
	require.NotEqual(t, funded, after)

	block, err := f.app.ProduceBlock(context.Background())
	require.NoError(t, err)
	require.Equal(t, after, block.StateRoot)
}
