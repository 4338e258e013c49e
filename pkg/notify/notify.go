package notify

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/uhyunpark/tokenswap/pkg/app/exchange"
)

// Error is the error class for notification delivery failures.
var Error = errs.Class("notify")

// Notifier delivers the events of a committed transaction to off-chain
// observers. Delivery failures never affect committed state.
type Notifier interface {
	Publish(ctx context.Context, tx common.Hash, events []exchange.Event) error
	Close() error
}

// Envelope is the JSON shape of one published event
type Envelope struct {
	Event  string          `json:"event"`
	TxHash common.Hash     `json:"txHash"`
	Data   json.RawMessage `json:"data"`
}

// Encode wraps an event in its envelope
func Encode(tx common.Hash, ev exchange.Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	out, err := json.Marshal(Envelope{Event: ev.Name(), TxHash: tx, Data: data})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return out, nil
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(context.Context, common.Hash, []exchange.Event) error { return nil }
func (Nop) Close() error                                                 { return nil }

// Log writes every event to a zap logger
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	return &Log{log: log.Named("events")}
}

func (l *Log) Publish(_ context.Context, tx common.Hash, events []exchange.Event) error {
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return Error.Wrap(err)
		}
		l.log.Info(ev.Name(), zap.Stringer("tx", tx), zap.ByteString("data", data))
	}
	return nil
}

func (l *Log) Close() error { return nil }

// Multi fans events out to several notifiers
type Multi []Notifier

func (m Multi) Publish(ctx context.Context, tx common.Hash, events []exchange.Event) error {
	var group errs.Group
	for _, n := range m {
		group.Add(n.Publish(ctx, tx, events))
	}
	return group.Err()
}

func (m Multi) Close() error {
	var group errs.Group
	for _, n := range m {
		group.Add(n.Close())
	}
	return group.Err()
}
