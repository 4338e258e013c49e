package exchange

import (
	"github.com/zeebo/errs"

	"github.com/uhyunpark/tokenswap/pkg/app/exchange/asset"
	"github.com/uhyunpark/tokenswap/pkg/app/exchange/deposit"
	"github.com/uhyunpark/tokenswap/pkg/app/exchange/ledger"
	"github.com/uhyunpark/tokenswap/pkg/app/exchange/orders"
	"github.com/uhyunpark/tokenswap/pkg/storage"
)

// Failure classes. Any error from Execute means the invocation must be
// discarded as a whole.
var (
	ErrUnauthorized     = errs.Class("unauthorized")
	ErrInvalidTerms     = errs.Class("invalid terms")
	ErrDuplicateOrder   = errs.Class("duplicate order")
	ErrOrderNotFound    = errs.Class("order not found")
	ErrSelfTrade        = errs.Class("self trade")
	ErrOverFill         = errs.Class("over fill")
	ErrUnknownOperation = errs.Class("unknown operation")
	ErrInvalidArgument  = errs.Class("invalid argument")

	// raised by the ledger and deposit verifier; pointers keep class identity
	ErrInvalidAmount     = &ledger.ErrInvalidAmount
	ErrInsufficientFunds = &ledger.ErrInsufficientFunds

	ErrAmountMismatch      = &deposit.ErrAmountMismatch
	ErrDuplicateDeposit    = &deposit.ErrDuplicateDeposit
	ErrAssetNotWhitelisted = &deposit.ErrAssetNotWhitelisted
	ErrTransferRejected    = &deposit.ErrTransferRejected
)

var reasons = []struct {
	class *errs.Class
	name  string
}{
	{&ErrUnauthorized, "Unauthorized"},
	{&ErrInvalidTerms, "InvalidTerms"},
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrInsufficientFunds, "InsufficientFunds"},
	{&ErrDuplicateOrder, "DuplicateOrder"},
	{&ErrOrderNotFound, "OrderNotFound"},
	{&ErrSelfTrade, "SelfTrade"},
	{&ErrOverFill, "OverFill"},
	{ErrAmountMismatch, "AmountMismatch"},
	{ErrDuplicateDeposit, "DuplicateDeposit"},
	{ErrAssetNotWhitelisted, "AssetNotWhitelisted"},
	{ErrTransferRejected, "TransferRejected"},
	{&ErrUnknownOperation, "UnknownOperation"},
	{&ErrInvalidArgument, "InvalidArgument"},
	{&asset.ErrInvalidID, "InvalidArgument"},
	{&orders.ErrCorrupt, "Internal"},
	{&storage.Error, "Internal"},
}

// Reason names the failure class of err, "" for nil and "Internal" for
// anything unclassified.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if r.class.Has(err) {
			return r.name
		}
	}
	return "Internal"
}
