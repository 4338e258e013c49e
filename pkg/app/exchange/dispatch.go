package exchange

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/tokenswap/pkg/app/exchange/asset"
)

// DecodeInvocation turns an operation name and positional byte arguments
// into a typed request. Integers are big-endian unsigned.
//
//	deposit     caller, assetID, amount
//	create      creator, offerID, offerAmount, wantID, wantAmount, availableAmount, nonce
//	accept      filler, pair, orderHash, amountToFill
//	remove      pair, orderHash
//	whitelist   token, listed (1 byte, non-zero = listed)
//	enforcement enabled (1 byte, non-zero = enabled)
//
// availableAmount on create is accepted for layout compatibility and
// ignored: orders always open with their full offer amount.
func DecodeInvocation(op string, args [][]byte) (Request, error) {
	switch op {
	case OpDeposit:
		if err := arity(op, args, 3); err != nil {
			return nil, err
		}
		caller, err := address(args[0])
		if err != nil {
			return nil, err
		}
		a, err := asset.Parse(args[1])
		if err != nil {
			return nil, err
		}
		return DepositRequest{Caller: caller, Asset: a, Amount: amount(args[2])}, nil

	case OpCreate:
		if err := arity(op, args, 7); err != nil {
			return nil, err
		}
		creator, err := address(args[0])
		if err != nil {
			return nil, err
		}
		offer, err := asset.Parse(args[1])
		if err != nil {
			return nil, err
		}
		want, err := asset.Parse(args[3])
		if err != nil {
			return nil, err
		}
		return CreateRequest{
			Creator:     creator,
			Offer:       offer,
			OfferAmount: amount(args[2]),
			Want:        want,
			WantAmount:  amount(args[4]),
			Nonce:       common.CopyBytes(args[6]),
		}, nil

	case OpAccept:
		if err := arity(op, args, 4); err != nil {
			return nil, err
		}
		filler, err := address(args[0])
		if err != nil {
			return nil, err
		}
		pair, err := asset.ParsePair(args[1])
		if err != nil {
			return nil, err
		}
		hash, err := orderHash(args[2])
		if err != nil {
			return nil, err
		}
		return AcceptRequest{Filler: filler, Pair: pair, OrderHash: hash, AmountToFill: amount(args[3])}, nil

	case OpRemove:
		if err := arity(op, args, 2); err != nil {
			return nil, err
		}
		pair, err := asset.ParsePair(args[0])
		if err != nil {
			return nil, err
		}
		hash, err := orderHash(args[1])
		if err != nil {
			return nil, err
		}
		return RemoveRequest{Pair: pair, OrderHash: hash}, nil

	case OpWhitelist:
		if err := arity(op, args, 2); err != nil {
			return nil, err
		}
		token, err := address(args[0])
		if err != nil {
			return nil, err
		}
		return WhitelistRequest{Token: token, Listed: flag(args[1])}, nil

	case OpEnforcement:
		if err := arity(op, args, 1); err != nil {
			return nil, err
		}
		return EnforcementRequest{Enabled: flag(args[0])}, nil

	default:
		return nil, ErrUnknownOperation.New("%q", op)
	}
}

// EncodeInvocation is the inverse of DecodeInvocation
func EncodeInvocation(req Request) (string, [][]byte, error) {
	switch r := req.(type) {
	case DepositRequest:
		return OpDeposit, [][]byte{r.Caller.Bytes(), r.Asset.Bytes(), amountBytes(r.Amount)}, nil
	case CreateRequest:
		return OpCreate, [][]byte{
			r.Creator.Bytes(),
			r.Offer.Bytes(), amountBytes(r.OfferAmount),
			r.Want.Bytes(), amountBytes(r.WantAmount),
			amountBytes(r.OfferAmount),
			r.Nonce,
		}, nil
	case AcceptRequest:
		return OpAccept, [][]byte{r.Filler.Bytes(), r.Pair.Bytes(), r.OrderHash.Bytes(), amountBytes(r.AmountToFill)}, nil
	case RemoveRequest:
		return OpRemove, [][]byte{r.Pair.Bytes(), r.OrderHash.Bytes()}, nil
	case WhitelistRequest:
		return OpWhitelist, [][]byte{r.Token.Bytes(), boolByte(r.Listed)}, nil
	case EnforcementRequest:
		return OpEnforcement, [][]byte{boolByte(r.Enabled)}, nil
	default:
		return "", nil, ErrUnknownOperation.New("%T", req)
	}
}

func arity(op string, args [][]byte, n int) error {
	if len(args) != n {
		return ErrInvalidArgument.New("%s takes %d arguments, got %d", op, n, len(args))
	}
	return nil
}

func address(b []byte) (common.Address, error) {
	if len(b) != common.AddressLength {
		return common.Address{}, ErrInvalidArgument.New("address must be %d bytes, got %d", common.AddressLength, len(b))
	}
	return common.BytesToAddress(b), nil
}

func orderHash(b []byte) (common.Hash, error) {
	if len(b) != common.HashLength {
		return common.Hash{}, ErrInvalidArgument.New("order hash must be %d bytes, got %d", common.HashLength, len(b))
	}
	return common.BytesToHash(b), nil
}

func amount(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

func amountBytes(n *big.Int) []byte {
	if n == nil {
		return nil
	}
	return n.Bytes()
}

func flag(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return true
		}
	}
	return false
}

func boolByte(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}
