package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/uhyunpark/tokenswap/params"
	"github.com/uhyunpark/tokenswap/pkg/app/core/transaction"
	"github.com/uhyunpark/tokenswap/pkg/app/exchange/asset"
	"github.com/uhyunpark/tokenswap/pkg/app/swap"
	"github.com/uhyunpark/tokenswap/pkg/crypto"
	"github.com/uhyunpark/tokenswap/pkg/notify"
	"github.com/uhyunpark/tokenswap/pkg/storage"
	"github.com/uhyunpark/tokenswap/pkg/util"
)

var envPath string

// node bundles an opened data dir with the app running over it
type node struct {
	cfg    params.Config
	store  *storage.Store
	app    *swap.App
	logger *zap.Logger
}

func openNode() (*node, error) {
	cfg := params.LoadFromEnv(envPath)

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile, cfg.Node.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	store, err := storage.Open(cfg.Node.DataDir, cfg.Node.StorageSync)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	notifier := notify.Multi{notify.NewLog(logger)}
	if len(cfg.Kafka.Brokers) > 0 {
		notifier = append(notifier, notify.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic))
	}

	app := swap.NewApp(swap.Config{
		Exchange:      cfg.Exchange.Address,
		Admin:         cfg.Exchange.Admin,
		MaxBlockBytes: cfg.Node.MaxBlockBytes,
	}, store, notifier, logger.Sugar())

	logger.Sugar().Infow("node_opened", "data_dir", cfg.Node.DataDir, "exchange", cfg.Exchange.Address.Hex(), "kafka", len(cfg.Kafka.Brokers) > 0)
	return &node{cfg: cfg, store: store, app: app, logger: logger}, nil
}

func (n *node) Close() error {
	err := n.app.Close()
	if cerr := n.store.Close(); err == nil {
		err = cerr
	}
	_ = n.logger.Sync()
	return err
}

func withNode(fn func(c *cli.Context, n *node) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		n, err := openNode()
		if err != nil {
			return err
		}
		defer n.Close()
		return fn(c, n)
	}
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func parseAmount(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 0)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return n, nil
}

// parseArg reads a positional invocation argument: 0x-prefixed hex is taken
// as raw bytes, anything else as a decimal amount
func parseArg(s string) ([]byte, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return hexutil.Decode("0x" + s[2:])
	}
	n, err := parseAmount(s)
	if err != nil {
		return nil, err
	}
	return n.Bytes(), nil
}

// parseOutput reads FROM:ASSET:TO:VALUE
func parseOutput(s string) (transaction.Output, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return transaction.Output{}, fmt.Errorf("output %q must be FROM:ASSET:TO:VALUE", s)
	}
	if !common.IsHexAddress(parts[0]) || !common.IsHexAddress(parts[2]) {
		return transaction.Output{}, fmt.Errorf("output %q: invalid address", s)
	}
	id, err := hexutil.Decode(parts[1])
	if err != nil || len(id) != common.HashLength {
		return transaction.Output{}, fmt.Errorf("output %q: asset must be a 32-byte hex id", s)
	}
	value, err := parseAmount(parts[3])
	if err != nil {
		return transaction.Output{}, err
	}
	return transaction.Output{
		From:  common.HexToAddress(parts[0]),
		Asset: common.BytesToHash(id),
		To:    common.HexToAddress(parts[2]),
		Value: (*hexutil.Big)(value),
	}, nil
}

func parsePair(s string) (asset.TradingPair, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return asset.TradingPair{}, fmt.Errorf("invalid pair %q: %w", s, err)
	}
	return asset.ParsePair(b)
}

func parseRef(s string) (asset.Ref, error) {
	var ref asset.Ref
	if err := ref.UnmarshalText([]byte(s)); err != nil {
		return asset.Ref{}, err
	}
	return ref, nil
}

func keygen(c *cli.Context) error {
	signer, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	fmt.Printf("address:     %s\n", signer.Address().Hex())
	fmt.Printf("private key: 0x%s\n", signer.PrivateKeyHex())
	return nil
}

func signTx(c *cli.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return fmt.Errorf("sign needs an operation, please check usage using ./swap -h")
	}
	keys := c.StringSlice("key")
	if len(keys) == 0 {
		return fmt.Errorf("sign needs at least one --key")
	}

	var raw [][]byte
	for _, a := range args[1:] {
		b, err := parseArg(a)
		if err != nil {
			return err
		}
		raw = append(raw, b)
	}

	var outputs []transaction.Output
	for _, o := range c.StringSlice("output") {
		out, err := parseOutput(o)
		if err != nil {
			return err
		}
		outputs = append(outputs, out)
	}

	nonce := new(big.Int)
	if s := c.String("nonce"); s != "" {
		n, err := parseAmount(s)
		if err != nil {
			return err
		}
		nonce = n
	} else {
		b, err := crypto.GenerateNonce(8)
		if err != nil {
			return err
		}
		nonce.SetBytes(b)
	}

	cfg := params.LoadFromEnv(envPath)
	eip712 := crypto.NewEIP712Signer(crypto.DefaultDomain(cfg.Exchange.Address))

	tx := transaction.New(args[0], raw, outputs, nonce)
	for _, k := range keys {
		signer, err := crypto.FromPrivateKeyHex(k)
		if err != nil {
			return err
		}
		if err := tx.Sign(eip712, signer); err != nil {
			return err
		}
	}
	if err := tx.Validate(); err != nil {
		return err
	}

	out, err := tx.Serialize()
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func applyTxs(c *cli.Context, n *node) error {
	var in io.Reader = os.Stdin
	if path := c.Args().First(); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		n.app.PushTx([]byte(line))
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	block, err := n.app.ProduceBlock(context.Background())
	if err != nil {
		return err
	}
	return printJSON(block)
}

func initGenesis(c *cli.Context, n *node) error {
	return n.app.InitWhitelist(!n.cfg.Exchange.WhitelistDisabled)
}

func printBalance(c *cli.Context, n *node) error {
	args := c.Args()
	if len(args) != 2 || !common.IsHexAddress(args[0]) {
		return fmt.Errorf("usage: ./swap balance OWNER ASSET")
	}
	ref, err := parseRef(args[1])
	if err != nil {
		return err
	}
	bal, err := n.app.Balance(common.HexToAddress(args[0]), ref)
	if err != nil {
		return err
	}
	fmt.Println(bal.String())
	return nil
}

func printOrder(c *cli.Context, n *node) error {
	args := c.Args()
	if len(args) != 2 {
		return fmt.Errorf("usage: ./swap order PAIR ORDER_HASH")
	}
	pair, err := parsePair(args[0])
	if err != nil {
		return err
	}
	hash, err := hexutil.Decode(args[1])
	if err != nil || len(hash) != common.HashLength {
		return fmt.Errorf("invalid order hash %q", args[1])
	}
	o, err := n.app.Order(pair, common.BytesToHash(hash))
	if err != nil {
		return err
	}
	if !o.Exists() {
		return fmt.Errorf("order %s not found", args[1])
	}
	return printJSON(o)
}

func listOrders(c *cli.Context, n *node) error {
	pair, err := parsePair(c.Args().First())
	if err != nil {
		return err
	}
	list, err := n.app.Orders(pair)
	if err != nil {
		return err
	}
	return printJSON(list)
}

func mint(c *cli.Context, n *node) error {
	args := c.Args()
	if len(args) != 3 || !common.IsHexAddress(args[1]) {
		return fmt.Errorf("usage: ./swap mint ASSET OWNER AMOUNT")
	}
	ref, err := parseRef(args[0])
	if err != nil {
		return err
	}
	owner := common.HexToAddress(args[1])
	amount, err := parseAmount(args[2])
	if err != nil {
		return err
	}
	if ref.IsNative() {
		return n.app.MintNative(ref.NativeID(), owner, amount)
	}
	return n.app.MintToken(ref.ContractAddress(), owner, amount)
}

func main() {
	app := cli.NewApp()
	app.Name = "swap"
	app.Usage = "peer-to-peer token swap exchange"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "env, e",
			Usage:       "path to the .env file (default: .env in the working directory)",
			Destination: &envPath,
		},
	}

	app.Commands = []cli.Command{
		{
			Name:   "keygen",
			Usage:  "Generate a secp256k1 account: ./swap keygen",
			Action: keygen,
		},
		{
			Name:  "sign",
			Usage: "Build and sign a transaction: ./swap sign -k KEY [-o FROM:ASSET:TO:VALUE] OP ARG... (0x-prefixed args are bytes, others decimal amounts)",
			Flags: []cli.Flag{
				cli.StringSliceFlag{Name: "key, k", Usage: "hex private key of a witness, repeatable"},
				cli.StringSliceFlag{Name: "output, o", Usage: "native output FROM:ASSET:TO:VALUE, repeatable"},
				cli.StringFlag{Name: "nonce, n", Usage: "transaction nonce (default: random)"},
			},
			Action: signTx,
		},
		{
			Name:   "apply",
			Usage:  "Apply signed JSON transactions, one per line, as one block: ./swap apply [FILE]",
			Action: withNode(applyTxs),
		},
		{
			Name:   "init",
			Usage:  "Write genesis whitelist enforcement from WHITELIST_DISABLED: ./swap init",
			Action: withNode(initGenesis),
		},
		{
			Name:   "balance",
			Usage:  "Print an escrowed balance: ./swap balance OWNER ASSET",
			Action: withNode(printBalance),
		},
		{
			Name:   "order",
			Usage:  "Print an open order: ./swap order PAIR ORDER_HASH",
			Action: withNode(printOrder),
		},
		{
			Name:   "orders",
			Usage:  "List the open orders of a pair: ./swap orders PAIR",
			Action: withNode(listOrders),
		},
		{
			Name:   "mint",
			Usage:  "Fund a devnet account with a native asset or token: ./swap mint ASSET OWNER AMOUNT",
			Action: withNode(mint),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "command failed with error: %v\n", err)
		os.Exit(1)
	}
}
