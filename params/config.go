package params

import (
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

type Exchange struct {
	// Address is the exchange's own account; native deposits must pay it and
	// every signature is bound to it through the EIP-712 domain.
	Address common.Address
	// Admin may change the token whitelist. The zero address disables admin
	// operations entirely.
	Admin common.Address
	// WhitelistDisabled turns off token whitelist enforcement at genesis
	WhitelistDisabled bool
}

type Node struct {
	DataDir string
	// StorageSync fsyncs every committed batch. Devnets can turn it off.
	StorageSync bool
	// MaxBlockBytes caps one proposal; 0 means no limit
	MaxBlockBytes int64
	LogFile       string
	LogLevel      string
}

type Kafka struct {
	// Brokers is empty when events are only logged
	Brokers []string
	Topic   string
}

type Config struct {
	Exchange Exchange
	Node     Node
	Kafka    Kafka
}

func Default() Config {
	return Config{
		Exchange: Exchange{
			Address: common.HexToAddress("0x00000000000000000000000000000000e8c4a4e0"),
		},
		Node: Node{
			DataDir:       "data/swap",
			StorageSync:   true,
			MaxBlockBytes: 1 << 20,
			LogFile:       "data/swap.log",
			LogLevel:      "info",
		},
		Kafka: Kafka{
			Topic: "tokenswap.events",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// godotenv never overrides variables already set in the environment
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if addr := os.Getenv("EXCHANGE_ADDRESS"); common.IsHexAddress(addr) {
		cfg.Exchange.Address = common.HexToAddress(addr)
	}
	if admin := os.Getenv("EXCHANGE_ADMIN"); common.IsHexAddress(admin) {
		cfg.Exchange.Admin = common.HexToAddress(admin)
	}
	if v := os.Getenv("WHITELIST_DISABLED"); v != "" {
		cfg.Exchange.WhitelistDisabled = v == "true"
	}

	cfg.Node.DataDir = getEnv("DATA_DIR", cfg.Node.DataDir)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)
	cfg.Node.LogLevel = getEnv("LOG_LEVEL", cfg.Node.LogLevel)
	if v := os.Getenv("STORAGE_SYNC"); v != "" {
		cfg.Node.StorageSync = v == "true"
	}
	if v := os.Getenv("MAX_BLOCK_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Node.MaxBlockBytes = n
		}
	}

	// Example: "localhost:9092,localhost:9093"
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = nil
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
