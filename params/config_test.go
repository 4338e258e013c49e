package params

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"EXCHANGE_ADDRESS", "EXCHANGE_ADMIN", "WHITELIST_DISABLED",
	"DATA_DIR", "LOG_FILE", "LOG_LEVEL", "STORAGE_SYNC", "MAX_BLOCK_BYTES",
	"KAFKA_BROKERS", "KAFKA_TOPIC",
}

// clearEnv unsets every key for the test and restores it afterwards
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func writeEnvFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))
	require.Equal(t, Default(), cfg)
	require.Equal(t, common.Address{}, cfg.Exchange.Admin)
	require.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadFromEnvFile(t *testing.T) {
	clearEnv(t)

	path := writeEnvFile(t, `
EXCHANGE_ADMIN=0x00000000000000000000000000000000000000ad
DATA_DIR=/tmp/swap
STORAGE_SYNC=false
MAX_BLOCK_BYTES=4096
KAFKA_BROKERS=k1:9092, k2:9092
WHITELIST_DISABLED=true
`)
	cfg := LoadFromEnv(path)

	require.Equal(t, common.HexToAddress("0xad"), cfg.Exchange.Admin)
	require.Equal(t, Default().Exchange.Address, cfg.Exchange.Address)
	require.True(t, cfg.Exchange.WhitelistDisabled)
	require.Equal(t, "/tmp/swap", cfg.Node.DataDir)
	require.False(t, cfg.Node.StorageSync)
	require.Equal(t, int64(4096), cfg.Node.MaxBlockBytes)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, "tokenswap.events", cfg.Kafka.Topic)
}

func TestEnvironmentBeatsFile(t *testing.T) {
	clearEnv(t)

	path := writeEnvFile(t, "DATA_DIR=/from/file\nLOG_LEVEL=debug\n")
	t.Setenv("DATA_DIR", "/from/env")
	t.Setenv("EXCHANGE_ADDRESS", "not-an-address")

	cfg := LoadFromEnv(path)
	require.Equal(t, "/from/env", cfg.Node.DataDir)
	require.Equal(t, "debug", cfg.Node.LogLevel)
	require.Equal(t, Default().Exchange.Address, cfg.Exchange.Address)
}
