package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PRIMARY_WALLET_ADDRESS", "PrimaryWallet111111111111111111111111111111")
	t.Setenv("SECONDARY_WALLET_ADDRESS", "SecondaryWallet1111111111111111111111111111")
	t.Setenv("WATCHED_MINT_ADDRESS", "WatchedMint11111111111111111111111111111111")
	t.Setenv("TELEGRAM_BOT_TOKEN", "test-token")
	t.Setenv("TELEGRAM_CHAT_IDS", "111")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.SolanaRPCURL)
	assert.Empty(t, cfg.SolanaAltRPCURL)
	assert.Equal(t, "1nc1nerator11111111111111111111111111111111", cfg.IncineratorAddress)
	assert.Equal(t, 15*time.Second, cfg.PollInterval)
	assert.Equal(t, 10, cfg.SignatureLimit)
	assert.Equal(t, CursorPolicyBatch, cfg.CursorPolicy)
	assert.Equal(t, "data/cursors.json", cfg.CursorFilePath)
	assert.Equal(t, "data/manual_prices.json", cfg.ManualPriceFilePath)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.NATSURL)
}

func TestLoadReportsAllMissingFields(t *testing.T) {
	// Only one of the required fields set.
	t.Setenv("PRIMARY_WALLET_ADDRESS", "PrimaryWallet111111111111111111111111111111")
	t.Setenv("SECONDARY_WALLET_ADDRESS", "")
	t.Setenv("WATCHED_MINT_ADDRESS", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_IDS", "")
	t.Setenv("TELEGRAM_CHAT_ID", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SECONDARY_WALLET_ADDRESS")
	assert.Contains(t, err.Error(), "WATCHED_MINT_ADDRESS")
	assert.Contains(t, err.Error(), "TELEGRAM_BOT_TOKEN")
	assert.Contains(t, err.Error(), "TELEGRAM_CHAT_IDS")
	assert.NotContains(t, err.Error(), "PRIMARY_WALLET_ADDRESS")
}

func TestLoadChatIDsCommaSeparated(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TELEGRAM_CHAT_IDS", "111, 222 ,,333")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"111", "222", "333"}, cfg.TelegramChatIDs)
}

func TestLoadSingleChatIDFallback(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TELEGRAM_CHAT_IDS", "")
	t.Setenv("TELEGRAM_CHAT_ID", "999")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"999"}, cfg.TelegramChatIDs)
}

func TestLoadPollIntervalFormats(t *testing.T) {
	setRequiredEnv(t)

	// Go duration syntax.
	t.Setenv("POLL_INTERVAL", "30s")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)

	// Bare seconds.
	t.Setenv("POLL_INTERVAL", "45")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.PollInterval)

	t.Setenv("POLL_INTERVAL", "soon")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POLL_INTERVAL")
}

func TestLoadSignatureLimitValidation(t *testing.T) {
	setRequiredEnv(t)

	t.Setenv("SIGNATURE_LIMIT", "25")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.SignatureLimit)

	t.Setenv("SIGNATURE_LIMIT", "0")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SIGNATURE_LIMIT must be positive")

	t.Setenv("SIGNATURE_LIMIT", "many")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadCursorPolicyValidation(t *testing.T) {
	setRequiredEnv(t)

	t.Setenv("CURSOR_POLICY", "signature")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, CursorPolicySignature, cfg.CursorPolicy)

	t.Setenv("CURSOR_POLICY", "eager")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CURSOR_POLICY")
}
