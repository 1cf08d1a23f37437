package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Cursor advancement policies. "batch" persists once per address after
// the whole batch succeeds; "signature" persists after every processed
// signature (finer resumability, more writes).
const (
	CursorPolicyBatch     = "batch"
	CursorPolicySignature = "signature"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	LogLevel    string
	MetricsAddr string

	// Solana RPC configuration. The alternate endpoint, if set, is
	// used for failover on rate limiting and transport failure.
	SolanaRPCURL    string
	SolanaAltRPCURL string

	// Watched wallets and token
	PrimaryWallet      string
	SecondaryWallet    string
	WatchedMint        string
	WatchedTokenSymbol string
	IncineratorAddress string

	// Polling configuration
	PollInterval   time.Duration
	SignatureLimit int
	CursorPolicy   string

	// Cursor persistence: Postgres when DatabaseURL is set, otherwise
	// a JSON file at CursorFilePath.
	DatabaseURL    string
	CursorFilePath string

	// Pricing
	ManualPriceFilePath string

	// Telegram notification configuration
	TelegramBotToken   string
	TelegramChatIDs    []string
	NotifyFeeMediaURL  string
	NotifyBurnMediaURL string
	NotifyFilter       string

	// NATS event stream (disabled when empty)
	NATSURL string
}

// Load reads configuration from environment variables and validates all
// required fields. A .env file in the working directory is loaded first
// if present. Returns an error listing every missing or invalid field.
func Load() (*Config, error) {
	// Best-effort; absence of a .env file is not an error.
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []error

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", ":9090")

	cfg.SolanaRPCURL = getEnvOrDefault("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com")
	cfg.SolanaAltRPCURL = strings.TrimSpace(os.Getenv("SOLANA_ALT_RPC_URL"))

	cfg.PrimaryWallet = strings.TrimSpace(os.Getenv("PRIMARY_WALLET_ADDRESS"))
	if cfg.PrimaryWallet == "" {
		errs = append(errs, fmt.Errorf("PRIMARY_WALLET_ADDRESS is required"))
	}
	cfg.SecondaryWallet = strings.TrimSpace(os.Getenv("SECONDARY_WALLET_ADDRESS"))
	if cfg.SecondaryWallet == "" {
		errs = append(errs, fmt.Errorf("SECONDARY_WALLET_ADDRESS is required"))
	}
	cfg.WatchedMint = strings.TrimSpace(os.Getenv("WATCHED_MINT_ADDRESS"))
	if cfg.WatchedMint == "" {
		errs = append(errs, fmt.Errorf("WATCHED_MINT_ADDRESS is required"))
	}
	cfg.WatchedTokenSymbol = strings.TrimSpace(os.Getenv("WATCHED_TOKEN_SYMBOL"))
	cfg.IncineratorAddress = getEnvOrDefault("BURN_INCINERATOR_ADDRESS", "1nc1nerator11111111111111111111111111111111")

	interval, err := parseDurationEnv("POLL_INTERVAL", 15*time.Second)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.PollInterval = interval

	limit, err := parseIntEnv("SIGNATURE_LIMIT", 10)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.SignatureLimit = limit

	cfg.CursorPolicy = getEnvOrDefault("CURSOR_POLICY", CursorPolicyBatch)
	if cfg.CursorPolicy != CursorPolicyBatch && cfg.CursorPolicy != CursorPolicySignature {
		errs = append(errs, fmt.Errorf("CURSOR_POLICY must be %q or %q, got %q",
			CursorPolicyBatch, CursorPolicySignature, cfg.CursorPolicy))
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.CursorFilePath = getEnvOrDefault("CURSOR_FILE_PATH", "data/cursors.json")
	cfg.ManualPriceFilePath = getEnvOrDefault("MANUAL_PRICE_FILE_PATH", "data/manual_prices.json")

	cfg.TelegramBotToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	if cfg.TelegramBotToken == "" {
		errs = append(errs, fmt.Errorf("TELEGRAM_BOT_TOKEN is required"))
	}
	cfg.TelegramChatIDs = parseChatIDs()
	if len(cfg.TelegramChatIDs) == 0 {
		errs = append(errs, fmt.Errorf("TELEGRAM_CHAT_IDS (or TELEGRAM_CHAT_ID) is required"))
	}

	cfg.NotifyFeeMediaURL = strings.TrimSpace(os.Getenv("NOTIFY_FEE_MEDIA_URL"))
	cfg.NotifyBurnMediaURL = strings.TrimSpace(os.Getenv("NOTIFY_BURN_MEDIA_URL"))
	cfg.NotifyFilter = strings.TrimSpace(os.Getenv("NOTIFY_FILTER"))

	cfg.NATSURL = strings.TrimSpace(os.Getenv("NATS_URL"))

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration errors: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// MustLoad loads configuration and exits the process on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// parseChatIDs reads either the comma-separated TELEGRAM_CHAT_IDS or
// the single TELEGRAM_CHAT_ID.
func parseChatIDs() []string {
	if raw := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_IDS")); raw != "" {
		var ids []string
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		return ids
	}
	if id := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); id != "" {
		return []string{id}
	}
	return nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	// Accept bare seconds for compatibility with older deployments.
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. 15s): %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}
