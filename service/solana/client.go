package solana

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/brojonat/solwatch/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// maxAttempts bounds the retry loop for a single logical RPC call.
// Public RPC: 4 attempts max to avoid long delays.
const maxAttempts = 4

type endpoint struct {
	rpc   RPCClient
	label string // endpoint identifier for metrics (e.g., rpc host)
}

// Client is the ledger reader. It wraps one or two RPC endpoints with
// domain-specific operations, bounded exponential-backoff retry, and
// failover to the alternate endpoint on rate limiting or transport
// failure. When retries are exhausted the error is returned to the
// caller, which treats it as "no new data this cycle".
type Client struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu        sync.Mutex
	endpoints []endpoint
	active    int
}

// NewClient creates a ledger reader over a primary RPC client and an
// optional alternate (pass nil for none). The labels are used for
// metrics only. If m is nil, no metrics are recorded.
func NewClient(primary RPCClient, primaryLabel string, alt RPCClient, altLabel string, m *metrics.Metrics, logger *slog.Logger) *Client {
	eps := []endpoint{{rpc: primary, label: primaryLabel}}
	if alt != nil {
		eps = append(eps, endpoint{rpc: alt, label: altLabel})
	}
	return &Client{
		logger:    logger,
		metrics:   m,
		endpoints: eps,
	}
}

func (c *Client) current() endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoints[c.active]
}

// failover switches to the alternate endpoint, if one is configured.
func (c *Client) failover() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.endpoints) > 1 {
		c.active = (c.active + 1) % len(c.endpoints)
	}
}

// call runs fn against the active endpoint with bounded exponential
// backoff. 429 responses get a longer backoff and trigger failover.
func (c *Client) call(ctx context.Context, method string, fn func(RPCClient) error) error {
	var err error
	for attempt := range maxAttempts {
		ep := c.current()

		start := time.Now()
		err = fn(ep.rpc)
		duration := time.Since(start).Seconds()

		status := "success"
		if err != nil {
			status = "error"
		}
		if c.metrics != nil {
			c.metrics.RecordRPCCall(method, status, ep.label, duration)
		}

		if err == nil {
			return nil
		}

		// Rate limiting (429 Too Many Requests) gets a longer backoff
		// and a switch to the alternate endpoint.
		if strings.Contains(err.Error(), "429") {
			backoff := time.Duration(2<<uint(attempt)) * time.Second // 2s, 4s, 8s, 16s
			c.logger.WarnContext(ctx, "rate limited, sleeping before retry",
				"method", method,
				"attempt", attempt+1,
				"backoff_seconds", backoff.Seconds(),
			)
			if c.metrics != nil {
				c.metrics.RecordRateLimitHit(ep.label)
				c.metrics.RecordRPCRetry(method, "rate_limit")
			}
			c.failover()
			if serr := sleepCtx(ctx, backoff); serr != nil {
				return serr
			}
			continue
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second // 1s, 2s, 4s, 8s
		c.logger.WarnContext(ctx, "RPC call failed, retrying",
			"method", method,
			"attempt", attempt+1,
			"error", err,
			"backoff_seconds", backoff.Seconds(),
		)
		if c.metrics != nil {
			c.metrics.RecordRPCRetry(method, "timeout_or_error")
		}
		c.failover()
		if serr := sleepCtx(ctx, backoff); serr != nil {
			return serr
		}
	}
	return err
}

// sleepCtx sleeps for d, returning early with the context error if the
// context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// ListSignatures returns up to limit transaction signatures for the
// address, newest-first.
func (c *Client) ListSignatures(ctx context.Context, address string, limit int) ([]SignatureInfo, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, err
	}

	var sigs []*rpc.TransactionSignature
	err = c.call(ctx, "GetSignaturesForAddress", func(rc RPCClient) error {
		opts := &rpc.GetSignaturesForAddressOpts{
			Limit: &limit,
		}
		out, err := rc.GetSignaturesForAddress(ctx, pubkey, opts)
		if err != nil {
			return err
		}
		sigs = out
		return nil
	})
	if err != nil {
		c.logger.WarnContext(ctx, "failed to list signatures after retries",
			"address", address,
			"error", err,
		)
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.RecordSignaturesPerCall(float64(len(sigs)))
	}

	out := make([]SignatureInfo, 0, len(sigs))
	for _, sig := range sigs {
		info := SignatureInfo{
			Signature: sig.Signature.String(),
			Slot:      sig.Slot,
			Failed:    sig.Err != nil,
		}
		if sig.BlockTime != nil {
			info.BlockTime = sig.BlockTime.Time()
		}
		out = append(out, info)
	}
	return out, nil
}

// GetTransaction fetches and parses a transaction by signature.
// A nil record with a nil error means the node no longer has the
// transaction (pruned); callers may skip it.
func (c *Client) GetTransaction(ctx context.Context, signature string) (*TransactionRecord, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, err
	}

	var result *rpc.GetTransactionResult
	err = c.call(ctx, "GetTransaction", func(rc RPCClient) error {
		maxVersion := uint64(0)
		opts := &rpc.GetTransactionOpts{
			Encoding:                       solana.EncodingBase64,
			MaxSupportedTransactionVersion: &maxVersion,
		}
		out, err := rc.GetTransaction(ctx, sig, opts)
		if err != nil {
			return err
		}
		result = out
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	return recordFromResult(signature, result, c.logger), nil
}

// ListTokenAccounts returns the pubkeys of every SPL token account
// owned by the given wallet.
func (c *Client) ListTokenAccounts(ctx context.Context, owner string) ([]string, error) {
	pubkey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return nil, err
	}

	var result *rpc.GetTokenAccountsResult
	err = c.call(ctx, "GetTokenAccountsByOwner", func(rc RPCClient) error {
		programID := TokenProgramID
		conf := &rpc.GetTokenAccountsConfig{
			ProgramId: &programID,
		}
		opts := &rpc.GetTokenAccountsOpts{
			Encoding: solana.EncodingBase64,
		}
		out, err := rc.GetTokenAccountsByOwner(ctx, pubkey, conf, opts)
		if err != nil {
			return err
		}
		result = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	var addrs []string
	if result != nil {
		for _, acc := range result.Value {
			addrs = append(addrs, acc.Pubkey.String())
		}
	}
	return addrs, nil
}
