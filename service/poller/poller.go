// Package poller drives the incremental polling state machine: one
// fixed-interval loop per watched wallet that discovers new
// transactions, classifies them, dispatches the resulting events, and
// advances per-address cursors.
package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/brojonat/solwatch/service/classify"
	"github.com/brojonat/solwatch/service/config"
	"github.com/brojonat/solwatch/service/cursor"
	"github.com/brojonat/solwatch/service/metrics"
	"github.com/brojonat/solwatch/service/solana"
)

// LedgerReader is the read-side collaborator contract. Implementations
// retry internally; an error return means "no data this cycle" for
// that call, never a cycle abort.
type LedgerReader interface {
	// ListSignatures returns up to limit signatures for the address,
	// newest-first.
	ListSignatures(ctx context.Context, address string, limit int) ([]solana.SignatureInfo, error)

	// GetTransaction fetches and parses one transaction. A nil record
	// with a nil error means the transaction is no longer available.
	GetTransaction(ctx context.Context, signature string) (*solana.TransactionRecord, error)

	// ListTokenAccounts returns the token accounts owned by a wallet.
	ListTokenAccounts(ctx context.Context, owner string) ([]string, error)
}

// Dispatcher is the boundary to the pricing, notification, and event
// stream collaborators. Dispatch must never block progress: failures
// are logged inside the dispatcher, not returned.
type Dispatcher interface {
	// BeginCycle runs once at the start of each poll cycle (e.g. to
	// reload the manual price overrides).
	BeginCycle(ctx context.Context)

	// Dispatch handles one classified event.
	Dispatch(ctx context.Context, wallet, viaAddress string, rec *solana.TransactionRecord, ev classify.Event)
}

// Options configures a Poller.
type Options struct {
	// Wallet is the root wallet address this poller watches.
	Wallet string
	// Interval is the fixed time between cycle starts. A cycle that
	// overruns the interval starts the next one immediately.
	Interval time.Duration
	// SignatureLimit caps each per-address signature fetch.
	SignatureLimit int
	// CursorPolicy is config.CursorPolicyBatch or
	// config.CursorPolicySignature.
	CursorPolicy string
}

// Poller watches a single wallet and its token accounts. The two
// wallets of a deployment run as independent Pollers; they share only
// the cursor store, whose implementations serialize their own writes.
type Poller struct {
	wallet   string
	interval time.Duration
	sigLimit int
	policy   string

	reader   LedgerReader
	cursors  cursor.Store
	cctx     classify.Context
	dispatch Dispatcher
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a Poller. m may be nil to disable metrics.
func New(opts Options, reader LedgerReader, cursors cursor.Store, cctx classify.Context, dispatch Dispatcher, m *metrics.Metrics, logger *slog.Logger) *Poller {
	if opts.SignatureLimit <= 0 {
		opts.SignatureLimit = 10
	}
	if opts.CursorPolicy == "" {
		opts.CursorPolicy = config.CursorPolicyBatch
	}
	return &Poller{
		wallet:   opts.Wallet,
		interval: opts.Interval,
		sigLimit: opts.SignatureLimit,
		policy:   opts.CursorPolicy,
		reader:   reader,
		cursors:  cursors,
		cctx:     cctx,
		dispatch: dispatch,
		metrics:  m,
		logger:   logger,
	}
}

// Run drives poll cycles until the context is cancelled. The in-flight
// transaction finishes classification and dispatch before Run returns,
// so the cursor and the dispatched events stay consistent.
func (p *Poller) Run(ctx context.Context) {
	p.logger.InfoContext(ctx, "poller started",
		"wallet", p.wallet,
		"interval", p.interval.String(),
		"signature_limit", p.sigLimit,
		"cursor_policy", p.policy,
	)

	for {
		start := time.Now()
		p.runCycle(ctx)
		elapsed := time.Since(start)

		if p.metrics != nil {
			p.metrics.RecordPollCycle(p.wallet, elapsed.Seconds())
		}

		// Fixed interval between cycle starts; an overrun cycle runs
		// the next one immediately.
		wait := p.interval - elapsed
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "poller stopped", "wallet", p.wallet)
			return
		case <-time.After(wait):
		}
	}
}

// runCycle performs one full polling cycle for the wallet.
func (p *Poller) runCycle(ctx context.Context) {
	p.dispatch.BeginCycle(ctx)

	addresses := p.resolveAddresses(ctx)
	p.logger.DebugContext(ctx, "resolved watch-set",
		"wallet", p.wallet,
		"addresses", len(addresses),
	)

	// Dedup by signature, scoped to this cycle only: a transaction
	// reachable via the wallet and one of its token accounts is
	// classified and dispatched at most once.
	processed := make(map[string]struct{})

	for _, addr := range addresses {
		if ctx.Err() != nil {
			return
		}
		p.processAddress(ctx, addr, processed)
	}
}

// resolveAddresses expands the wallet into its watch-set: the wallet
// itself plus every token account it owns. Enumeration failure
// degrades to the wallet alone, never aborts the cycle.
func (p *Poller) resolveAddresses(ctx context.Context) []string {
	addresses := []string{p.wallet}

	tokenAccounts, err := p.reader.ListTokenAccounts(ctx, p.wallet)
	if err != nil {
		p.logger.WarnContext(ctx, "failed to list token accounts, watching wallet only",
			"wallet", p.wallet,
			"error", err,
		)
		return addresses
	}

	seen := map[string]struct{}{p.wallet: {}}
	for _, addr := range tokenAccounts {
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		addresses = append(addresses, addr)
	}
	return addresses
}

// processAddress runs the per-address portion of the state machine:
// fetch new signatures since the cursor, then seed or process the
// batch and advance the cursor.
func (p *Poller) processAddress(ctx context.Context, addr string, processed map[string]struct{}) {
	last, err := p.cursors.Load(ctx, addr)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to load cursor, skipping address this cycle",
			"address", addr,
			"error", err,
		)
		return
	}

	sigs, err := p.reader.ListSignatures(ctx, addr, p.sigLimit)
	if err != nil {
		// Reader retries are exhausted; treat as no new data.
		p.logger.WarnContext(ctx, "no signature data this cycle",
			"address", addr,
			"error", err,
		)
		return
	}
	if len(sigs) == 0 {
		return
	}

	if last == "" {
		// First sight of this address: seed the cursor to the newest
		// signature and classify nothing, so a new address doesn't
		// flood the channel with historical notifications.
		newest := sigs[0].Signature
		p.logger.InfoContext(ctx, "seeding cursor for new address",
			"address", addr,
			"signature", newest,
		)
		p.saveCursor(ctx, addr, newest)
		if p.metrics != nil {
			p.metrics.RecordCursorSeed(p.wallet)
		}
		return
	}

	// Collect everything newer than the cursor. The reader returns
	// newest-first; stop at the stored signature.
	var newSigs []solana.SignatureInfo
	for _, sig := range sigs {
		if sig.Signature == last {
			break
		}
		newSigs = append(newSigs, sig)
	}
	if len(newSigs) == 0 {
		return
	}

	p.logger.DebugContext(ctx, "processing new signatures",
		"address", addr,
		"count", len(newSigs),
	)

	// Process oldest-first so dispatch order matches chronological
	// order. advanceTo tracks the newest signature of the contiguous
	// prefix that completed without a blocking fetch failure.
	advanceTo := ""
	advance := func(sig string) {
		advanceTo = sig
		if p.policy == config.CursorPolicySignature {
			p.saveCursor(ctx, addr, sig)
		}
	}

	for i := len(newSigs) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			break
		}
		sig := newSigs[i].Signature

		if _, dup := processed[sig]; dup {
			// Already handled via an aliased address this cycle; the
			// cursor still advances past it.
			advance(sig)
			continue
		}
		processed[sig] = struct{}{}

		rec, err := p.reader.GetTransaction(ctx, sig)
		if err != nil {
			// Don't advance past the failed signature; it is retried
			// next cycle. Later signatures stay unprocessed too, so
			// dispatch order is preserved on retry.
			p.logger.WarnContext(ctx, "failed to fetch transaction, will retry next cycle",
				"address", addr,
				"signature", sig,
				"error", err,
			)
			break
		}
		if rec == nil {
			// The node no longer has the transaction; skipping is the
			// only way forward.
			p.logger.WarnContext(ctx, "transaction unavailable, skipping",
				"address", addr,
				"signature", sig,
			)
			advance(sig)
			continue
		}

		ev := classify.Classify(rec, p.cctx)
		if p.metrics != nil {
			p.metrics.RecordEventClassified(p.wallet, string(ev.Kind))
		}
		p.logger.InfoContext(ctx, "classified transaction",
			"wallet", p.wallet,
			"via", addr,
			"signature", sig,
			"kind", string(ev.Kind),
		)

		p.dispatch.Dispatch(ctx, p.wallet, addr, rec, ev)
		advance(sig)
	}

	if p.policy == config.CursorPolicyBatch && advanceTo != "" {
		p.saveCursor(ctx, addr, advanceTo)
	}
}

// saveCursor persists a cursor value. A failed save is logged and the
// batch is reprocessed next cycle; delivery is at-least-once.
func (p *Poller) saveCursor(ctx context.Context, addr, sig string) {
	if err := p.cursors.Save(ctx, addr, sig); err != nil {
		p.logger.ErrorContext(ctx, "failed to save cursor",
			"address", addr,
			"signature", sig,
			"error", err,
		)
		if p.metrics != nil {
			p.metrics.RecordCursorSave("error")
		}
		return
	}
	if p.metrics != nil {
		p.metrics.RecordCursorSave("success")
	}
}
