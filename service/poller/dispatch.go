package poller

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/solwatch/service/classify"
	"github.com/brojonat/solwatch/service/events"
	"github.com/brojonat/solwatch/service/metrics"
	"github.com/brojonat/solwatch/service/notify"
	"github.com/brojonat/solwatch/service/price"
	"github.com/brojonat/solwatch/service/solana"
)

// Well-known mints with fixed display symbols.
var knownSymbols = map[string]string{
	"So11111111111111111111111111111111111111112":  "SOL",
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": "USDC",
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": "USDT",
}

// DispatcherOptions configures an EventDispatcher.
type DispatcherOptions struct {
	WatchedMint        string
	WatchedTokenSymbol string
	FeeMediaRef        string
	BurnMediaRef       string
}

// EventDispatcher is the concrete dispatch boundary: it values events
// in USD, forwards fee and burn notifications, and publishes every
// classified event to the stream. All failures here are logged and
// non-blocking; they never prevent cursor advancement.
type EventDispatcher struct {
	opts      DispatcherOptions
	prices    *price.Client
	notifier  notify.Notifier
	filter    *notify.Filter
	publisher events.Publisher // nil when the stream is disabled
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewEventDispatcher creates a dispatcher. publisher may be nil to
// disable stream publishing; filter may be nil to notify everything;
// m may be nil to disable metrics.
func NewEventDispatcher(opts DispatcherOptions, prices *price.Client, notifier notify.Notifier, filter *notify.Filter, publisher events.Publisher, m *metrics.Metrics, logger *slog.Logger) *EventDispatcher {
	return &EventDispatcher{
		opts:      opts,
		prices:    prices,
		notifier:  notifier,
		filter:    filter,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// BeginCycle reloads the manual price overrides so operator updates
// are picked up without a restart.
func (d *EventDispatcher) BeginCycle(ctx context.Context) {
	d.prices.RefreshOverrides()
}

// Dispatch handles one classified event.
func (d *EventDispatcher) Dispatch(ctx context.Context, wallet, viaAddress string, rec *solana.TransactionRecord, ev classify.Event) {
	var usd *float64

	switch ev.Kind {
	case classify.KindFeeIncome:
		usd = d.usdValue(ctx, ev.Mint, ev.Amount)
		d.notifyFee(ctx, rec, ev, usd)
	case classify.KindBurn:
		usd = d.burnUSDValue(ctx, ev)
		d.notifyBurn(ctx, ev, usd)
	case classify.KindTransfer:
		d.logger.InfoContext(ctx, "inter-wallet transfer observed",
			"signature", rec.Signature,
			"primary_out", len(ev.PrimaryOut),
			"secondary_in", len(ev.SecondaryIn),
		)
	case classify.KindTxError:
		d.logger.DebugContext(ctx, "failed transaction observed", "signature", rec.Signature)
	default:
		d.logger.DebugContext(ctx, "unclassified transaction",
			"signature", rec.Signature,
			"deltas", len(ev.Deltas),
		)
	}

	d.publish(ctx, wallet, viaAddress, rec, ev, usd)
}

// usdValue prices an amount of a mint, returning nil when no price is
// available.
func (d *EventDispatcher) usdValue(ctx context.Context, mint string, amount float64) *float64 {
	if amount == 0 || mint == "" {
		return nil
	}
	p, ok := d.prices.USDPrice(ctx, mint)
	if !ok {
		return nil
	}
	v := amount * p
	return &v
}

// burnUSDValue prices a burn, trying the configured symbol before the
// mint address.
func (d *EventDispatcher) burnUSDValue(ctx context.Context, ev classify.Event) *float64 {
	if ev.Amount == 0 {
		return nil
	}
	if d.opts.WatchedTokenSymbol != "" {
		if p, ok := d.prices.USDPrice(ctx, d.opts.WatchedTokenSymbol); ok {
			v := ev.Amount * p
			return &v
		}
	}
	return d.usdValue(ctx, ev.Mint, ev.Amount)
}

func (d *EventDispatcher) notifyFee(ctx context.Context, rec *solana.TransactionRecord, ev classify.Event, usd *float64) {
	signer := rec.FirstSigner
	if signer == "" {
		signer = "unknown"
	}

	caption := fmt.Sprintf("Fees collected! 💰\n\nAmount: %s %s", formatAmount(ev.Amount), d.displaySymbol(ev.Mint))
	if usd != nil {
		caption += fmt.Sprintf(" (~$%.2f)", *usd)
	}
	caption += fmt.Sprintf("\n\nCollected from: %s", signer)

	d.send(ctx, string(ev.Kind), d.opts.FeeMediaRef, caption, ev, rec)
}

func (d *EventDispatcher) notifyBurn(ctx context.Context, ev classify.Event, usd *float64) {
	caption := fmt.Sprintf("Token burn! 🔥\n\nAmount burned: %s %s", formatAmount(ev.Amount), d.displaySymbol(ev.Mint))
	if usd != nil {
		caption += fmt.Sprintf(" (~$%.2f)", *usd)
	}

	d.send(ctx, string(ev.Kind), d.opts.BurnMediaRef, caption, ev, nil)
}

// send applies the notification filter and forwards to the notifier.
func (d *EventDispatcher) send(ctx context.Context, kind, mediaRef, caption string, ev classify.Event, rec *solana.TransactionRecord) {
	if d.filter != nil {
		doc := map[string]any{
			"kind":   kind,
			"mint":   ev.Mint,
			"amount": ev.Amount,
		}
		if rec != nil {
			doc["signature"] = rec.Signature
			doc["signer"] = rec.FirstSigner
		}
		if !d.filter.Match(doc) {
			d.logger.DebugContext(ctx, "event filtered from notification", "kind", kind)
			if d.metrics != nil {
				d.metrics.RecordNotification(kind, "filtered")
			}
			return
		}
	}

	if err := d.notifier.SendMedia(ctx, mediaRef, caption, notify.MediaPhoto); err != nil {
		d.logger.ErrorContext(ctx, "failed to send notification",
			"kind", kind,
			"error", err,
		)
		if d.metrics != nil {
			d.metrics.RecordNotification(kind, "error")
		}
		return
	}
	if d.metrics != nil {
		d.metrics.RecordNotification(kind, "success")
	}
}

// publish forwards the event to the stream, if configured.
func (d *EventDispatcher) publish(ctx context.Context, wallet, viaAddress string, rec *solana.TransactionRecord, ev classify.Event, usd *float64) {
	if d.publisher == nil {
		return
	}

	event := &events.WalletEvent{
		Wallet:      wallet,
		ViaAddress:  viaAddress,
		Signature:   rec.Signature,
		Slot:        rec.Slot,
		BlockTime:   rec.BlockTime,
		Kind:        string(ev.Kind),
		Mint:        ev.Mint,
		Amount:      ev.Amount,
		USDValue:    usd,
		Signer:      rec.FirstSigner,
		PrimaryOut:  ev.PrimaryOut,
		SecondaryIn: ev.SecondaryIn,
		PublishedAt: time.Now().UTC(),
	}

	if err := d.publisher.PublishEvent(ctx, event); err != nil {
		d.logger.ErrorContext(ctx, "failed to publish event",
			"signature", rec.Signature,
			"error", err,
		)
		if d.metrics != nil {
			d.metrics.RecordEventPublished("error")
		}
		return
	}
	if d.metrics != nil {
		d.metrics.RecordEventPublished("success")
	}
}

// displaySymbol resolves a mint to a human-readable symbol.
func (d *EventDispatcher) displaySymbol(mint string) string {
	if mint == classify.NativeMint {
		return "SOL"
	}
	if sym, ok := knownSymbols[mint]; ok {
		return sym
	}
	if mint == d.opts.WatchedMint && d.opts.WatchedTokenSymbol != "" {
		return d.opts.WatchedTokenSymbol
	}
	return mint
}

// formatAmount renders a decimal amount with up to 9 fractional
// digits, trailing zeros trimmed.
func formatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', 9, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "" || s == "-0" {
		s = "0"
	}
	return s
}
