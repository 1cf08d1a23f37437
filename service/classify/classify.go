// Package classify infers the economic intent of a transaction from its
// before/after balance snapshots. The raw record carries no reliable
// structured intent, so classification works purely on numeric balance
// deltas, with decoded burn instructions as a secondary signal.
//
// Classify is pure and deterministic: no I/O, no side effects. A
// transaction can be safely reclassified on retry without corrupting
// any state.
package classify

import (
	"github.com/brojonat/solwatch/service/solana"
)

// Kind is the semantic category of a classified event.
type Kind string

const (
	KindFeeIncome Kind = "fee_income"
	KindBurn      Kind = "burn"
	KindTransfer  Kind = "transfer"
	KindTxError   Kind = "tx_error"
	KindOther     Kind = "other"
)

// NativeMint is the synthetic mint identifier under which native SOL
// deltas are folded into the delta set, so native and token movements
// classify uniformly.
const NativeMint = "SOL"

const lamportsPerSol = 1_000_000_000

// Delta is the signed change in one owner's holding of one mint (or
// the native asset) within a single transaction. Derived, never
// persisted.
type Delta struct {
	Owner  string  `json:"owner"`
	Mint   string  `json:"mint"`
	Amount float64 `json:"amount"`
}

// Context is the static configuration the classifier needs.
type Context struct {
	PrimaryWallet   string
	SecondaryWallet string
	WatchedMint     string
	Incinerator     string
}

// Event is a classified transaction. It carries enough detail for
// formatting and pricing but no I/O handles.
type Event struct {
	Kind   Kind    `json:"kind"`
	Mint   string  `json:"mint,omitempty"`
	Amount float64 `json:"amount,omitempty"`

	// Transfer legs, set for KindTransfer only.
	PrimaryOut  []Delta `json:"primary_out,omitempty"`
	SecondaryIn []Delta `json:"secondary_in,omitempty"`

	// Full delta set, set for KindOther as diagnostics.
	Deltas []Delta `json:"deltas,omitempty"`
}

// Classify maps a transaction record to a semantic event.
//
// Precedence: tx_error, then burn, then transfer, then fee_income,
// then other. Burn detection is two-tier: an explicit burn instruction
// on the watched mint and/or a net-negative balance delta for it with
// no receiving owner. When both signals are present the balance-delta
// magnitude wins; instruction amounts are raw integer units and only
// trusted when the balance snapshots are absent (e.g. the token
// account was closed in the same transaction).
func Classify(rec *solana.TransactionRecord, cctx Context) Event {
	if rec.Failed {
		return Event{Kind: KindTxError}
	}

	deltas := buildDeltas(rec)

	// Burn signals for the watched mint.
	var rawBurn float64
	for _, b := range rec.Burns {
		if b.Mint == cctx.WatchedMint {
			rawBurn += float64(b.RawAmount)
		}
	}
	var mintNet float64
	mintSeen := false
	anyPositive := false
	for _, d := range deltas {
		if d.Mint != cctx.WatchedMint {
			continue
		}
		mintSeen = true
		mintNet += d.Amount
		if d.Amount > 0 {
			anyPositive = true
		}
	}

	if rawBurn > 0 {
		if mintSeen && mintNet < 0 {
			return Event{Kind: KindBurn, Mint: cctx.WatchedMint, Amount: -mintNet}
		}
		return Event{Kind: KindBurn, Mint: cctx.WatchedMint, Amount: rawBurn}
	}
	if mintSeen && mintNet < 0 && !anyPositive {
		return Event{Kind: KindBurn, Mint: cctx.WatchedMint, Amount: -mintNet}
	}

	// Transfer: outflow from the primary wallet paired with an inflow
	// to the secondary wallet in the same transaction.
	var secondaryIn, primaryOut []Delta
	for _, d := range deltas {
		if d.Owner == cctx.SecondaryWallet && d.Amount > 0 {
			secondaryIn = append(secondaryIn, d)
		}
		if d.Owner == cctx.PrimaryWallet && d.Amount < 0 {
			primaryOut = append(primaryOut, d)
		}
	}
	if len(secondaryIn) > 0 && len(primaryOut) > 0 {
		return Event{Kind: KindTransfer, PrimaryOut: primaryOut, SecondaryIn: secondaryIn}
	}

	// Fee income: attribute to the single largest inflow to the
	// primary wallet. Smaller simultaneous inflows in the same
	// transaction are dropped; this is a known limitation for
	// multi-leg transactions.
	var primaryIn []Delta
	for _, d := range deltas {
		if d.Owner == cctx.PrimaryWallet && d.Amount > 0 {
			primaryIn = append(primaryIn, d)
		}
	}
	if len(primaryIn) > 0 {
		top := primaryIn[0]
		for _, d := range primaryIn[1:] {
			// Strict > keeps the first occurrence on ties.
			if d.Amount > top.Amount {
				top = d
			}
		}
		return Event{Kind: KindFeeIncome, Mint: top.Mint, Amount: top.Amount}
	}

	return Event{Kind: KindOther, Deltas: deltas}
}

// buildDeltas derives the non-zero balance-delta set from the record's
// snapshots. Token deltas are summed per owner+mint pair across all
// touched accounts (an owner may hold the same mint in several
// accounts), then native lamport deltas are folded in under NativeMint.
// The result is ordered by first appearance so tie-breaks are
// deterministic.
func buildDeltas(rec *solana.TransactionRecord) []Delta {
	type pair struct {
		owner, mint string
	}

	var order []pair
	sums := make(map[pair]float64)
	add := func(owner, mint string, amount float64) {
		k := pair{owner: owner, mint: mint}
		if _, seen := sums[k]; !seen {
			order = append(order, k)
		}
		sums[k] += amount
	}

	for _, b := range rec.PreTokenBalances {
		add(b.Owner, b.Mint, -b.Amount)
	}
	for _, b := range rec.PostTokenBalances {
		add(b.Owner, b.Mint, b.Amount)
	}

	// Native balances are indexed positionally against the account-key
	// list. The account address stands in as the owner.
	for i, addr := range rec.AccountKeys {
		var pre, post uint64
		if i < len(rec.PreBalances) {
			pre = rec.PreBalances[i]
		}
		if i < len(rec.PostBalances) {
			post = rec.PostBalances[i]
		}
		if pre == post {
			continue
		}
		add(addr, NativeMint, (float64(post)-float64(pre))/lamportsPerSol)
	}

	deltas := make([]Delta, 0, len(order))
	for _, k := range order {
		if sum := sums[k]; sum != 0 {
			deltas = append(deltas, Delta{Owner: k.owner, Mint: k.mint, Amount: sum})
		}
	}
	return deltas
}
