package solana

import (
	"time"
)

// SignatureInfo is one entry from the signature list for an address,
// newest-first as returned by the RPC node.
type SignatureInfo struct {
	Signature string
	Slot      uint64
	BlockTime time.Time
	Failed    bool
}

// TokenBalance is one owner/mint snapshot entry from a transaction's
// pre or post token balances. Amount is in decimal (UI) units.
type TokenBalance struct {
	AccountIndex int
	Owner        string
	Mint         string
	Amount       float64
}

// BurnInstruction is a decoded SPL-token Burn or BurnChecked instruction.
// RawAmount is in raw integer units; it is NOT scaled by the mint's
// decimals (plain Burn instruction data doesn't carry them).
type BurnInstruction struct {
	Mint      string
	RawAmount uint64
	Decimals  *uint8 // set for BurnChecked only
}

// TransactionRecord is our domain model of a fetched transaction,
// independent of the RPC response format. It carries everything the
// classifier needs: the success flag, balance snapshots, the ordered
// account-key list, and any decoded burn instructions.
type TransactionRecord struct {
	Signature string
	Slot      uint64
	BlockTime time.Time
	Failed    bool

	// AccountKeys is the ordered key list, including addresses loaded
	// via lookup tables. PreBalances/PostBalances index into it.
	AccountKeys []string
	FirstSigner string

	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
	PreBalances       []uint64
	PostBalances      []uint64

	// Burns holds SPL-token burn instructions decoded from both
	// top-level and inner instructions.
	Burns []BurnInstruction
}
