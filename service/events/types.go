package events

import (
	"time"

	"github.com/brojonat/solwatch/service/classify"
)

// WalletEvent is a classified event published to NATS, on the subject
// "events.{wallet}".
type WalletEvent struct {
	// Wallet is the watched root wallet the event belongs to.
	Wallet string `json:"wallet"`
	// ViaAddress is the watch-set member the signature was discovered
	// through (the wallet itself or one of its token accounts).
	ViaAddress string `json:"via_address"`

	Signature string    `json:"signature"`
	Slot      uint64    `json:"slot"`
	BlockTime time.Time `json:"block_time"`

	Kind   string  `json:"kind"`
	Mint   string  `json:"mint,omitempty"`
	Amount float64 `json:"amount,omitempty"`

	// USDValue is set when a price lookup succeeded.
	USDValue *float64 `json:"usd_value,omitempty"`
	// Signer is the transaction's fee payer.
	Signer string `json:"signer,omitempty"`

	PrimaryOut  []classify.Delta `json:"primary_out,omitempty"`
	SecondaryIn []classify.Delta `json:"secondary_in,omitempty"`

	PublishedAt time.Time `json:"published_at"`
}
