package solana

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Well-known Solana program IDs
var (
	// TokenProgramID is the SPL Token program
	TokenProgramID = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

	// Token2022ProgramID is the Token Extensions program (Token-2022)
	Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
)

// SPL Token program instruction types
const (
	TokenProgramBurnInstruction        = uint8(8)
	TokenProgramBurnCheckedInstruction = uint8(15)
)

// recordFromResult converts a full GetTransactionResult into our domain
// TransactionRecord. It never fails: a transaction whose payload cannot
// be decoded yields a degraded record (balance snapshots only), which
// the classifier handles as an unclassified event.
func recordFromResult(signature string, result *rpc.GetTransactionResult, logger *slog.Logger) *TransactionRecord {
	rec := &TransactionRecord{
		Signature: signature,
		Slot:      result.Slot,
	}
	if result.BlockTime != nil {
		rec.BlockTime = result.BlockTime.Time()
	}

	meta := result.Meta
	if meta != nil {
		rec.Failed = meta.Err != nil
		rec.PreBalances = meta.PreBalances
		rec.PostBalances = meta.PostBalances
		rec.PreTokenBalances = tokenBalancesToDomain(meta.PreTokenBalances)
		rec.PostTokenBalances = tokenBalancesToDomain(meta.PostTokenBalances)
	}

	if result.Transaction == nil {
		return rec
	}
	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		logger.WarnContext(context.Background(), "failed to decode transaction payload, keeping balance snapshots only",
			"signature", signature,
			"error", err,
		)
		return rec
	}

	// Full key list: static message keys, then addresses loaded via
	// lookup tables (writable before readonly, matching the node's
	// balance array ordering).
	keys := tx.Message.AccountKeys
	if meta != nil {
		keys = append(keys, meta.LoadedAddresses.Writable...)
		keys = append(keys, meta.LoadedAddresses.ReadOnly...)
	}
	rec.AccountKeys = make([]string, 0, len(keys))
	for _, k := range keys {
		rec.AccountKeys = append(rec.AccountKeys, k.String())
	}
	if len(rec.AccountKeys) > 0 {
		// The fee payer is always the first signer.
		rec.FirstSigner = rec.AccountKeys[0]
	}

	rec.Burns = collectBurns(tx.Message.Instructions, keys)
	if meta != nil {
		for _, inner := range meta.InnerInstructions {
			rec.Burns = append(rec.Burns, collectBurns(compiledFromRPC(inner.Instructions), keys)...)
		}
	}

	return rec
}

// tokenBalancesToDomain converts RPC token-balance snapshots into
// domain entries with decimal amounts.
func tokenBalancesToDomain(balances []rpc.TokenBalance) []TokenBalance {
	out := make([]TokenBalance, 0, len(balances))
	for _, b := range balances {
		entry := TokenBalance{
			AccountIndex: int(b.AccountIndex),
			Mint:         b.Mint.String(),
			Amount:       uiAmount(b.UiTokenAmount),
		}
		if b.Owner != nil {
			entry.Owner = b.Owner.String()
		}
		out = append(out, entry)
	}
	return out
}

// uiAmount returns the decimal amount of a token-balance snapshot,
// falling back to the raw amount scaled by decimals when the node
// omits the pre-computed value.
func uiAmount(amt *rpc.UiTokenAmount) float64 {
	if amt == nil {
		return 0
	}
	if amt.UiAmount != nil {
		return *amt.UiAmount
	}
	raw, err := strconv.ParseFloat(amt.Amount, 64)
	if err != nil {
		return 0
	}
	return raw / math.Pow10(int(amt.Decimals))
}

// compiledFromRPC converts RPC-shaped inner instructions into message
// instructions so burn scanning treats both nesting levels uniformly.
func compiledFromRPC(instructions []rpc.CompiledInstruction) []solana.CompiledInstruction {
	out := make([]solana.CompiledInstruction, 0, len(instructions))
	for _, ins := range instructions {
		out = append(out, solana.CompiledInstruction{
			ProgramIDIndex: ins.ProgramIDIndex,
			Accounts:       ins.Accounts,
			Data:           ins.Data,
		})
	}
	return out
}

// collectBurns scans a list of compiled instructions for SPL-token
// Burn/BurnChecked operations and decodes them.
func collectBurns(instructions []solana.CompiledInstruction, accountKeys []solana.PublicKey) []BurnInstruction {
	var burns []BurnInstruction
	for _, ins := range instructions {
		if int(ins.ProgramIDIndex) >= len(accountKeys) {
			continue
		}
		programID := accountKeys[ins.ProgramIDIndex]
		if !programID.Equals(TokenProgramID) && !programID.Equals(Token2022ProgramID) {
			continue
		}
		if burn, ok := decodeBurn(ins, accountKeys); ok {
			burns = append(burns, burn)
		}
	}
	return burns
}

// decodeBurn decodes one SPL-token burn instruction.
//
// Burn instruction format:
//
//	[0]    = instruction type (u8, 8 = Burn, 15 = BurnChecked)
//	[1..9] = amount (u64, raw units)
//	[9]    = decimals (u8, BurnChecked only)
//
// Account layout for both: [token_account, mint, authority].
func decodeBurn(ins solana.CompiledInstruction, accountKeys []solana.PublicKey) (BurnInstruction, bool) {
	if len(ins.Data) < 9 {
		return BurnInstruction{}, false
	}

	instructionType := ins.Data[0]
	if instructionType != TokenProgramBurnInstruction && instructionType != TokenProgramBurnCheckedInstruction {
		return BurnInstruction{}, false
	}

	burn := BurnInstruction{
		RawAmount: binary.LittleEndian.Uint64(ins.Data[1:9]),
	}

	if instructionType == TokenProgramBurnCheckedInstruction {
		if len(ins.Data) < 10 {
			return BurnInstruction{}, false
		}
		decimals := ins.Data[9]
		burn.Decimals = &decimals
	}

	if len(ins.Accounts) < 2 {
		return BurnInstruction{}, false
	}
	mintIndex := ins.Accounts[1]
	if int(mintIndex) >= len(accountKeys) {
		return BurnInstruction{}, false
	}
	burn.Mint = accountKeys[mintIndex].String()

	return burn, true
}
