package solana

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func burnData(instructionType uint8, amount uint64, decimals ...uint8) []byte {
	data := make([]byte, 9, 10)
	data[0] = instructionType
	binary.LittleEndian.PutUint64(data[1:9], amount)
	if len(decimals) > 0 {
		data = append(data, decimals[0])
	}
	return data
}

func TestDecodeBurn(t *testing.T) {
	mint := solana.PublicKey{0xAA}
	keys := []solana.PublicKey{{0x01}, mint, {0x02}}

	ins := solana.CompiledInstruction{
		Accounts: []uint16{0, 1, 2},
		Data:     burnData(TokenProgramBurnInstruction, 1_500_000),
	}

	burn, ok := decodeBurn(ins, keys)
	require.True(t, ok)
	assert.Equal(t, mint.String(), burn.Mint)
	assert.Equal(t, uint64(1_500_000), burn.RawAmount)
	assert.Nil(t, burn.Decimals)
}

func TestDecodeBurnChecked(t *testing.T) {
	mint := solana.PublicKey{0xAA}
	keys := []solana.PublicKey{{0x01}, mint, {0x02}}

	ins := solana.CompiledInstruction{
		Accounts: []uint16{0, 1, 2},
		Data:     burnData(TokenProgramBurnCheckedInstruction, 42, 6),
	}

	burn, ok := decodeBurn(ins, keys)
	require.True(t, ok)
	assert.Equal(t, uint64(42), burn.RawAmount)
	require.NotNil(t, burn.Decimals)
	assert.Equal(t, uint8(6), *burn.Decimals)
}

func TestDecodeBurnRejectsMalformed(t *testing.T) {
	keys := []solana.PublicKey{{0x01}, {0xAA}, {0x02}}

	cases := []struct {
		name string
		ins  solana.CompiledInstruction
	}{
		{
			name: "short data",
			ins:  solana.CompiledInstruction{Accounts: []uint16{0, 1}, Data: []byte{TokenProgramBurnInstruction, 1, 2}},
		},
		{
			name: "not a burn",
			ins:  solana.CompiledInstruction{Accounts: []uint16{0, 1}, Data: burnData(3, 100)},
		},
		{
			name: "burn checked missing decimals",
			ins:  solana.CompiledInstruction{Accounts: []uint16{0, 1}, Data: burnData(TokenProgramBurnCheckedInstruction, 100)},
		},
		{
			name: "too few accounts",
			ins:  solana.CompiledInstruction{Accounts: []uint16{0}, Data: burnData(TokenProgramBurnInstruction, 100)},
		},
		{
			name: "mint index out of range",
			ins:  solana.CompiledInstruction{Accounts: []uint16{0, 9}, Data: burnData(TokenProgramBurnInstruction, 100)},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := decodeBurn(tc.ins, keys)
			assert.False(t, ok)
		})
	}
}

func TestCollectBurnsFiltersByProgram(t *testing.T) {
	mint := solana.PublicKey{0xAA}
	otherProgram := solana.PublicKey{0xBB}
	keys := []solana.PublicKey{{0x01}, mint, {0x02}, TokenProgramID, Token2022ProgramID, otherProgram}

	instructions := []solana.CompiledInstruction{
		// SPL Token burn.
		{ProgramIDIndex: 3, Accounts: []uint16{0, 1, 2}, Data: burnData(TokenProgramBurnInstruction, 10)},
		// Token-2022 burn.
		{ProgramIDIndex: 4, Accounts: []uint16{0, 1, 2}, Data: burnData(TokenProgramBurnInstruction, 20)},
		// Same bytes under a foreign program: not a token burn.
		{ProgramIDIndex: 5, Accounts: []uint16{0, 1, 2}, Data: burnData(TokenProgramBurnInstruction, 30)},
		// Program index out of range.
		{ProgramIDIndex: 99, Accounts: []uint16{0, 1, 2}, Data: burnData(TokenProgramBurnInstruction, 40)},
	}

	burns := collectBurns(instructions, keys)
	require.Len(t, burns, 2)
	assert.Equal(t, uint64(10), burns[0].RawAmount)
	assert.Equal(t, uint64(20), burns[1].RawAmount)
}

func TestUIAmount(t *testing.T) {
	v := 1.5
	assert.Equal(t, 1.5, uiAmount(&rpc.UiTokenAmount{UiAmount: &v}))

	// Fallback: raw amount scaled by decimals.
	assert.InDelta(t, 2.5, uiAmount(&rpc.UiTokenAmount{Amount: "2500000", Decimals: 6}), 1e-9)

	assert.Zero(t, uiAmount(nil))
	assert.Zero(t, uiAmount(&rpc.UiTokenAmount{Amount: "not-a-number", Decimals: 6}))
}

func TestTokenBalancesToDomain(t *testing.T) {
	mint := solana.PublicKey{0xAA}
	owner := solana.PublicKey{0xBB}
	v := 7.25

	in := []rpc.TokenBalance{
		{
			AccountIndex:  2,
			Mint:          mint,
			Owner:         &owner,
			UiTokenAmount: &rpc.UiTokenAmount{UiAmount: &v},
		},
		// Owner omitted by the node.
		{
			AccountIndex:  3,
			Mint:          mint,
			UiTokenAmount: &rpc.UiTokenAmount{Amount: "1000", Decimals: 3},
		},
	}

	out := tokenBalancesToDomain(in)
	require.Len(t, out, 2)
	assert.Equal(t, 2, out[0].AccountIndex)
	assert.Equal(t, owner.String(), out[0].Owner)
	assert.Equal(t, mint.String(), out[0].Mint)
	assert.InDelta(t, 7.25, out[0].Amount, 1e-9)
	assert.Empty(t, out[1].Owner)
	assert.InDelta(t, 1.0, out[1].Amount, 1e-9)
}

func TestRecordFromResultWithoutPayload(t *testing.T) {
	// A result whose transaction payload is missing still yields a
	// usable record from the meta alone.
	bt := solana.UnixTimeSeconds(1_700_000_000)
	mint := solana.PublicKey{0xAA}
	owner := solana.PublicKey{0xBB}
	v := 4.0

	result := &rpc.GetTransactionResult{
		Slot:      12345,
		BlockTime: &bt,
		Meta: &rpc.TransactionMeta{
			Err:          map[string]any{"InstructionError": []any{}},
			PreBalances:  []uint64{10, 20},
			PostBalances: []uint64{5, 25},
			PostTokenBalances: []rpc.TokenBalance{
				{AccountIndex: 1, Mint: mint, Owner: &owner, UiTokenAmount: &rpc.UiTokenAmount{UiAmount: &v}},
			},
		},
	}

	rec := recordFromResult("SIG", result, discardLogger())
	assert.Equal(t, "SIG", rec.Signature)
	assert.Equal(t, uint64(12345), rec.Slot)
	assert.Equal(t, bt.Time(), rec.BlockTime)
	assert.True(t, rec.Failed)
	assert.Equal(t, []uint64{10, 20}, rec.PreBalances)
	assert.Equal(t, []uint64{5, 25}, rec.PostBalances)
	require.Len(t, rec.PostTokenBalances, 1)
	assert.Equal(t, owner.String(), rec.PostTokenBalances[0].Owner)
	assert.Empty(t, rec.AccountKeys)
	assert.Empty(t, rec.FirstSigner)
}

// transactionEnvelope wraps a transaction in the base64 envelope shape
// the RPC node returns, so records can be built from a full result.
func transactionEnvelope(t *testing.T, tx *solana.Transaction) *rpc.TransactionResultEnvelope {
	t.Helper()
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	payload, err := json.Marshal([]any{base64.StdEncoding.EncodeToString(raw), "base64"})
	require.NoError(t, err)
	env := new(rpc.TransactionResultEnvelope)
	require.NoError(t, env.UnmarshalJSON(payload))
	return env
}

func TestRecordFromResultInnerInstructionBurn(t *testing.T) {
	// Burns executed by an inner instruction (e.g. a program CPI-ing
	// into the token program) must land in the record alongside
	// top-level ones.
	payer := solana.PublicKey{0x01}
	tokenAccount := solana.PublicKey{0x02}
	mint := solana.PublicKey{0xAA}

	tx := &solana.Transaction{
		Signatures: []solana.Signature{{0x01}},
		Message: solana.Message{
			Header:      solana.MessageHeader{NumRequiredSignatures: 1},
			AccountKeys: []solana.PublicKey{payer, tokenAccount, mint, TokenProgramID},
		},
	}

	result := &rpc.GetTransactionResult{
		Slot:        777,
		Transaction: transactionEnvelope(t, tx),
		Meta: &rpc.TransactionMeta{
			InnerInstructions: []rpc.InnerInstruction{
				{
					Index: 0,
					Instructions: []rpc.CompiledInstruction{
						{
							ProgramIDIndex: 3,
							Accounts:       []uint16{1, 2, 0},
							Data:           burnData(TokenProgramBurnInstruction, 9_000_000),
						},
					},
				},
			},
		},
	}

	rec := recordFromResult("SIG", result, discardLogger())
	assert.Equal(t, payer.String(), rec.FirstSigner)
	require.Len(t, rec.Burns, 1)
	assert.Equal(t, mint.String(), rec.Burns[0].Mint)
	assert.Equal(t, uint64(9_000_000), rec.Burns[0].RawAmount)
	assert.Nil(t, rec.Burns[0].Decimals)
}

func TestCompiledFromRPC(t *testing.T) {
	in := []rpc.CompiledInstruction{
		{ProgramIDIndex: 3, Accounts: []uint16{1, 2}, Data: burnData(TokenProgramBurnInstruction, 5)},
		{ProgramIDIndex: 0, Accounts: nil, Data: nil},
	}
	out := compiledFromRPC(in)
	require.Len(t, out, 2)
	assert.Equal(t, uint16(3), out[0].ProgramIDIndex)
	assert.Equal(t, []uint16{1, 2}, out[0].Accounts)
	assert.Equal(t, solana.Base58(burnData(TokenProgramBurnInstruction, 5)), out[0].Data)
}
