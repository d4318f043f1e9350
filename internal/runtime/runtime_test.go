package runtime_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-raffles/internal/ledger"
	"ms-raffles/internal/logger"
	"ms-raffles/internal/runtime"
	"ms-raffles/internal/system"
)

// rogueProgram applies a fixed mutation to its accounts so the integrity
// checks can be exercised.
type rogueProgram struct {
	id     solana.PublicKey
	mutate func(ictx *runtime.InvokeContext) error
}

func (p *rogueProgram) ProgramID() solana.PublicKey { return p.id }

func (p *rogueProgram) Process(ictx *runtime.InvokeContext, _ []byte) error {
	return p.mutate(ictx)
}

func setupRuntime(t *testing.T, programs ...runtime.Program) (*runtime.Runtime, *runtime.ManualClock) {
	clock := runtime.NewManualClock(time.Unix(1_700_000_000, 0))
	programs = append(programs, system.NewProgram())
	rt := runtime.New(ledger.NewMemoryStore(), clock, logger.NewDiscard(), programs...)
	return rt, clock
}

func fund(t *testing.T, rt *runtime.Runtime, lamports uint64) solana.PrivateKey {
	key := solana.NewWallet().PrivateKey
	_, err := rt.Airdrop(context.Background(), key.PublicKey(), lamports)
	require.NoError(t, err)
	return key
}

func signed(t *testing.T, rt *runtime.Runtime, keys []solana.PrivateKey, ixs ...runtime.Instruction) *runtime.Transaction {
	block, err := rt.LatestBlockhash(context.Background())
	require.NoError(t, err)
	tx := runtime.NewTransaction(block.Blockhash, ixs...)
	require.NoError(t, tx.Sign(keys...))
	return tx
}

func TestSubmitTransfer(t *testing.T) {
	ctx := context.Background()
	rt, _ := setupRuntime(t)
	alice := fund(t, rt, 1_000_000)
	bob := solana.NewWallet().PublicKey()

	tx := signed(t, rt, []solana.PrivateKey{alice}, system.NewTransferInstruction(400_000, alice.PublicKey(), bob))
	receipt, err := rt.Submit(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.Slot)
	assert.Equal(t, tx.ID(), receipt.Signature)

	balance, err := rt.Balance(ctx, alice.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(600_000), balance)

	balance, err = rt.Balance(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(400_000), balance)

	latest, err := rt.LatestBlockhash(ctx)
	require.NoError(t, err)
	assert.Equal(t, receipt.Blockhash, latest.Blockhash)
}

func TestSubmitRejectsReplay(t *testing.T) {
	ctx := context.Background()
	rt, _ := setupRuntime(t)
	alice := fund(t, rt, 1_000_000)
	bob := solana.NewWallet().PublicKey()

	tx := signed(t, rt, []solana.PrivateKey{alice}, system.NewTransferInstruction(1, alice.PublicKey(), bob))
	_, err := rt.Submit(ctx, tx)
	require.NoError(t, err)

	// Test case: the same signed transaction is never applied twice
	_, err = rt.Submit(ctx, tx)
	assert.ErrorIs(t, err, runtime.ErrAlreadyProcessed)

	balance, _ := rt.Balance(ctx, bob)
	assert.Equal(t, uint64(1), balance)
}

func TestSubmitRejectsUnknownBlockhash(t *testing.T) {
	rt, _ := setupRuntime(t)
	alice := fund(t, rt, 1_000_000)

	tx := runtime.NewTransaction(solana.Hash{7}, system.NewTransferInstruction(1, alice.PublicKey(), solana.NewWallet().PublicKey()))
	require.NoError(t, tx.Sign(alice))

	_, err := rt.Submit(context.Background(), tx)
	assert.ErrorIs(t, err, runtime.ErrBlockhashNotFound)
}

func TestSubmitRequiresSignatures(t *testing.T) {
	ctx := context.Background()
	rt, _ := setupRuntime(t)
	alice := fund(t, rt, 1_000_000)
	mallory := solana.NewWallet().PrivateKey
	block, _ := rt.LatestBlockhash(ctx)

	// Test case: no key for a required signer
	tx := runtime.NewTransaction(block.Blockhash, system.NewTransferInstruction(1, alice.PublicKey(), mallory.PublicKey()))
	assert.ErrorIs(t, tx.Sign(mallory), runtime.ErrMissingRequiredSignature)

	_, err := rt.Submit(ctx, tx)
	assert.ErrorIs(t, err, runtime.ErrMissingRequiredSignature)

	// Test case: signature by the wrong key
	sig, err := mallory.Sign([]byte("anything"))
	require.NoError(t, err)
	tx.Signatures = []solana.Signature{sig}
	_, err = rt.Submit(ctx, tx)
	assert.ErrorIs(t, err, runtime.ErrInvalidSignature)
}

func TestSubmitRequiresFeePayer(t *testing.T) {
	ctx := context.Background()
	noop := &rogueProgram{id: solana.NewWallet().PublicKey(), mutate: func(*runtime.InvokeContext) error { return nil }}
	rt, _ := setupRuntime(t, noop)
	block, _ := rt.LatestBlockhash(ctx)

	// Test case: unsigned transactions never reach the replay check
	for i := 0; i < 2; i++ {
		tx := runtime.NewTransaction(block.Blockhash, runtime.Instruction{
			ProgramID: noop.id,
			Accounts:  []*solana.AccountMeta{solana.NewAccountMeta(solana.NewWallet().PublicKey(), false, false)},
			Data:      []byte{byte(i)},
		})
		require.NoError(t, tx.Sign())
		assert.ErrorIs(t, tx.Verify(), runtime.ErrMissingRequiredSignature)

		_, err := rt.Submit(ctx, tx)
		assert.ErrorIs(t, err, runtime.ErrMissingRequiredSignature)
		assert.NotErrorIs(t, err, runtime.ErrAlreadyProcessed)
	}

	latest, _ := rt.LatestBlockhash(ctx)
	assert.Equal(t, block.Slot, latest.Slot)
}

func TestBalancesStayWithinColumnRange(t *testing.T) {
	ctx := context.Background()
	rt, _ := setupRuntime(t)
	whale := fund(t, rt, ledger.MaxLamports)
	minnow := fund(t, rt, 1)

	// Test case: airdrop past the cap
	_, err := rt.Airdrop(ctx, whale.PublicKey(), 1)
	assert.ErrorIs(t, err, runtime.ErrArithmeticOverflow)
	_, err = rt.Airdrop(ctx, solana.NewWallet().PublicKey(), ledger.MaxLamports+1)
	assert.ErrorIs(t, err, runtime.ErrArithmeticOverflow)

	// Test case: transfer past the cap
	_, err = rt.Submit(ctx, signed(t, rt, []solana.PrivateKey{minnow},
		system.NewTransferInstruction(1, minnow.PublicKey(), whale.PublicKey())))
	assert.ErrorIs(t, err, runtime.ErrArithmeticOverflow)

	balance, err := rt.Balance(ctx, whale.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, ledger.MaxLamports, balance)
}

func TestSubmitIsAtomic(t *testing.T) {
	ctx := context.Background()
	rt, _ := setupRuntime(t)
	alice := fund(t, rt, 1_000)
	bob := solana.NewWallet().PublicKey()

	tx := signed(t, rt, []solana.PrivateKey{alice},
		system.NewTransferInstruction(600, alice.PublicKey(), bob),
		system.NewTransferInstruction(600, alice.PublicKey(), bob),
	)
	_, err := rt.Submit(ctx, tx)
	require.Error(t, err)

	var ixErr *runtime.InstructionError
	require.ErrorAs(t, err, &ixErr)
	assert.Equal(t, 1, ixErr.Index)
	assert.ErrorIs(t, err, runtime.ErrInsufficientFunds)

	balance, _ := rt.Balance(ctx, alice.PublicKey())
	assert.Equal(t, uint64(1_000), balance)
	balance, _ = rt.Balance(ctx, bob)
	assert.Equal(t, uint64(0), balance)
}

func TestSubmitEnforcesRentExemption(t *testing.T) {
	ctx := context.Background()
	rt, _ := setupRuntime(t)
	alice := fund(t, rt, 10_000_000)
	account := solana.NewWallet().PrivateKey

	params := system.CreateAccountParams{Lamports: 1, Space: 16, Owner: solana.SystemProgramID}
	tx := signed(t, rt, []solana.PrivateKey{alice, account},
		system.NewCreateAccountInstruction(params, alice.PublicKey(), account.PublicKey()))
	_, err := rt.Submit(ctx, tx)
	assert.ErrorIs(t, err, runtime.ErrInsufficientFundsForRent)

	params.Lamports = ledger.MinimumBalance(16)
	tx = signed(t, rt, []solana.PrivateKey{alice, account},
		system.NewCreateAccountInstruction(params, alice.PublicKey(), account.PublicKey()))
	_, err = rt.Submit(ctx, tx)
	require.NoError(t, err)

	acc, err := rt.GetAccount(ctx, account.PublicKey())
	require.NoError(t, err)
	assert.Len(t, acc.Data, 16)
}

func TestIntegrityChecks(t *testing.T) {
	rogueID := solana.NewWallet().PublicKey()

	tests := []struct {
		name     string
		writable bool
		mutate   func(ictx *runtime.InvokeContext) error
		want     error
	}{
		{
			name:     "spend from account owned by another program",
			writable: true,
			mutate: func(ictx *runtime.InvokeContext) error {
				a, _ := ictx.Account(0)
				b, _ := ictx.Account(1)
				a.Lamports -= 10
				b.Lamports += 10
				return nil
			},
			want: runtime.ErrExternalLamportSpend,
		},
		{
			name:     "mint lamports",
			writable: true,
			mutate: func(ictx *runtime.InvokeContext) error {
				b, _ := ictx.Account(1)
				b.Lamports += 10
				return nil
			},
			want: runtime.ErrUnbalancedInstruction,
		},
		{
			name:     "write to readonly account",
			writable: false,
			mutate: func(ictx *runtime.InvokeContext) error {
				a, _ := ictx.Account(0)
				a.Data = []byte{1}
				return nil
			},
			want: runtime.ErrReadonlyAccountModified,
		},
		{
			name:     "reassign foreign account",
			writable: true,
			mutate: func(ictx *runtime.InvokeContext) error {
				a, _ := ictx.Account(0)
				a.Owner = ictx.ProgramID()
				return nil
			},
			want: runtime.ErrModifiedProgramID,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rt, _ := setupRuntime(t, &rogueProgram{id: rogueID, mutate: tc.mutate})
			alice := fund(t, rt, 1_000)
			bob := fund(t, rt, 1_000)

			ix := runtime.Instruction{
				ProgramID: rogueID,
				Accounts: []*solana.AccountMeta{
					solana.NewAccountMeta(alice.PublicKey(), tc.writable, true),
					solana.NewAccountMeta(bob.PublicKey(), true, false),
				},
			}
			_, err := rt.Submit(context.Background(), signed(t, rt, []solana.PrivateKey{alice}, ix))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestTransactionJSON(t *testing.T) {
	rt, _ := setupRuntime(t)
	alice := fund(t, rt, 1_000)
	tx := signed(t, rt, []solana.PrivateKey{alice}, system.NewTransferInstruction(5, alice.PublicKey(), solana.NewWallet().PublicKey()))

	raw, err := json.Marshal(tx)
	require.NoError(t, err)

	var decoded runtime.Transaction
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.NoError(t, decoded.Verify())
	assert.Equal(t, tx.ID(), decoded.ID())

	_, err = rt.Submit(context.Background(), &decoded)
	assert.NoError(t, err)
}

func TestManualClock(t *testing.T) {
	start := time.Unix(100, 0)
	clock := runtime.NewManualClock(start)
	clock.Advance(6 * time.Second)
	assert.Equal(t, int64(106), clock.Now().Unix())
}
