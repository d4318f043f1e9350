package system_test

import (
	"context"
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

func setup(t *testing.T) (*runtime.Runtime, solana.PrivateKey) {
	rt := runtime.New(ledger.NewMemoryStore(), runtime.NewManualClock(time.Unix(1_700_000_000, 0)), logger.NewDiscard(), system.NewProgram())
	payer := solana.NewWallet().PrivateKey
	_, err := rt.Airdrop(context.Background(), payer.PublicKey(), 5_000_000)
	require.NoError(t, err)
	return rt, payer
}

func submit(t *testing.T, rt *runtime.Runtime, keys []solana.PrivateKey, ixs ...runtime.Instruction) error {
	block, err := rt.LatestBlockhash(context.Background())
	require.NoError(t, err)
	tx := runtime.NewTransaction(block.Blockhash, ixs...)
	require.NoError(t, tx.Sign(keys...))
	_, err = rt.Submit(context.Background(), tx)
	return err
}

func TestCreateAccount(t *testing.T) {
	ctx := context.Background()
	rt, payer := setup(t)
	account := solana.NewWallet().PrivateKey
	owner := solana.NewWallet().PublicKey()
	params := system.CreateAccountParams{Lamports: ledger.MinimumBalance(32), Space: 32, Owner: owner}

	err := submit(t, rt, []solana.PrivateKey{payer, account}, system.NewCreateAccountInstruction(params, payer.PublicKey(), account.PublicKey()))
	require.NoError(t, err)

	acc, err := rt.GetAccount(ctx, account.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, owner, acc.Owner)
	assert.Equal(t, params.Lamports, acc.Lamports)
	assert.Equal(t, make([]byte, 32), acc.Data)

	balance, _ := rt.Balance(ctx, payer.PublicKey())
	assert.Equal(t, 5_000_000-params.Lamports, balance)

	// Test case: the same address cannot be allocated twice
	err = submit(t, rt, []solana.PrivateKey{payer, account}, system.NewCreateAccountInstruction(params, payer.PublicKey(), account.PublicKey()))
	assert.ErrorIs(t, err, runtime.ErrAccountAlreadyInUse)
}

func TestCreateAccountInsufficientFunds(t *testing.T) {
	rt, payer := setup(t)
	account := solana.NewWallet().PrivateKey
	params := system.CreateAccountParams{Lamports: 6_000_000, Space: 0, Owner: solana.SystemProgramID}

	err := submit(t, rt, []solana.PrivateKey{payer, account}, system.NewCreateAccountInstruction(params, payer.PublicKey(), account.PublicKey()))
	assert.ErrorIs(t, err, runtime.ErrInsufficientFunds)
}

func TestTransferRequiresWritableDestination(t *testing.T) {
	rt, payer := setup(t)
	ix := system.NewTransferInstruction(10, payer.PublicKey(), solana.NewWallet().PublicKey())
	ix.Accounts[1].IsWritable = false

	err := submit(t, rt, []solana.PrivateKey{payer}, ix)
	assert.ErrorIs(t, err, runtime.ErrAccountNotWritable)
}

func TestInvalidInstructionData(t *testing.T) {
	rt, payer := setup(t)
	ix := system.NewTransferInstruction(10, payer.PublicKey(), solana.NewWallet().PublicKey())
	ix.Data = []byte{9, 0, 0, 0}

	err := submit(t, rt, []solana.PrivateKey{payer}, ix)
	assert.ErrorIs(t, err, runtime.ErrInvalidInstructionData)
}

func TestAssign(t *testing.T) {
	ctx := context.Background()
	rt, payer := setup(t)
	owner := solana.NewWallet().PublicKey()

	require.NoError(t, submit(t, rt, []solana.PrivateKey{payer}, system.NewAssignInstruction(payer.PublicKey(), owner)))
	acc, err := rt.GetAccount(ctx, payer.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, owner, acc.Owner)

	// Test case: the system program can no longer move it
	err = submit(t, rt, []solana.PrivateKey{payer}, system.NewAssignInstruction(payer.PublicKey(), solana.SystemProgramID))
	assert.ErrorIs(t, err, runtime.ErrInvalidAccountOwner)
}
