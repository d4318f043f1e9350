package raffle

import (
	"github.com/gagliardetto/solana-go"

	"ms-raffles/internal/runtime"
	"ms-raffles/internal/system"
)

// collectFee moves price from the participant into the raffle escrow.
func collectFee(ictx *runtime.InvokeContext, participant, escrow *runtime.AccountInfo, price uint64) error {
	if price == 0 {
		return nil
	}
	return ictx.Invoke(system.ProgramID, system.TransferData(price), participant, escrow)
}

// allocate creates a rent-exempt account of size bytes owned by this program.
func allocate(ictx *runtime.InvokeContext, payer, account *runtime.AccountInfo, size int) error {
	params := system.CreateAccountParams{
		Lamports: ictx.RentMinimum(size),
		Space:    uint64(size),
		Owner:    ictx.ProgramID(),
	}
	return ictx.Invoke(system.ProgramID, system.CreateAccountData(params), payer, account)
}

// closeAccount sends the whole balance of account to dest and hands the
// emptied account back to the system program.
func closeAccount(account, dest *runtime.AccountInfo) (uint64, error) {
	reclaimed := account.Lamports
	if dest.Lamports > ^uint64(0)-reclaimed {
		return 0, runtime.ErrArithmeticOverflow
	}
	dest.Lamports += reclaimed
	account.Lamports = 0
	account.Data = nil
	account.Owner = solana.SystemProgramID
	return reclaimed, nil
}
