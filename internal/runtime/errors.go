package runtime

import (
	"errors"
	"fmt"

	"ms-raffles/internal/ledger"
)

var (
	ErrAccountNotFound          = ledger.ErrAccountNotFound
	ErrBlockhashNotFound        = ledger.ErrBlockhashNotFound
	ErrAlreadyProcessed         = ledger.ErrAlreadyProcessed
	ErrEmptyTransaction         = errors.New("transaction has no instructions")
	ErrMissingRequiredSignature = errors.New("missing required signature")
	ErrInvalidSignature         = errors.New("signature verification failed")
	ErrUnknownProgram           = errors.New("program not registered")
	ErrNotEnoughAccountKeys     = errors.New("not enough account keys")
	ErrInvalidInstructionData   = errors.New("invalid instruction data")
	ErrAccountAlreadyInUse      = errors.New("account already in use")
	ErrAccountNotWritable       = errors.New("account not writable")
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrInsufficientFundsForRent = errors.New("insufficient funds for rent")
	ErrIncorrectProgramID       = errors.New("incorrect program id")
	ErrInvalidAccountOwner      = errors.New("invalid account owner")
	ErrUnbalancedInstruction    = errors.New("sum of account balances before and after instruction do not match")
	ErrReadonlyAccountModified  = errors.New("instruction modified a readonly account")
	ErrExternalLamportSpend     = errors.New("instruction spent from the balance of an account it does not own")
	ErrExternalDataModified     = errors.New("instruction modified data of an account it does not own")
	ErrModifiedProgramID        = errors.New("instruction illegally modified the program id of an account")
	ErrArithmeticOverflow       = errors.New("arithmetic overflow")
	ErrCallDepth                = errors.New("cross-program invocation depth exceeded")
)

// InstructionError reports which instruction of a transaction failed.
type InstructionError struct {
	Index int
	Err   error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("instruction %d: %v", e.Index, e.Err)
}

func (e *InstructionError) Unwrap() error { return e.Err }

// Coded is implemented by program errors that carry a numeric code.
type Coded interface {
	error
	Code() uint32
}

// ErrorCode extracts the program error code from err, if any.
func ErrorCode(err error) (uint32, bool) {
	var coded Coded
	if errors.As(err, &coded) {
		return coded.Code(), true
	}
	return 0, false
}
