package raffle

import "fmt"

// ErrorCode is a raffle program error, reported to clients by number.
type ErrorCode uint32

const (
	ErrRaffleEnded  ErrorCode = 6000
	ErrInputError   ErrorCode = 6001
	ErrUnauthorized ErrorCode = 6002
	ErrRaffleActive ErrorCode = 6003
)

var errorMessages = map[ErrorCode]string{
	ErrRaffleEnded:  "raffle has ended",
	ErrInputError:   "invalid input",
	ErrUnauthorized: "unauthorized",
	ErrRaffleActive: "raffle still exists",
}

func (e ErrorCode) Error() string {
	if msg, ok := errorMessages[e]; ok {
		return fmt.Sprintf("%s (custom program error: %d)", msg, uint32(e))
	}
	return fmt.Sprintf("custom program error: %d", uint32(e))
}

func (e ErrorCode) Code() uint32 { return uint32(e) }
