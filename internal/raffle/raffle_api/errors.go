package raffle_api

import (
	"errors"
	"net/http"

	"ms-raffles/internal/ledger"
	"ms-raffles/internal/raffle/db"
	"ms-raffles/internal/raffle/qr"
	"ms-raffles/internal/raffle/service"
	"ms-raffles/internal/runtime"
	"ms-raffles/internal/utils"
)

var errBadKey = errors.New("invalid public key")

// statusFor maps ledger, runtime and read side errors to HTTP status codes.
func statusFor(err error) int {
	var ixErr *runtime.InstructionError
	switch {
	case errors.Is(err, errBadKey),
		errors.Is(err, runtime.ErrEmptyTransaction),
		errors.Is(err, runtime.ErrInvalidSignature),
		errors.Is(err, runtime.ErrMissingRequiredSignature) && !errors.As(err, &ixErr),
		errors.Is(err, qr.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrAlreadyProcessed),
		errors.Is(err, ledger.ErrBlockhashNotFound),
		errors.Is(err, service.ErrRaffleOpen),
		errors.Is(err, service.ErrDrawNotReady):
		return http.StatusConflict
	case errors.As(err, &ixErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, service.ErrRaffleNotFound),
		errors.Is(err, service.ErrNotRaffleAccount),
		errors.Is(err, db.ErrDrawNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, message string, err error) {
	resp := utils.ErrorResponse(message, err.Error())
	if code, ok := runtime.ErrorCode(err); ok {
		resp = resp.WithCode(code)
	}
	utils.WriteJSON(w, statusFor(err), resp)
}
