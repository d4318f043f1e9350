// Package raffle_api serves the raffle node over HTTP: transaction submission,
// account and raffle queries, winner draws and live event streams.
package raffle_api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ms-raffles/internal/auth"
	"ms-raffles/internal/ledger"
	"ms-raffles/internal/logger"
	"ms-raffles/internal/raffle"
	"ms-raffles/internal/raffle/qr"
	"ms-raffles/internal/raffle/service"
	"ms-raffles/internal/runtime"
	"ms-raffles/internal/sse"
	"ms-raffles/internal/utils"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
	maxBodyBytes     = 1 << 20
	qrSize           = 256
)

// Node is the transaction-processing side of the raffle node.
type Node interface {
	Submit(ctx context.Context, tx *runtime.Transaction) (*runtime.Receipt, error)
	Airdrop(ctx context.Context, to solana.PublicKey, lamports uint64) (uint64, error)
	GetAccount(ctx context.Context, key solana.PublicKey) (*ledger.Account, error)
	LatestBlockhash(ctx context.Context) (*ledger.Block, error)
}

type Handler struct {
	Node          Node
	RaffleService *service.RaffleService
	Events        *service.Dispatcher
	Emitter       *sse.RaffleEventEmitter
	QRGenerator   *qr.QRGenerator
	Verifier      auth.Verifier
	MaxAirdrop    uint64
	Logger        *logger.Logger
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/blockhash", h.GetBlockhash)
		r.Post("/transactions", h.SubmitTransaction)
		r.Get("/accounts/{key}", h.GetAccount)
		r.Get("/events", h.StreamAllEvents)

		r.Route("/raffles", func(r chi.Router) {
			r.Get("/", h.ListRaffles)
			r.Route("/{raffleID}", func(r chi.Router) {
				r.Get("/", h.GetRaffle)
				r.Get("/tickets", h.ListTickets)
				r.Get("/tickets/count", h.CountTickets)
				r.Get("/stats", h.GetStats)
				r.Get("/draw", h.GetDraw)
				r.Post("/draw", h.DrawWinners)
				r.Get("/events", h.StreamRaffleEvents)
			})
		})

		r.Get("/tickets/{ticketID}/qr", h.TicketQR)
		r.Post("/tickets/verify", h.VerifyTicketQR)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(h.Verifier, h.Logger))
			r.Post("/admin/airdrop", h.Airdrop)
		})
	})
}

// RequestLogger logs every request with its status and latency.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, strconv.Itoa(ww.Status()), time.Since(start).String())
		})
	}
}

func parseKey(raw string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %q", errBadKey, raw)
	}
	return key, nil
}

func parsePage(r *http.Request) ledger.Page {
	page := ledger.Page{Limit: defaultPageLimit}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		page.Limit = v
	}
	if page.Limit > maxPageLimit {
		page.Limit = maxPageLimit
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		page.Offset = v
	}
	return page
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	block, err := h.Node.LatestBlockhash(r.Context())
	if err != nil {
		writeError(w, "ledger unavailable", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", map[string]uint64{"slot": block.Slot}))
}

type blockhashResponse struct {
	Blockhash string    `json:"blockhash"`
	Slot      uint64    `json:"slot"`
	Time      time.Time `json:"time"`
}

func (h *Handler) GetBlockhash(w http.ResponseWriter, r *http.Request) {
	block, err := h.Node.LatestBlockhash(r.Context())
	if err != nil {
		writeError(w, "failed to read latest blockhash", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("latest blockhash", blockhashResponse{
		Blockhash: block.Blockhash.String(),
		Slot:      block.Slot,
		Time:      utils.UnixTimeToTime(block.UnixTime),
	}))
}

// SubmitTransaction executes a signed transaction and publishes the events
// it produced.
func (h *Handler) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var tx runtime.Transaction
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&tx); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	receipt, err := h.Node.Submit(r.Context(), &tx)
	if err != nil {
		h.Logger.Warn("API", fmt.Sprintf("transaction rejected: %v", err))
		writeError(w, "transaction failed", err)
		return
	}
	h.Logger.LogInstruction("SUBMIT", receipt.Signature.String(),
		fmt.Sprintf("slot %d, %d events in %s", receipt.Slot, len(receipt.Events), time.Since(start)))

	if h.Events != nil {
		h.Events.Dispatch(r.Context(), receipt)
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("transaction committed", receipt))
}

type accountResponse struct {
	Pubkey   string      `json:"pubkey"`
	Owner    string      `json:"owner"`
	Lamports uint64      `json:"lamports"`
	Data     string      `json:"data"`
	Kind     string      `json:"kind"`
	Parsed   interface{} `json:"parsed,omitempty"`
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	key, err := parseKey(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, "invalid account key", err)
		return
	}
	acc, err := h.Node.GetAccount(r.Context(), key)
	if err != nil {
		writeError(w, "account lookup failed", err)
		return
	}

	resp := accountResponse{
		Pubkey:   acc.Key.String(),
		Owner:    acc.Owner.String(),
		Lamports: acc.Lamports,
		Data:     base64.StdEncoding.EncodeToString(acc.Data),
		Kind:     "unknown",
	}
	switch {
	case acc.Owner.Equals(solana.SystemProgramID):
		resp.Kind = "system"
	case acc.Owner.Equals(h.RaffleService.ProgramID):
		if rf, err := raffle.DecodeRaffle(acc.Data); err == nil {
			resp.Kind, resp.Parsed = "raffle", rf
		} else if t, err := raffle.DecodeTicket(acc.Data); err == nil {
			resp.Kind, resp.Parsed = "ticket", t
		}
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("account", resp))
}

func (h *Handler) ListRaffles(w http.ResponseWriter, r *http.Request) {
	raffles, err := h.RaffleService.ListRaffles(r.Context(), parsePage(r))
	if err != nil {
		writeError(w, "failed to list raffles", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("raffles", raffles))
}

func (h *Handler) raffleKey(w http.ResponseWriter, r *http.Request) (solana.PublicKey, bool) {
	key, err := parseKey(chi.URLParam(r, "raffleID"))
	if err != nil {
		writeError(w, "invalid raffle id", err)
		return solana.PublicKey{}, false
	}
	return key, true
}

func (h *Handler) GetRaffle(w http.ResponseWriter, r *http.Request) {
	key, ok := h.raffleKey(w, r)
	if !ok {
		return
	}
	view, err := h.RaffleService.GetRaffle(r.Context(), key)
	if err != nil {
		writeError(w, "raffle lookup failed", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("raffle", view))
}

func ownerParam(r *http.Request) (*solana.PublicKey, error) {
	raw := r.URL.Query().Get("owner")
	if raw == "" {
		return nil, nil
	}
	key, err := parseKey(raw)
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	key, ok := h.raffleKey(w, r)
	if !ok {
		return
	}
	owner, err := ownerParam(r)
	if err != nil {
		writeError(w, "invalid owner", err)
		return
	}
	tickets, err := h.RaffleService.TicketsForRaffle(r.Context(), key, owner, parsePage(r))
	if err != nil {
		writeError(w, "failed to list tickets", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("tickets", tickets))
}

// TicketCountResponse is the response format for the ticket count endpoint
type TicketCountResponse struct {
	Raffle string `json:"raffle"`
	Owner  string `json:"owner,omitempty"`
	Count  int    `json:"count"`
}

// CountTickets answers from the purchase cache when an owner is given and
// from a ledger scan otherwise.
func (h *Handler) CountTickets(w http.ResponseWriter, r *http.Request) {
	key, ok := h.raffleKey(w, r)
	if !ok {
		return
	}
	owner, err := ownerParam(r)
	if err != nil {
		writeError(w, "invalid owner", err)
		return
	}

	resp := TicketCountResponse{Raffle: key.String()}
	if owner != nil {
		resp.Owner = owner.String()
		resp.Count, err = h.RaffleService.PurchasedCount(r.Context(), key, *owner)
	} else {
		resp.Count, err = h.RaffleService.CountTickets(r.Context(), key, nil)
	}
	if err != nil {
		writeError(w, "failed to count tickets", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ticket count", resp))
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	key, ok := h.raffleKey(w, r)
	if !ok {
		return
	}
	stats, err := h.RaffleService.Stats(r.Context(), key)
	if err != nil {
		writeError(w, "failed to compute stats", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("raffle stats", stats))
}

func (h *Handler) GetDraw(w http.ResponseWriter, r *http.Request) {
	key, ok := h.raffleKey(w, r)
	if !ok {
		return
	}
	result, err := h.RaffleService.GetDraw(r.Context(), key)
	if err != nil {
		writeError(w, "draw lookup failed", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("draw result", result))
}

func (h *Handler) DrawWinners(w http.ResponseWriter, r *http.Request) {
	key, ok := h.raffleKey(w, r)
	if !ok {
		return
	}
	result, err := h.RaffleService.DrawWinners(r.Context(), key)
	if err != nil {
		writeError(w, "draw failed", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("winners drawn", result))
}

func (h *Handler) TicketQR(w http.ResponseWriter, r *http.Request) {
	key, err := parseKey(chi.URLParam(r, "ticketID"))
	if err != nil {
		writeError(w, "invalid ticket id", err)
		return
	}
	acc, err := h.Node.GetAccount(r.Context(), key)
	if err != nil {
		writeError(w, "ticket lookup failed", err)
		return
	}
	if !acc.Owner.Equals(h.RaffleService.ProgramID) {
		writeError(w, "not a ticket", fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, key))
		return
	}
	ticket, err := raffle.DecodeTicket(acc.Data)
	if err != nil {
		writeError(w, "not a ticket", fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, key))
		return
	}
	block, err := h.Node.LatestBlockhash(r.Context())
	if err != nil {
		writeError(w, "failed to read latest block", err)
		return
	}

	png, err := h.QRGenerator.GenerateEncryptedQR(qr.TicketProof{
		Ticket:      key.String(),
		Raffle:      ticket.Raffle.String(),
		Participant: ticket.Participant.String(),
		Slot:        block.Slot,
		IssuedAt:    time.Now().UTC(),
	}, qrSize)
	if err != nil {
		writeError(w, "failed to generate QR", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// VerifyTicketQR decrypts a scanned QR payload and confirms the ticket still
// exists on the ledger with the same raffle and participant.
// Expected POST request body: {"encrypted_qr": "base64_encrypted_string"}
func (h *Handler) VerifyTicketQR(w http.ResponseWriter, r *http.Request) {
	var requestBody struct {
		EncryptedQR string `json:"encrypted_qr"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&requestBody); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	proof, err := h.QRGenerator.DecryptQRData(requestBody.EncryptedQR)
	if err != nil {
		writeError(w, "invalid QR code", err)
		return
	}
	key, err := parseKey(proof.Ticket)
	if err != nil {
		writeError(w, "invalid QR code", err)
		return
	}
	acc, err := h.Node.GetAccount(r.Context(), key)
	if err != nil {
		writeError(w, "ticket no longer exists", err)
		return
	}
	ticket, err := raffle.DecodeTicket(acc.Data)
	if err != nil || !acc.Owner.Equals(h.RaffleService.ProgramID) ||
		ticket.Raffle.String() != proof.Raffle || ticket.Participant.String() != proof.Participant {
		writeError(w, "ticket does not match QR code", qr.ErrInvalidPayload)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ticket verified", proof))
}

type airdropRequest struct {
	To       string `json:"to"`
	Lamports uint64 `json:"lamports"`
}

func (h *Handler) Airdrop(w http.ResponseWriter, r *http.Request) {
	var req airdropRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseKey(req.To)
	if err != nil {
		writeError(w, "invalid recipient", err)
		return
	}
	if req.Lamports == 0 || (h.MaxAirdrop > 0 && req.Lamports > h.MaxAirdrop) {
		http.Error(w, fmt.Sprintf("lamports must be between 1 and %d", h.MaxAirdrop), http.StatusBadRequest)
		return
	}

	balance, err := h.Node.Airdrop(r.Context(), to, req.Lamports)
	if err != nil {
		writeError(w, "airdrop failed", err)
		return
	}
	h.Logger.LogSecurity("AIRDROP", fmt.Sprintf("%s sent %d lamports to %s", auth.UserID(r.Context()), req.Lamports, to))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("airdrop complete", map[string]uint64{"balance": balance}))
}
