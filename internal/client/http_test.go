package client_test

import (
	"context"
	"database/sql"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-raffles/internal/auth"
	"ms-raffles/internal/client"
	"ms-raffles/internal/ledger"
	"ms-raffles/internal/logger"
	"ms-raffles/internal/raffle"
	"ms-raffles/internal/raffle/db"
	"ms-raffles/internal/raffle/qr"
	"ms-raffles/internal/raffle/raffle_api"
	"ms-raffles/internal/raffle/service"
	"ms-raffles/internal/runtime"
	"ms-raffles/internal/sse"
)

const adminSecret = "admin-secret"

func startNode(t *testing.T) (*client.HTTPClient, *runtime.ManualClock) {
	rt, clock := setupRuntime(t)

	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })
	require.NoError(t, db.CreateSchema(context.Background(), bunDB))

	emitter := sse.NewRaffleEventEmitter()
	dispatcher := service.NewDispatcher(logger.NewDiscard(), emitter)
	svc := service.NewRaffleService(rt.Store(), &db.DB{Bun: bunDB}, nil, dispatcher, clock, programID, logger.NewDiscard())

	h := &raffle_api.Handler{
		Node:          rt,
		RaffleService: svc,
		Events:        dispatcher,
		Emitter:       emitter,
		QRGenerator:   qr.NewQRGenerator("qr-secret"),
		Verifier:      &auth.HMACVerifier{Secret: []byte(adminSecret)},
		MaxAirdrop:    100 * oneSOL,
		Logger:        logger.NewDiscard(),
	}
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c := client.NewHTTPClient(srv.URL + "/")
	token, err := auth.IssueToken(adminSecret, "ops", time.Hour)
	require.NoError(t, err)
	c.Token = token
	return c, clock
}

func TestHTTPClientLifecycle(t *testing.T) {
	ctx := context.Background()
	c, clock := startNode(t)
	w := client.NewWallet(c, programID, logger.NewDiscard())

	authority := solana.NewWallet().PrivateKey
	participant := solana.NewWallet().PrivateKey
	for _, key := range []solana.PrivateKey{authority, participant} {
		balance, err := c.Airdrop(ctx, key.PublicKey(), 5*oneSOL)
		require.NoError(t, err)
		assert.Equal(t, uint64(5*oneSOL), balance)
	}

	raffleKey, receipt, err := w.CreateRaffle(ctx, authority, raffleArgs(startUnix+60))
	require.NoError(t, err)
	assert.NotEqual(t, solana.Signature{}, receipt.Signature)

	tickets, err := w.BuyTickets(ctx, participant, raffleKey, authority.PublicKey(), 3)
	require.NoError(t, err)
	require.Len(t, tickets, 3)

	view, err := c.GetRaffle(ctx, raffleKey)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), view.Tickets)
	assert.Equal(t, service.StatusOpen, view.Status)
	assert.Equal(t, authority.PublicKey(), view.Authority)

	raffles, err := c.ListRaffles(ctx, ledger.Page{})
	require.NoError(t, err)
	assert.Len(t, raffles, 1)

	owner := participant.PublicKey()
	listed, err := c.Tickets(ctx, raffleKey, &owner, ledger.Page{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	stats, err := c.Stats(ctx, raffleKey)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Tickets)

	acc, err := c.GetAccount(ctx, tickets[0])
	require.NoError(t, err)
	assert.Equal(t, "ticket", acc.Kind)

	// Test case: drawing before the end is a conflict
	_, err = c.Draw(ctx, raffleKey)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 409, apiErr.Status)

	// Test case: purchase after the end carries the program code
	clock.Advance(2 * time.Minute)
	_, err = w.BuyTickets(ctx, participant, raffleKey, authority.PublicKey(), 1)
	require.ErrorAs(t, err, &apiErr)
	require.NotNil(t, apiErr.Code)
	assert.Equal(t, uint32(raffle.ErrRaffleEnded), *apiErr.Code)

	// Test case: the draw waits for the first block after the end
	_, err = c.Draw(ctx, raffleKey)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 409, apiErr.Status)

	_, _, err = w.CreateRaffle(ctx, authority, raffleArgs(clock.Now().Unix()+60))
	require.NoError(t, err)

	result, err := c.Draw(ctx, raffleKey)
	require.NoError(t, err)
	assert.Len(t, result.WinningTickets, 1)
	assert.Contains(t, []string{tickets[0].String(), tickets[1].String(), tickets[2].String()}, result.WinningTickets[0])

	_, err = w.EndRaffle(ctx, authority, raffleKey)
	require.NoError(t, err)
	_, err = c.GetRaffle(ctx, raffleKey)
	assert.True(t, client.IsNotFound(err))
}

func TestHTTPClientAirdropNeedsToken(t *testing.T) {
	c, _ := startNode(t)
	c.Token = ""
	_, err := c.Airdrop(context.Background(), solana.NewWallet().PublicKey(), oneSOL)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)
}

func TestAPIErrorMatchesLedgerErrors(t *testing.T) {
	err := &client.APIError{Status: 409, Message: "transaction failed", Err: "blockhash not found"}
	assert.ErrorIs(t, err, ledger.ErrBlockhashNotFound)
	assert.NotErrorIs(t, err, ledger.ErrAlreadyProcessed)
}
