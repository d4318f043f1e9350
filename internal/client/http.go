package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"ms-raffles/internal/ledger"
	"ms-raffles/internal/models"
	"ms-raffles/internal/raffle/service"
	"ms-raffles/internal/runtime"
)

// APIError is a non-2xx answer from the node.
type APIError struct {
	Status  int
	Message string
	Err     string
	Code    *uint32
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%d %s: %s", e.Status, e.Message, e.Err)
	if e.Code != nil {
		msg += fmt.Sprintf(" (code %d)", *e.Code)
	}
	return msg
}

// Is lets callers match node errors against the ledger sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ledger.ErrBlockhashNotFound, ledger.ErrAlreadyProcessed, ledger.ErrAccountNotFound:
		return strings.Contains(e.Err, target.Error())
	}
	return false
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    *uint32         `json:"code"`
}

// HTTPClient talks to the raffle node's REST API.
type HTTPClient struct {
	BaseURL    string
	HTTPClient *http.Client
	// Token is sent as a bearer token on admin calls.
	Token string
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out interface{}, authed bool) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed && c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Plain text errors come from http.Error.
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode), Err: strings.TrimSpace(string(raw))}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		return &APIError{Status: resp.StatusCode, Message: env.Message, Err: env.Error, Code: env.Code}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func pageQuery(page ledger.Page) string {
	q := url.Values{}
	if page.Limit > 0 {
		q.Set("limit", strconv.Itoa(page.Limit))
	}
	if page.Offset > 0 {
		q.Set("offset", strconv.Itoa(page.Offset))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func (c *HTTPClient) LatestBlockhash(ctx context.Context) (*ledger.Block, error) {
	var resp struct {
		Blockhash string    `json:"blockhash"`
		Slot      uint64    `json:"slot"`
		Time      time.Time `json:"time"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/blockhash", nil, &resp, false); err != nil {
		return nil, err
	}
	hash, err := solana.HashFromBase58(resp.Blockhash)
	if err != nil {
		return nil, fmt.Errorf("invalid blockhash %q: %w", resp.Blockhash, err)
	}
	return &ledger.Block{Slot: resp.Slot, Blockhash: hash, UnixTime: resp.Time.Unix()}, nil
}

func (c *HTTPClient) Submit(ctx context.Context, tx *runtime.Transaction) (*runtime.Receipt, error) {
	var receipt runtime.Receipt
	if err := c.do(ctx, http.MethodPost, "/api/transactions", tx, &receipt, false); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Airdrop funds to from the node faucet and returns the new balance. It
// needs an admin Token.
func (c *HTTPClient) Airdrop(ctx context.Context, to solana.PublicKey, lamports uint64) (uint64, error) {
	req := map[string]interface{}{"to": to.String(), "lamports": lamports}
	var resp struct {
		Balance uint64 `json:"balance"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/admin/airdrop", req, &resp, true); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

// Account is the node's view of a ledger account.
type Account struct {
	Pubkey   string          `json:"pubkey"`
	Owner    string          `json:"owner"`
	Lamports uint64          `json:"lamports"`
	Data     string          `json:"data"`
	Kind     string          `json:"kind"`
	Parsed   json.RawMessage `json:"parsed,omitempty"`
}

func (c *HTTPClient) GetAccount(ctx context.Context, key solana.PublicKey) (*Account, error) {
	var acc Account
	if err := c.do(ctx, http.MethodGet, "/api/accounts/"+key.String(), nil, &acc, false); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (c *HTTPClient) GetRaffle(ctx context.Context, key solana.PublicKey) (*service.RaffleView, error) {
	var view service.RaffleView
	if err := c.do(ctx, http.MethodGet, "/api/raffles/"+key.String(), nil, &view, false); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *HTTPClient) ListRaffles(ctx context.Context, page ledger.Page) ([]service.RaffleView, error) {
	var views []service.RaffleView
	err := c.do(ctx, http.MethodGet, "/api/raffles"+pageQuery(page), nil, &views, false)
	return views, err
}

// Tickets lists the tickets of a raffle, optionally only those of owner.
func (c *HTTPClient) Tickets(ctx context.Context, raffleKey solana.PublicKey, owner *solana.PublicKey, page ledger.Page) ([]service.TicketView, error) {
	path := "/api/raffles/" + raffleKey.String() + "/tickets" + pageQuery(page)
	if owner != nil {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		path += sep + "owner=" + owner.String()
	}
	var views []service.TicketView
	err := c.do(ctx, http.MethodGet, path, nil, &views, false)
	return views, err
}

func (c *HTTPClient) Stats(ctx context.Context, raffleKey solana.PublicKey) (*service.RaffleStats, error) {
	var stats service.RaffleStats
	if err := c.do(ctx, http.MethodGet, "/api/raffles/"+raffleKey.String()+"/stats", nil, &stats, false); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Draw asks the node to draw winners, or returns the recorded draw.
func (c *HTTPClient) Draw(ctx context.Context, raffleKey solana.PublicKey) (*models.DrawResult, error) {
	var result models.DrawResult
	if err := c.do(ctx, http.MethodPost, "/api/raffles/"+raffleKey.String()+"/draw", nil, &result, false); err != nil {
		return nil, err
	}
	return &result, nil
}

// IsNotFound reports whether err is a 404 from the node.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
