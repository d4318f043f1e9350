package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"ms-raffles/internal/client"
	"ms-raffles/internal/ledger"
	"ms-raffles/internal/logger"
	"ms-raffles/internal/raffle"
)

const requestTimeout = 30 * time.Second

func nodeClient(cmd *cobra.Command) *client.HTTPClient {
	url, _ := cmd.Flags().GetString("node")
	return client.NewHTTPClient(url)
}

func wallet(cmd *cobra.Command) (*client.Wallet, error) {
	raw, _ := cmd.Flags().GetString("program")
	programID, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid program id %q: %w", raw, err)
	}
	return client.NewWallet(nodeClient(cmd), programID, logger.NewDiscard()), nil
}

func loadKeypair(cmd *cobra.Command) (solana.PrivateKey, error) {
	path, _ := cmd.Flags().GetString("keypair")
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair %s: %w", path, err)
	}
	return key, nil
}

func keyFlag(cmd *cobra.Command, name string) (solana.PublicKey, error) {
	raw, _ := cmd.Flags().GetString(name)
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid --%s %q: %w", name, raw, err)
	}
	return key, nil
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Println(string(data))
}

func timeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

// keygen
func KeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a keypair file",
		Run:   keygen,
	}
	cmd.Flags().StringP("out", "o", "", "keypair file to write")
	cmd.MarkFlagRequired("out")
	return cmd
}

func keygen(cmd *cobra.Command, args []string) {
	out, _ := cmd.Flags().GetString("out")
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	// solana-keygen format: a JSON array of the 64 secret key bytes
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	data, _ := json.Marshal(ints)
	if err := os.WriteFile(out, data, 0o600); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Println(key.PublicKey())
}

// airdrop
func AirdropCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "airdrop",
		Short: "Fund an account from the node faucet (admin)",
		Run:   airdrop,
	}
	cmd.Flags().StringP("to", "t", "", "recipient public key")
	cmd.MarkFlagRequired("to")
	cmd.Flags().Uint64P("lamports", "l", 0, "amount in lamports")
	cmd.MarkFlagRequired("lamports")
	cmd.Flags().String("token", os.Getenv("RAFFLE_ADMIN_TOKEN"), "admin bearer token")
	return cmd
}

func airdrop(cmd *cobra.Command, args []string) {
	to, err := keyFlag(cmd, "to")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	lamports, _ := cmd.Flags().GetUint64("lamports")
	c := nodeClient(cmd)
	c.Token, _ = cmd.Flags().GetString("token")

	ctx, cancel := timeout()
	defer cancel()
	balance, err := c.Airdrop(ctx, to, lamports)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Printf("%s balance: %d lamports\n", to, balance)
}

// create
func CreateRaffleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a raffle",
		Run:   createRaffle,
	}
	cmd.Flags().StringP("keypair", "k", "", "authority keypair file")
	cmd.MarkFlagRequired("keypair")
	cmd.Flags().Uint64P("price", "p", 0, "ticket price in lamports")
	cmd.Flags().DurationP("duration", "d", time.Hour, "time until the raffle ends")
	cmd.Flags().String("title", "", "raffle title")
	cmd.MarkFlagRequired("title")
	cmd.Flags().String("description", "", "raffle description")
	cmd.Flags().String("image", "", "image URL")
	cmd.Flags().Uint32P("winners", "w", 1, "number of winners")
	return cmd
}

func createRaffle(cmd *cobra.Command, args []string) {
	authority, err := loadKeypair(cmd)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	w, err := wallet(cmd)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	price, _ := cmd.Flags().GetUint64("price")
	duration, _ := cmd.Flags().GetDuration("duration")
	title, _ := cmd.Flags().GetString("title")
	description, _ := cmd.Flags().GetString("description")
	image, _ := cmd.Flags().GetString("image")
	winners, _ := cmd.Flags().GetUint32("winners")

	ctx, cancel := timeout()
	defer cancel()
	ends := time.Now().Add(duration).Unix()

	key, receipt, err := w.CreateRaffle(ctx, authority, raffle.CreateRaffleArgs{
		Price:       price,
		Ends:        ends,
		Title:       title,
		Description: description,
		Image:       image,
		Winners:     winners,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	printJSON(map[string]interface{}{"raffle": key, "signature": receipt.Signature, "ends": ends})
}

// buy
func BuyTicketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buy",
		Short: "Buy raffle tickets",
		Run:   buyTickets,
	}
	cmd.Flags().StringP("keypair", "k", "", "participant keypair file")
	cmd.MarkFlagRequired("keypair")
	cmd.Flags().StringP("raffle", "r", "", "raffle address")
	cmd.MarkFlagRequired("raffle")
	cmd.Flags().IntP("count", "n", 1, "number of tickets")
	return cmd
}

func buyTickets(cmd *cobra.Command, args []string) {
	participant, err := loadKeypair(cmd)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	raffleKey, err := keyFlag(cmd, "raffle")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	w, err := wallet(cmd)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	count, _ := cmd.Flags().GetInt("count")

	ctx, cancel := timeout()
	defer cancel()
	view, err := nodeClient(cmd).GetRaffle(ctx, raffleKey)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	tickets, err := w.BuyTickets(ctx, participant, raffleKey, view.Authority, count)
	if len(tickets) > 0 {
		printJSON(tickets)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}

// end
func EndRaffleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "end",
		Short: "Close a raffle and reclaim its balance",
		Run:   endRaffle,
	}
	cmd.Flags().StringP("keypair", "k", "", "authority keypair file")
	cmd.MarkFlagRequired("keypair")
	cmd.Flags().StringP("raffle", "r", "", "raffle address")
	cmd.MarkFlagRequired("raffle")
	return cmd
}

func endRaffle(cmd *cobra.Command, args []string) {
	authority, err := loadKeypair(cmd)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	raffleKey, err := keyFlag(cmd, "raffle")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	w, err := wallet(cmd)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}

	ctx, cancel := timeout()
	defer cancel()
	receipt, err := w.EndRaffle(ctx, authority, raffleKey)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	printJSON(receipt)
}

// close-ticket
func CloseTicketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close-ticket",
		Short: "Reclaim the rent of a ticket whose raffle is closed",
		Run:   closeTicket,
	}
	cmd.Flags().StringP("keypair", "k", "", "participant keypair file")
	cmd.MarkFlagRequired("keypair")
	cmd.Flags().StringP("ticket", "t", "", "ticket address")
	cmd.MarkFlagRequired("ticket")
	cmd.Flags().StringP("raffle", "r", "", "raffle address")
	cmd.MarkFlagRequired("raffle")
	return cmd
}

func closeTicket(cmd *cobra.Command, args []string) {
	participant, err := loadKeypair(cmd)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	ticket, err := keyFlag(cmd, "ticket")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	raffleKey, err := keyFlag(cmd, "raffle")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	w, err := wallet(cmd)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}

	ctx, cancel := timeout()
	defer cancel()
	receipt, err := w.CloseTicket(ctx, participant, ticket, raffleKey)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	printJSON(receipt)
}

// show
func ShowRaffleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a raffle, or list raffles when none is given",
		Run:   showRaffle,
	}
	cmd.Flags().StringP("raffle", "r", "", "raffle address")
	return cmd
}

func showRaffle(cmd *cobra.Command, args []string) {
	c := nodeClient(cmd)
	ctx, cancel := timeout()
	defer cancel()

	if raw, _ := cmd.Flags().GetString("raffle"); raw == "" {
		views, err := c.ListRaffles(ctx, ledger.Page{})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		printJSON(views)
		return
	}
	raffleKey, err := keyFlag(cmd, "raffle")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	stats, err := c.Stats(ctx, raffleKey)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	view, err := c.GetRaffle(ctx, raffleKey)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	printJSON(map[string]interface{}{"raffle": view, "stats": stats})
}

// tickets
func ListTicketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "List the tickets of a raffle",
		Run:   listTickets,
	}
	cmd.Flags().StringP("raffle", "r", "", "raffle address")
	cmd.MarkFlagRequired("raffle")
	cmd.Flags().String("owner", "", "only tickets of this participant")
	cmd.Flags().Int("limit", 0, "page size")
	cmd.Flags().Int("offset", 0, "page offset")
	return cmd
}

func listTickets(cmd *cobra.Command, args []string) {
	raffleKey, err := keyFlag(cmd, "raffle")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	var owner *solana.PublicKey
	if raw, _ := cmd.Flags().GetString("owner"); raw != "" {
		key, err := keyFlag(cmd, "owner")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		owner = &key
	}
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	ctx, cancel := timeout()
	defer cancel()
	tickets, err := nodeClient(cmd).Tickets(ctx, raffleKey, owner, ledger.Page{Limit: limit, Offset: offset})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	printJSON(tickets)
}

// draw
func DrawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draw",
		Short: "Draw the winners of an ended raffle",
		Run:   draw,
	}
	cmd.Flags().StringP("raffle", "r", "", "raffle address")
	cmd.MarkFlagRequired("raffle")
	return cmd
}

func draw(cmd *cobra.Command, args []string) {
	raffleKey, err := keyFlag(cmd, "raffle")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	ctx, cancel := timeout()
	defer cancel()
	result, err := nodeClient(cmd).Draw(ctx, raffleKey)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	printJSON(result)
}
