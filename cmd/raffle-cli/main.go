package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ms-raffles/internal/config"
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "raffle-cli",
		Short: "Raffle node wallet and query tool",
	}
	cmd.PersistentFlags().String("node", envOr("RAFFLE_NODE_URL", "http://localhost:8084"), "raffle node base URL")
	cmd.PersistentFlags().String("program", envOr("RAFFLE_PROGRAM_ID", config.DefaultProgramID), "raffle program id")

	cmd.AddCommand(
		KeygenCmd(),
		AirdropCmd(),
		CreateRaffleCmd(),
		BuyTicketsCmd(),
		EndRaffleCmd(),
		CloseTicketCmd(),
		ShowRaffleCmd(),
		ListTicketsCmd(),
		DrawCmd(),
	)
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
