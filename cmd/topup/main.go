package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alovak/topup-playground/internal/amount"
	"github.com/alovak/topup-playground/internal/transport"
	"github.com/alovak/topup-playground/topup"
	"github.com/alovak/topup-playground/topup/models"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "topup",
		Short:         "Send prepaid top-up transactions with automatic reversal",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sendCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := topup.ConfigFromEnv()
			if err != nil {
				return err
			}

			app := topup.NewApp(newLogger(), cfg)
			if err := app.Start(); err != nil {
				return fmt.Errorf("starting app: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			// leave room for an in-flight primary send plus its reversal
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			app.Shutdown(shutdownCtx)
			return nil
		},
	}
}

func sendCmd() *cobra.Command {
	var (
		req        models.TransactionRequest
		amountFlag string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one transaction and print the outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := topup.ConfigFromEnv()
			if err != nil {
				return err
			}

			req.Amount, err = amount.Parse(amountFlag)
			if err != nil {
				return fmt.Errorf("--amount: %w", err)
			}
			if err := cfg.Defaults.Fill(&req, time.Now()); err != nil {
				return err
			}

			logger := newLogger()
			svc := topup.NewService(transport.New(nil, logger), cfg, logger)
			outcome, err := svc.Process(cmd.Context(), req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(outcome); err != nil {
				return err
			}
			if !outcome.Success {
				return errors.New("transaction was not approved")
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Provider, "provider", "", "provider name, e.g. CLARO")
	f.StringVar(&req.Phone, "phone", "", "10-digit phone number or reference")
	f.StringVar(&amountFlag, "amount", "", "amount in currency units, e.g. 2.00")
	f.StringVar(&req.Service, "service", "", "service code (default from config)")
	f.StringVar(&req.TransactionType, "type", "", "transaction type (default 02)")
	f.StringVar(&req.Sequence, "sequence", "", "sequence number (generated when empty)")
	f.StringVar(&req.Batch, "batch", "", "batch id YYMMDD (today when empty)")
	f.StringVar(&req.Cashier, "cashier", "", "cashier id")
	f.StringVar(&req.CashierKey, "cashier-key", "", "cashier key")
	f.StringVar(&req.TerminalID, "terminal", "", "terminal id")
	f.StringVar(&req.MerchantID, "merchant", "", "merchant id")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.MarkFlagRequired("phone")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}
