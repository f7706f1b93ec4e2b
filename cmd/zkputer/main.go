// Command zkputer is a command line front end for the zkputer verification
// server: it submits claims, fetches receipts and checks them locally.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zkputer/zkputer-go"
	"github.com/zkputer/zkputer-go/logging"
	"github.com/zkputer/zkputer-go/receipt"
)

// rootFlags are shared by every subcommand and control how the server
// process is launched.
type rootFlags struct {
	configPath string
	serverName string
	command    string
	timeout    time.Duration
	verbose    bool
	stderr     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "zkputer",
		Short:         "Verify trading claims and inspect zkputer receipts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "server configuration file (mcpServers format)")
	pf.StringVar(&flags.serverName, "server", "zkputer", "server entry to use from the configuration file")
	pf.StringVar(&flags.command, "command", "", "server executable (overrides the configuration file)")
	pf.DurationVar(&flags.timeout, "timeout", 0, "per-request timeout (0 means the client default)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&flags.stderr, "log-server-stderr", false, "surface the server's stderr in the log output")

	rootCmd.AddCommand(
		newVerifyCmd(flags),
		newReceiptCmd(flags),
		newToolsCmd(flags),
		newPingCmd(flags),
	)

	return rootCmd
}

// newClient builds the façade client from the shared flags. Flag values win
// over configuration file values.
func (f *rootFlags) newClient() (*zkputer.Client, error) {
	overrides := func(o *zkputer.Options) {
		if f.command != "" {
			o.Command = f.command
		}
		if f.timeout > 0 {
			o.RequestTimeout = f.timeout
		}
		level := logging.LogLevelWarn
		if f.verbose {
			level = logging.LogLevelDebug
		}
		o.Logger = logging.NewSlogLogger(level, "text", false)
		o.LogServerStderr = f.stderr
	}

	if f.configPath != "" {
		return zkputer.NewFromConfig(f.configPath, f.serverName, overrides)
	}
	return zkputer.New(overrides), nil
}

func newVerifyCmd(flags *rootFlags) *cobra.Command {
	var (
		venue        string
		claimType    string
		accountRef   string
		orderRef     string
		executionRef string
		noWait       bool
		waitTimeout  time.Duration
		check        bool
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Submit a claim for verification and print the resulting receipt",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			r, err := client.VerifyClaim(cmd.Context(), zkputer.VerifyClaimRequest{
				Venue:        receipt.Venue(venue),
				ClaimType:    receipt.ClaimType(claimType),
				AccountRef:   accountRef,
				OrderRef:     orderRef,
				ExecutionRef: executionRef,
				NoWait:       noWait,
				WaitTimeout:  waitTimeout,
			})
			if err != nil {
				return err
			}
			return printReceipt(cmd, r, check)
		},
	}

	cmd.Flags().StringVar(&venue, "venue", "", "trading venue (hyperliquid, base, solana, polymarket)")
	cmd.Flags().StringVar(&claimType, "claim-type", "", "claim type (ORDER_PLACED, TRADE_EXECUTED)")
	cmd.Flags().StringVar(&accountRef, "account-ref", "", "account the claim is about")
	cmd.Flags().StringVar(&orderRef, "order-ref", "", "order the claim is about")
	cmd.Flags().StringVar(&executionRef, "execution-ref", "", "execution reference (required for TRADE_EXECUTED)")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "submit without waiting for the proving pipeline")
	cmd.Flags().DurationVar(&waitTimeout, "wait-timeout", 0, "server-side wait bound for a terminal receipt")
	cmd.Flags().BoolVar(&check, "check", false, "run local proof and integrity checks on the receipt")

	_ = cmd.MarkFlagRequired("venue")
	_ = cmd.MarkFlagRequired("claim-type")
	_ = cmd.MarkFlagRequired("account-ref")
	_ = cmd.MarkFlagRequired("order-ref")

	return cmd
}

func newReceiptCmd(flags *rootFlags) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "receipt <receipt-id>",
		Short: "Fetch a receipt by identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			r, err := client.GetReceipt(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printReceipt(cmd, r, check)
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "run local proof and integrity checks on the receipt")

	return cmd
}

func newToolsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools the server exposes",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			tools, err := client.ListTools(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range tools {
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", t.Name, t.Description)
			}
			return nil
		},
	}
}

func newPingCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the server process starts and responds",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

// printReceipt renders a receipt as indented JSON, optionally followed by the
// local check verdicts. The command fails when a requested check fails, so
// scripts can rely on the exit code.
func printReceipt(cmd *cobra.Command, r *receipt.Receipt, check bool) error {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if !check {
		return nil
	}

	intact := receipt.CheckIntegrity(r)
	fmt.Fprintf(cmd.OutOrStdout(), "integrity intact:     %t\n", intact)

	proved := receipt.VerifyOffchain(r)
	fmt.Fprintf(cmd.OutOrStdout(), "offchain proof valid: %t\n", proved)

	if !intact {
		return fmt.Errorf("receipt %s failed the integrity check", r.ReceiptID)
	}
	if r.Status == receipt.StatusProved && !proved {
		return fmt.Errorf("receipt %s failed offchain proof verification", r.ReceiptID)
	}
	return nil
}
