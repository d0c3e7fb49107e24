package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/masukame/currency"
	"github.com/hazyhaar/masukame/formcheck"
	"github.com/hazyhaar/masukame/registry"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// registryClient builds a registry client from the config alone; the CLI
// queries need no database.
func registryClient(g *globalFlags) (*registry.Client, error) {
	logger := g.logger(os.Stderr)
	cfg, err := g.loadConfig(logger)
	if err != nil {
		return nil, err
	}
	opts := []registry.Option{registry.WithLogger(logger)}
	if !cfg.IsDevelopment() {
		opts = append(opts, registry.WithSSRFGuard())
	}
	return registry.New(cfg, opts...), nil
}

func newSearchCmd(g *globalFlags) *cobra.Command {
	var transfers bool
	var verify string
	cmd := &cobra.Command{
		Use:   "search <serial|token>",
		Short: "Look up a sculpture in the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := registryClient(g)
			if err != nil {
				return err
			}
			defer c.Destroy()
			ctx := cmd.Context()

			s, err := c.Search(ctx, args[0])
			if err != nil {
				return err
			}
			out := map[string]any{"sculpture": s}
			if s != nil && transfers {
				out["transfers"] = c.TransferHistory(ctx, s.TokenID)
			}
			if s != nil && verify != "" {
				out["verification"] = c.VerifyOwnership(ctx, s.TokenID, verify)
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().BoolVar(&transfers, "transfers", false, "include the transfer history")
	cmd.Flags().StringVar(&verify, "verify", "", "verify ownership by this wallet address")
	return cmd
}

func newStatsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print registry statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := registryClient(g)
			if err != nil {
				return err
			}
			defer c.Destroy()
			return printJSON(cmd.OutOrStdout(), c.Statistics(cmd.Context()))
		},
	}
}

func newPriceCmd(g *globalFlags) *cobra.Command {
	var code string
	var from, live bool
	cmd := &cobra.Command{
		Use:   "price <usd>",
		Short: "Convert a USD price the way pages render it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			usd, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[0])
			}
			c, ok := currency.ParseCode(code)
			if !ok {
				return fmt.Errorf("unsupported currency %q", code)
			}
			logger := g.logger(os.Stderr)
			cfg, err := g.loadConfig(logger)
			if err != nil {
				return err
			}
			conv := currency.New(cfg.FallbackRates(), currency.WithLocale(cfg.Currency.Locale), currency.WithLogger(logger))
			if live {
				f := currency.NewRateFetcher(conv, cfg.Currency.APIEndpoint, cfg.Currency.UpdateInterval, currency.WithFetcherLogger(logger))
				if _, err := f.FetchOnce(cmd.Context()); err != nil {
					logger.Warn("masukame: live rates unavailable, using fallback", "error", err)
				}
			}
			opts := currency.FormatOptions{ShowFrom: from, ShowApprox: true}
			fmt.Fprintln(cmd.OutOrStdout(), conv.Format(conv.Convert(usd, c), c, opts))
			return nil
		},
	}
	cmd.Flags().StringVar(&code, "currency", "USD", "target currency (USD, EUR, AED, JPY)")
	cmd.Flags().BoolVar(&from, "from", false, `prefix with "From"`)
	cmd.Flags().BoolVar(&live, "live", false, "fetch current rates first")
	return cmd
}

var errInvalidWallet = errors.New("invalid wallet")

func newCheckWalletCmd() *cobra.Command {
	var confirm string
	var lenient bool
	cmd := &cobra.Command{
		Use:   "check-wallet <address>",
		Short: "Validate an Ethereum wallet address as the purchase form does",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []formcheck.Option
			if lenient {
				opts = append(opts, formcheck.WithChecksum(formcheck.PassThroughChecksum))
			}
			v := formcheck.New(opts...)
			addr := strings.TrimSpace(args[0])
			st := v.ValidateWallet(addr)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\t%s\n", st.Status, st.Message)
			if formcheck.IsWalletAddress(addr) {
				fmt.Fprintf(out, "checksum\t%s\n", formcheck.ChecksumAddress(addr))
			}
			if confirm != "" {
				cst := v.ValidateWallet(strings.TrimSpace(confirm))
				if m, ok := formcheck.MatchWallets(addr, confirm, cst); ok {
					cst = m
				}
				fmt.Fprintf(out, "confirm\t%s\t%s\n", cst.Status, cst.Message)
				if !cst.OK() {
					return errInvalidWallet
				}
			}
			if !st.OK() {
				return errInvalidWallet
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&confirm, "confirm", "", "confirmation address that must match")
	cmd.Flags().BoolVar(&lenient, "lenient", false, "accept mixed-case addresses without checking the EIP-55 checksum")
	return cmd
}
