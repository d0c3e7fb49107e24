package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/masukame/connectivity"
	"github.com/hazyhaar/masukame/horosafe"
	"github.com/hazyhaar/masukame/site"
	"github.com/hazyhaar/masukame/siteconfig"
)

func newOutboxCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and replay stored form submissions",
	}
	cmd.AddCommand(newOutboxListCmd(g), newOutboxFlushCmd(g), newRouteCmd(g))
	return cmd
}

func newOutboxListCmd(g *globalFlags) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending submissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB(g.dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			ob, err := site.NewOutbox(db)
			if err != nil {
				return err
			}
			entries, err := ob.Pending(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFORM\tQUEUED")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", e.ID, e.Form, e.CreatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum entries (0: all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print payloads as JSON")
	return cmd
}

// newOutboxFlushCmd replays pending submissions through the http routes
// only. The router has no local handlers, so a form without a provider
// stays queued instead of being stored again.
func newOutboxFlushCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Relay pending submissions to their providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := g.logger(os.Stderr)
			cfg, err := g.loadConfig(logger)
			if err != nil {
				return err
			}
			db, err := openDB(g.dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := connectivity.Seed(ctx, db, connectivity.FormRoutes(cfg.Forms.Endpoints())); err != nil {
				return err
			}

			var httpOpts []connectivity.HTTPOption
			if cfg.Env == siteconfig.Production {
				httpOpts = append(httpOpts, connectivity.WithURLGuard(horosafe.ValidateURL))
			}
			router := connectivity.New(connectivity.WithLogger(logger))
			router.RegisterTransport(connectivity.StrategyHTTP, connectivity.HTTPFactory(httpOpts...))
			defer router.Close()
			if err := router.Reload(ctx, db); err != nil {
				logger.Warn("masukame: some routes failed to build", "error", err)
			}

			ob, err := site.NewOutbox(db)
			if err != nil {
				return err
			}
			sent, err := ob.Flush(ctx, func(ctx context.Context, form string, payload []byte) error {
				_, err := router.Call(ctx, connectivity.FormService(form), payload)
				return err
			})
			fmt.Fprintf(cmd.OutOrStdout(), "relayed %d submission(s)\n", sent)
			return err
		},
	}
}

func newRouteCmd(g *globalFlags) *cobra.Command {
	var strategy, endpoint, config string
	cmd := &cobra.Command{
		Use:   "route <form>",
		Short: "Override where a form is relayed (http, local or noop)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if config != "" && !json.Valid([]byte(config)) {
				return fmt.Errorf("--config-json is not valid JSON")
			}
			db, err := openDB(g.dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			rt := connectivity.Route{
				Service:  connectivity.FormService(args[0]),
				Strategy: strategy,
				Endpoint: endpoint,
			}
			if config != "" {
				rt.Config = json.RawMessage(config)
			}
			if err := connectivity.SetRoute(cmd.Context(), db, rt); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s %s\n", rt.Service, rt.Strategy, rt.Endpoint)
			return nil
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", connectivity.StrategyHTTP, "http, local or noop")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "provider URL for http routes")
	cmd.Flags().StringVar(&config, "config-json", "", `transport config, e.g. {"timeout_ms":5000}`)
	return cmd
}
