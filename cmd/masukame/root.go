package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/masukame/observability"
	"github.com/hazyhaar/masukame/siteconfig"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	host       string
	env        string
	dbPath     string
	debug      bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "masukame",
		Short:         "MASUKAME site server and registry tooling",
		Long:          `Serves the MASUKAME site (priced pages, registry API, form relay) and exposes the registry, currency and outbox from the command line.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", envOr("MASUKAME_CONFIG", "masukame.yaml"), "YAML configuration file")
	pf.StringVar(&g.host, "host", envOr("MASUKAME_HOST", "localhost"), "public host name, used to detect the environment")
	pf.StringVar(&g.env, "env", os.Getenv("MASUKAME_ENV"), "force the environment (development, staging, production)")
	pf.StringVar(&g.dbPath, "db", envOr("MASUKAME_DB", "data/masukame.db"), "SQLite database path")
	pf.BoolVar(&g.debug, "debug", os.Getenv("MASUKAME_DEBUG") != "", "debug logging")

	root.AddCommand(
		newServeCmd(g),
		newSearchCmd(g),
		newStatsCmd(g),
		newPriceCmd(g),
		newCheckWalletCmd(),
		newOutboxCmd(g),
		newMCPCmd(g),
	)
	return root
}

func (g *globalFlags) environment() siteconfig.Environment {
	if g.env != "" {
		return siteconfig.ParseEnvironment(g.env)
	}
	return siteconfig.DetectEnvironment(g.host)
}

func (g *globalFlags) logger(w io.Writer) *slog.Logger {
	return observability.NewLogger(w, g.debug, "service", "masukame")
}

func (g *globalFlags) loadConfig(logger *slog.Logger) (siteconfig.Config, error) {
	return siteconfig.Load(g.configPath, g.environment(), siteconfig.WithLogger(logger))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
