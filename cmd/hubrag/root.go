package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/hubrag/internal/infra/config"
	"github.com/matiasleandrokruk/hubrag/internal/infra/logging"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	verbose    bool
	logFormat  string
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "hubrag",
		Short:         "Retrieval-augmented Q&A over the Huberman Lab corpus",
		Long:          "hubrag serves a chat API that answers questions from a pre-built passage index\nand keeps a per-user conversation history.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "YAML config file (env vars override it)")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "Log info and debug messages")
	pf.StringVar(&g.logFormat, "log-format", "", "Log format: json or console (default from config)")

	root.AddCommand(
		newServeCmd(g, errOut),
		newMigrateCmd(g, out, errOut),
		newAskCmd(g, out, errOut),
		newVersionCmd(out),
	)
	return root
}

// load resolves the configuration and the logger for a command.
func (g *globalFlags) load(logOut io.Writer) (config.Config, *logging.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if g.verbose {
		cfg.Log.Verbose = true
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}
	return cfg, logging.New(logOut, cfg.Log.Format, cfg.Log.Verbose), nil
}
