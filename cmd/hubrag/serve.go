package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/hubrag/internal/api"
	"github.com/matiasleandrokruk/hubrag/internal/domain/auth"
	"github.com/matiasleandrokruk/hubrag/internal/domain/chat"
	"github.com/matiasleandrokruk/hubrag/internal/infra/eventbus"
	"github.com/matiasleandrokruk/hubrag/internal/infra/sqlite"
	"github.com/matiasleandrokruk/hubrag/internal/server"
	pkgauth "github.com/matiasleandrokruk/hubrag/pkg/auth"
)

func newServeCmd(g *globalFlags, errOut io.Writer) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load(errOut)
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx := cmd.Context()

			db, err := openDB(ctx, cfg.Database.Path)
			if err != nil {
				return err
			}
			defer db.Close()
			if _, err := sqlite.MigrateUp(ctx, db); err != nil {
				return err
			}

			issuer, err := pkgauth.NewIssuer(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.JWTExpiryHours)*time.Hour)
			if err != nil {
				return err
			}

			provs, err := buildProviders(ctx, cfg.LLM)
			if err != nil {
				return fmt.Errorf("providers: %w", err)
			}
			defer provs.Close() //nolint:errcheck

			bus := eventbus.New()
			defer bus.Close()
			go consumeOutcomes(bus.Subscribe(eventbus.TopicConversationOutcome), log)

			opts := conversationOptions(cfg)
			conv := newOrchestrator(cfg, provs, orchestratorParts{
				index:   buildIndex(cfg.Retrieval, db),
				history: chat.NewSQLiteStore(db),
				events:  bus,
			}, opts, log)
			reqTimeout := requestTimeout(cfg, opts)

			router := api.NewRouter(api.RouterDeps{
				Conversation:   conv,
				Auth:           auth.NewService(db, issuer),
				Tokens:         issuer,
				Log:            log,
				AllowedOrigins: cfg.Server.AllowedOrigins,
				RequestTimeout: reqTimeout,
			})

			srvCfg := server.DefaultConfig()
			srvCfg.Host = cfg.Server.Host
			srvCfg.Port = cfg.Server.Port
			srvCfg.ReadTimeout = cfg.Server.ReadTimeout()
			srvCfg.WriteTimeout = reqTimeout + requestSlack
			return server.NewServer(router, srvCfg, log).Run(ctx)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides config)")
	return cmd
}
