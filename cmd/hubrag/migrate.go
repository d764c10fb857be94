package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/hubrag/internal/infra/sqlite"
)

func newMigrateCmd(g *globalFlags, out, errOut io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load(errOut)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := openDB(ctx, cfg.Database.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := sqlite.MigrateUp(ctx, db)
			if err != nil {
				return err
			}
			v, err := sqlite.MigrationVersion(ctx, db)
			if err != nil {
				return err
			}
			log.Log().Info().Str("path", cfg.Database.Path).Int("applied", applied).Msg("migrations applied")
			_, err = fmt.Fprintf(out, "applied %d migration(s); schema version %d\n", applied, v)
			return err
		},
	}
}
