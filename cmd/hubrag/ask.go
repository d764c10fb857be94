package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/hubrag/internal/domain/chat"
	"github.com/matiasleandrokruk/hubrag/internal/domain/conversation"
	"github.com/matiasleandrokruk/hubrag/internal/domain/knowledge"
)

func newAskCmd(g *globalFlags, out, errOut io.Writer) *cobra.Command {
	var (
		corpusPath  string
		useRAG      bool
		showSources bool
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question with the configured provider",
		Long: "ask runs a single question through retrieval and generation. With --corpus the\n" +
			"passages come from a JSON file of {id, text, embedding}; otherwise the configured\n" +
			"vector index is used. History is kept in memory only.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load(errOut)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var index knowledge.VectorIndex
			if corpusPath != "" {
				f, err := os.Open(corpusPath)
				if err != nil {
					return err
				}
				passages, err := knowledge.LoadCorpus(f)
				f.Close() //nolint:errcheck
				if err != nil {
					return err
				}
				index = knowledge.NewMemoryIndex(passages...)
			} else if useRAG {
				db, err := openDB(ctx, cfg.Database.Path)
				if err != nil {
					return err
				}
				defer db.Close()
				index = buildIndex(cfg.Retrieval, db)
			}

			provs, err := buildProviders(ctx, cfg.LLM)
			if err != nil {
				return fmt.Errorf("providers: %w", err)
			}
			defer provs.Close() //nolint:errcheck

			conv := newOrchestrator(cfg, provs, orchestratorParts{
				index:   index,
				history: chat.NewMemoryStore(),
			}, conversationOptions(cfg), log)

			outcome, err := conv.Ask(ctx, conversation.Request{UserID: "cli", Question: args[0], UseRAG: useRAG})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, outcome.Answer) //nolint:errcheck
			for _, w := range outcome.Warnings {
				fmt.Fprintln(errOut, "warning:", w) //nolint:errcheck
			}
			if showSources {
				for _, p := range outcome.Passages {
					fmt.Fprintf(out, "- [%s] %s\n", p.ID, p.Text) //nolint:errcheck
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&corpusPath, "corpus", "", "JSON corpus file to search instead of the configured index")
	cmd.Flags().BoolVar(&useRAG, "rag", true, "Retrieve passages before answering")
	cmd.Flags().BoolVar(&showSources, "sources", false, "Print the passages used")
	return cmd
}
