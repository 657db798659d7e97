package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/skyrag-assistant/server/internal/server"
	"github.com/skyrag-assistant/server/internal/turnlog"
)

func newAskCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.app(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer app.Close()

			answer, err := app.Assistant.ProcessQuery(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}
}

func newChatCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Ask questions interactively until EOF or \"exit\"",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.app(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer app.Close()

			sessionID := uuid.NewString()
			return chatLoop(cmd.InOrStdin(), cmd.OutOrStdout(), func(query string) string {
				return app.Assistant.Reply(cmd.Context(), sessionID, query).Answer
			})
		},
	}
}

// chatLoop reads one question per line and prints each answer.
func chatLoop(in io.Reader, out io.Writer, reply func(string) string) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, "Ask about the weather or your documents. Type \"exit\" to quit.")
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		query := strings.TrimSpace(scanner.Text())
		switch query {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		fmt.Fprintln(out, reply(query))
	}
}

func newIndexCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index <pdf>...",
		Short: "Add PDF documents to the vector index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.app(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer app.Close()

			for _, path := range args {
				res, err := app.Indexer.IndexPDF(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("index %s: %w", path, err)
				}
				app.Metrics.IndexedChunks.Add(float64(res.Chunks))
				fmt.Fprintf(cmd.OutOrStdout(), "indexed %s: %d pages, %d chunks\n", res.Source, res.Pages, res.Chunks)
			}
			return nil
		},
	}
}

func newResetIndexCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-index",
		Short: "Delete every document from the vector index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.app(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer app.Close()

			n, err := app.Store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d chunks from %s\n", n, app.Config.VectorStore.Collection)
			return nil
		},
	}
}

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show logged turns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := turnlog.ReadEntries(opts.config.TurnLog.Path)
			if err != nil {
				return err
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}
			return printHistory(cmd.OutOrStdout(), entries, asJSON)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "show only the last n turns (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON lines")
	return cmd
}

func printHistory(out io.Writer, entries []turnlog.Entry, asJSON bool) error {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No turns logged yet.")
		return nil
	}
	if asJSON {
		enc := json.NewEncoder(out)
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "TIME\tINTENT\tCITY\tQUERY\tRESPONSE\n")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			e.Intent,
			strings.TrimSpace(e.City),
			truncate(e.UserQuery, 40),
			truncate(e.FinalResponse, 60),
		)
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := opts.app(ctx, appOptions{redisTranscript: true})
			if err != nil {
				return err
			}
			defer app.Close()

			if addr == "" {
				addr = app.Config.HTTPAddr
			}
			srv := server.New(server.Config{
				Assistant: app.Assistant,
				Indexer:   app.Indexer,
				Resetter:  app.Store,
				Metrics:   app.Metrics,
				Gatherer:  app.Registry,
			})
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to HTTP_ADDR)")
	return cmd
}
