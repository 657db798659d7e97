package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	logx "github.com/skyrag-assistant/server/pkg/logger"
)

type rootOptions struct {
	envFile string
	config  *AppConfig
}

// NewRootCommand builds the assistant command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "assistant",
		Short: "Answer weather and document questions",
		Long: "assistant routes each question either to a live weather lookup or to\n" +
			"retrieval over indexed PDFs, then answers with a Gemini model.",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(opts.envFile)
			if err != nil {
				return err
			}
			logx.Init(logx.LoggerOpts{Environment: cfg.Environment, Level: cfg.LogLevel, Output: cmd.ErrOrStderr()})
			opts.config = cfg
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	cmd.AddCommand(
		newAskCommand(opts),
		newChatCommand(opts),
		newIndexCommand(opts),
		newResetIndexCommand(opts),
		newHistoryCommand(opts),
		newServeCommand(opts),
	)
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (o *rootOptions) app(ctx context.Context, appOpts appOptions) (*App, error) {
	if o.config == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return NewApp(ctx, o.config, appOpts)
}
