package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ThinhVo0/BT4-CNPMM/internal/app"
	"github.com/ThinhVo0/BT4-CNPMM/internal/config"
	"github.com/ThinhVo0/BT4-CNPMM/pkg/logger"
)

// cli carries what every subcommand needs once the root has run.
type cli struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	var logLevel string

	cmd := &cobra.Command{
		Use:   "searchctl",
		Short: "Maintain the product search index",
		Long: `searchctl reads the same environment as the search service and
talks to the engine and catalog directly. Use it to rebuild the index,
inspect it, seed a demo catalog or mint admin tokens for the HTTP API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			c.cfg = cfg
			c.logger = logger.NewWithOptions("searchctl", logger.Options{
				Level:  cfg.LogLevel,
				Format: "text",
			}, cmd.ErrOrStderr())
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL")

	cmd.AddCommand(newSyncAllCmd(c))
	cmd.AddCommand(newSyncCmd(c))
	cmd.AddCommand(newRemoveCmd(c))
	cmd.AddCommand(newSuggestCmd(c))
	cmd.AddCommand(newStatsCmd(c))
	cmd.AddCommand(newSeedCmd(c))
	cmd.AddCommand(newTokenCmd(c))
	cmd.AddCommand(newEmitCmd(c))
	return cmd
}

// withCore opens the engine and catalog, runs fn and closes them again.
func (c *cli) withCore(ctx context.Context, fn func(*app.Core) error) (err error) {
	core, err := app.NewCore(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := core.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(core)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
