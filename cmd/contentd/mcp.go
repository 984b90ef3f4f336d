package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/contentfactory/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP tools over stdio",
		Long: `Serve generate_package, record_metrics, retrieve_context and check_duplicate
as MCP tools on stdin/stdout. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(ctx, cfg, appOptions{stderrLogs: true, connectNATS: true})
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := mcp.NewServer(&mcp.Config{
				Name:               "contentfactory",
				Version:            version,
				DuplicateThreshold: float32(cfg.Controller.DuplicateThreshold),
				Logger:             a.logger.Underlying().Named("mcp"),
			}, a.controller, a.learner, a.retriever)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
}
