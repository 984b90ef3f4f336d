// Contentd generates multi-format marketing content packages from a product
// description and learns from how published pieces perform.
//
// Usage:
//
//	# Load the default knowledge base and style examples
//	contentd seed
//
//	# Run one package from the command line
//	contentd generate "Seedance 1.0 turns text prompts into 10 second videos"
//
//	# Serve the HTTP API, NATS metric ingestion and the retention sweep
//	contentd serve
//
//	# Serve MCP tools over stdio
//	contentd mcp
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/contentfactory/internal/config"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// configPath is the --config flag. Empty uses ~/.config/contentfactory/config.yaml.
var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error:"), err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "contentd",
		Short: "Content factory orchestration and learning service",
		Long: `contentd turns a product description into a blog article, developer and
creator X posts, LinkedIn posts and image assets, checks every piece against
the style guide, and promotes pieces that perform well into style examples.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/contentfactory/config.yaml)")

	root.AddCommand(
		newServeCmd(),
		newGenerateCmd(),
		newMetricsCmd(),
		newSeedCmd(),
		newStatsCmd(),
		newMCPCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render("contentd by Fyrsmith Labs"))
			fmt.Fprintln(out, field("Version", version))
			fmt.Fprintln(out, field("Commit", gitCommit))
			fmt.Fprintln(out, field("Build Date", buildDate))
		},
	}
}

// loadConfig reads the config file and environment overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
