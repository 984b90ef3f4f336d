package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/contentfactory/internal/seed"
	"github.com/fyrsmithlabs/contentfactory/internal/vectorstore"
)

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the knowledge base, style examples and brand assets",
		Long: `Embed and write seed records. Without --file the built-in records are used.
Record ids are stable, so seeding again overwrites instead of duplicating.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := seedData(file)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, appOptions{stderrLogs: true})
			if err != nil {
				return err
			}
			defer a.Close()

			counts, err := seed.Load(cmd.Context(), data, a.store, a.embedder)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render("Seeded"))
			for _, name := range vectorstore.Collections {
				if n, ok := counts[name]; ok {
					fmt.Fprintln(out, field(name, n))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML seed file")
	return cmd
}

func seedData(file string) (*seed.Data, error) {
	if file == "" {
		return seed.Defaults()
	}
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return seed.Parse(raw)
}
