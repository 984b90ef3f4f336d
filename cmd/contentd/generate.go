package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/contentfactory/internal/orchestrator"
)

type generateFlags struct {
	url      string
	schedule string
	out      string
	jsonOut  bool
	quiet    bool
}

func newGenerateCmd() *cobra.Command {
	var f generateFlags
	cmd := &cobra.Command{
		Use:   "generate [product input | -]",
		Short: "Run one content package",
		Long: `Run the full pipeline for one product description and print the package.

The input is the first argument, or stdin when the argument is "-" or missing.

Examples:
  # Generate from an argument
  contentd generate "Seedance 1.0 turns text prompts into 10 second videos"

  # Generate from a file, write the package JSON, schedule publication
  contentd generate - --url https://seedance.ai --schedule 2026-11-01T09:00:00Z \
    --out package.json < launch.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, appOptions{stderrLogs: true, connectNATS: true})
			if err != nil {
				return err
			}
			defer a.Close()
			return runGenerate(cmd, a, input, f)
		},
	}
	cmd.Flags().StringVar(&f.url, "url", "", "canonical landing page URL")
	cmd.Flags().StringVar(&f.schedule, "schedule", "", "RFC3339 publish time (triggers the publish hook)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "write the package JSON to this file")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "print the package JSON instead of a summary")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "do not print stage progress")
	return cmd
}

func runGenerate(cmd *cobra.Command, a *app, input string, f generateFlags) error {
	req := orchestrator.Request{ProductInput: input, CanonicalURL: f.url}
	if f.schedule != "" {
		at, err := time.Parse(time.RFC3339, f.schedule)
		if err != nil {
			return fmt.Errorf("--schedule must be RFC3339: %w", err)
		}
		req.ScheduleTime = &at
	}

	stderr := cmd.ErrOrStderr()
	if !f.quiet {
		a.controller.OnProgress(func(p orchestrator.StageProgress) {
			if p.Status != orchestrator.StatusStarted {
				fmt.Fprintln(stderr, progressLine(p))
			}
		})
	}

	pkg, err := a.controller.Run(cmd.Context(), req)
	if err != nil {
		var runErr *orchestrator.RunError
		if errors.As(err, &runErr) {
			for _, d := range runErr.Diagnostics {
				fmt.Fprintln(stderr, warnStyle.Render(d.Kind), d.Message)
			}
			return fmt.Errorf("run %s failed at %s (%s): %w", runErr.RunID, runErr.Stage, orchestrator.FailureKind(err), runErr.Err)
		}
		return err
	}

	data, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding package: %w", err)
	}
	if f.out != "" {
		if err := os.WriteFile(f.out, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("writing package: %w", err)
		}
	}
	if f.jsonOut {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}
	renderPackage(cmd.OutOrStdout(), pkg)
	return nil
}

// readInput takes the input from args[0], or stdin for "-" or no args.
func readInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(io.LimitReader(stdin, 1<<20))
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	input := strings.TrimSpace(string(data))
	if input == "" {
		return "", errors.New("no product input given")
	}
	return input, nil
}
