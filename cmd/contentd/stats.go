package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
	"github.com/fyrsmithlabs/contentfactory/internal/learner"
	"github.com/fyrsmithlabs/contentfactory/internal/vectorstore"
)

func newStatsCmd() *cobra.Command {
	var (
		top         int
		contentType string
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show collection sizes and the best performing pieces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var t content.Type
			if contentType != "" {
				parsed, err := content.ParseType(contentType)
				if err != nil {
					return err
				}
				t = parsed
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

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render("Collections"))
			for _, name := range vectorstore.Collections {
				st, err := a.store.Stats(cmd.Context(), name)
				if err != nil {
					return fmt.Errorf("stats for %s: %w", name, err)
				}
				if !st.Exists {
					fmt.Fprintln(out, labelStyle.Render(name)+" "+dimStyle.Render("empty"))
					continue
				}
				fmt.Fprintln(out, field(name, st.Count))
			}

			if top <= 0 {
				return nil
			}
			records, err := a.learner.TopPerformers(cmd.Context(), t, top)
			if err != nil {
				return err
			}
			renderTop(out, records)
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 5, "show the N best scored records (0 hides them)")
	cmd.Flags().StringVar(&contentType, "type", "", "limit --top to one content type")
	return cmd
}

func renderTop(w io.Writer, records []learner.PerformanceRecord) {
	fmt.Fprintln(w, titleStyle.Render("Top performers"))
	if len(records) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no performance records"))
		return
	}
	for _, r := range records {
		mark := " "
		if r.Promotion != nil && (r.Promotion.Promoted || r.Promotion.AlreadyPromoted) {
			mark = okStyle.Render("★")
		}
		fmt.Fprintf(w, "%s %s %s %s\n", mark, valueStyle.Render(fmt.Sprintf("%.3f", r.Score)),
			r.ContentID, dimStyle.Render(string(r.ContentType)))
	}
}
