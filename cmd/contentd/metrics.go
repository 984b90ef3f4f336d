package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/contentfactory/internal/learner"
)

func newMetricsCmd() *cobra.Command {
	var m learner.Metrics
	var sentiment string
	cmd := &cobra.Command{
		Use:   "metrics <content_id>",
		Short: "Record engagement metrics for a published piece",
		Long: `Score one metric submission and promote the piece into the style examples
when the score reaches learner.promotion_threshold.

Examples:
  contentd metrics seedance_1_0_linkedin_1 --reach 1000 --likes 260 --comments 50 \
    --shares 10 --conversions 5 --sentiment positive`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m.Sentiment = learner.Sentiment(strings.ToLower(sentiment))
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, appOptions{stderrLogs: true})
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.learner.RecordMetrics(cmd.Context(), args[0], m)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, field("Record", rec.ID))
			fmt.Fprintln(out, field("Engagement", fmt.Sprintf("%.4f", rec.EngagementRate)))
			fmt.Fprintln(out, field("Score", fmt.Sprintf("%.4f", rec.Score)))
			if p := rec.Promotion; p != nil {
				switch {
				case p.Promoted:
					fmt.Fprintln(out, okStyle.Render("promoted")+" "+dimStyle.Render(p.StyleID))
				case p.AlreadyPromoted:
					fmt.Fprintln(out, dimStyle.Render("already promoted as "+p.StyleID))
				default:
					fmt.Fprintln(out, dimStyle.Render("not promoted: "+p.Reason))
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&m.Reach, "reach", 0, "impressions")
	cmd.Flags().IntVar(&m.Likes, "likes", 0, "likes")
	cmd.Flags().IntVar(&m.Comments, "comments", 0, "comments")
	cmd.Flags().IntVar(&m.Shares, "shares", 0, "shares")
	cmd.Flags().IntVar(&m.Conversions, "conversions", 0, "conversions")
	cmd.Flags().StringVar(&sentiment, "sentiment", "neutral", "positive, neutral or negative")
	return cmd
}
