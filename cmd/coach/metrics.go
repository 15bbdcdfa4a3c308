package main

import (
	"github.com/spf13/cobra"

	"github.com/skypro1111/laugh-coach/internal/audio"
	"github.com/skypro1111/laugh-coach/internal/coach"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics <path>",
	Short: "Measure delivery of a local recording",
	Long: `Print duration, speaking rate, pause count and loudness of a local
recording together with the delivery tips. No external service is called.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := coach.Build(cfg, logger, nil)
		if err != nil {
			return err
		}
		defer c.Close()

		delivery, info, err := c.Measure(args[0])
		if err != nil {
			return err
		}

		return printJSON(cmd.OutOrStdout(), struct {
			Source *audio.SourceInfo `json:"source"`
			*coach.Delivery
		}{info, delivery})
	},
}
