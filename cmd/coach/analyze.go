package main

import (
	"github.com/spf13/cobra"

	"github.com/skypro1111/laugh-coach/internal/coach"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <path|s3://bucket/key>",
	Short: "Coach a recorded performance",
	Long: `Decode a .wav or .mp3 recording, measure its delivery, transcribe it and
critique the transcript. The report is printed as JSON. Transcription and
feedback failures are reported inside the JSON; only unreadable input fails
the command.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := coach.Build(cfg, logger, nil)
		if err != nil {
			return err
		}
		defer c.Close()

		report, err := c.AnalyzeAudio(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		return printJSON(cmd.OutOrStdout(), report)
	},
}
