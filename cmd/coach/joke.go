package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skypro1111/laugh-coach/internal/coach"
)

var jokeCmd = &cobra.Command{
	Use:   "joke <text>|-",
	Short: "Critique a joke",
	Long: `Send a joke to the feedback generator and print its critique.

The joke is the command arguments joined by spaces, or standard input when
the only argument is "-".`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		if len(args) == 1 && args[0] == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read joke from stdin: %w", err)
			}
			text = string(data)
		}

		c, err := coach.Build(cfg, logger, nil)
		if err != nil {
			return err
		}
		defer c.Close()

		critique, err := c.JokeFeedback(cmd.Context(), text)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), critique)
		return nil
	},
}
