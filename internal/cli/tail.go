package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcelocantos/txtlog/internal/follow"
	"github.com/marcelocantos/txtlog/internal/journal"
	"github.com/marcelocantos/txtlog/internal/render"
)

func (a *app) tailCommand() *cobra.Command {
	var (
		n         int
		following bool
		output    string
	)
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show the most recent entries",
		Long: `Show the most recent entries of the log.

Examples:
  txtlog tail -n 50
  txtlog tail -f -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := render.New(output, a.out)
			if err != nil {
				return err
			}

			entries, offset, err := journal.TailOffset(a.cfg.Log.Path, n)
			if err != nil {
				return err
			}
			for _, e := range entries {
				if err := r.Render(e); err != nil {
					return err
				}
			}
			if !following {
				return nil
			}

			// Resume exactly where the read stopped: no gaps, no repeats.
			updates, err := follow.FollowFrom(cmd.Context(), a.cfg.Log.Path, offset, a.logger)
			if err != nil {
				return err
			}
			for e := range updates {
				if err := r.Render(e); err != nil {
					return fmt.Errorf("render: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "lines", "n", 20, "number of entries to show")
	cmd.Flags().BoolVarP(&following, "follow", "f", false, "keep printing entries as they are appended")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format (text, json, raw)")
	return cmd
}
