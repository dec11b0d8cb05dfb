package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) commitCommand() *cobra.Command {
	var (
		message string
		path    string
		push    bool
	)
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit the log and optionally push it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("push") {
				push = a.cfg.Commit.Push
			}
			p, err := a.publisher()
			if err != nil {
				return err
			}
			res := p.Commit(cmd.Context(), message, path, push)
			fmt.Fprintln(a.out, res.Output)
			if !res.OK {
				return errors.New("commit failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message (default \"Auto log update: <time>\")")
	cmd.Flags().StringVar(&path, "path", "", "file to stage (default the log file)")
	cmd.Flags().BoolVar(&push, "push", false, "push after committing (default from commit.push)")
	return cmd
}
