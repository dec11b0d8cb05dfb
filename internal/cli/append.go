package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcelocantos/txtlog/internal/entry"
)

func (a *app) appendCommand() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "append [text...]",
		Short: "Append an entry to the log",
		Long: `Append one timestamped entry to the log and print the log path.

The arguments are joined with spaces. With no arguments the entry text is
read from standard input, minus one trailing newline.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(a.in)
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = strings.TrimSuffix(strings.TrimSuffix(string(data), "\n"), "\r")
			}

			w, err := a.writer()
			if err != nil {
				return err
			}
			path, err := w.Append(text, entry.Kind(kind))
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&kind, "kind", "k", string(entry.KindInfo), "entry kind (IN, OUT, INFO or any label)")
	return cmd
}
