package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcelocantos/txtlog/internal/journal"
	"github.com/marcelocantos/txtlog/internal/mcptool"
	"github.com/marcelocantos/txtlog/internal/secret"
)

func (a *app) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that the log file is well formed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := journal.Check(a.cfg.Log.Path)
			if err != nil {
				return fmt.Errorf("%s: %w", a.cfg.Log.Path, err)
			}
			fmt.Fprintf(a.out, "%s: %d entries OK\n", a.cfg.Log.Path, n)
			return nil
		},
	}
}

func (a *app) encodeCommand() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Base64-encode a secret and optionally write it to an env file",
		Long: `Prompt for a secret without echoing it, print its base64 encoding and
offer to write it to the env file. Nothing leaves this machine.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := a.stdinFile()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("env-file") {
				a.cfg.Encoder.EnvFile = envFile
			}
			enc := &secret.Encoder{
				Prompt:  &secret.Terminal{In: in, Out: a.out},
				Out:     a.out,
				EnvPath: a.cfg.Encoder.EnvFile,
				Key:     a.cfg.Encoder.Key,
			}
			return enc.Run()
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", "", "env file to write")
	return cmd
}

func (a *app) mcpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve append_log, commit_log and tail_log as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := a.writer()
			if err != nil {
				return err
			}
			p, err := a.publisher()
			if err != nil {
				return err
			}
			srv := mcptool.New(w, p).Server(a.version)
			a.logger.WithField("log", w.Path()).Info("MCP server ready on stdio")
			return mcptool.Serve(cmd.Context(), srv, a.in, a.out)
		},
	}
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(a.out, "txtlog %s\n", a.version)
			return nil
		},
	}
}
