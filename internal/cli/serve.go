package cli

import (
	"github.com/spf13/cobra"

	"github.com/marcelocantos/txtlog/internal/publish"
	"github.com/marcelocantos/txtlog/internal/server"
)

func (a *app) serveCommand() *cobra.Command {
	var staticDir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the log form and JSON endpoint over HTTP",
		Long: `Serve index.html from the static directory and accept entries posted
as JSON to /log. The port comes from --port, then PORT, then the config.

When commit.schedule is set the log is also committed periodically.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("static-dir") {
				a.cfg.Server.StaticDir = staticDir
			}
			w, err := a.writer()
			if err != nil {
				return err
			}

			if spec := a.cfg.Commit.Schedule; spec != "" {
				p, err := a.publisher()
				if err != nil {
					return err
				}
				sched, err := publish.NewScheduler(p, spec, a.cfg.Commit.Push, a.logger)
				if err != nil {
					return err
				}
				if err := sched.Start(); err != nil {
					return err
				}
				defer sched.Stop()
			}

			srv := server.New(server.Config{
				Writer:          w,
				StaticDir:       a.cfg.Server.StaticDir,
				Logger:          a.logger,
				Metrics:         a.metrics,
				ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
			})
			return srv.Run(cmd.Context(), a.cfg.Server.Addr())
		},
	}
	cmd.Flags().Int("port", 0, "listen port")
	cmd.Flags().StringVar(&staticDir, "static-dir", "", "directory holding index.html")
	_ = a.v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	return cmd
}
