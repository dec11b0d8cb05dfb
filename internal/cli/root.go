// Package cli implements the txtlog command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/marcelocantos/txtlog/internal/config"
	"github.com/marcelocantos/txtlog/internal/journal"
	"github.com/marcelocantos/txtlog/internal/metrics"
	"github.com/marcelocantos/txtlog/internal/publish"
	"github.com/marcelocantos/txtlog/internal/vcs"
)

// app carries state shared by every subcommand.
type app struct {
	version string
	in      io.Reader
	out     io.Writer
	errOut  io.Writer

	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, version string, args []string, in io.Reader, out, errOut io.Writer) int {
	root := NewRootCommand(version, in, out, errOut)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(errOut, "txtlog: %v\n", err)
		return 1
	}
	return 0
}

// NewRootCommand builds the command tree.
func NewRootCommand(version string, in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{
		version: version,
		in:      in,
		out:     out,
		errOut:  errOut,
		v:       viper.New(),
	}

	root := &cobra.Command{
		Use:   "txtlog",
		Short: "Append-only text log with git publishing",
		Long: `txtlog keeps a human-readable, timestamped, append-only text log and
publishes it to a git repository.

Examples:
  # Record a line
  txtlog append --kind IN "hello there"

  # Commit and push the log
  txtlog commit --push

  # Serve the browser form and JSON endpoint
  txtlog serve --port 4000`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return a.setup() },
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default "+config.ConfigPath()+")")
	pf.String("log-file", "", "path of the text log")
	pf.String("log-level", "", "diagnostic log level (debug, info, warn, error)")
	_ = a.v.BindPFlag("log.path", pf.Lookup("log-file"))
	_ = a.v.BindPFlag("logging.level", pf.Lookup("log-level"))

	root.AddCommand(
		a.appendCommand(),
		a.commitCommand(),
		a.tailCommand(),
		a.checkCommand(),
		a.serveCommand(),
		a.encodeCommand(),
		a.mcpCommand(),
		a.versionCommand(),
	)
	return root
}

// setup loads configuration in order of precedence: flags, TXTLOG_*
// environment variables, the config file, then defaults.
func (a *app) setup() error {
	var (
		cfg *config.Config
		err error
	)
	if a.cfgFile != "" {
		cfg, err = config.LoadFrom(a.cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return fmt.Errorf("environment: %w", err)
	}

	a.v.SetEnvPrefix("TXTLOG")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()
	_ = a.v.BindEnv("log.path")
	_ = a.v.BindEnv("logging.level")
	_ = a.v.BindEnv("server.port")

	if a.v.IsSet("log.path") {
		cfg.Log.Path = a.v.GetString("log.path")
	}
	if a.v.IsSet("logging.level") {
		cfg.Logging.Level = a.v.GetString("logging.level")
	}
	if a.v.IsSet("server.port") {
		cfg.Server.Port = a.v.GetInt("server.port")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	a.logger, err = newLogger(cfg.Logging, a.errOut)
	if err != nil {
		return err
	}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.NewMetrics(cfg.Metrics.Namespace)
	}
	return nil
}

func newLogger(cfg config.LoggingConfig, w io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(w)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("logging.format: unknown format %q", cfg.Format)
	}
	return logger, nil
}

// writer returns the log writer, with the configured filter if any.
func (a *app) writer() (*journal.Writer, error) {
	opts := []journal.Option{journal.WithMetrics(a.metrics)}
	if a.cfg.Log.Filter != "" {
		f, err := journal.LoadStarlarkFilter(a.cfg.Log.Filter)
		if err != nil {
			return nil, err
		}
		opts = append(opts, journal.WithFilter(f))
	}
	return journal.NewWriter(a.cfg.Log.Path, opts...), nil
}

// publisher stages the log by absolute path, so commit.dir may point
// anywhere inside the repository.
func (a *app) publisher() (*publish.Publisher, error) {
	path, err := filepath.Abs(a.cfg.Log.Path)
	if err != nil {
		return nil, err
	}
	backend, err := newVCS(a.cfg)
	if err != nil {
		return nil, err
	}
	return publish.New(backend, path,
		publish.WithLogger(a.logger),
		publish.WithMetrics(a.metrics)), nil
}

func newVCS(cfg *config.Config) (vcs.VCS, error) {
	c := cfg.Commit
	if c.Backend != config.BackendRepo {
		return &vcs.Exec{Binary: c.Binary, Dir: c.Dir}, nil
	}
	token, err := cfg.PushToken()
	if err != nil {
		return nil, fmt.Errorf("push token: %w", err)
	}
	return &vcs.Repo{
		Dir:         c.Dir,
		Remote:      c.Remote,
		AuthorName:  c.AuthorName,
		AuthorEmail: c.AuthorEmail,
		Username:    c.Username,
		Token:       token,
	}, nil
}

// stdinFile returns in as a file when it is one, for terminal handling.
func (a *app) stdinFile() (*os.File, error) {
	f, ok := a.in.(*os.File)
	if !ok {
		return nil, fmt.Errorf("standard input is not a file")
	}
	return f, nil
}
