package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docscan/internal/api"
	"github.com/jackzampolin/docscan/internal/config"
	"github.com/jackzampolin/docscan/internal/home"
	"github.com/jackzampolin/docscan/internal/notify"
	"github.com/jackzampolin/docscan/internal/rowdetect"
	"github.com/jackzampolin/docscan/internal/templateless"
	"github.com/jackzampolin/docscan/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "docscan",
	Short: "Command line client for the document scanning backend",
	Long: `docscan drives the document scanning backend from the terminal.

It covers the page editor's workflows:
  - Table row detection: start a job, wait for it, cancel it
  - Saving page corrections
  - Uploading, exporting and rescanning documents
  - Managing document types (prompt templates)`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.docscan/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "docscan home directory (default: ~/.docscan)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level override: debug, info, warn or error",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}

func getHome() (*home.Dir, error) {
	return home.New(homeDir)
}

// loadConfig reads the config file named by --config, the one in the home
// directory, or the default search path, in that order.
func loadConfig() (*config.Config, *config.Manager, error) {
	file := cfgFile
	if file == "" {
		h, err := getHome()
		if err != nil {
			return nil, nil, err
		}
		if h.ConfigExists() {
			file = h.ConfigPath()
		}
	}

	mgr, err := config.NewManager(file)
	if err != nil {
		return nil, nil, err
	}
	cfg := withFlags(*mgr.Get())
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return &cfg, mgr, nil
}

// withFlags applies command line overrides to a loaded config.
func withFlags(cfg config.Config) config.Config {
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg
}

func newLogger(level *slog.LevelVar) *slog.Logger {
	// Logs go to stderr so stdout stays parseable.
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// session bundles what every backend command needs.
type session struct {
	cfg    *config.Config
	mgr    *config.Manager
	level  *slog.LevelVar
	logger *slog.Logger
	client *templateless.Client
}

func newSession() (*session, error) {
	cfg, mgr, err := loadConfig()
	if err != nil {
		return nil, err
	}
	level := new(slog.LevelVar)
	lvl, _ := config.ParseLevel(cfg.Log.Level)
	level.Set(lvl)
	logger := newLogger(level)
	slog.SetDefault(logger)

	client := templateless.NewClient(templateless.Config{
		BaseURL:    cfg.API.BaseURL,
		Token:      cfg.ResolveToken(),
		Timeout:    cfg.API.Timeout,
		GetRetries: cfg.API.GetRetries,
		Logger:     logger,
	})
	return &session{cfg: cfg, mgr: mgr, level: level, logger: logger, client: client}, nil
}

// watchConfig re-applies the log level and calls fn whenever the config
// file changes. Without a config file there is nothing to watch.
func (s *session) watchConfig(fn func(*config.Config)) {
	if s.mgr.ConfigFile() == "" {
		return
	}
	s.mgr.OnChange(func(changed *config.Config) {
		cfg := withFlags(*changed)
		if err := cfg.Validate(); err != nil {
			s.logger.Warn("ignoring invalid config change", "error", err)
			return
		}
		if lvl, err := config.ParseLevel(cfg.Log.Level); err == nil {
			s.level.Set(lvl)
		}
		s.logger.Info("config reloaded", "file", s.mgr.ConfigFile())
		if fn != nil {
			fn(&cfg)
		}
	})
	s.mgr.WatchConfig()
}

// reporter logs the outcome of one-shot document commands.
func (s *session) reporter() notify.Reporter {
	return notify.Reporter{
		Sink:         notify.LogSink{Logger: s.logger},
		IsConnection: templateless.IsConnectionError,
	}
}

// coordinator returns a Coordinator whose notifications are logged and
// recorded for the command's output.
func (s *session) coordinator() (*rowdetect.Coordinator, *notify.Recorder) {
	rec := &notify.Recorder{}
	c := rowdetect.New(rowdetect.Config{
		Client: s.client,
		Saver:  s.client,
		Sink:   notify.Multi{notify.LogSink{Logger: s.logger}, rec},
		Logger: s.logger,
	})
	return c, rec
}
