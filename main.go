package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	"github.com/utilitywarehouse/git-backup/backup"
	"github.com/utilitywarehouse/git-backup/provider"
	"github.com/utilitywarehouse/git-backup/repository"
)

var (
	loggerLevel = new(slog.LevelVar)
	logger      *slog.Logger

	levelStrings = map[string]slog.Level{
		"trace": slog.Level(-8),
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}

	flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Sources: cli.EnvVars("GIT_BACKUP_CONFIG"),
			Value:   "config.yml",
			Usage:   "Path to the config file.",
		},
		&cli.StringFlag{
			Name:    "env-file",
			Sources: cli.EnvVars("GIT_BACKUP_ENV_FILE"),
			Value:   ".env",
			Usage:   "Path to the optional env file loaded before config is parsed.",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Sources: cli.EnvVars("LOG_LEVEL"),
			Value:   "info",
			Usage:   "Log level",
		},
		&cli.IntFlag{
			Name:    "concurrency",
			Sources: cli.EnvVars("GIT_BACKUP_CONCURRENCY"),
			Usage:   "Max number of repositories synced at the same time, overrides config value. 0 is unbounded",
		},
		&cli.StringFlag{
			Name:    "metrics-textfile",
			Sources: cli.EnvVars("GIT_BACKUP_METRICS_TEXTFILE"),
			Usage:   "Write metrics to this file at the end of the run for node-exporter textfile collector.",
		},
		&cli.StringFlag{
			Name:    "pushgateway-url",
			Sources: cli.EnvVars("GIT_BACKUP_PUSHGATEWAY_URL"),
			Usage:   "Push metrics to this Prometheus Pushgateway at the end of the run.",
		},
		&cli.BoolFlag{
			Name:  "progress",
			Usage: "Show progress bar.",
		},
	}
)

func init() {
	loggerLevel.Set(slog.LevelInfo)
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: loggerLevel,
	}))
}

// loadConfig reads, validates and applies defaults to the config
func loadConfig(c *cli.Command) (backup.Config, error) {
	if err := loadEnvFile(c.String("env-file")); err != nil {
		return backup.Config{}, err
	}

	conf, err := parseConfigFile(c.String("config"))
	if err != nil {
		return backup.Config{}, fmt.Errorf("unable to parse config file err:%w", err)
	}

	if c.IsSet("concurrency") {
		conf.Concurrency = c.Int("concurrency")
	}

	// without home only absolute paths are usable
	home, err := os.UserHomeDir()
	if err != nil {
		logger.Warn("unable to resolve home directory, paths with '~' will be rejected", "err", err)
	}

	if err := conf.ValidateAndApplyDefaults(home); err != nil {
		return backup.Config{}, err
	}
	return *conf, nil
}

func main() {
	cmd := &cli.Command{
		Name:  "git-backup",
		Usage: "git-backup mirrors all repositories of GitHub and GitLab accounts locally.",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {

			// set log level according to argument
			if v, ok := levelStrings[strings.ToLower(c.String("log-level"))]; ok {
				loggerLevel.Set(v)
			}

			log := logger.With("logger", "git-backup", "run", uuid.NewString())

			conf, err := loadConfig(c)
			if err != nil {
				log.Error("invalid config", "err", err)
				os.Exit(1)
			}

			reg := prometheus.NewRegistry()
			repository.EnableMetrics("", reg)
			provider.EnableMetrics("", reg)
			backup.EnableMetrics("", reg)

			// path to resolve git and ssh binaries
			opts := []backup.Option{
				backup.WithGitEnvs([]string{fmt.Sprintf("PATH=%s", os.Getenv("PATH"))}),
			}

			var bar *progressBar
			if c.Bool("progress") {
				bar = newProgressBar()
				opts = append(opts, backup.WithObserver(bar))
			}

			b, err := backup.New(conf, log, opts...)
			if err != nil {
				log.Error("unable to create backup", "err", err)
				os.Exit(1)
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			report := b.Run(ctx)

			if bar != nil {
				bar.Finish()
			}

			exportMetrics(reg, c.String("metrics-textfile"), c.String("pushgateway-url"), log)

			// repository failures are reported via logs and metrics
			if total := report.Total(); total.Failed > 0 {
				log.Warn("some repositories failed to sync", "failed", total.Failed)
			}

			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logger.Error("failed to run app", "err", err)
		os.Exit(1)
	}
}
