package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/FranksOps/imgsearch/internal/config"
	"github.com/FranksOps/imgsearch/internal/metrics"
	"github.com/FranksOps/imgsearch/internal/serp"
	"github.com/spf13/cobra"
)

// quietLogs marks commands that own the terminal, so logs go to --log-file
// or nowhere.
const quietLogs = "quiet-logs"

// app holds what the commands share once flags are parsed.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	logFile *os.File
	metrics *metrics.Server
}

func (a *app) setup(cmd *cobra.Command, cfgFile string) error {
	cfg, err := config.Load(cmd.Flags(), cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	var out io.Writer = cmd.ErrOrStderr()
	if cmd.Annotations[quietLogs] == "true" {
		out = io.Discard
	}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		a.logFile = f
		out = f
	}

	if a.logger, err = cfg.NewLogger(out); err != nil {
		return err
	}
	slog.SetDefault(a.logger)

	if cfg.MetricsPort > 0 {
		a.metrics = metrics.Start(cfg.MetricsPort, a.logger)
		a.logger.Info("serving metrics", "port", cfg.MetricsPort)
	}
	return nil
}

func (a *app) close(ctx context.Context) {
	if err := a.metrics.Stop(ctx); err != nil && a.logger != nil {
		a.logger.Warn("stop metrics server", "err", err)
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

func (a *app) client() (*serp.Client, error) {
	sc, err := a.cfg.ClientConfig(a.logger)
	if err != nil {
		return nil, err
	}
	return serp.New(sc)
}

func newRootCmd(a *app) *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "imgsearch",
		Short:         "Search Yahoo! JAPAN images and list the thumbnail URLs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd, cfgFile)
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newSearchCmd(a), newExtractCmd(a), newTUICmd(a))
	return root
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	defer a.close(context.Background())

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return err
	}
	return nil
}
