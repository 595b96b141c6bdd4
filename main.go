package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	golog "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"strzcam.com/hudcam/api"
	"strzcam.com/hudcam/config"
	"strzcam.com/hudcam/frame"
	"strzcam.com/hudcam/server"
	"strzcam.com/hudcam/watcher"
)

var log = golog.Logger("hud")

func init() {
	cobra.MousetrapHelpText = ""
}

type args struct {
	configFile string
	addr       string
	adminAddr  string
	source     string
	logLevel   string
}

func newRootCommand(a *args) *cobra.Command {
	command := &cobra.Command{
		Use:           "hudcam",
		Short:         "Live MJPEG camera feed with a browser HUD",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, a)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	command.Flags().StringVarP(&a.configFile, "config", "f", "", "configuration file (YAML)")
	command.Flags().StringVar(&a.addr, "addr", "", "stream server listen address")
	command.Flags().StringVar(&a.adminAddr, "admin-addr", "", "admin API listen address")
	command.Flags().StringVar(&a.source, "source", "", "frame source: command, file, stdin or pattern")
	command.Flags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	return command
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command, a *args) (*config.Config, error) {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.HTTP.Addr = a.addr
	}
	if flags.Changed("admin-addr") {
		cfg.Admin.Addr = a.adminAddr
	}
	if flags.Changed("source") {
		cfg.Source.Kind = config.SourceKind(a.source)
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	lvl, err := golog.LevelFromString(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Log.Level, err)
	}
	golog.SetAllLoggers(lvl)
	return cfg, nil
}

// run wires the source, the frame buffer and both HTTP servers. The first of
// them to fail cancels the rest.
func run(ctx context.Context, cfg *config.Config) error {
	if cfg.Banner {
		figure.NewFigure("hudcam", "", true).Print()
	}

	buffer := frame.NewBuffer(cfg.Stream.HistoryFrames)
	source, err := watcher.New(cfg.Source)
	if err != nil {
		return err
	}
	streamServer, err := server.NewServer(cfg.HTTP, buffer)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infow("starting frame source", "kind", cfg.Source.Kind)
		if err := source.Run(ctx, buffer); err != nil {
			return fmt.Errorf("frame source: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return streamServer.Run(ctx)
	})
	if cfg.Admin.Addr != "" {
		adminServer := api.NewServer(cfg.Admin.Addr, buffer, streamServer.Sessions())
		g.Go(func() error {
			return adminServer.Run(ctx)
		})
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Infow("shut down", "frames", buffer.Stats().Generation)
	return nil
}

func main() {
	if err := newRootCommand(new(args)).Execute(); err != nil {
		log.Errorw("hudcam stopped", "error", err)
		os.Exit(1)
	}
}
