// Command provider writes a synthetic test pattern into a frame file, for
// running hudcam with the file source and no camera attached.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	golog "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
	"strzcam.com/hudcam/config"
	"strzcam.com/hudcam/watcher"
)

var log = golog.Logger("provider")

func main() {
	var (
		path   string
		framed bool
		fps    int
		width  int
		height int
	)
	command := &cobra.Command{
		Use:          "provider",
		Short:        "Write test pattern frames into a shared-memory file",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return provide(ctx, path, framed, fps, watcher.NewPattern(width, height))
		},
	}
	command.Flags().StringVarP(&path, "file", "o", config.DefaultShmFile, "frame file to rewrite")
	command.Flags().BoolVar(&framed, "framed", false, "prefix frames with the flag and length header")
	command.Flags().IntVar(&fps, "fps", config.DefaultFps, "frames per second")
	command.Flags().IntVar(&width, "width", config.DefaultWidth, "frame width")
	command.Flags().IntVar(&height, "height", config.DefaultHeight, "frame height")

	golog.SetAllLoggers(golog.LevelInfo)
	if err := command.Execute(); err != nil {
		log.Errorw("provider stopped", "error", err)
		os.Exit(1)
	}
}

func provide(ctx context.Context, path string, framed bool, fps int, pattern *watcher.Pattern) error {
	ticker := time.NewTicker(time.Second / time.Duration(max(fps, 1)))
	defer ticker.Stop()
	log.Infow("writing frames", "file", path, "framed", framed, "fps", fps)

	written := 0
	for {
		select {
		case <-ctx.Done():
			log.Infow("stopped", "frames", written)
			return nil
		case <-ticker.C:
			data, err := pattern.Next()
			if err != nil {
				return err
			}
			if err := watcher.WriteFrame(path, data, framed); err != nil {
				return err
			}
			written++
		}
	}
}
