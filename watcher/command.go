package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CommandSource runs an external encoder that writes MJPEG to stdout, e.g.
// rpicam-vid or ffmpeg. The process lives exactly as long as Run.
type CommandSource struct {
	name         string
	args         []string
	maxFrameSize int
}

func NewCommandSource(name string, args []string, maxFrameSize int) *CommandSource {
	return &CommandSource{name: name, args: args, maxFrameSize: maxFrameSize}
}

func (s *CommandSource) String() string {
	return strings.Join(append([]string{s.name}, s.args...), " ")
}

func (s *CommandSource) Run(ctx context.Context, sink Sink) error {
	cmd := exec.CommandContext(ctx, s.name, s.args...)
	cmd.Stderr = os.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get encoder stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start encoder: %w", err)
	}
	log.Infow("encoder started", "command", s.String(), "pid", cmd.Process.Pid)

	readErr := NewReaderSource(stdout, s.maxFrameSize).Run(ctx, sink)

	// Kill fails harmlessly when the process already exited.
	_ = cmd.Process.Kill()
	waitErr := cmd.Wait()
	log.Infow("encoder released", "pid", cmd.Process.Pid)

	if ctx.Err() != nil {
		return nil
	}
	if readErr != nil && !errors.Is(readErr, ErrSourceClosed) {
		return fmt.Errorf("encoder %s: %w", s.name, readErr)
	}
	if waitErr != nil {
		return fmt.Errorf("encoder %s exited: %w", s.name, waitErr)
	}
	return fmt.Errorf("encoder %s exited: %w", s.name, ErrSourceClosed)
}
