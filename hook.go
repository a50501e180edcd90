package trafficlight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/Songmu/wrapcommander"
	"github.com/mattn/go-shellwords"
)

// Hook is run by the consumer when it observes a phase.
type Hook interface {
	Name() string
	Run(ctx context.Context) error
}

func NewHook(cfg *HookConfig) (Hook, error) {
	switch {
	case cfg.HTTP != nil && cfg.Run != "":
		return nil, fmt.Errorf("hook %s: run and http are mutually exclusive", cfg.Name)
	case cfg.HTTP != nil:
		return NewHTTPHook(cfg)
	default:
		return NewCommandHook(cfg)
	}
}

type CommandHook struct {
	name     string
	commands []string
	timeout  time.Duration
}

func NewCommandHook(cfg *HookConfig) (*CommandHook, error) {
	cmds, err := shellwords.Parse(cfg.Run)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %s %w", cfg.Run, err)
	}
	if len(cmds) == 0 {
		return nil, fmt.Errorf("hook %s: no command", cfg.Name)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultHookTimeout
	}
	return &CommandHook{
		name:     cfg.Name,
		commands: cmds,
		timeout:  timeout,
	}, nil
}

func (h *CommandHook) Name() string {
	return h.name
}

func (h *CommandHook) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	logger := newLoggerFromContext(ctx).With(
		"name", h.name,
		"module", "commandhook",
		"commands", fmt.Sprintf("%v", h.commands),
	)
	logger.Debug("executing command")
	var cmd *exec.Cmd
	switch len(h.commands) {
	case 0:
		return errors.New("no command")
	case 1:
		cmd = exec.CommandContext(ctx, h.commands[0])
	default:
		cmd = exec.CommandContext(ctx, h.commands[0], h.commands[1:]...)
	}
	cmd.Env = append(cmd.Env, os.Environ()...)
	if p, ok := ctx.Value(phaseKey).(Phase); ok {
		cmd.Env = append(cmd.Env, "TRAFFICLIGHT_PHASE="+p.String())
	}
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 3 * time.Second
	out, err := cmd.CombinedOutput()
	if err != nil {
		logger.Warn("command failed",
			slog.Int("exit_code", wrapcommander.ResolveExitCode(err)),
			slog.String("output", string(out)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("hook %s failed: %w", h.name, err)
	}
	logger.Debug("command succeeded",
		slog.Int("exit_code", wrapcommander.ResolveExitCode(err)),
		slog.String("output", string(out)),
	)
	return nil
}

// ExitCode returns the exit status carried by an error from Run.
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return wrapcommander.ResolveExitCode(exitErr)
	}
	return wrapcommander.ResolveExitCode(err)
}
