package trafficlight_test

import (
	"context"
	"testing"
	"time"

	"github.com/fujiwara/trafficlight"
)

func TestCommandHook(t *testing.T) {
	tests := []struct {
		run       string
		timeout   time.Duration
		expectErr bool
		exitCode  int
	}{
		{run: "true", expectErr: false},
		{run: `sh -c 'test "$TRAFFICLIGHT_PHASE" = green'`, expectErr: false},
		{run: "sh -c 'exit 3'", expectErr: true, exitCode: 3},
		{run: "sleep 10", timeout: 50 * time.Millisecond, expectErr: true},
	}
	ctx := trafficlight.WithPhase(context.Background(), trafficlight.PhaseGreen)
	for i, test := range tests {
		h, err := trafficlight.NewCommandHook(&trafficlight.HookConfig{
			Name:    "test",
			Run:     test.run,
			Timeout: test.timeout,
		})
		if err != nil {
			t.Fatalf("Test %d: %s", i, err)
		}
		err = h.Run(ctx)
		if (err != nil) != test.expectErr {
			t.Errorf("Test %d: expected error: %v, got: %v", i, test.expectErr, err)
			continue
		}
		if test.exitCode != 0 {
			if code := trafficlight.ExitCode(err); code != test.exitCode {
				t.Errorf("Test %d: exit code = %d want %d", i, code, test.exitCode)
			}
		}
	}
}

func TestNewCommandHookInvalid(t *testing.T) {
	for _, run := range []string{"", `echo "unterminated`} {
		if _, err := trafficlight.NewCommandHook(&trafficlight.HookConfig{Name: "bad", Run: run}); err == nil {
			t.Errorf("%q: expected error", run)
		}
	}
}
