// Package steps holds executables backed by shell commands and the built-in
// step library bound into every catalog suite.
package steps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ethereum-optimism/optimism/devnet-sdk/telemetry"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

// Keys under which command results are kept in the suite store.
const (
	KeyOutput   = "steps.output"
	KeyExitCode = "steps.exit_code"
)

const waitDelay = 2 * time.Second

// Shell runs commands through sh -c.
type Shell struct {
	// Dir is the working directory. Empty means the process working directory.
	Dir string
	// Env is appended to the process environment.
	Env []string
}

// Command returns an executable running cmdline with the shell's settings.
func Command(cmdline string) types.Executable {
	return Shell{}.Command(cmdline)
}

// Command returns an executable that substitutes <col> tokens in cmdline from
// the current parameters and runs it. A non-zero exit status is returned as a
// KindExitStatus exception.
func (s Shell) Command(cmdline string) types.Executable {
	return types.ExecutableFunc(func(ctx context.Context, tc types.TestContext) error {
		_, err := s.Run(ctx, tc, Substitute(cmdline, tc.Params()), false)
		return err
	})
}

// Hook returns a lifecycle hook running cmdline.
func (s Shell) Hook(cmdline string) types.Hook {
	return func(tc types.TestContext) error {
		_, err := s.Run(context.Background(), tc, Substitute(cmdline, tc.Params()), false)
		return err
	}
}

// Run executes cmdline and records its combined output and exit code in the
// suite store. With allowFailure a non-zero exit status is not an error.
func (s Shell) Run(ctx context.Context, tc types.TestContext, cmdline string, allowFailure bool) (int, error) {
	logger := tc.Logger()
	logger.Debug("Running command", "cmd", cmdline, "dir", s.Dir)

	cmd := exec.CommandContext(ctx, "sh", "-c", cmdline)
	cmd.Dir = s.Dir
	cmd.Env = telemetry.InstrumentEnvironment(ctx, append(os.Environ(), s.Env...))
	cmd.WaitDelay = waitDelay
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	code := 0
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		code = exitErr.ExitCode()
	default:
		return -1, fmt.Errorf("failed to run %q: %w", cmdline, err)
	}

	tc.Set(KeyOutput, out.String())
	tc.Set(KeyExitCode, code)
	logger.Debug("Command finished", "cmd", cmdline, "exitCode", code, "duration", time.Since(start))

	if ctx.Err() != nil {
		return code, fmt.Errorf("command %q interrupted: %w", cmdline, ctx.Err())
	}
	if code != 0 && !allowFailure {
		return code, &types.Exception{
			ExceptionKind: types.KindExitStatus,
			Message:       fmt.Sprintf("exit status %d: %s", code, lastLine(out.String())),
			Cause:         err,
		}
	}
	return code, nil
}

// Substitute replaces every <name> token in s with the matching parameter.
// Unknown tokens are left in place.
func Substitute(s string, params map[string]string) string {
	if len(params) == 0 || !strings.Contains(s, "<") {
		return s
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "<"+k+">", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
