// Package command runs external tools and reports their return code, stdout
// and stderr. A non-zero exit is a result, not an error: callers decide how
// to react to it.
package command

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrEmptyCommand = errors.New("empty command line")
	ErrUnbalanced   = errors.New("unbalanced quotes or escapes in command line")
)

// waitDelay bounds how long Run waits for output pipes after the process was
// killed, in case it left children holding them open.
const waitDelay = 2 * time.Second

// Command describes one invocation of an external binary.
type Command struct {
	Binary string
	Args   []string

	// Dir is the working directory of the process. The calling process's
	// working directory is never changed.
	Dir string

	// Env is appended to the current environment.
	Env []string
}

// String renders the command the way it would be typed in a shell.
func (c Command) String() string {
	return shellquote.Join(append([]string{c.Binary}, c.Args...)...)
}

// With returns a copy of c with args appended.
func (c Command) With(args ...string) Command {
	out := c
	out.Args = append(append([]string{}, c.Args...), args...)
	return out
}

// Result is the outcome of a finished process.
type Result struct {
	ReturnCode int
	Stdout     string
	Stderr     string
	Duration   time.Duration
}

// OK reports whether the process exited with status zero.
func (r *Result) OK() bool {
	return r.ReturnCode == 0
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExecRunner runs commands on the host with os/exec.
type ExecRunner struct {
	logger *zap.Logger
}

// NewExecRunner creates a runner logging to logger; nil disables logging.
func NewExecRunner(logger *zap.Logger) *ExecRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecRunner{logger: logger}
}

// Run starts cmd, waits for it and collects its output. An error is returned
// only when the process could not be started or ctx ended first.
func (e *ExecRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Binary == "" {
		return nil, ErrEmptyCommand
	}

	e.logger.Debug("running command",
		zap.String("cmd", cmd.String()),
		zap.String("dir", cmd.Dir))

	c := exec.CommandContext(ctx, cmd.Binary, cmd.Args...)
	c.Dir = cmd.Dir
	c.WaitDelay = waitDelay
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	result := &Result{
		ReturnCode: 0,
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		Duration:   time.Since(start),
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrapf(ctxErr, "%s interrupted", cmd.Binary)
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, errors.Wrapf(err, "start %s", cmd.Binary)
		}
		result.ReturnCode = exitErr.ExitCode()
	}

	e.logger.Debug("command finished",
		zap.String("cmd", cmd.Binary),
		zap.Int("returncode", result.ReturnCode),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// ParseCommandLine splits a command line such as "matlab-spm8 -nojvm" into a
// Command using POSIX shell quoting rules, without any expansion.
func ParseCommandLine(line string) (Command, error) {
	words, err := shellquote.Split(line)
	if err != nil {
		return Command{}, errors.Wrapf(ErrUnbalanced, "%q: %v", line, err)
	}
	if len(words) == 0 {
		return Command{}, ErrEmptyCommand
	}
	return Command{Binary: words[0], Args: words[1:]}, nil
}
