// Package commandtest provides a scripted command.Runner for tests.
package commandtest

import (
	"context"
	"sync"

	"rsfmri/pkg/command"
)

// HandlerFunc reacts to one command. It may touch the filesystem to emulate
// the tool's side effects.
type HandlerFunc func(cmd command.Command) (*command.Result, error)

// Runner records every command it receives and answers through Handler.
// A nil Handler answers every command with return code 0.
type Runner struct {
	Handler HandlerFunc

	mu    sync.Mutex
	calls []command.Command
}

// Run implements command.Runner.
func (r *Runner) Run(ctx context.Context, cmd command.Command) (*command.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Handler == nil {
		return &command.Result{}, nil
	}
	return r.Handler(cmd)
}

// Calls returns a copy of the commands received so far.
func (r *Runner) Calls() []command.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]command.Command(nil), r.calls...)
}

// Exit builds a result with the given return code and stderr.
func Exit(code int, stderr string) *command.Result {
	return &command.Result{ReturnCode: code, Stderr: stderr}
}
