package samba

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

const (
	DefaultToolPath       = "samba-tool"
	DefaultCommandTimeout = 2 * time.Minute
)

// ExecutorConfig controls how samba-tool is invoked on the remote host.
type ExecutorConfig struct {
	ToolPath       string
	UseSudo        bool
	DefaultTimeout time.Duration
}

// Executor runs samba-tool commands over a Session.
type Executor struct {
	cfg ExecutorConfig
}

// NewExecutor creates an executor, filling unset fields with defaults.
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.ToolPath == "" {
		cfg.ToolPath = DefaultToolPath
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultCommandTimeout
	}
	return &Executor{cfg: cfg}
}

// Config returns the effective settings, defaults included.
func (e *Executor) Config() ExecutorConfig { return e.cfg }

// CommandLine renders the shell command for args.
func (e *Executor) CommandLine(args []string) string {
	parts := make([]string, 0, len(args)+3)
	if e.cfg.UseSudo {
		parts = append(parts, "sudo", "-n")
	}
	parts = append(parts, quoteArg(e.cfg.ToolPath))
	for _, a := range args {
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}

// quoteArg quotes one word for a POSIX shell. shellquote leaves a leading '#'
// bare, which the shell would read as the start of a comment.
func quoteArg(a string) string {
	q := shellquote.Join(a)
	if strings.HasPrefix(q, "#") {
		return `\` + q
	}
	return q
}

// DisplayCommand renders req for logs and errors with sensitive arguments masked.
func (e *Executor) DisplayCommand(req CommandRequest) string {
	return strings.Join(append([]string{e.cfg.ToolPath}, req.Redacted()...), " ")
}

// Run performs exactly one remote invocation. Non-zero exit codes are not errors
// at this layer; the returned error is only for timeouts, cancellation and dead sessions.
func (e *Executor) Run(ctx context.Context, s *Session, req CommandRequest) (*CommandResult, error) {
	if s == nil {
		return nil, NewError("execute", ErrorKindSessionDead, "no session", nil)
	}
	if !s.alive.Load() {
		return nil, s.deadError("execute")
	}

	redacted := append([]string{e.cfg.ToolPath}, req.Redacted()...)
	display := e.DisplayCommand(req)

	if err := s.acquire(ctx); err != nil {
		if IsSessionDeadError(err) {
			return nil, err
		}
		return nil, &Error{
			Operation: "execute",
			Kind:      ErrorKindTimeout,
			Message:   "cancelled while waiting for the session",
			Command:   display,
			Cause:     err,
		}
	}
	defer s.release()

	// A session may have died while this call was queued.
	if !s.alive.Load() {
		return nil, s.deadError("execute")
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.cfg.DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, code, err := s.transport.Exec(runCtx, e.CommandLine(req.Args))
	result := &CommandResult{
		ExitCode: code,
		Stdout:   stdout,
		Stderr:   stderr,
		Duration: time.Since(start),
	}

	if err != nil {
		var execErr *Error
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
			execErr = &Error{
				Operation: "execute",
				Kind:      ErrorKindTimeout,
				Message:   fmt.Sprintf("no response within %s", timeout),
				Command:   display,
				Stderr:    stderr,
				Retryable: true,
				Cause:     err,
			}
		case ctx.Err() != nil:
			execErr = &Error{
				Operation: "execute",
				Kind:      ErrorKindTimeout,
				Message:   "cancelled",
				Command:   display,
				Cause:     ctx.Err(),
			}
		default:
			s.markDead(err)
			execErr = &Error{
				Operation: "execute",
				Kind:      ErrorKindSessionDead,
				Message:   "connection lost while running command",
				Command:   display,
				Retryable: true,
				Cause:     err,
			}
		}
		LogCommand(ctx, redacted, result, execErr)
		return nil, execErr
	}

	LogCommand(ctx, redacted, result, nil)
	return result, nil
}
