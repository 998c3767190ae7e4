package samba

import (
	"context"
	"errors"
)

// Directory exposes domain administration operations. Every method takes the
// session to run on; Directory itself holds no connection state.
type Directory struct {
	exec *Executor
}

// NewDirectory creates a facade over exec.
func NewDirectory(exec *Executor) *Directory {
	if exec == nil {
		exec = NewExecutor(ExecutorConfig{})
	}
	return &Directory{exec: exec}
}

// Executor returns the underlying command executor.
func (d *Directory) Executor() *Executor {
	return d.exec
}

// run executes one command and applies the exit-code policy.
func (d *Directory) run(ctx context.Context, s *Session, operation string, req CommandRequest) (*CommandResult, error) {
	res, err := d.exec.Run(ctx, s, req)
	if err != nil {
		return nil, WrapError(operation, err)
	}
	if err := ClassifyResult(operation, res); err != nil {
		var sambaErr *Error
		if errors.As(err, &sambaErr) && sambaErr.Command == "" {
			sambaErr.Command = d.exec.DisplayCommand(req)
		}
		return res, err
	}
	return res, nil
}

func args(a ...string) CommandRequest {
	return CommandRequest{Args: a}
}

// command builds "noun verb opts... -- operands..." so that no operand is ever
// read as an option.
func command(noun, verb string, opts []string, operands ...string) CommandRequest {
	a := make([]string, 0, len(opts)+len(operands)+3)
	a = append(a, noun, verb)
	a = append(a, opts...)
	a = append(a, "--")
	a = append(a, operands...)
	return CommandRequest{Args: a}
}
