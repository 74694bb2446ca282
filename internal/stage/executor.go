package stage

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, opts ExecOptions) error
}

// ExecOptions controls a single external tool invocation.
type ExecOptions struct {
	// Dir is the working directory for the command. Empty means inherit.
	Dir string
	// OnLine receives each combined stdout/stderr line as it arrives.
	OnLine func(string)
}

// CommandExecutor runs real subprocesses, streaming their output line by line.
type CommandExecutor struct{}

func (CommandExecutor) Run(ctx context.Context, binary string, args []string, opts ExecOptions) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if opts.OnLine != nil {
				opts.OnLine(scanner.Text())
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
