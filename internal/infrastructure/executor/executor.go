// Package executor runs the external media tool under a protective harness:
// wall-clock timeout with escalating termination, bounded output capture, and
// input/output verification.
package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/doeshing/ffpilot/internal/domain"
	"github.com/doeshing/ffpilot/internal/infrastructure/security"
	"github.com/doeshing/ffpilot/internal/ports"
)

// Protected implements the Executor port.
type Protected struct {
	timeout         time.Duration
	grace           time.Duration
	maxCaptureBytes int
	largeInputBytes int64
	logger          ports.Logger
}

// NewProtected builds an executor from executor settings. Zero values fall
// back to the domain defaults.
func NewProtected(settings domain.ExecutorSettings, logger ports.Logger) *Protected {
	p := &Protected{
		timeout:         domain.DefaultExecutionTimeout,
		grace:           domain.DefaultGraceWindow,
		maxCaptureBytes: domain.MaxCaptureBytes,
		largeInputBytes: domain.LargeInputBytes,
		logger:          logger,
	}
	if settings.TimeoutSeconds > 0 {
		p.timeout = time.Duration(settings.TimeoutSeconds) * time.Second
	}
	if settings.GraceSeconds > 0 {
		p.grace = time.Duration(settings.GraceSeconds) * time.Second
	}
	if settings.MaxCaptureBytes > 0 {
		p.maxCaptureBytes = settings.MaxCaptureBytes
	}
	if settings.LargeInputBytes > 0 {
		p.largeInputBytes = settings.LargeInputBytes
	}
	return p
}

// VerifyInputs stats every declared input: each must exist and be a regular
// file. Inputs above the size threshold produce a warning, not an error.
func (p *Protected) VerifyInputs(argv []string) ([]string, error) {
	var warnings []string
	inputs := security.DeclaredInputs(argv)
	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			return warnings, domain.NewError(domain.KindInputMissing, "input %q does not exist", input)
		}
		if !info.Mode().IsRegular() {
			return warnings, domain.NewError(domain.KindInputMissing, "input %q is not a regular file", input)
		}
		if info.Size() > p.largeInputBytes {
			warnings = append(warnings, fmt.Sprintf("input %q is large (%s), processing may be slow",
				input, humanize.Bytes(uint64(info.Size()))))
		}
	}
	return warnings, nil
}

// EnsureOutputDir creates the parent directory of outputPath.
func (p *Protected) EnsureOutputDir(outputPath string) error {
	dir := filepath.Dir(outputPath)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, domain.DirectoryPermissions)
}

// Execute spawns the tool and waits for exactly one terminal state:
// Completed, TimedOut, or SpawnError. The one-shot resolution flag keeps the
// timeout path and the natural-exit path from both resolving the result.
func (p *Protected) Execute(ctx context.Context, spec domain.ExecSpec) (domain.ExecutionResult, error) {
	if len(spec.Argv) == 0 {
		return domain.ExecutionResult{Exit: domain.ExitSpawnError, Error: "empty argv"},
			domain.NewError(domain.KindSpawnError, "empty argv")
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = p.timeout
	}

	stdout := newCappedBuffer(p.maxCaptureBytes)
	stderr := newCappedBuffer(p.maxCaptureBytes)

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Stdout = stdout
	cmd.Stderr = newSampledWriter(stderr, p.logger)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		result := domain.ExecutionResult{
			Exit:  domain.ExitSpawnError,
			Error: err.Error(),
		}
		return result, &domain.PipelineError{
			Kind:    domain.KindSpawnError,
			Message: fmt.Sprintf("failed to spawn %s: %v", spec.Argv[0], err),
			Command: spec.Argv,
			Wrapped: err,
		}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var once sync.Once
	var result domain.ExecutionResult
	resolve := func(r domain.ExecutionResult) {
		once.Do(func() { result = r })
	}

	select {
	case waitErr := <-done:
		resolve(p.classifyExit(spec, waitErr, start, stdout, stderr))
	case <-ctx.Done():
		p.terminate(cmd, done)
		resolve(p.timedOutResult(spec, start, stdout, stderr, "cancelled: "+ctx.Err().Error()))
	case <-time.After(timeout):
		p.terminate(cmd, done)
		resolve(p.timedOutResult(spec, start, stdout, stderr,
			fmt.Sprintf("exceeded %s wall-clock ceiling", timeout)))
	}

	return result, p.resultError(spec, result)
}

// terminate escalates: graceful signal first, force kill after the grace
// window, and a bounded wait for process death after each step.
func (p *Protected) terminate(cmd *exec.Cmd, done <-chan error) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-done:
		return
	case <-time.After(p.grace):
	}

	_ = cmd.Process.Kill()
	select {
	case <-done:
	case <-time.After(p.grace):
		p.logger.Error("process did not die after force kill", nil,
			map[string]interface{}{"pid": cmd.Process.Pid})
	}
}

func (p *Protected) classifyExit(spec domain.ExecSpec, waitErr error, start time.Time, stdout, stderr *cappedBuffer) domain.ExecutionResult {
	result := domain.ExecutionResult{
		Duration: time.Since(start),
		Exit:     domain.ExitCompleted,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}

	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		result.Exit = domain.ExitNonZero
		result.ExitCode = exitErr.ExitCode()
		result.Error = fmt.Sprintf("exit status %d", exitErr.ExitCode())
		return result
	}
	if waitErr != nil {
		result.Exit = domain.ExitNonZero
		result.ExitCode = -1
		result.Error = waitErr.Error()
		return result
	}

	if spec.OutputPath != "" {
		if _, err := os.Stat(spec.OutputPath); err != nil {
			result.Error = fmt.Sprintf("tool exited 0 but output %q was not produced", spec.OutputPath)
			return result
		}
		result.OutputPath = spec.OutputPath
	}
	result.Success = true
	return result
}

func (p *Protected) timedOutResult(spec domain.ExecSpec, start time.Time, stdout, stderr *cappedBuffer, reason string) domain.ExecutionResult {
	return domain.ExecutionResult{
		Duration: time.Since(start),
		Exit:     domain.ExitTimedOut,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Error:    reason,
	}
}

func (p *Protected) resultError(spec domain.ExecSpec, result domain.ExecutionResult) error {
	if result.Success {
		return nil
	}
	kind := domain.KindNonZeroExit
	if result.Exit == domain.ExitTimedOut {
		kind = domain.KindTimeout
	}
	return &domain.PipelineError{
		Kind:    kind,
		Message: result.Error,
		Command: spec.Argv,
		Details: []string{tail(result.Stderr, 500)},
	}
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

var _ ports.Executor = (*Protected)(nil)
