// Package bridge delegates operations to a separate, richer processing
// engine over a subprocess JSON contract.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"sync"
	"time"

	"github.com/doeshing/ffpilot/internal/domain"
	"github.com/doeshing/ffpilot/internal/ports"
)

// Engine implements the Bridge port as a one-shot subprocess per call: the
// request envelope goes to stdin, exactly one JSON value is read back from
// stdout as either a success payload or an error envelope.
type Engine struct {
	command string
	args    []string
	timeout time.Duration
	logger  ports.Logger

	probeMu  sync.Mutex
	probed   bool
	probeErr error
}

type requestEnvelope struct {
	ToolName   string                 `json:"toolName"`
	Parameters map[string]interface{} `json:"parameters"`
}

type responseEnvelope struct {
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// NewEngine builds a bridge from bridge settings.
func NewEngine(settings domain.BridgeSettings, logger ports.Logger) *Engine {
	timeout := domain.DefaultBridgeTimeout
	if settings.TimeoutSeconds > 0 {
		timeout = time.Duration(settings.TimeoutSeconds) * time.Second
	}
	return &Engine{
		command: settings.Command,
		args:    settings.Args,
		timeout: timeout,
		logger:  logger,
	}
}

// Health probes the engine with a cheap no-op call, so unavailability
// surfaces as a distinct recoverable status instead of a deep stack failure
// mid-request. The verdict is cached for the life of the process, except
// when the probe dies with the caller's own context: that says nothing
// about the engine, so the next caller probes again.
func (e *Engine) Health(ctx context.Context) error {
	e.probeMu.Lock()
	defer e.probeMu.Unlock()
	if e.probed {
		return e.probeErr
	}

	if e.command == "" {
		e.probed = true
		e.probeErr = domain.NewError(domain.KindBridgeUnavailable, "no delegation engine configured")
		return e.probeErr
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := e.invoke(probeCtx, "ping", nil); err != nil {
		if ctx.Err() != nil {
			return domain.NewError(domain.KindBridgeUnavailable,
				"delegation engine probe aborted: %v", ctx.Err())
		}
		e.probed = true
		e.probeErr = domain.NewError(domain.KindBridgeUnavailable,
			"delegation engine unavailable: %v", err)
		return e.probeErr
	}

	e.probed = true
	return nil
}

// Call delegates one operation. The health probe runs before first use.
func (e *Engine) Call(ctx context.Context, tool string, params map[string]interface{}) (json.RawMessage, error) {
	if err := e.Health(ctx); err != nil {
		return nil, err
	}
	return e.invoke(ctx, tool, params)
}

func (e *Engine) invoke(ctx context.Context, tool string, params map[string]interface{}) (json.RawMessage, error) {
	payload, err := json.Marshal(requestEnvelope{ToolName: tool, Parameters: params})
	if err != nil {
		return nil, domain.NewError(domain.KindBridgeError, "encode request: %v", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(callCtx, e.command, e.args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if e.logger != nil {
		e.logger.Debug("bridge call", map[string]interface{}{"tool": tool})
	}

	if err := cmd.Run(); err != nil {
		return nil, domain.NewError(domain.KindBridgeError,
			"engine invocation failed: %v (stderr: %s)", err, bytes.TrimSpace(stderr.Bytes()))
	}

	// Exactly one JSON value is expected on stdout.
	decoder := json.NewDecoder(bytes.NewReader(stdout.Bytes()))
	var envelope responseEnvelope
	if err := decoder.Decode(&envelope); err != nil {
		return nil, domain.NewError(domain.KindBridgeError,
			"engine reply is not JSON: %v", err)
	}
	if envelope.Error != "" {
		return nil, domain.NewError(domain.KindBridgeError, "engine error: %s", envelope.Error)
	}
	return envelope.Result, nil
}

var _ ports.Bridge = (*Engine)(nil)
