package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/doeshing/ffpilot/internal/domain"
	"github.com/doeshing/ffpilot/internal/ports"
)

// Pipeline orchestrates the request lifecycle end-to-end: budget gate,
// command generation with heuristic fallback, validation, protected
// execution, and best-effort registration plus run-ledger persistence.
type Pipeline struct {
	ConfigProvider ports.ConfigProvider
	Factory        ports.GeneratorFactory
	Validator      ports.CommandValidator
	Budget         ports.BudgetTracker
	Executor       ports.Executor
	Prober         ports.MediaProber
	Bridge         ports.Bridge
	Registry       ports.Registry
	Ledger         ports.RunLedger
	Logger         ports.Logger

	// ModelOverride selects a configured model by name instead of
	// preferences.default_model.
	ModelOverride string
}

// Run processes a single media request.
func (p *Pipeline) Run(ctx context.Context, req domain.ProcessingRequest) (domain.PipelineResult, error) {
	if p.ConfigProvider == nil || p.Factory == nil || p.Validator == nil ||
		p.Budget == nil || p.Executor == nil || p.Logger == nil {
		return domain.PipelineResult{}, errors.New("services.Pipeline dependencies not satisfied")
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	result := domain.PipelineResult{RequestID: req.ID}

	cfg, err := p.ConfigProvider.Load(ctx)
	if err != nil {
		return result, fmt.Errorf("load config: %w", err)
	}

	if p.Bridge != nil && delegatedOperation(cfg.Bridge.Operations, req.Operation) {
		return p.delegate(ctx, req, result)
	}

	p.enrichWithProbe(ctx, cfg, &req)

	cmd, err := p.generate(ctx, cfg, req)
	if err != nil {
		return result, err
	}
	result.Command = cmd

	if cmd.Provenance == domain.ProvenanceAI && cmd.Confidence < domain.LowConfidenceThreshold {
		p.Logger.Warn("low generation confidence", map[string]interface{}{
			"request_id": req.ID,
			"confidence": cmd.Confidence,
		})
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("generator confidence %.2f below %.2f", cmd.Confidence, domain.LowConfidenceThreshold))
	}

	validation := domain.ValidationResult{
		Valid:     true,
		Sanitized: cmd.Argv,
		Warnings:  []string{"static validation disabled by configuration"},
	}
	if !cfg.Validator.Disabled {
		validation = p.Validator.Validate(cmd.Argv)
	}
	result.Validation = validation
	result.Warnings = append(result.Warnings, validation.Warnings...)
	if !validation.Valid {
		err := domain.NewError(domain.KindValidationFailed, "command rejected by static validation")
		err.Command = cmd.Argv
		err.Details = validation.Errors
		p.record(req, result, err)
		return result, err
	}

	sizeWarnings, err := p.Executor.VerifyInputs(validation.Sanitized)
	result.Warnings = append(result.Warnings, sizeWarnings...)
	if err != nil {
		p.record(req, result, err)
		return result, err
	}

	if req.OutputPath != "" {
		if err := p.Executor.EnsureOutputDir(req.OutputPath); err != nil {
			perr := domain.NewError(domain.KindSpawnError, "prepare output directory: %v", err)
			p.record(req, result, perr)
			return result, perr
		}
	}

	spec := domain.ExecSpec{
		Argv:       validation.Sanitized,
		OutputPath: req.OutputPath,
	}
	if req.Constraints != nil && req.Constraints.MaxDuration > 0 {
		spec.Timeout = req.Constraints.MaxDuration
	}

	exec, err := p.Executor.Execute(ctx, spec)
	result.Execution = &exec
	if err != nil {
		p.record(req, result, err)
		return result, err
	}

	if exec.Success && req.OutputPath != "" {
		result.Registered = p.register(ctx, cfg, req, cmd)
	}

	p.record(req, result, nil)
	return result, nil
}

// delegate routes the whole operation to the external processing engine.
// Engine unavailability and engine errors propagate with their own kinds so
// callers can distinguish "engine down" from "engine refused".
func (p *Pipeline) delegate(ctx context.Context, req domain.ProcessingRequest, result domain.PipelineResult) (domain.PipelineResult, error) {
	params := map[string]interface{}{
		"inputs": req.Inputs,
		"output": req.OutputPath,
	}
	for key, value := range req.Params {
		params[key] = value
	}

	payload, err := p.Bridge.Call(ctx, req.Operation, params)
	if err != nil {
		p.record(req, result, err)
		return result, err
	}

	result.Delegated = true
	result.DelegatePayload = payload
	p.record(req, result, nil)
	return result, nil
}

func delegatedOperation(operations []string, operation string) bool {
	for _, op := range operations {
		if strings.EqualFold(op, operation) {
			return true
		}
	}
	return false
}

// generate runs the budget gate and picks the generator. The heuristic
// serves when the budget is exhausted, no model is usable, or the AI
// call fails with a recoverable kind.
func (p *Pipeline) generate(ctx context.Context, cfg domain.Config, req domain.ProcessingRequest) (domain.GeneratedCommand, error) {
	modelDef, modelErr := pickModel(cfg, p.ModelOverride)
	if modelErr != nil {
		p.Logger.Warn("no usable model, using heuristic fallback", map[string]interface{}{
			"error": modelErr.Error(),
		})
		return p.Factory.Heuristic().Generate(ctx, req)
	}

	cost, ok := p.Budget.Authorize(req)
	if !ok {
		p.Logger.Warn("daily budget exhausted, using heuristic fallback", map[string]interface{}{
			"request_id":     req.ID,
			"estimated_cost": cost,
			"daily_spend":    p.Budget.Status().DailySpendUSD,
		})
		return p.Factory.Heuristic().Generate(ctx, req)
	}

	gen, err := p.Factory.ForModel(modelDef)
	if err != nil {
		p.Logger.Warn("generator unavailable, using heuristic fallback", map[string]interface{}{
			"model": modelDef.Name,
			"error": err.Error(),
		})
		return p.Factory.Heuristic().Generate(ctx, req)
	}

	genCtx := ctx
	if cfg.Preferences.GeneratorTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Preferences.GeneratorTimeout)*time.Second)
		defer cancel()
	}

	cmd, err := gen.Generate(genCtx, req)
	if err != nil {
		if !domain.IsRecoverable(domain.KindOf(err)) {
			return domain.GeneratedCommand{}, err
		}
		p.Logger.Warn("generation failed, using heuristic fallback", map[string]interface{}{
			"model": modelDef.Name,
			"error": err.Error(),
		})
		return p.Factory.Heuristic().Generate(ctx, req)
	}
	return cmd, nil
}

// enrichWithProbe attaches stream summaries for each readable input so the
// generator sees real media properties. Probe failures are silent; the
// executor re-checks input existence later.
func (p *Pipeline) enrichWithProbe(ctx context.Context, cfg domain.Config, req *domain.ProcessingRequest) {
	if p.Prober == nil || !cfg.Preferences.ProbeInputs {
		return
	}
	summaries := make(map[string]string, len(req.Inputs))
	for _, input := range req.Inputs {
		info, err := p.Prober.Probe(ctx, input)
		if err != nil {
			p.Logger.Debug("probe failed", map[string]interface{}{
				"input": input,
				"error": err.Error(),
			})
			continue
		}
		summaries[input] = info.Summary()
	}
	if len(summaries) > 0 {
		if req.Params == nil {
			req.Params = map[string]interface{}{}
		}
		req.Params["media_info"] = summaries
	}
}

// register reports the produced artifact to the external registry.
// Failures degrade to a warning; the processing itself already succeeded.
func (p *Pipeline) register(ctx context.Context, cfg domain.Config, req domain.ProcessingRequest, cmd domain.GeneratedCommand) bool {
	if p.Registry == nil || cfg.Registry.Endpoint == "" {
		return false
	}
	regCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Registry.TimeoutSeconds)*time.Second)
	defer cancel()

	metadata := map[string]string{
		"request_id": req.ID,
		"operation":  req.Operation,
		"provenance": string(cmd.Provenance),
	}
	if _, err := p.Registry.Register(regCtx, req.OutputPath, metadata); err != nil {
		p.Logger.Warn("registry registration failed", map[string]interface{}{
			"request_id": req.ID,
			"path":       req.OutputPath,
			"error":      err.Error(),
		})
		return false
	}
	return true
}

// record persists the run outcome. Ledger failures never surface to the
// caller.
func (p *Pipeline) record(req domain.ProcessingRequest, result domain.PipelineResult, runErr error) {
	if p.Ledger == nil {
		return
	}
	rec := domain.RunRecord{
		Timestamp:  time.Now().UTC(),
		RequestID:  req.ID,
		Operation:  req.Operation,
		Command:    strings.Join(result.Command.Argv, " "),
		Provenance: result.Command.Provenance,
		Confidence: result.Command.Confidence,
		Valid:      result.Validation.Valid,
	}
	if result.Delegated {
		rec.Success = runErr == nil
	}
	if result.Execution != nil {
		rec.Success = result.Execution.Success
		rec.Exit = result.Execution.Exit
		rec.ExitCode = result.Execution.ExitCode
		rec.DurationMS = result.Execution.Duration.Milliseconds()
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if err := p.Ledger.Save(rec); err != nil {
		p.Logger.Warn("run ledger save failed", map[string]interface{}{
			"request_id": req.ID,
			"error":      err.Error(),
		})
	}
}

func pickModel(cfg domain.Config, override string) (domain.ModelDefinition, error) {
	name := override
	if name == "" {
		name = cfg.Preferences.DefaultModel
	}
	if name == "" {
		return domain.ModelDefinition{}, errors.New("no model configured")
	}
	for _, m := range cfg.Models {
		if m.Name == name {
			return m, nil
		}
	}
	return domain.ModelDefinition{}, fmt.Errorf("model %q not found in configuration", name)
}

var _ domain.PipelineService = (*Pipeline)(nil)
