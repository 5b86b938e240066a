package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/doeshing/ffpilot/internal/domain"
	"github.com/doeshing/ffpilot/internal/pkg/logger"
	"github.com/doeshing/ffpilot/internal/ports"
)

func testConfig() domain.Config {
	return domain.Config{
		ConfigFormatVersion: "1",
		Preferences:         domain.Preferences{DefaultModel: "claude"},
		Models: []domain.ModelDefinition{
			{Name: "claude", ModelID: "claude-3-5-sonnet", Endpoint: "https://api.anthropic.com/v1/messages"},
		},
		Budget:   domain.BudgetSettings{DailyLimitUSD: 5},
		Registry: domain.RegistrySettings{TimeoutSeconds: 1},
	}
}

func aiCommand() domain.GeneratedCommand {
	return domain.GeneratedCommand{
		Argv:       []string{"ffmpeg", "-i", "in.mp4", "-c", "copy", "out.mp4"},
		Confidence: 0.9,
		Provenance: domain.ProvenanceAI,
	}
}

func newTestPipeline(factory *stubFactory, budget *stubBudget, exec *stubRunner) *Pipeline {
	return &Pipeline{
		ConfigProvider: stubConfigProvider{cfg: testConfig()},
		Factory:        factory,
		Validator:      stubValidator{},
		Budget:         budget,
		Executor:       exec,
		Logger:         logger.Nop{},
	}
}

func TestRunExecutesAIGeneratedCommand(t *testing.T) {
	factory := &stubFactory{
		model:     &stubGenerator{cmd: aiCommand()},
		heuristic: &stubGenerator{cmd: domain.GeneratedCommand{Provenance: domain.ProvenanceHeuristic}},
	}
	exec := &stubRunner{result: domain.ExecutionResult{Success: true, Exit: domain.ExitCompleted}}
	svc := newTestPipeline(factory, &stubBudget{authorized: true}, exec)

	res, err := svc.Run(context.Background(), domain.ProcessingRequest{
		Operation: "convert",
		Inputs:    []string{"in.mp4"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Command.Provenance != domain.ProvenanceAI {
		t.Fatalf("provenance = %s, want ai", res.Command.Provenance)
	}
	if res.Execution == nil || !res.Execution.Success {
		t.Fatalf("expected successful execution, got %+v", res.Execution)
	}
	if !exec.called {
		t.Fatal("executor was not called")
	}
	if res.RequestID == "" {
		t.Fatal("expected generated request ID")
	}
}

func TestRunFallsBackWhenBudgetExhausted(t *testing.T) {
	modelGen := &stubGenerator{cmd: aiCommand()}
	heuristicGen := &stubGenerator{cmd: domain.GeneratedCommand{
		Argv:       []string{"ffmpeg", "-i", "in.mp4", "-c", "copy", "-y", "out.mp4"},
		Confidence: domain.HeuristicConfidence,
		Provenance: domain.ProvenanceHeuristic,
	}}
	factory := &stubFactory{model: modelGen, heuristic: heuristicGen}
	exec := &stubRunner{result: domain.ExecutionResult{Success: true, Exit: domain.ExitCompleted}}
	svc := newTestPipeline(factory, &stubBudget{authorized: false}, exec)

	res, err := svc.Run(context.Background(), domain.ProcessingRequest{Operation: "convert", Inputs: []string{"in.mp4"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if modelGen.called {
		t.Fatal("model generator must not be invoked when the budget gate denies")
	}
	if !heuristicGen.called {
		t.Fatal("heuristic generator was not invoked")
	}
	if res.Command.Provenance != domain.ProvenanceHeuristic {
		t.Fatalf("provenance = %s, want heuristic", res.Command.Provenance)
	}
}

func TestRunFallsBackOnRecoverableGenerationError(t *testing.T) {
	modelGen := &stubGenerator{err: domain.NewError(domain.KindGenerationError, "malformed response")}
	heuristicGen := &stubGenerator{cmd: domain.GeneratedCommand{
		Argv:       []string{"ffmpeg", "-i", "in.mp4", "-y", "out.mp4"},
		Provenance: domain.ProvenanceHeuristic,
	}}
	factory := &stubFactory{model: modelGen, heuristic: heuristicGen}
	exec := &stubRunner{result: domain.ExecutionResult{Success: true, Exit: domain.ExitCompleted}}
	svc := newTestPipeline(factory, &stubBudget{authorized: true}, exec)

	res, err := svc.Run(context.Background(), domain.ProcessingRequest{Operation: "convert", Inputs: []string{"in.mp4"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !modelGen.called || !heuristicGen.called {
		t.Fatalf("model called=%v heuristic called=%v, want both", modelGen.called, heuristicGen.called)
	}
	if res.Command.Provenance != domain.ProvenanceHeuristic {
		t.Fatalf("provenance = %s, want heuristic", res.Command.Provenance)
	}
}

func TestRunRejectsInvalidCommandWithoutExecuting(t *testing.T) {
	factory := &stubFactory{model: &stubGenerator{cmd: aiCommand()}, heuristic: &stubGenerator{}}
	exec := &stubRunner{}
	svc := newTestPipeline(factory, &stubBudget{authorized: true}, exec)
	svc.Validator = stubValidator{result: domain.ValidationResult{
		Valid:  false,
		Errors: []string{"token 'pipe:' matches deny pattern"},
	}}

	_, err := svc.Run(context.Background(), domain.ProcessingRequest{Operation: "convert", Inputs: []string{"in.mp4"}})
	if domain.KindOf(err) != domain.KindValidationFailed {
		t.Fatalf("kind = %s, want validation_failed", domain.KindOf(err))
	}
	if exec.called {
		t.Fatal("rejected command must never reach the executor")
	}
}

func TestRunValidatesWhenConfigOmitsValidatorSection(t *testing.T) {
	factory := &stubFactory{model: &stubGenerator{cmd: aiCommand()}, heuristic: &stubGenerator{}}
	exec := &stubRunner{}
	svc := newTestPipeline(factory, &stubBudget{authorized: true}, exec)

	// Zero-value validator settings, as produced by a config file without a
	// validator section. Validation must still run and reject.
	cfg := testConfig()
	cfg.Validator = domain.ValidatorSettings{}
	svc.ConfigProvider = stubConfigProvider{cfg: cfg}
	svc.Validator = stubValidator{result: domain.ValidationResult{
		Valid:  false,
		Errors: []string{"token '-protocol_whitelist' matches deny pattern"},
	}}

	_, err := svc.Run(context.Background(), domain.ProcessingRequest{Operation: "convert", Inputs: []string{"in.mp4"}})
	if domain.KindOf(err) != domain.KindValidationFailed {
		t.Fatalf("kind = %s, want validation_failed", domain.KindOf(err))
	}
	if exec.called {
		t.Fatal("unvalidated command must never reach the executor")
	}
}

func TestRunExplicitlyDisabledValidationWarns(t *testing.T) {
	factory := &stubFactory{model: &stubGenerator{cmd: aiCommand()}, heuristic: &stubGenerator{}}
	exec := &stubRunner{result: domain.ExecutionResult{Success: true, Exit: domain.ExitCompleted}}
	svc := newTestPipeline(factory, &stubBudget{authorized: true}, exec)

	cfg := testConfig()
	cfg.Validator.Disabled = true
	svc.ConfigProvider = stubConfigProvider{cfg: cfg}
	svc.Validator = stubValidator{result: domain.ValidationResult{
		Valid:  false,
		Errors: []string{"would reject if consulted"},
	}}

	res, err := svc.Run(context.Background(), domain.ProcessingRequest{Operation: "convert", Inputs: []string{"in.mp4"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Warnings) == 0 {
		t.Fatal("disabling validation must surface a warning")
	}
}

func TestRunReportsMissingInputs(t *testing.T) {
	factory := &stubFactory{model: &stubGenerator{cmd: aiCommand()}, heuristic: &stubGenerator{}}
	exec := &stubRunner{verifyErr: domain.NewError(domain.KindInputMissing, "input %q does not exist", "in.mp4")}
	svc := newTestPipeline(factory, &stubBudget{authorized: true}, exec)

	_, err := svc.Run(context.Background(), domain.ProcessingRequest{Operation: "convert", Inputs: []string{"in.mp4"}})
	if domain.KindOf(err) != domain.KindInputMissing {
		t.Fatalf("kind = %s, want input_missing", domain.KindOf(err))
	}
	if exec.called {
		t.Fatal("executor must not run with missing inputs")
	}
}

func TestRunRegistryFailureDegradesToWarning(t *testing.T) {
	factory := &stubFactory{model: &stubGenerator{cmd: aiCommand()}, heuristic: &stubGenerator{}}
	exec := &stubRunner{result: domain.ExecutionResult{Success: true, Exit: domain.ExitCompleted, OutputPath: "out.mp4"}}
	svc := newTestPipeline(factory, &stubBudget{authorized: true}, exec)

	cfg := testConfig()
	cfg.Registry.Endpoint = "http://localhost:9"
	svc.ConfigProvider = stubConfigProvider{cfg: cfg}
	svc.Registry = stubRegistry{err: errors.New("connection refused")}

	res, err := svc.Run(context.Background(), domain.ProcessingRequest{
		Operation:  "convert",
		Inputs:     []string{"in.mp4"},
		OutputPath: "out.mp4",
	})
	if err != nil {
		t.Fatalf("Run() error = %v, registration failure must not fail the request", err)
	}
	if res.Registered {
		t.Fatal("Registered should be false when the registry call fails")
	}
}

func TestRunRegistersSuccessfulOutput(t *testing.T) {
	factory := &stubFactory{model: &stubGenerator{cmd: aiCommand()}, heuristic: &stubGenerator{}}
	exec := &stubRunner{result: domain.ExecutionResult{Success: true, Exit: domain.ExitCompleted, OutputPath: "out.mp4"}}
	svc := newTestPipeline(factory, &stubBudget{authorized: true}, exec)

	cfg := testConfig()
	cfg.Registry.Endpoint = "http://localhost:8080"
	svc.ConfigProvider = stubConfigProvider{cfg: cfg}
	reg := &recordingRegistry{}
	svc.Registry = reg

	res, err := svc.Run(context.Background(), domain.ProcessingRequest{
		Operation:  "convert",
		Inputs:     []string{"in.mp4"},
		OutputPath: "out.mp4",
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Registered {
		t.Fatal("expected Registered = true")
	}
	if reg.path != "out.mp4" {
		t.Fatalf("registered path = %q", reg.path)
	}
}

func TestRunLowConfidenceIsWarningOnly(t *testing.T) {
	cmd := aiCommand()
	cmd.Confidence = 0.2
	factory := &stubFactory{model: &stubGenerator{cmd: cmd}, heuristic: &stubGenerator{}}
	exec := &stubRunner{result: domain.ExecutionResult{Success: true, Exit: domain.ExitCompleted}}
	svc := newTestPipeline(factory, &stubBudget{authorized: true}, exec)

	res, err := svc.Run(context.Background(), domain.ProcessingRequest{Operation: "convert", Inputs: []string{"in.mp4"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !exec.called {
		t.Fatal("low confidence must not block execution")
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected a low-confidence warning")
	}
}

func TestRunDelegatesConfiguredOperations(t *testing.T) {
	factory := &stubFactory{model: &stubGenerator{cmd: aiCommand()}, heuristic: &stubGenerator{}}
	exec := &stubRunner{}
	svc := newTestPipeline(factory, &stubBudget{authorized: true}, exec)

	cfg := testConfig()
	cfg.Bridge = domain.BridgeSettings{Command: "engine", Operations: []string{"transcribe"}}
	svc.ConfigProvider = stubConfigProvider{cfg: cfg}
	eng := &stubBridge{payload: []byte(`{"text":"hello"}`)}
	svc.Bridge = eng

	res, err := svc.Run(context.Background(), domain.ProcessingRequest{
		Operation: "transcribe",
		Inputs:    []string{"in.wav"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Delegated {
		t.Fatal("expected delegated result")
	}
	if string(res.DelegatePayload) != `{"text":"hello"}` {
		t.Fatalf("payload = %s", res.DelegatePayload)
	}
	if eng.tool != "transcribe" {
		t.Fatalf("engine tool = %q", eng.tool)
	}
	if exec.called || factory.model.called {
		t.Fatal("delegated operations must bypass the local pipeline")
	}
}

func TestRunDelegationErrorPropagates(t *testing.T) {
	factory := &stubFactory{model: &stubGenerator{cmd: aiCommand()}, heuristic: &stubGenerator{}}
	svc := newTestPipeline(factory, &stubBudget{authorized: true}, &stubRunner{})

	cfg := testConfig()
	cfg.Bridge = domain.BridgeSettings{Command: "engine", Operations: []string{"transcribe"}}
	svc.ConfigProvider = stubConfigProvider{cfg: cfg}
	svc.Bridge = &stubBridge{err: domain.NewError(domain.KindBridgeUnavailable, "engine down")}

	_, err := svc.Run(context.Background(), domain.ProcessingRequest{Operation: "transcribe", Inputs: []string{"in.wav"}})
	if domain.KindOf(err) != domain.KindBridgeUnavailable {
		t.Fatalf("kind = %s, want bridge_unavailable", domain.KindOf(err))
	}
}

func TestPickModel(t *testing.T) {
	cfg := testConfig()
	cfg.Models = append(cfg.Models, domain.ModelDefinition{Name: "local", Endpoint: "http://localhost:11434"})

	m, err := pickModel(cfg, "")
	if err != nil || m.Name != "claude" {
		t.Fatalf("pickModel default = %v, %v", m.Name, err)
	}
	m, err = pickModel(cfg, "local")
	if err != nil || m.Name != "local" {
		t.Fatalf("pickModel override = %v, %v", m.Name, err)
	}
	if _, err := pickModel(cfg, "nope"); err == nil {
		t.Fatal("expected error for unknown model")
	}
}

type stubConfigProvider struct {
	cfg domain.Config
	err error
}

func (s stubConfigProvider) Load(context.Context) (domain.Config, error) {
	return s.cfg, s.err
}

type stubGenerator struct {
	cmd    domain.GeneratedCommand
	err    error
	called bool
}

func (s *stubGenerator) Name() string { return "stub" }
func (s *stubGenerator) Generate(context.Context, domain.ProcessingRequest) (domain.GeneratedCommand, error) {
	s.called = true
	return s.cmd, s.err
}

type stubFactory struct {
	model     *stubGenerator
	heuristic *stubGenerator
	forErr    error
}

func (s *stubFactory) ForModel(domain.ModelDefinition) (ports.CommandGenerator, error) {
	return s.model, s.forErr
}

func (s *stubFactory) Heuristic() ports.CommandGenerator { return s.heuristic }

type stubValidator struct {
	result domain.ValidationResult
}

func (s stubValidator) Validate(argv []string) domain.ValidationResult {
	if s.result.Valid || s.result.Errors != nil {
		if s.result.Sanitized == nil {
			s.result.Sanitized = argv
		}
		return s.result
	}
	return domain.ValidationResult{Valid: true, Sanitized: argv}
}

type stubBudget struct {
	authorized bool
	cost       float64
}

func (s *stubBudget) EstimateCost(domain.ProcessingRequest) float64 { return s.cost }
func (s *stubBudget) CanAfford(float64) bool                       { return s.authorized }
func (s *stubBudget) Commit(float64)                               {}
func (s *stubBudget) Authorize(domain.ProcessingRequest) (float64, bool) {
	return s.cost, s.authorized
}
func (s *stubBudget) Status() domain.BudgetState { return domain.BudgetState{} }

type stubRunner struct {
	result    domain.ExecutionResult
	execErr   error
	warnings  []string
	verifyErr error
	called    bool
}

func (s *stubRunner) VerifyInputs([]string) ([]string, error) { return s.warnings, s.verifyErr }
func (s *stubRunner) EnsureOutputDir(string) error            { return nil }
func (s *stubRunner) Execute(context.Context, domain.ExecSpec) (domain.ExecutionResult, error) {
	s.called = true
	return s.result, s.execErr
}

type stubBridge struct {
	payload []byte
	err     error
	tool    string
}

func (s *stubBridge) Health(context.Context) error { return s.err }
func (s *stubBridge) Call(_ context.Context, tool string, _ map[string]interface{}) (json.RawMessage, error) {
	s.tool = tool
	if s.err != nil {
		return nil, s.err
	}
	return s.payload, nil
}

type stubRegistry struct {
	err error
}

func (s stubRegistry) List(context.Context) ([]domain.RegistryFile, error) { return nil, s.err }
func (s stubRegistry) GetInfo(context.Context, string) (domain.RegistryFile, error) {
	return domain.RegistryFile{}, s.err
}
func (s stubRegistry) Register(context.Context, string, map[string]string) (domain.RegistryFile, error) {
	return domain.RegistryFile{}, s.err
}

type recordingRegistry struct {
	path string
}

func (r *recordingRegistry) List(context.Context) ([]domain.RegistryFile, error) { return nil, nil }
func (r *recordingRegistry) GetInfo(context.Context, string) (domain.RegistryFile, error) {
	return domain.RegistryFile{}, nil
}
func (r *recordingRegistry) Register(_ context.Context, path string, _ map[string]string) (domain.RegistryFile, error) {
	r.path = path
	return domain.RegistryFile{ID: "1", Path: path}, nil
}
