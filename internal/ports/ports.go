// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the application core and
// external adapters (infrastructure). Following the Ports and Adapters
// pattern, these interfaces allow the pipeline to remain independent of
// specific implementations like HTTP providers, sqlite, or CLI frameworks.
package ports

import (
	"context"
	"encoding/json"

	"github.com/doeshing/ffpilot/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.ffpilot/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// CommandGenerator turns a processing request into a candidate command.
// Implementations are either the AI adapter or the deterministic heuristic
// fallback; callers tell them apart via GeneratedCommand.Provenance.
type CommandGenerator interface {
	Name() string
	Generate(context.Context, domain.ProcessingRequest) (domain.GeneratedCommand, error)
}

// GeneratorFactory builds generator instances based on model definitions.
type GeneratorFactory interface {
	ForModel(domain.ModelDefinition) (CommandGenerator, error)
	Heuristic() CommandGenerator
}

// CommandValidator statically analyzes a candidate argv. Validate is a pure
// function: identical argv yields identical results on repeated calls.
type CommandValidator interface {
	Validate(argv []string) domain.ValidationResult
}

// BudgetTracker is the process-wide daily AI-spend ledger. Authorize runs
// estimate, afford check, and commit as one critical section so two
// concurrent requests cannot jointly exceed the daily cap.
type BudgetTracker interface {
	EstimateCost(domain.ProcessingRequest) float64
	CanAfford(cost float64) bool
	Commit(cost float64)
	Authorize(domain.ProcessingRequest) (cost float64, ok bool)
	Status() domain.BudgetState
}

// Executor runs the external media tool under timeout escalation.
// VerifyInputs returns advisory size warnings; a missing or irregular input
// is the error.
type Executor interface {
	VerifyInputs(argv []string) ([]string, error)
	EnsureOutputDir(outputPath string) error
	Execute(ctx context.Context, spec domain.ExecSpec) (domain.ExecutionResult, error)
}

// MediaProber is the read-only inspection oracle.
type MediaProber interface {
	Probe(ctx context.Context, path string) (domain.MediaInfo, error)
}

// Bridge reaches the separate, richer processing engine over a subprocess
// JSON contract. Health must be probed before first use so unavailability is
// a distinct, recoverable status.
type Bridge interface {
	Health(ctx context.Context) error
	Call(ctx context.Context, tool string, params map[string]interface{}) (json.RawMessage, error)
}

// Registry is the external file registry collaborator. Its unavailability
// degrades registration to a logged warning, never a request failure.
type Registry interface {
	List(ctx context.Context) ([]domain.RegistryFile, error)
	GetInfo(ctx context.Context, id string) (domain.RegistryFile, error)
	Register(ctx context.Context, path string, metadata map[string]string) (domain.RegistryFile, error)
}

// RunLedger persists pipeline run records for auditing.
type RunLedger interface {
	Save(domain.RunRecord) error
	Records(limit int, search string) ([]domain.RunRecord, error)
	Clear() error
}

// Logger provides structured logging abstraction for the application layer.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
