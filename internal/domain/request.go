package domain

import (
	"context"
	"time"
)

// ProcessingRequest captures a single media-processing intent after path
// resolution. It is created per call, never mutated, and discarded once the
// pipeline answers.
type ProcessingRequest struct {
	ID          string
	Operation   string
	Inputs      []string
	OutputPath  string
	Params      map[string]interface{}
	Constraints *Constraints
	Description string
}

// Constraints bound what an acceptable output looks like.
type Constraints struct {
	MaxDuration    time.Duration
	MaxOutputBytes int64
	AllowedFormats []string
}

// SafetyAssessment is the generator's own claim about its command. All four
// fields must be true before a command is even considered a candidate; static
// validation then verifies the claim independently.
type SafetyAssessment struct {
	ValidInputs      bool
	NoDestructiveOps bool
	OutputPathSafe   bool
	ResourceLimits   bool
}

// AllClear reports whether every self-assessment field passed.
func (s SafetyAssessment) AllClear() bool {
	return s.ValidInputs && s.NoDestructiveOps && s.OutputPathSafe && s.ResourceLimits
}

// Provenance identifies which generator produced a command.
type Provenance string

const (
	ProvenanceAI        Provenance = "ai"
	ProvenanceHeuristic Provenance = "heuristic"
)

// GeneratedCommand is a candidate invocation of the media tool. It is never
// persisted and never executed before validation.
type GeneratedCommand struct {
	Argv              []string
	Rationale         string
	Safety            SafetyAssessment
	Confidence        float64
	EstimatedDuration time.Duration
	Provenance        Provenance
}

// ValidationResult is a pure function of a candidate argv. Warnings never
// affect validity.
type ValidationResult struct {
	Valid     bool
	Errors    []string
	Warnings  []string
	Sanitized []string
}

// ExitClass partitions execution outcomes. SpawnError is deliberately kept
// apart from a bad exit code: a missing binary is not a failed encode.
type ExitClass string

const (
	ExitCompleted  ExitClass = "completed"
	ExitNonZero    ExitClass = "non_zero_exit"
	ExitTimedOut   ExitClass = "timed_out"
	ExitSpawnError ExitClass = "spawn_error"
)

// ExecutionResult wraps what happened when the external tool ran. OutputPath
// is set only when Success is true, and at that moment the file exists on
// disk.
type ExecutionResult struct {
	Success    bool
	OutputPath string
	Duration   time.Duration
	Exit       ExitClass
	ExitCode   int
	Stdout     string
	Stderr     string
	Error      string
}

// ExecSpec is the executor's input: the sanitized argv plus the output path
// whose existence proves success. An empty OutputPath skips the existence
// check (version probes, no-op calls).
type ExecSpec struct {
	Argv       []string
	OutputPath string
	Timeout    time.Duration
}

// BudgetState is a point-in-time snapshot of the daily AI-spend ledger.
type BudgetState struct {
	DailySpendUSD float64
	DailyLimitUSD float64
	LastReset     string
	Requests      int
}

// PipelineResult is the canonical response propagated back to callers.
// Delegated runs skip the local pipeline entirely and carry the engine's raw
// payload instead of an ExecutionResult.
type PipelineResult struct {
	RequestID       string
	Command         GeneratedCommand
	Validation      ValidationResult
	Execution       *ExecutionResult
	Registered      bool
	Delegated       bool
	DelegatePayload []byte
	Warnings        []string
}

// PipelineService exposes the use-case boundary for handling one request.
type PipelineService interface {
	Run(context.Context, ProcessingRequest) (PipelineResult, error)
}
