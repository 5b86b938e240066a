package ai

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/doeshing/ffpilot/internal/domain"
)

// commandEnvelope is the strict response schema every model reply must
// satisfy. Pointer fields distinguish "absent" from "false"; a missing field
// is a generation error, never a default.
type commandEnvelope struct {
	Argv                     []string        `json:"argv"`
	Rationale                string          `json:"rationale"`
	Safety                   *safetyEnvelope `json:"safety"`
	Confidence               *float64        `json:"confidence"`
	EstimatedDurationSeconds float64         `json:"estimated_duration_seconds"`
}

type safetyEnvelope struct {
	ValidInputs      *bool `json:"valid_inputs"`
	NoDestructiveOps *bool `json:"no_destructive_ops"`
	OutputPathSafe   *bool `json:"output_path_safe"`
	ResourceLimits   *bool `json:"resource_limits"`
}

// parseEnvelope decodes a model reply into a GeneratedCommand, applying the
// safety self-assessment gate. Every rejection is a uniform generation error
// so the caller falls back without branching on the exact cause. Untyped JSON
// never leaves this function.
func parseEnvelope(content string) (domain.GeneratedCommand, error) {
	raw := extractJSON(content)
	if raw == "" {
		return domain.GeneratedCommand{}, domain.NewError(domain.KindGenerationError,
			"model reply contains no JSON object")
	}

	var envelope commandEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return domain.GeneratedCommand{}, domain.NewError(domain.KindGenerationError,
			"model reply is not valid JSON: %v", err)
	}

	if len(envelope.Argv) == 0 {
		return domain.GeneratedCommand{}, domain.NewError(domain.KindGenerationError,
			"model reply is missing argv")
	}
	if envelope.Confidence == nil {
		return domain.GeneratedCommand{}, domain.NewError(domain.KindGenerationError,
			"model reply is missing confidence")
	}
	if *envelope.Confidence < 0 || *envelope.Confidence > 1 {
		return domain.GeneratedCommand{}, domain.NewError(domain.KindGenerationError,
			"model confidence %f outside [0,1]", *envelope.Confidence)
	}
	safety, err := envelope.Safety.resolve()
	if err != nil {
		return domain.GeneratedCommand{}, err
	}
	// The hard gate: the model must claim safety for itself before static
	// validation independently verifies it.
	if !safety.AllClear() {
		return domain.GeneratedCommand{}, domain.NewError(domain.KindGenerationError,
			"model declined its own safety self-assessment")
	}

	return domain.GeneratedCommand{
		Argv:              envelope.Argv,
		Rationale:         envelope.Rationale,
		Safety:            safety,
		Confidence:        *envelope.Confidence,
		EstimatedDuration: time.Duration(envelope.EstimatedDurationSeconds * float64(time.Second)),
		Provenance:        domain.ProvenanceAI,
	}, nil
}

func (s *safetyEnvelope) resolve() (domain.SafetyAssessment, error) {
	if s == nil {
		return domain.SafetyAssessment{}, domain.NewError(domain.KindGenerationError,
			"model reply is missing the safety assessment")
	}
	fields := map[string]*bool{
		"valid_inputs":       s.ValidInputs,
		"no_destructive_ops": s.NoDestructiveOps,
		"output_path_safe":   s.OutputPathSafe,
		"resource_limits":    s.ResourceLimits,
	}
	for name, value := range fields {
		if value == nil {
			return domain.SafetyAssessment{}, domain.NewError(domain.KindGenerationError,
				"model reply is missing safety field %s", name)
		}
	}
	return domain.SafetyAssessment{
		ValidInputs:      *s.ValidInputs,
		NoDestructiveOps: *s.NoDestructiveOps,
		OutputPathSafe:   *s.OutputPathSafe,
		ResourceLimits:   *s.ResourceLimits,
	}, nil
}

// extractJSON pulls the outermost JSON object out of a reply that may wrap it
// in code fences or prose.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return content[start : end+1]
}
