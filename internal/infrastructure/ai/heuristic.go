package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/doeshing/ffpilot/internal/domain"
	"github.com/doeshing/ffpilot/internal/ports"
)

// Heuristic is the deterministic, table-driven fallback generator. It makes
// zero external calls and never fails for a well-formed request; an
// unrecognized operation degrades to a generic stream copy.
type Heuristic struct{}

// NewHeuristic builds the fallback generator.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

func (h *Heuristic) Name() string {
	return "heuristic"
}

func (h *Heuristic) Generate(_ context.Context, req domain.ProcessingRequest) (domain.GeneratedCommand, error) {
	if len(req.Inputs) == 0 {
		return domain.GeneratedCommand{}, domain.NewError(domain.KindGenerationError,
			"request has no inputs")
	}
	if req.OutputPath == "" {
		return domain.GeneratedCommand{}, domain.NewError(domain.KindGenerationError,
			"request has no output path")
	}

	argv, rationale := buildTemplate(req)
	// Forced overwrite, output path last.
	argv = append(argv, domain.OverwriteFlag, req.OutputPath)

	return domain.GeneratedCommand{
		Argv:      argv,
		Rationale: rationale,
		Safety: domain.SafetyAssessment{
			ValidInputs:      true,
			NoDestructiveOps: true,
			OutputPathSafe:   true,
			ResourceLimits:   true,
		},
		Confidence: domain.HeuristicConfidence,
		Provenance: domain.ProvenanceHeuristic,
	}, nil
}

func buildTemplate(req domain.ProcessingRequest) ([]string, string) {
	input := req.Inputs[0]
	argv := []string{domain.MediaToolName}

	switch strings.ToLower(req.Operation) {
	case "trim", "cut":
		start := paramString(req.Params, "start", "0")
		argv = append(argv, "-ss", start, "-i", input)
		if duration := paramString(req.Params, "duration", ""); duration != "" {
			argv = append(argv, "-t", duration)
		}
		argv = append(argv, "-c", "copy")
		return argv, "Trim via seek and stream copy"

	case "scale", "resize":
		width := paramString(req.Params, "width", "-2")
		height := paramString(req.Params, "height", "-2")
		argv = append(argv, "-i", input, "-vf", fmt.Sprintf("scale=%s:%s", width, height))
		return argv, "Scale with a single video filter"

	case "extract_audio", "audio":
		argv = append(argv, "-i", input, "-vn", "-acodec", "copy")
		return argv, "Drop video, stream-copy audio"

	case "thumbnail", "frame":
		at := paramString(req.Params, "at", "1")
		argv = append(argv, "-ss", at, "-i", input, "-vframes", "1")
		return argv, "Single frame grab"

	case "gif":
		fps := paramString(req.Params, "fps", "12")
		width := paramString(req.Params, "width", "480")
		argv = append(argv, "-i", input, "-vf", fmt.Sprintf("fps=%s,scale=%s:-1", fps, width))
		return argv, "Animated GIF via fps and scale filters"

	case "compress":
		crf := paramString(req.Params, "crf", "28")
		argv = append(argv, "-i", input, "-vcodec", "libx264", "-crf", crf)
		return argv, "Re-encode with a higher CRF"

	case "mute":
		argv = append(argv, "-i", input, "-an", "-c:v", "copy")
		return argv, "Strip audio, stream-copy video"

	case "convert", "remux":
		argv = append(argv, "-i", input)
		return argv, "Container conversion, codecs chosen by the tool"

	case "concat":
		argv = []string{domain.MediaToolName}
		for _, in := range req.Inputs {
			argv = append(argv, "-i", in)
		}
		argv = append(argv, "-filter_complex", fmt.Sprintf("concat=n=%d:v=1:a=1", len(req.Inputs)))
		return argv, "Concatenate via the concat filter"

	default:
		argv = append(argv, "-i", input, "-c", "copy")
		return argv, fmt.Sprintf("warning: unrecognized operation %q, degraded to generic stream copy", req.Operation)
	}
}

func paramString(params map[string]interface{}, key, fallback string) string {
	if params == nil {
		return fallback
	}
	value, ok := params[key]
	if !ok {
		return fallback
	}
	switch v := value.(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprint(v)
	}
}

var _ ports.CommandGenerator = (*Heuristic)(nil)
