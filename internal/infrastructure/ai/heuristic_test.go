package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/doeshing/ffpilot/internal/domain"
)

func TestHeuristicTrimCommand(t *testing.T) {
	h := NewHeuristic()

	cmd, err := h.Generate(context.Background(), domain.ProcessingRequest{
		Operation:  "trim",
		Inputs:     []string{"a.mp4"},
		OutputPath: "out.mp4",
		Params:     map[string]interface{}{"start": 2, "duration": 5},
	})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}

	want := []string{"ffmpeg", "-ss", "2", "-i", "a.mp4", "-t", "5", "-c", "copy", "-y", "out.mp4"}
	if diff := cmp.Diff(want, cmd.Argv); diff != "" {
		t.Fatalf("argv mismatch (-want +got):\n%s", diff)
	}
	if cmd.Confidence != domain.HeuristicConfidence {
		t.Fatalf("confidence = %f, want heuristic constant", cmd.Confidence)
	}
	if cmd.Provenance != domain.ProvenanceHeuristic {
		t.Fatalf("provenance = %q", cmd.Provenance)
	}
}

func TestHeuristicIsDeterministic(t *testing.T) {
	h := NewHeuristic()
	req := domain.ProcessingRequest{
		Operation:  "scale",
		Inputs:     []string{"a.mp4"},
		OutputPath: "out.mp4",
		Params:     map[string]interface{}{"width": 1280, "height": 720},
	}

	first, err := h.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := h.Generate(context.Background(), req)
		if err != nil {
			t.Fatalf("Generate error: %v", err)
		}
		if diff := cmp.Diff(first.Argv, again.Argv); diff != "" {
			t.Fatalf("heuristic not deterministic:\n%s", diff)
		}
	}
}

func TestHeuristicAlwaysEndsWithOverwriteThenOutput(t *testing.T) {
	h := NewHeuristic()
	for _, op := range []string{"trim", "scale", "extract_audio", "thumbnail", "gif", "compress", "mute", "convert", "concat"} {
		cmd, err := h.Generate(context.Background(), domain.ProcessingRequest{
			Operation:  op,
			Inputs:     []string{"a.mp4", "b.mp4"},
			OutputPath: "out.mp4",
		})
		if err != nil {
			t.Fatalf("%s: Generate error: %v", op, err)
		}
		n := len(cmd.Argv)
		if cmd.Argv[n-2] != domain.OverwriteFlag || cmd.Argv[n-1] != "out.mp4" {
			t.Fatalf("%s: expected ...-y out.mp4, got %v", op, cmd.Argv)
		}
		if cmd.Argv[0] != domain.MediaToolName {
			t.Fatalf("%s: argv[0] = %q", op, cmd.Argv[0])
		}
	}
}

func TestHeuristicUnknownOperationDegradesToStreamCopy(t *testing.T) {
	h := NewHeuristic()

	cmd, err := h.Generate(context.Background(), domain.ProcessingRequest{
		Operation:  "holographic_upscale",
		Inputs:     []string{"a.mp4"},
		OutputPath: "out.mp4",
	})
	if err != nil {
		t.Fatalf("unknown operation must not fail: %v", err)
	}
	joined := strings.Join(cmd.Argv, " ")
	if !strings.Contains(joined, "-c copy") {
		t.Fatalf("expected stream copy, got %v", cmd.Argv)
	}
	if !strings.Contains(cmd.Rationale, "warning") {
		t.Fatalf("expected degradation warning in rationale, got %q", cmd.Rationale)
	}
}

func TestHeuristicRejectsMalformedRequest(t *testing.T) {
	h := NewHeuristic()

	if _, err := h.Generate(context.Background(), domain.ProcessingRequest{Operation: "trim"}); err == nil {
		t.Fatal("expected error without inputs")
	}
	if _, err := h.Generate(context.Background(), domain.ProcessingRequest{
		Operation: "trim", Inputs: []string{"a.mp4"},
	}); err == nil {
		t.Fatal("expected error without output path")
	}
}
