package security

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// newTestValidator points at a rules path that never exists, so the tests
// always exercise the compiled-in default rules regardless of what lives in
// the developer's home directory.
func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(filepath.Join(t.TempDir(), "rules.yaml"))
	if err != nil {
		t.Fatalf("NewValidator error: %v", err)
	}
	return v
}

func TestValidateAcceptsPlainTrimCommand(t *testing.T) {
	v := newTestValidator(t)

	result := v.Validate([]string{"ffmpeg", "-ss", "2", "-i", "a.mp4", "-t", "5", "-c", "copy", "out.mp4"})
	if !result.Valid {
		t.Fatalf("expected valid, got errors %v", result.Errors)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings %v", result.Warnings)
	}
}

func TestValidateRejectsWrongTool(t *testing.T) {
	v := newTestValidator(t)

	result := v.Validate([]string{"rm", "-rf", "-i", "/"})
	if result.Valid {
		t.Fatal("expected invalid")
	}
}

func TestValidateRejectsDeniedFlagAnywhere(t *testing.T) {
	v := newTestValidator(t)

	argvs := [][]string{
		{"ffmpeg", "-protocol_whitelist", "file,http", "-i", "a.mp4", "out.mp4"},
		{"ffmpeg", "-i", "a.mp4", "-protocol_whitelist", "file", "out.mp4"},
		{"ffmpeg", "-i", "a.mp4", "pipe:1"},
		{"ffmpeg", "-i", "a.mp4", "-f", "rawvideo", "out.raw"},
	}
	for _, argv := range argvs {
		if result := v.Validate(argv); result.Valid {
			t.Fatalf("expected %v to be rejected", argv)
		}
	}
}

func TestValidateRejectsTraversalInput(t *testing.T) {
	v := newTestValidator(t)

	result := v.Validate([]string{"ffmpeg", "-i", "../../etc/passwd", "out.mp4"})
	if result.Valid {
		t.Fatal("expected invalid")
	}

	result = v.Validate([]string{"ffmpeg", "-i", "~/secret.mp4", "out.mp4"})
	if result.Valid {
		t.Fatal("expected home-expansion input to be rejected")
	}
}

func TestValidateRequiresInputSource(t *testing.T) {
	v := newTestValidator(t)

	result := v.Validate([]string{"ffmpeg", "-f", "lavfi", "out.mp4"})
	if result.Valid {
		t.Fatal("expected invalid without -i")
	}
}

func TestValidateOutputChecks(t *testing.T) {
	v := newTestValidator(t)

	if result := v.Validate([]string{"ffmpeg", "-i", "a.mp4", "-an"}); result.Valid {
		t.Fatal("flag-like final token must be an error")
	}
	if result := v.Validate([]string{"ffmpeg", "-i", "a.mp4", "../out.mp4"}); result.Valid {
		t.Fatal("traversal output must be an error")
	}

	// Unknown extension is a warning, not an error.
	result := v.Validate([]string{"ffmpeg", "-i", "a.mp4", "out.xyz"})
	if !result.Valid {
		t.Fatalf("expected valid, got %v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected extension warning")
	}
}

func TestSanitizeInjectsOverwriteExactlyOnce(t *testing.T) {
	v := newTestValidator(t)

	result := v.Validate([]string{"ffmpeg", "-i", "a.mp4", "out.mp4"})
	want := []string{"ffmpeg", "-i", "a.mp4", "-y", "out.mp4"}
	if diff := cmp.Diff(want, result.Sanitized); diff != "" {
		t.Fatalf("sanitized mismatch (-want +got):\n%s", diff)
	}

	// Never duplicate an existing overwrite flag.
	result = v.Validate([]string{"ffmpeg", "-y", "-i", "a.mp4", "out.mp4"})
	count := 0
	for _, token := range result.Sanitized {
		if token == "-y" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one -y, got %d in %v", count, result.Sanitized)
	}

	// An explicit no-overwrite flag also suppresses injection.
	result = v.Validate([]string{"ffmpeg", "-n", "-i", "a.mp4", "out.mp4"})
	for _, token := range result.Sanitized {
		if token == "-y" {
			t.Fatalf("must not inject -y next to -n: %v", result.Sanitized)
		}
	}
}

func TestValidateIsDeterministic(t *testing.T) {
	v := newTestValidator(t)
	argv := []string{"ffmpeg", "-i", "a.mp4", "-protocol_whitelist", "file", "../x.xyz"}

	first := v.Validate(argv)
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, v.Validate(argv)); diff != "" {
			t.Fatalf("validation not deterministic (-first +later):\n%s", diff)
		}
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	v := newTestValidator(t)

	// Wrong tool, denied flag, traversal input: all must be reported at once.
	result := v.Validate([]string{"ffprobe", "-protocol_whitelist", "f", "-i", "../a.mp4", "out.mp4"})
	if result.Valid {
		t.Fatal("expected invalid")
	}
	if len(result.Errors) < 3 {
		t.Fatalf("expected full error set, got %v", result.Errors)
	}
}

func TestDeclaredInputs(t *testing.T) {
	inputs := DeclaredInputs([]string{"ffmpeg", "-i", "a.mp4", "-i", "b.wav", "out.mp4"})
	want := []string{"a.mp4", "b.wav"}
	if diff := cmp.Diff(want, inputs); diff != "" {
		t.Fatalf("inputs mismatch (-want +got):\n%s", diff)
	}
}
