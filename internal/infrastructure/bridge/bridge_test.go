package bridge

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/doeshing/ffpilot/internal/domain"
	"github.com/doeshing/ffpilot/internal/pkg/logger"
)

func fakeEngine(script string) *Engine {
	return NewEngine(domain.BridgeSettings{
		Command:        "sh",
		Args:           []string{"-c", script},
		TimeoutSeconds: 5,
	}, logger.NewStd(false))
}

func TestCallParsesSuccessPayload(t *testing.T) {
	engine := fakeEngine(`cat >/dev/null; echo '{"result": {"frames": 42}}'`)

	raw, err := engine.Call(context.Background(), "analyze", map[string]interface{}{"path": "a.mp4"})
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}

	var result struct {
		Frames int `json:"frames"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Frames != 42 {
		t.Fatalf("frames = %d, want 42", result.Frames)
	}
}

func TestCallTranslatesErrorEnvelope(t *testing.T) {
	engine := fakeEngine(`cat >/dev/null; echo '{"error": "unsupported tool"}'`)

	_, err := engine.Call(context.Background(), "nope", nil)
	if domain.KindOf(err) != domain.KindBridgeError {
		t.Fatalf("expected KindBridgeError, got %v", err)
	}
}

func TestCallRejectsNonJSONReply(t *testing.T) {
	engine := fakeEngine(`cat >/dev/null; echo 'Traceback (most recent call last)'`)

	_, err := engine.Call(context.Background(), "analyze", nil)
	if domain.KindOf(err) != domain.KindBridgeError {
		t.Fatalf("expected KindBridgeError, got %v", err)
	}
}

func TestHealthReportsUnavailableEngineDistinctly(t *testing.T) {
	engine := NewEngine(domain.BridgeSettings{
		Command: "/nonexistent/engine-binary",
	}, logger.NewStd(false))

	err := engine.Health(context.Background())
	if domain.KindOf(err) != domain.KindBridgeUnavailable {
		t.Fatalf("expected KindBridgeUnavailable, got %v", err)
	}

	// Calls after a failed probe return the same recoverable status.
	if _, err := engine.Call(context.Background(), "analyze", nil); domain.KindOf(err) != domain.KindBridgeUnavailable {
		t.Fatalf("expected KindBridgeUnavailable, got %v", err)
	}
}

func TestHealthRetriesAfterCallerContextFailure(t *testing.T) {
	engine := fakeEngine(`cat >/dev/null; echo '{"result": {}}'`)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if err := engine.Health(cancelled); domain.KindOf(err) != domain.KindBridgeUnavailable {
		t.Fatalf("expected KindBridgeUnavailable, got %v", err)
	}

	// A healthy engine must recover once a caller arrives with a live
	// context; the aborted probe says nothing about the engine.
	if _, err := engine.Call(context.Background(), "analyze", nil); err != nil {
		t.Fatalf("Call after aborted probe: %v", err)
	}
}

func TestHealthWithoutConfiguredEngine(t *testing.T) {
	engine := NewEngine(domain.BridgeSettings{}, logger.NewStd(false))

	if err := engine.Health(context.Background()); domain.KindOf(err) != domain.KindBridgeUnavailable {
		t.Fatalf("expected KindBridgeUnavailable, got %v", err)
	}
}
