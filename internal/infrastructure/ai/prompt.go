package ai

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/doeshing/ffpilot/internal/domain"
)

// systemInstruction fixes the strict JSON response schema. Kept as one block
// so every provider sends the identical contract.
const systemInstruction = `You generate a single ffmpeg command for a media-processing request.
Reply with ONE JSON object and nothing else. No markdown, no prose, no code fences.

Schema:
{
  "argv": ["ffmpeg", ...],                 // full token list, output path LAST
  "rationale": "one sentence",
  "safety": {
    "valid_inputs": bool,                  // every input is a declared request input
    "no_destructive_ops": bool,            // nothing outside writing the one output file
    "output_path_safe": bool,              // output path exactly as requested, no traversal
    "resource_limits": bool                // bounded work, no unbounded streams or loops
  },
  "confidence": 0.0-1.0,
  "estimated_duration_seconds": number     // optional, 0 when unknown
}

Rules:
- argv[0] must be "ffmpeg"; include -y; never use pipe:, /dev/*, or protocol whitelist flags.
- Read only the listed inputs, write only the requested output path.
- If you cannot satisfy a rule, set the matching safety field to false.`

// renderMessages expands model prompt templates with request data and ensures
// a user message exists.
func renderMessages(model domain.ModelDefinition, req domain.ProcessingRequest) ([]domain.PromptMessage, error) {
	data := buildTemplateData(req)
	messages := model.Prompt
	if len(messages) == 0 {
		messages = defaultTemplateMessages()
	}

	rendered := make([]domain.PromptMessage, 0, len(messages))
	for _, msg := range messages {
		content, err := executeTemplate(msg.Content, data)
		if err != nil {
			return nil, err
		}
		rendered = append(rendered, domain.PromptMessage{
			Role:    msg.Role,
			Content: strings.TrimSpace(content),
		})
	}

	if !hasUserMessage(rendered) {
		fallback, err := executeTemplate("{{.Request}}", data)
		if err != nil {
			return nil, err
		}
		rendered = append(rendered, domain.PromptMessage{
			Role:    "user",
			Content: strings.TrimSpace(fallback),
		})
	}

	return rendered, nil
}

type templateData struct {
	Schema      string
	Request     string
	Operation   string
	Inputs      string
	Output      string
	Params      string
	Constraints string
	Media       string
}

func buildTemplateData(req domain.ProcessingRequest) templateData {
	return templateData{
		Schema:      systemInstruction,
		Request:     requestSnippet(req),
		Operation:   req.Operation,
		Inputs:      strings.Join(req.Inputs, ", "),
		Output:      req.OutputPath,
		Params:      paramsSummary(req.Params),
		Constraints: constraintsSummary(req.Constraints),
		Media:       req.Description,
	}
}

func requestSnippet(req domain.ProcessingRequest) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("Operation: %s", req.Operation))
	lines = append(lines, fmt.Sprintf("Inputs: %s", strings.Join(req.Inputs, ", ")))
	lines = append(lines, fmt.Sprintf("Output: %s", req.OutputPath))
	if params := paramsSummary(req.Params); params != "" {
		lines = append(lines, fmt.Sprintf("Parameters: %s", params))
	}
	if constraints := constraintsSummary(req.Constraints); constraints != "" {
		lines = append(lines, fmt.Sprintf("Constraints: %s", constraints))
	}
	if req.Description != "" {
		lines = append(lines, fmt.Sprintf("Media info: %s", req.Description))
	}
	return strings.Join(lines, "\n")
}

func paramsSummary(params map[string]interface{}) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, params[key]))
	}
	return strings.Join(parts, ", ")
}

func constraintsSummary(c *domain.Constraints) string {
	if c == nil {
		return ""
	}
	var parts []string
	if c.MaxDuration > 0 {
		parts = append(parts, fmt.Sprintf("max duration %s", c.MaxDuration.Round(time.Second)))
	}
	if c.MaxOutputBytes > 0 {
		parts = append(parts, fmt.Sprintf("max output %d bytes", c.MaxOutputBytes))
	}
	if len(c.AllowedFormats) > 0 {
		parts = append(parts, fmt.Sprintf("formats %s", strings.Join(c.AllowedFormats, "/")))
	}
	return strings.Join(parts, ", ")
}

func executeTemplate(raw string, data templateData) (string, error) {
	tmpl, err := template.New("prompt").Parse(raw)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func hasUserMessage(messages []domain.PromptMessage) bool {
	for _, msg := range messages {
		if strings.EqualFold(msg.Role, "user") {
			return true
		}
	}
	return false
}

func defaultTemplateMessages() []domain.PromptMessage {
	return []domain.PromptMessage{
		{Role: "system", Content: "{{.Schema}}"},
		{Role: "user", Content: "{{.Request}}"},
	}
}
