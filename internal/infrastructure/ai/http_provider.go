package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/doeshing/ffpilot/internal/domain"
	"github.com/doeshing/ffpilot/internal/ports"
)

type httpGenerator struct {
	name       string
	model      domain.ModelDefinition
	httpClient *http.Client
	adapter    providerAdapter
}

type providerAdapter struct {
	buildRequest  func(domain.ModelDefinition, []domain.PromptMessage) ([]byte, error)
	parseResponse func([]byte) (string, error)
	setHeaders    func(*http.Request, domain.ModelDefinition) error
}

func newHTTPGenerator(name string, model domain.ModelDefinition, client *http.Client, adapter providerAdapter) ports.CommandGenerator {
	return &httpGenerator{
		name:       name,
		model:      model,
		httpClient: client,
		adapter:    adapter,
	}
}

func (g *httpGenerator) Name() string {
	return g.name
}

// Generate issues exactly one model call and funnels every failure mode
// (transport, bad status, malformed JSON, missing field, refused safety
// gate) into a uniform generation error.
func (g *httpGenerator) Generate(ctx context.Context, req domain.ProcessingRequest) (domain.GeneratedCommand, error) {
	messages, err := renderMessages(g.model, req)
	if err != nil {
		return domain.GeneratedCommand{}, domain.NewError(domain.KindGenerationError,
			"render prompt: %v", err)
	}

	requestBody, err := g.adapter.buildRequest(g.model, messages)
	if err != nil {
		return domain.GeneratedCommand{}, domain.NewError(domain.KindGenerationError,
			"build request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.model.Endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return domain.GeneratedCommand{}, domain.NewError(domain.KindGenerationError,
			"build request: %v", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	if err := g.adapter.setHeaders(httpReq, g.model); err != nil {
		return domain.GeneratedCommand{}, domain.NewError(domain.KindGenerationError,
			"%v", err)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return domain.GeneratedCommand{}, domain.NewError(domain.KindGenerationError,
			"%s transport: %v", g.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return domain.GeneratedCommand{}, domain.NewError(domain.KindGenerationError,
			"%s: %s", g.name, resp.Status)
	}

	var responseBody bytes.Buffer
	if _, err := responseBody.ReadFrom(resp.Body); err != nil {
		return domain.GeneratedCommand{}, domain.NewError(domain.KindGenerationError,
			"read response: %v", err)
	}

	content, err := g.adapter.parseResponse(responseBody.Bytes())
	if err != nil {
		return domain.GeneratedCommand{}, domain.NewError(domain.KindGenerationError,
			"parse response: %v", err)
	}

	return parseEnvelope(content)
}

func anthropicAdapter() providerAdapter {
	return providerAdapter{
		buildRequest:  buildAnthropicRequest,
		parseResponse: parseAnthropicResponse,
		setHeaders:    setAnthropicHeaders,
	}
}

func openaiAdapter() providerAdapter {
	return providerAdapter{
		buildRequest:  buildChatCompletionRequest,
		parseResponse: parseChatCompletionResponse,
		setHeaders:    setOpenAIHeaders,
	}
}

func ollamaAdapter() providerAdapter {
	return providerAdapter{
		buildRequest:  buildChatCompletionRequest,
		parseResponse: parseChatCompletionResponse,
		setHeaders:    setOllamaHeaders,
	}
}

func buildAnthropicRequest(model domain.ModelDefinition, messages []domain.PromptMessage) ([]byte, error) {
	systemPrompt, chatMessages := splitSystemMessages(messages)

	request := map[string]interface{}{
		"model":       model.ModelID,
		"max_tokens":  defaultInt(model.MaxTokens, domain.DefaultMaxTokens),
		"temperature": temperature(model),
		"messages":    chatMessages,
	}
	if systemPrompt != "" {
		request["system"] = systemPrompt
	}

	return json.Marshal(request)
}

func splitSystemMessages(messages []domain.PromptMessage) (string, []map[string]interface{}) {
	var systemLines []string
	var chatMessages []map[string]interface{}

	for _, msg := range messages {
		if strings.EqualFold(msg.Role, "system") {
			systemLines = append(systemLines, msg.Content)
			continue
		}
		chatMessages = append(chatMessages, map[string]interface{}{
			"role": msg.Role,
			"content": []map[string]string{
				{"type": "text", "text": msg.Content},
			},
		})
	}

	return strings.TrimSpace(strings.Join(systemLines, "\n")), chatMessages
}

func parseAnthropicResponse(body []byte) (string, error) {
	var response struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return "", err
	}

	if len(response.Content) == 0 {
		return "", nil
	}
	return response.Content[0].Text, nil
}

func setAnthropicHeaders(req *http.Request, model domain.ModelDefinition) error {
	apiKey := getEnv(model.AuthEnvVar, "ANTHROPIC_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("missing API key: set %s or ANTHROPIC_API_KEY", model.AuthEnvVar)
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	return nil
}

func buildChatCompletionRequest(model domain.ModelDefinition, messages []domain.PromptMessage) ([]byte, error) {
	chatMessages := make([]map[string]string, 0, len(messages))
	for _, msg := range messages {
		chatMessages = append(chatMessages, map[string]string{
			"role":    strings.ToLower(msg.Role),
			"content": msg.Content,
		})
	}

	request := map[string]interface{}{
		"model":       model.ModelID,
		"messages":    chatMessages,
		"temperature": temperature(model),
	}
	if model.MaxTokens > 0 {
		request["max_tokens"] = model.MaxTokens
	}

	return json.Marshal(request)
}

func parseChatCompletionResponse(body []byte) (string, error) {
	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return "", err
	}

	if len(response.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

func setOpenAIHeaders(req *http.Request, model domain.ModelDefinition) error {
	apiKey := getEnv(model.AuthEnvVar, "OPENAI_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("missing API key: set %s or OPENAI_API_KEY", model.AuthEnvVar)
	}
	req.Header.Set("authorization", "Bearer "+apiKey)

	if org := getEnv(model.OrgEnvVar, "OPENAI_ORG_ID"); org != "" {
		req.Header.Set("OpenAI-Organization", org)
	}
	return nil
}

func setOllamaHeaders(req *http.Request, model domain.ModelDefinition) error {
	return nil
}

func temperature(model domain.ModelDefinition) float64 {
	if model.Temperature > 0 {
		return model.Temperature
	}
	return domain.GenerationTemperature
}

func getEnv(primary, fallback string) string {
	if primary != "" {
		if value := os.Getenv(primary); value != "" {
			return value
		}
	}
	if fallback != "" {
		return os.Getenv(fallback)
	}
	return ""
}

func defaultInt(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}
