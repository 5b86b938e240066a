// Package domain defines core business entities and value objects for ffpilot.
//
// The domain layer is independent of infrastructure concerns and represents
// pure business logic and data structures.
package domain

// ModelDefinition describes an AI provider configuration declared in the
// config file. Each model represents a specific service endpoint with its
// authentication and generation parameters.
type ModelDefinition struct {
	Name        string          `yaml:"name"`
	Endpoint    string          `yaml:"endpoint"`
	AuthEnvVar  string          `yaml:"auth_env_var"`
	OrgEnvVar   string          `yaml:"org_env_var"`
	ModelID     string          `yaml:"model_id"`
	MaxTokens   int             `yaml:"max_tokens"`
	Temperature float64         `yaml:"temperature"`
	Prompt      []PromptMessage `yaml:"prompt"`
}

// PromptMessage follows the role/content pair required by most chat APIs.
type PromptMessage struct {
	Role    string `yaml:"role"`
	Content string `yaml:"content"`
}

// ProviderKind identifies which wire format a model endpoint speaks.
type ProviderKind string

const (
	ProviderKindAnthropic ProviderKind = "anthropic"
	ProviderKindOpenAI    ProviderKind = "openai"
	ProviderKindOllama    ProviderKind = "ollama"
	ProviderKindUnknown   ProviderKind = "unknown"
)
