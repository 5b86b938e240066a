package domain

// Config mirrors ~/.ffpilot/config.yaml.
type Config struct {
	ConfigFormatVersion string            `yaml:"config_format_version"`
	Preferences         Preferences       `yaml:"preferences"`
	Models              []ModelDefinition `yaml:"models"`
	Budget              BudgetSettings    `yaml:"budget"`
	Validator           ValidatorSettings `yaml:"validator"`
	Executor            ExecutorSettings  `yaml:"executor"`
	Bridge              BridgeSettings    `yaml:"bridge"`
	Registry            RegistrySettings  `yaml:"registry"`
	History             HistorySettings   `yaml:"history"`
}

// Preferences captures user level toggles.
type Preferences struct {
	DefaultModel     string `yaml:"default_model"`
	Verbose          bool   `yaml:"verbose"`
	GeneratorTimeout int    `yaml:"generator_timeout"`
	ProbeInputs      bool   `yaml:"probe_inputs"`
}

// BudgetSettings caps daily AI-assisted generation spend.
type BudgetSettings struct {
	DailyLimitUSD float64 `yaml:"daily_limit_usd"`
}

// ValidatorSettings points at the externally overridable rules file.
// Validation is on unless explicitly disabled, so a config that omits this
// section keeps the safety gate.
type ValidatorSettings struct {
	Disabled  bool   `yaml:"disabled"`
	RulesFile string `yaml:"rules_file"`
}

// ExecutorSettings controls how the media tool runs.
type ExecutorSettings struct {
	TimeoutSeconds  int   `yaml:"timeout"`
	GraceSeconds    int   `yaml:"grace_window"`
	MaxCaptureBytes int   `yaml:"max_capture_bytes"`
	LargeInputBytes int64 `yaml:"large_input_bytes"`
}

// BridgeSettings describes how to reach the delegation engine. Operations
// lists request operations routed to the engine instead of the local
// generate/validate/execute pipeline.
type BridgeSettings struct {
	Command        string   `yaml:"command"`
	Args           []string `yaml:"args"`
	TimeoutSeconds int      `yaml:"timeout"`
	Operations     []string `yaml:"operations"`
}

// RegistrySettings configures the file registry collaborator.
type RegistrySettings struct {
	Endpoint       string `yaml:"endpoint"`
	TimeoutSeconds int    `yaml:"timeout"`
}

// HistorySettings configures the run ledger.
type HistorySettings struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days"`
}
