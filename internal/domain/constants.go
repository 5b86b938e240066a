package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
)

// External tool constants
const (
	// MediaToolName is the expected argv[0] of every generated command
	MediaToolName = "ffmpeg"
	// ProbeToolName is the read-only media inspection tool
	ProbeToolName = "ffprobe"
	// OverwriteFlag forces non-interactive overwrite so the tool never
	// blocks on a prompt
	OverwriteFlag = "-y"
	// NoOverwriteFlag refuses to overwrite; its presence suppresses injection
	NoOverwriteFlag = "-n"
)

// Timeout and duration constants
const (
	// DefaultExecutionTimeout is the hard wall-clock ceiling for the media tool
	DefaultExecutionTimeout = 5 * time.Minute
	// DefaultGraceWindow is how long the executor waits between the
	// graceful-terminate signal and the force kill
	DefaultGraceWindow = 5 * time.Second
	// DefaultGeneratorTimeout bounds the language-model call, distinct from
	// the execution timeout
	DefaultGeneratorTimeout = 30 * time.Second
	// DefaultBridgeTimeout bounds a single delegation subprocess call
	DefaultBridgeTimeout = 60 * time.Second
	// DefaultRegistryTimeout bounds one registry HTTP call
	DefaultRegistryTimeout = 10 * time.Second
)

// Limit constants
const (
	// MaxCaptureBytes bounds stdout/stderr capture per stream
	MaxCaptureBytes = 64 * 1024
	// LargeInputBytes is the input size above which verification warns
	LargeInputBytes = 2 * 1024 * 1024 * 1024
	// MinCommandTokens is the minimum plausible argv length (tool, -i, input, output)
	MinCommandTokens = 4
	// StderrSampleEvery controls progress-line sampling during capture
	StderrSampleEvery = 20
)

// Budget constants, calibrated against the published Sonnet price tier.
const (
	// DefaultDailyBudgetUSD caps AI-assisted generation spend per UTC day
	DefaultDailyBudgetUSD = 5.0
	// InputTokenPriceUSD is the price per input token
	InputTokenPriceUSD = 3.0 / 1_000_000
	// OutputTokenPriceUSD is the price per output token
	OutputTokenPriceUSD = 15.0 / 1_000_000
	// CharsPerToken is the rough character-to-token ratio for estimates
	CharsPerToken = 4
	// PromptOverheadTokens accounts for the fixed system instruction
	PromptOverheadTokens = 600
	// ResponseTokensEstimate is the assumed size of a schema-conforming reply
	ResponseTokensEstimate = 300
	// TokensPerInputArtifact covers per-file metadata in the prompt
	TokensPerInputArtifact = 80
)

// Generation constants
const (
	// GenerationTemperature keeps sampling low so the JSON schema stays stable
	GenerationTemperature = 0.1
	// HeuristicConfidence marks fallback provenance; it sits outside the
	// AI confidence range [0,1] so callers can tell the two apart without
	// inspecting rationale text
	HeuristicConfidence = -1.0
	// LowConfidenceThreshold only triggers a log warning, never a gate
	LowConfidenceThreshold = 0.5
	// DefaultMaxTokens is the model response token ceiling
	DefaultMaxTokens = 1024
)

// History constants
const (
	// DefaultHistoryLimit is the default number of ledger rows to display
	DefaultHistoryLimit = 20
	// DefaultHistoryRetainDays is how long ledger rows are kept
	DefaultHistoryRetainDays = 30
)

// Time formats
const (
	// TimestampFormat is the standard timestamp format
	TimestampFormat = time.RFC3339
	// BudgetDateFormat is the UTC calendar-day key for the daily reset
	BudgetDateFormat = "2006-01-02"
)
