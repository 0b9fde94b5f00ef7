package api

import (
	"fmt"
	"strings"
)

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxTaskSize       int
	MaxCodeSize       int
	MaxTranscriptSize int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxTaskSize:       64 * 1024,        // 64KB
		MaxCodeSize:       1024 * 1024,      // 1MB
		MaxTranscriptSize: 10 * 1024 * 1024, // 10MB
	}
}

// ValidateTask checks a GenerationTask. Unknown backend names are reported
// later by the backend registry as configuration errors.
func ValidateTask(task GenerationTask, cfg ValidationConfig) *Error {
	if strings.TrimSpace(task.Task) == "" {
		return NewInvalidRequestError("task", "task is required")
	}
	if cfg.MaxTaskSize > 0 && len(task.Task) > cfg.MaxTaskSize {
		return NewInvalidRequestError("task",
			fmt.Sprintf("task exceeds maximum size of %d bytes", cfg.MaxTaskSize))
	}
	return nil
}

// ValidateVerifyRequest checks an inbound verify-only request.
func ValidateVerifyRequest(req *VerifyRequest, cfg ValidationConfig) *Error {
	if strings.TrimSpace(req.Code) == "" {
		return NewInvalidRequestError("code", "code is required")
	}
	if cfg.MaxCodeSize > 0 && len(req.Code) > cfg.MaxCodeSize {
		return NewInvalidRequestError("code",
			fmt.Sprintf("code exceeds maximum size of %d bytes", cfg.MaxCodeSize))
	}
	if req.Language != "" && ParseLanguage(req.Language) == LanguageUnknown &&
		!strings.EqualFold(req.Language, string(LanguageUnknown)) {
		return NewInvalidRequestError("language",
			fmt.Sprintf("unknown language %q", req.Language))
	}
	return nil
}

// ValidateSummarizeRequest checks an inbound summarization request.
func ValidateSummarizeRequest(req *SummarizeRequest, cfg ValidationConfig) *Error {
	if strings.TrimSpace(req.Transcript) == "" {
		return NewInvalidRequestError("transcript", "transcript is required")
	}
	if cfg.MaxTranscriptSize > 0 && len(req.Transcript) > cfg.MaxTranscriptSize {
		return NewInvalidRequestError("transcript",
			fmt.Sprintf("transcript exceeds maximum size of %d bytes", cfg.MaxTranscriptSize))
	}
	return nil
}
