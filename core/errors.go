package core

import (
	"errors"
	"fmt"
)

// ConfigError represents a configuration-related error with actionable instructions.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeMissingAuth   = "MISSING_AUTH"
	ErrCodeMissingConfig = "MISSING_CONFIG"
	ErrCodeInvalidValue  = "INVALID_VALUE"
	ErrCodeBrandFile     = "BRAND_FILE"
)

// ErrMissingAuth returns an error for missing provider credentials.
func ErrMissingAuth(service string) *ConfigError {
	var action string
	switch service {
	case "openai":
		action = "Set OPENAI_API_KEY in your .env file (or configure AZURE_OPENAI_ENDPOINT)"
	case "azure":
		action = "Set AZURE_OPENAI_KEY and AZURE_OPENAI_DEPLOYMENT alongside AZURE_OPENAI_ENDPOINT"
	case "fal":
		action = "Set FAL_API_KEY in your .env file"
	default:
		action = fmt.Sprintf("Set the required API key for %s in your .env file", service)
	}
	return &ConfigError{
		Code:    ErrCodeMissingAuth,
		Message: fmt.Sprintf("Missing authentication credentials for %s", service),
		Action:  action,
	}
}

// ErrMissingConfig returns an error for missing required configuration
func ErrMissingConfig(varName string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", varName),
		Action:  fmt.Sprintf("Set %s in your .env file", varName),
	}
}

// ErrInvalidValue returns an error for an out-of-range setting.
func ErrInvalidValue(varName string, value interface{}, want string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("Invalid %s: %v", varName, value),
		Action:  fmt.Sprintf("Set %s to a value %s", varName, want),
	}
}

// ErrBrandFile returns an error for an unreadable or malformed brands file.
func ErrBrandFile(path string, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeBrandFile,
		Message: fmt.Sprintf("Cannot load brand configuration %s: %s", path, reason),
		Action:  "Check BRAND_DIR and the brands.json / brands.yaml syntax",
	}
}

// IsConfigError checks if an error is, or wraps, a ConfigError and returns it if so
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error if it's a ConfigError
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}
