package core

import (
	"errors"
	"fmt"
)

// ConfigError represents a configuration error with an actionable fix.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // How to resolve it
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeEnvFileMissing  = "ENV_FILE_MISSING"
	ErrCodeConfigFile      = "CONFIG_FILE_INVALID"
	ErrCodeInvalidValue    = "INVALID_VALUE"
	ErrCodeMissingConfig   = "MISSING_CONFIG"
	ErrCodeCorpusNotFound  = "CORPUS_NOT_FOUND"
	ErrCodeInvalidGeometry = "INVALID_GEOMETRY"
)

// ErrEnvFileMissing returns an error for a missing .env file.
func ErrEnvFileMissing(path string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeEnvFileMissing,
		Message: fmt.Sprintf("Environment file not found: %s", path),
		Action:  "Create the file or drop the --env-file flag",
	}
}

// ErrConfigFile returns an error for an unreadable or malformed YAML file.
func ErrConfigFile(path string, err error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeConfigFile,
		Message: fmt.Sprintf("Cannot load config file %s: %v", path, err),
		Action:  "Fix the YAML syntax or point --config at a valid file",
	}
}

// ErrInvalidValue returns an error for a setting outside its allowed range.
func ErrInvalidValue(name, value, allowed string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("Invalid %s '%s'", name, value),
		Action:  fmt.Sprintf("Set %s to %s", name, allowed),
	}
}

// ErrMissingConfig returns an error for a missing required setting.
func ErrMissingConfig(name string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", name),
		Action:  fmt.Sprintf("Set %s in the environment, the config file or on the command line", name),
	}
}

// ErrCorpusNotFound returns an error when the corpus directory is unusable.
func ErrCorpusNotFound(dir, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeCorpusNotFound,
		Message: fmt.Sprintf("Corpus directory %s is not usable: %s", dir, reason),
		Action:  "Point --corpus at a directory holding at least two images",
	}
}

// ErrInvalidGeometry returns an error for a canvas/piece/stride combination
// that leaves no placement to search.
func ErrInvalidGeometry(reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidGeometry,
		Message: fmt.Sprintf("Invalid puzzle geometry: %s", reason),
		Action:  "Use a piece smaller than the canvas and a positive stride",
	}
}

// IsConfigError reports whether err wraps a ConfigError and returns it.
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode extracts the code from a ConfigError, or "".
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}
