package config

import (
	"fmt"
	"strings"

	"jarvis/internal/oauth"
)

// ConfigurationError is a problem with a single configuration value. It
// matches oauth.ErrConfig under errors.Is.
type ConfigurationError struct {
	Source      string   `json:"source"`    // File path or environment variable
	Field       string   `json:"field"`     // Dotted YAML path, e.g. oauth.clientId
	ErrorType   string   `json:"errorType"` // io, parse or validation
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Error implements the error interface
func (ce ConfigurationError) Error() string {
	switch {
	case ce.Field != "":
		return fmt.Sprintf("configuration %s: %s", ce.Field, ce.Message)
	case ce.Source != "":
		return fmt.Sprintf("configuration %s: %s", ce.Source, ce.Message)
	default:
		return "configuration: " + ce.Message
	}
}

// Is makes every configuration error match oauth.ErrConfig.
func (ce ConfigurationError) Is(target error) bool {
	return target == oauth.ErrConfig
}

// DetailedError returns a multi-line message including suggestions.
func (ce ConfigurationError) DetailedError() string {
	parts := []string{ce.Error()}
	if ce.Source != "" {
		parts = append(parts, fmt.Sprintf("  Source: %s", ce.Source))
	}
	if len(ce.Suggestions) > 0 {
		parts = append(parts, "  Suggestions:")
		for _, suggestion := range ce.Suggestions {
			parts = append(parts, fmt.Sprintf("    - %s", suggestion))
		}
	}
	return strings.Join(parts, "\n")
}

// NewConfigurationError creates a configuration error.
func NewConfigurationError(source, field, errorType, message string, suggestions ...string) ConfigurationError {
	return ConfigurationError{
		Source:      source,
		Field:       field,
		ErrorType:   errorType,
		Message:     message,
		Suggestions: suggestions,
	}
}

// ConfigurationErrorCollection holds every problem found by Validate.
type ConfigurationErrorCollection struct {
	Errors []ConfigurationError `json:"errors"`
}

// Error implements the error interface for the collection
func (cec ConfigurationErrorCollection) Error() string {
	if len(cec.Errors) == 0 {
		return "no configuration errors"
	}

	if len(cec.Errors) == 1 {
		return cec.Errors[0].Error()
	}

	return fmt.Sprintf("%d configuration errors: %s (and %d more)",
		len(cec.Errors), cec.Errors[0].Error(), len(cec.Errors)-1)
}

// Is makes the collection match oauth.ErrConfig.
func (cec ConfigurationErrorCollection) Is(target error) bool {
	return target == oauth.ErrConfig
}

// HasErrors returns true if there are any errors in the collection
func (cec *ConfigurationErrorCollection) HasErrors() bool {
	return len(cec.Errors) > 0
}

// Add adds a new error to the collection
func (cec *ConfigurationErrorCollection) Add(err ConfigurationError) {
	cec.Errors = append(cec.Errors, err)
}

// GetDetailedReport returns a report of all errors.
func (cec *ConfigurationErrorCollection) GetDetailedReport() string {
	if len(cec.Errors) == 0 {
		return "No configuration errors to report"
	}

	parts := []string{fmt.Sprintf("Configuration invalid (%d errors):", len(cec.Errors))}
	for _, err := range cec.Errors {
		parts = append(parts, err.DetailedError())
	}
	return strings.Join(parts, "\n")
}
