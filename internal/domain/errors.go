package domain

import "fmt"

// ProviderError indicates a model or API call failed at the transport level
// (network, auth, rate limit). It is fatal to the current run: stages do not
// retry, and the failure propagates to the caller.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ParseError indicates a model response did not match the expected structure.
// Stages recover from it locally with a conservative default; it is carried
// in logs, not surfaced to callers.
type ParseError struct {
	Stage string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse failure in %s: %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ConfigurationError indicates a missing credential or setting required by a
// specific endpoint. It fails fast, independent of the pipeline.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing configuration: %s", e.Setting)
}

// ValidationError indicates malformed caller input, rejected before any
// stage executes.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
