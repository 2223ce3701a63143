package services

import "errors"

// Sentinel errors for the gateway's failure taxonomy. Controllers map these
// to machine-readable codes in the response envelope.
var (
	// ErrMalformedModelOutput means the LLM reply could not be parsed as
	// the expected structure, even after JSON extraction.
	ErrMalformedModelOutput = errors.New("model output is not parseable")

	// ErrUpstreamUnavailable means the metrics or search backend could not
	// be reached or returned a transport-level failure.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrNotConfigured means the feature's upstream is not configured
	// (missing API key or base URL).
	ErrNotConfigured = errors.New("not configured")

	// ErrStreamInterrupted means the provider's streaming connection
	// dropped mid-flight.
	ErrStreamInterrupted = errors.New("stream interrupted")
)
