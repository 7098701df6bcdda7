package rpcfallback

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig         = errors.New("invalid fallback client configuration")
	ErrProbeTimeout          = errors.New("endpoint probe timed out")
	ErrNoWorkingEndpoint     = errors.New("no working RPC endpoint")
	ErrAllEndpointsExhausted = errors.New("all RPC endpoints exhausted")
)

// ProbeError records why a single endpoint failed its liveness probe.
type ProbeError struct {
	Endpoint string
	Err      error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Endpoint, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// NoWorkingEndpointError is returned when every candidate endpoint failed its probe
// during one selection pass. It matches ErrNoWorkingEndpoint with errors.Is.
type NoWorkingEndpointError struct {
	Causes []error
}

func (e *NoWorkingEndpointError) Error() string {
	return fmt.Sprintf("%s (%d endpoints tried): %v", ErrNoWorkingEndpoint, len(e.Causes), errors.Join(e.Causes...))
}

func (e *NoWorkingEndpointError) Is(target error) bool { return target == ErrNoWorkingEndpoint }

func (e *NoWorkingEndpointError) Unwrap() []error { return e.Causes }

// ExhaustedError is returned when the retry ceiling is reached. Last is the error
// of the final attempt. It matches ErrAllEndpointsExhausted with errors.Is.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrAllEndpointsExhausted, e.Attempts, e.Last)
}

func (e *ExhaustedError) Is(target error) bool { return target == ErrAllEndpointsExhausted }

func (e *ExhaustedError) Unwrap() error { return e.Last }
