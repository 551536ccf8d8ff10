package services

import "fmt"

// IngestionError means document submission to the knowledge store failed.
// No assistant or scope state is touched when this is returned.
type IngestionError struct {
	Err error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("document ingestion failed: %v", e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// AssistantUnavailableError means assistant lookup, creation, or update failed
type AssistantUnavailableError struct {
	Err error
}

func (e *AssistantUnavailableError) Error() string {
	return fmt.Sprintf("assistant unavailable: %v", e.Err)
}

func (e *AssistantUnavailableError) Unwrap() error { return e.Err }

// ResponseTimeoutError means a response never reached a terminal state
// within the configured polling budget.
type ResponseTimeoutError struct {
	ResponseID string
	Attempts   int
}

func (e *ResponseTimeoutError) Error() string {
	return fmt.Sprintf("response %s still not terminal after %d poll attempts", e.ResponseID, e.Attempts)
}
