package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"policypal/internal/openai"
)

// FallbackResponseText is returned when a terminal response carries no
// message output item with text content.
const FallbackResponseText = "No response generated."

// ResponseResolver polls an asynchronous model response until it reaches
// a terminal state and extracts its plain-text answer.
type ResponseResolver struct {
	api         ResponseAPI
	interval    time.Duration
	maxAttempts int
}

// NewResponseResolver creates a resolver. maxAttempts bounds the poll
// loop so a stuck response cannot leak the calling operation.
func NewResponseResolver(api ResponseAPI, interval time.Duration, maxAttempts int) *ResponseResolver {
	if interval <= 0 {
		interval = time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 120
	}
	return &ResponseResolver{
		api:         api,
		interval:    interval,
		maxAttempts: maxAttempts,
	}
}

// Await blocks until the response reaches a terminal state, re-fetching
// at a fixed interval. Cancellation of ctx aborts the loop.
func (r *ResponseResolver) Await(ctx context.Context, response *openai.Response) (*openai.Response, error) {
	attempts := 0
	for response.Status == openai.ResponseStatusQueued || response.Status == openai.ResponseStatusInProgress {
		attempts++
		if attempts > r.maxAttempts {
			return nil, &ResponseTimeoutError{ResponseID: response.ID, Attempts: r.maxAttempts}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.interval):
		}

		updated, err := r.api.RetrieveResponse(ctx, response.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to poll response %s: %w", response.ID, err)
		}
		response = updated
	}

	if response.Status == openai.ResponseStatusFailed && response.Error != nil {
		return nil, fmt.Errorf("response %s failed: %s", response.ID, response.Error.Message)
	}

	log.Printf("💬 [RESPONSE] %s reached %s after %d poll(s)", response.ID, response.Status, attempts)
	return response, nil
}

// ExtractText returns the answer text of a terminal response: the first
// output_text part of the first message output item, or the fixed
// fallback when no such part exists.
func (r *ResponseResolver) ExtractText(response *openai.Response) string {
	if text := response.OutputText(); text != "" {
		return text
	}
	return FallbackResponseText
}
