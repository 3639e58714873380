// Package replicate drives paginated, optionally incremental extraction of
// discovered entities over the OData API.
package replicate

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dbsmedya/aptemsync/internal/httpclient"
)

// ResumableError is an entity-scoped, recoverable condition. It terminates
// the affected entity's pagination early with a logged warning; sibling
// entities and the overall run proceed.
type ResumableError struct {
	Entity     string
	StatusCode int
	Message    string
}

func (e *ResumableError) Error() string {
	return fmt.Sprintf("entity %s: %s (status %d)", e.Entity, e.Message, e.StatusCode)
}

// RequestError is a fatal non-success response for an entity. It propagates
// and aborts the run.
type RequestError struct {
	Entity     string
	StatusCode int
	Message    string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("entity %s: request failed with status %d: %s", e.Entity, e.StatusCode, e.Message)
}

// IsResumable reports whether an error is an entity-resumable condition
// rather than a fatal one.
func IsResumable(err error) bool {
	var re *ResumableError
	return errors.As(err, &re)
}

// transientBadRequestPhrases are known server-side failures the API
// misreports as 400 Bad Request. Responses matching one of these are
// retryable at the transport level.
var transientBadRequestPhrases = []string{
	"Object reference not set to an instance of an object",
	"The wait operation timed out",
}

// RetryableBadRequest reports whether a 400 response body carries a known
// transient server phrase. Wire this into the transport's retry policy;
// the engine only classifies, it never retries itself.
func RetryableBadRequest(statusCode int, body []byte) bool {
	if statusCode != http.StatusBadRequest {
		return false
	}
	msg := errorMessage(body)
	for _, phrase := range transientBadRequestPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// errorMessage extracts error.message from a JSON error body, falling back
// to the raw body text.
func errorMessage(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return strings.TrimSpace(string(body))
}

// classifyResponse maps a non-retried response to the error taxonomy:
// nil for success, ResumableError for entity-scoped recoverable statuses,
// RequestError for everything else.
func classifyResponse(entity string, resp *httpclient.Response) error {
	if resp.IsSuccess() {
		return nil
	}

	switch resp.StatusCode {
	case http.StatusForbidden, http.StatusRequestURITooLong:
		return &ResumableError{
			Entity:     entity,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Body),
		}
	default:
		return &RequestError{
			Entity:     entity,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Body),
		}
	}
}
