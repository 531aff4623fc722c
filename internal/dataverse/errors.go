package dataverse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the Dataverse Web API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("dataverse: HTTP %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("dataverse: HTTP %d: %s", e.Status, e.Message)
}

// Is lets a 404 response satisfy errors.Is(err, ErrNotFound).
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// decodeAPIError extracts the OData error envelope from an error response
// body, falling back to the raw body when the envelope is absent.
func decodeAPIError(status int, body []byte) *APIError {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		return apiErr
	}
	apiErr.Message = http.StatusText(status)
	return apiErr
}
