package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed provider request.
type ErrorKind string

const (
	// KindTransient failures may succeed on a later attempt: network errors,
	// timeouts, 429, 5xx and undecodable bodies.
	KindTransient ErrorKind = "transient"
	// KindClient failures are caused by the request or the credentials
	// (HTTP 400 and 401) and are never retried.
	KindClient ErrorKind = "client"
)

// ClassifyStatus maps an HTTP status to an ErrorKind.
func ClassifyStatus(status int) ErrorKind {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized:
		return KindClient
	}
	return KindTransient
}

// RequestError is a failed call to a provider endpoint.
type RequestError struct {
	Provider   ID
	StatusCode int // 0 when no response was received
	Kind       ErrorKind
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: API request failed (%d): %s", e.Provider, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: API request failed: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: API request failed: %s", e.Provider, e.Message)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Retryable reports whether the request may be attempted again.
func (e *RequestError) Retryable() bool { return e.Kind != KindClient }

// MissingCredentialError means no API key is configured for the provider.
type MissingCredentialError struct {
	Provider ID
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("no API key configured for %s", e.Provider)
}

func (e *MissingCredentialError) Retryable() bool { return false }

// ContentBlockedError means the provider refused to generate content.
type ContentBlockedError struct {
	Provider ID
	Reason   string
}

func (e *ContentBlockedError) Error() string {
	return fmt.Sprintf("%s: content blocked: %s", e.Provider, e.Reason)
}

func (e *ContentBlockedError) Retryable() bool { return false }

// EmptyResultError means the response carried no extractable text.
type EmptyResultError struct {
	Provider ID
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("%s: response contained no generated text", e.Provider)
}

func (e *EmptyResultError) Retryable() bool { return false }

// IsClientError reports whether err is a 400/401 RequestError.
func IsClientError(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.Kind == KindClient
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var re *RequestError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}
