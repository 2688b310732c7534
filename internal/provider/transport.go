package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// MaxResponseSize caps how much of a response body Do reads.
const MaxResponseSize = 8 << 20

// HTTPRequest is a fully built provider call.
type HTTPRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Transport sends HTTPRequests, bounding each one by its own timeout.
type Transport struct {
	client *http.Client
}

// NewTransport wraps client. A nil client uses a fresh http.Client; timeouts
// are applied per call through the request context.
func NewTransport(client *http.Client) *Transport {
	if client == nil {
		client = &http.Client{}
	}
	return &Transport{client: client}
}

// Do performs req and returns the response body and status. Failures before
// a response arrives are transient RequestErrors.
func (t *Transport) Do(ctx context.Context, timeout time.Duration, id ID, req *HTTPRequest) ([]byte, int, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			ue.URL = redactURL(ue.URL)
		}
		msg := "HTTP request failed"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = fmt.Sprintf("request timed out after %s", timeout)
		}
		return nil, 0, &RequestError{Provider: id, Kind: KindTransient, Message: msg, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, resp.StatusCode, &RequestError{
			Provider: id, StatusCode: resp.StatusCode, Kind: KindTransient,
			Message: "failed to read response body", Err: err,
		}
	}
	if len(body) > MaxResponseSize {
		return nil, resp.StatusCode, &RequestError{
			Provider: id, StatusCode: resp.StatusCode, Kind: KindTransient,
			Message: fmt.Sprintf("response body exceeds %d bytes", MaxResponseSize),
		}
	}
	return body, resp.StatusCode, nil
}

// Execute sends a request built by a and parses its response. A non-2xx
// status becomes a RequestError carrying the provider's error message.
func (t *Transport) Execute(ctx context.Context, a Adapter, req *HTTPRequest, timeout time.Duration) (string, error) {
	body, status, err := t.Do(ctx, timeout, a.Provider(), req)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		msg := a.ErrorMessage(body)
		if msg == "" {
			msg = http.StatusText(status)
		}
		if msg == "" {
			msg = "unknown error"
		}
		return "", &RequestError{
			Provider:   a.Provider(),
			StatusCode: status,
			Kind:       ClassifyStatus(status),
			Message:    msg,
		}
	}
	return a.ParseResponse(body)
}

// redactURL masks credentials carried in the query string.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
