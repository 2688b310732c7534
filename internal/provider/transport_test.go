package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestExecute(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		want     string
		wantKind ErrorKind
		wantMsg  string
	}{
		{"success", 200, `{"content":[{"type":"text","text":"hi"}]}`, "hi", "", ""},
		{"bad request", 400, `{"error":{"message":"max_tokens too large"}}`, "", KindClient, "max_tokens too large"},
		{"unauthorized", 401, `{"error":{"message":"invalid x-api-key"}}`, "", KindClient, "invalid x-api-key"},
		{"rate limited", 429, `{"error":{"message":"slow down"}}`, "", KindTransient, "slow down"},
		{"unavailable", 503, `garbage`, "", KindTransient, "Service Unavailable"},
		{"overloaded", 529, `garbage`, "", KindTransient, "unknown error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			a := AnthropicAdapter{}
			req, err := a.BuildRequest(srv.URL, "sk-ant-x", &Call{Model: "m", Instruction: "i", Text: "t"})
			if err != nil {
				t.Fatal(err)
			}
			got, err := NewTransport(srv.Client()).Execute(context.Background(), a, req, 5*time.Second)
			if tt.wantKind == "" {
				if err != nil || got != tt.want {
					t.Fatalf("Execute() = %q, %v", got, err)
				}
				return
			}
			var re *RequestError
			if !errors.As(err, &re) {
				t.Fatalf("error = %v, want RequestError", err)
			}
			if re.Kind != tt.wantKind || re.StatusCode != tt.status || re.Message != tt.wantMsg {
				t.Errorf("RequestError = %+v", re)
			}
		})
	}
}

func TestTransportTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, _, err := NewTransport(nil).Do(context.Background(), 50*time.Millisecond, OpenAI,
		&HTTPRequest{URL: srv.URL, Body: []byte("{}")})
	var re *RequestError
	if !errors.As(err, &re) {
		t.Fatalf("error = %v, want RequestError", err)
	}
	if re.Kind != KindTransient || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("timeout should be a transient deadline error, got %+v", re)
	}
}

func TestTransportBodyLimit(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"at limit", MaxResponseSize, false},
		{"over limit", MaxResponseSize + 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(strings.Repeat("x", tt.size)))
			}))
			defer srv.Close()

			body, status, err := NewTransport(srv.Client()).Do(context.Background(), 5*time.Second, OpenAI,
				&HTTPRequest{URL: srv.URL, Body: []byte("{}")})
			if !tt.wantErr {
				if err != nil || len(body) != tt.size || status != http.StatusOK {
					t.Fatalf("Do() = %d bytes, %d, %v", len(body), status, err)
				}
				return
			}
			var re *RequestError
			if !errors.As(err, &re) {
				t.Fatalf("error = %v, want RequestError", err)
			}
			if re.Kind != KindTransient || body != nil {
				t.Errorf("RequestError = %+v, body = %d bytes", re, len(body))
			}
		})
	}
}

func TestTransportRedactsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, _, err := NewTransport(nil).Do(context.Background(), time.Second, Gemini,
		&HTTPRequest{URL: addr + "/models/m:generateContent?key=AIsecret", Body: []byte("{}")})
	if err == nil {
		t.Fatal("expected connection error")
	}
	if strings.Contains(err.Error(), "AIsecret") {
		t.Errorf("error leaks the API key: %v", err)
	}
}
