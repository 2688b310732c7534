package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Dhanuzh/betterprompt/internal/config"
	"github.com/Dhanuzh/betterprompt/internal/provider"
	"github.com/Dhanuzh/betterprompt/internal/theme"
	"github.com/Dhanuzh/betterprompt/internal/validate"
)

// friendlyError is an error with a short title and an optional suggestion.
type friendlyError struct {
	Title      string
	Message    string
	Suggestion string
	Original   error
}

func (e *friendlyError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Title)
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Suggestion != "" {
		sb.WriteString("\n\nSuggestion: ")
		sb.WriteString(e.Suggestion)
	}
	return sb.String()
}

func (e *friendlyError) Unwrap() error { return e.Original }

// makeFriendly maps the error taxonomy of the optimizer onto messages
// for the terminal.
func makeFriendly(err error) *friendlyError {
	var (
		fe      *friendlyError
		valErr  *validate.ValidationError
		cfgErrs config.ValidationErrors
		missing *provider.MissingCredentialError
		blocked *provider.ContentBlockedError
		empty   *provider.EmptyResultError
		reqErr  *provider.RequestError
	)

	switch {
	case errors.As(err, &fe):
		return fe
	case errors.Is(err, context.Canceled):
		return &friendlyError{Title: "Cancelled", Message: "The request was interrupted.", Original: err}
	case errors.As(err, &valErr):
		return &friendlyError{
			Title:    "Invalid Input",
			Message:  strings.Join(valErr.Reasons, ", "),
			Original: err,
		}
	case errors.As(err, &cfgErrs):
		return &friendlyError{
			Title:      "Invalid Configuration",
			Message:    cfgErrs.Error(),
			Suggestion: fmt.Sprintf("Fix the values in %s or the BETTERPROMPT_* environment variables.", config.DefaultConfigPath()),
			Original:   err,
		}
	case errors.As(err, &missing):
		return &friendlyError{
			Title:   "API Key Missing",
			Message: fmt.Sprintf("No API key is configured for %s.", missing.Provider),
			Suggestion: fmt.Sprintf("Run 'betterprompt auth set %s' or export %s.",
				missing.Provider, strings.Join(config.EnvVars[missing.Provider], " or ")),
			Original: err,
		}
	case errors.As(err, &blocked):
		return &friendlyError{
			Title:      "Content Blocked",
			Message:    fmt.Sprintf("%s refused to generate a response (%s).", blocked.Provider, blocked.Reason),
			Suggestion: "Rephrase the prompt or try another provider with --provider.",
			Original:   err,
		}
	case errors.As(err, &empty):
		return &friendlyError{
			Title:      "Empty Response",
			Message:    fmt.Sprintf("%s returned no text.", empty.Provider),
			Suggestion: "Try again or pick another model with --model.",
			Original:   err,
		}
	case errors.As(err, &reqErr):
		return requestFriendly(reqErr)
	}
	return &friendlyError{Title: "Error", Message: err.Error(), Original: err}
}

func requestFriendly(re *provider.RequestError) *friendlyError {
	fe := &friendlyError{Message: re.Error(), Original: re}
	switch {
	case re.StatusCode == http.StatusUnauthorized:
		fe.Title = "Authentication Failed"
		fe.Suggestion = fmt.Sprintf("Check your key with 'betterprompt auth list' or replace it with 'betterprompt auth set %s'.", re.Provider)
	case re.StatusCode == http.StatusBadRequest:
		fe.Title = "Bad Request"
		fe.Suggestion = "Check the model name with 'betterprompt models' and the request options."
	case re.StatusCode == http.StatusNotFound:
		fe.Title = "Model or Endpoint Not Found"
		fe.Suggestion = "Run 'betterprompt models' to see available models."
	case re.StatusCode == http.StatusTooManyRequests:
		fe.Title = "Rate Limit Exceeded"
		fe.Suggestion = "Wait a moment, raise retries with 'betterprompt config set-retries', or switch provider."
	case re.StatusCode >= 500:
		fe.Title = "Provider Unavailable"
		fe.Suggestion = "The provider is overloaded or down. Try again later or use another provider."
	case errors.Is(re, context.DeadlineExceeded):
		fe.Title = "Request Timeout"
		fe.Suggestion = "Raise the timeout with 'betterprompt config set-timeout <seconds>'."
	case re.StatusCode == 0:
		fe.Title = "Network Error"
		fe.Suggestion = "Check your internet connection and the provider base_url."
	default:
		fe.Title = "API Error"
	}
	return fe
}

func renderError(err error, s theme.Styles) string {
	fe := makeFriendly(err)
	var sb strings.Builder
	sb.WriteString(s.Error.Render("✗ " + fe.Title))
	if fe.Message != "" {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Message)
	}
	if fe.Suggestion != "" {
		sb.WriteString("\n  ")
		sb.WriteString(s.Muted.Render(fe.Suggestion))
	}
	return sb.String()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
