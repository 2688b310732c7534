// Package validate holds the pure input checks used before any provider call:
// text length limits, temperature range and API key shape.
package validate

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// MaxPromptLength caps the prompt text accepted by the optimizer, in characters.
const MaxPromptLength = 50000

// TextOptions constrains Text. A MaxLength of 0 or less disables the upper bound.
type TextOptions struct {
	MinLength  int
	MaxLength  int
	Required   bool
	AllowEmpty bool
}

// DefaultTextOptions returns the limits used for free-form input fields.
func DefaultTextOptions() TextOptions {
	return TextOptions{MinLength: 1, MaxLength: 10000, Required: true}
}

// Result is the outcome of a validation. Errors accumulate; Valid is true
// only when Errors is empty.
type Result struct {
	Valid  bool
	Errors []string
}

// Err returns a *ValidationError for an invalid result, or nil.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Reasons: append([]string(nil), r.Errors...)}
}

// ValidationError reports input that failed validation.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	if len(e.Reasons) == 0 {
		return "validation failed"
	}
	return strings.Join(e.Reasons, ", ")
}

// Retryable is always false: the same input fails the same way.
func (e *ValidationError) Retryable() bool { return false }

// Text checks text against opts. Length is counted in characters, not bytes.
func Text(text string, opts TextOptions) Result {
	var errs []string
	blank := strings.TrimSpace(text) == ""

	if opts.Required && !opts.AllowEmpty && blank {
		errs = append(errs, "text must not be empty")
	}

	// Empty text is the required check's concern, not a length failure.
	n := utf8.RuneCountInString(text)
	if text != "" && !(blank && opts.AllowEmpty) && n < opts.MinLength {
		errs = append(errs, fmt.Sprintf("text must be at least %d characters", opts.MinLength))
	}
	if opts.MaxLength > 0 && n > opts.MaxLength {
		errs = append(errs, fmt.Sprintf("text must not exceed %d characters (got %d)", opts.MaxLength, n))
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// Prompt applies the optimizer's limits to a prompt.
func Prompt(text string) Result {
	opts := DefaultTextOptions()
	opts.MaxLength = MaxPromptLength
	return Text(text, opts)
}

// Temperature checks that t lies in [0, 1].
func Temperature(t float64) error {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return &ValidationError{Reasons: []string{fmt.Sprintf("temperature must be between 0 and 1 (got %g)", t)}}
	}
	return nil
}
