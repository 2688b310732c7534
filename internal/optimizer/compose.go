package optimizer

import (
	"fmt"
	"strings"
)

// Strength selects how aggressively a prompt is rewritten.
type Strength string

const (
	Light  Strength = "light"
	Medium Strength = "medium"
	Strong Strength = "strong"
)

var strengthBlocks = map[Strength]string{
	Light: "Optimization strength: light. Keep the original wording and structure wherever possible. " +
		"Fix ambiguity, grammar and missing context only.",
	Medium: "Optimization strength: medium. Restructure the prompt for clarity, add the context, constraints " +
		"and output format it needs, and remove redundancy while preserving the user's intent.",
	Strong: "Optimization strength: strong. Rewrite the prompt from scratch as an expert prompt engineer would. " +
		"Define a role, a step-by-step task, explicit constraints, an output format and quality criteria.",
}

// Strengths returns the strength levels from weakest to strongest.
func Strengths() []Strength {
	return []Strength{Light, Medium, Strong}
}

// ParseStrength converts user input into a Strength.
func ParseStrength(s string) (Strength, error) {
	st := Strength(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := strengthBlocks[st]; !ok {
		return "", fmt.Errorf("unknown strength %q, valid: light, medium, strong", s)
	}
	return st, nil
}

// MultiRound requests iterative refinement inside a single call.
type MultiRound struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Rounds  int    `json:"rounds" mapstructure:"rounds"`
	Depth   string `json:"depth" mapstructure:"depth"`
}

// DefaultMultiRound is the disabled multi-round setting the host starts with.
func DefaultMultiRound() MultiRound {
	return MultiRound{Rounds: 3, Depth: "moderate"}
}

// ComposeInstruction appends the strength block and, when enabled, the
// multi-round block to template. strength is matched like ParseStrength;
// an empty or unknown strength gets the medium block.
func ComposeInstruction(template string, strength Strength, mr *MultiRound) string {
	st, err := ParseStrength(string(strength))
	if err != nil {
		st = Medium
	}
	var sb strings.Builder
	sb.WriteString(template)
	sb.WriteString("\n\n")
	sb.WriteString(strengthBlocks[st])
	if mr != nil && mr.Enabled {
		fmt.Fprintf(&sb, "\n\nRefine the prompt iteratively over %d rounds at %q depth, "+
			"improving on the previous round each time, and return only the final version.", mr.Rounds, mr.Depth)
	}
	return sb.String()
}
