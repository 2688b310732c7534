package optimizer

import (
	"fmt"
	"time"
)

// Settings are the runtime limits applied to every provider call.
type Settings struct {
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// MaxRetries is the total number of attempts per request.
	MaxRetries int
}

// DefaultSettings returns a 30 second timeout and three attempts.
func DefaultSettings() Settings {
	return Settings{Timeout: 30 * time.Second, MaxRetries: 3}
}

// SettingsUpdate is a partial update; nil fields keep their current value.
type SettingsUpdate struct {
	TimeoutSeconds *int
	MaxRetries     *int
}

func (u SettingsUpdate) apply(s Settings) (Settings, error) {
	if u.TimeoutSeconds != nil {
		if *u.TimeoutSeconds <= 0 {
			return s, fmt.Errorf("timeout must be positive (got %d)", *u.TimeoutSeconds)
		}
		s.Timeout = time.Duration(*u.TimeoutSeconds) * time.Second
	}
	if u.MaxRetries != nil {
		if *u.MaxRetries < 1 {
			return s, fmt.Errorf("max retries must be at least 1 (got %d)", *u.MaxRetries)
		}
		s.MaxRetries = *u.MaxRetries
	}
	return s, nil
}
