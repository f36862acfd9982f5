package models

import "time"

// ThrottleStatus is the consecutive-failure breaker state of one sending account.
type ThrottleStatus struct {
	Account             string     `json:"account"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastErrorAt         *time.Time `json:"last_error_at,omitempty"`
	PausedUntil         *time.Time `json:"paused_until,omitempty"`
}

// IsThrottled reports whether sends from the account are paused at now.
func (s *ThrottleStatus) IsThrottled(now time.Time) bool {
	return s.PausedUntil != nil && s.PausedUntil.After(now)
}

// RecordFailure counts a failed send. Once the count reaches threshold every further
// failure pauses the account for pause from now.
func (s *ThrottleStatus) RecordFailure(now time.Time, threshold int, pause time.Duration) {
	s.ConsecutiveFailures++
	s.LastErrorAt = &now

	if s.ConsecutiveFailures >= threshold {
		until := now.Add(pause)
		s.PausedUntil = &until
	}
}

// RecordSuccess clears the breaker.
func (s *ThrottleStatus) RecordSuccess() {
	s.ConsecutiveFailures = 0
	s.PausedUntil = nil
}
