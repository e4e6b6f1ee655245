package domain

import "time"

// ControllerState is the auto-connect state machine position.
type ControllerState string

const (
	StateIdle       ControllerState = "idle"
	StateEvaluating ControllerState = "evaluating"
	StateConnecting ControllerState = "connecting"
	StateConnected  ControllerState = "connected"
	StateFailed     ControllerState = "failed"
)

// AttemptOutcome is the result of one auto-connect cycle.
type AttemptOutcome string

const (
	OutcomePending AttemptOutcome = "pending"
	OutcomeSuccess AttemptOutcome = "success"
	OutcomeFailed  AttemptOutcome = "failed"
	OutcomeSkipped AttemptOutcome = "skipped"
)

// ConnectionAttempt records one auto-connect cycle. It lives only in the
// controller's in-memory history.
type ConnectionAttempt struct {
	ID         string         `json:"id"`
	BSSID      string         `json:"bssid,omitempty"`
	SSID       string         `json:"ssid,omitempty"`
	Attempt    int            `json:"attempt"`
	Outcome    AttemptOutcome `json:"outcome"`
	Reason     string         `json:"reason,omitempty"`
	Signal     int            `json:"signal,omitempty"`
	Backoff    time.Duration  `json:"backoff,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// BackoffEntry describes a BSSID that is temporarily excluded from selection.
type BackoffEntry struct {
	BSSID    string    `json:"bssid"`
	Failures int       `json:"failures"`
	Until    time.Time `json:"until"`
}
