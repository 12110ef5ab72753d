package domain

import "time"

// AuditEntry is one administrative action, recorded whether it was
// granted or refused.
type AuditEntry struct {
	At      time.Time `json:"at"`
	Actor   string    `json:"actor"`
	Action  string    `json:"action"`
	Subject string    `json:"subject"`
	Outcome string    `json:"outcome"`
	Detail  string    `json:"detail,omitempty"`
}

const (
	OutcomeGranted = "granted"
	OutcomeRefused = "refused"
)
