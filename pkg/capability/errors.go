// Copyright 2025 Certen Protocol
//
// Capability error taxonomy. Mirrors the HTTP-facing error tags in
// spec.md §7: Missing -> 401 missing_capability_token, Invalid -> 401
// invalid_capability_token, NotAllowed -> 403 action_not_allowed.

package capability

import "fmt"

// MissingError is returned when no Authorization header (or no Bearer
// prefix) is present.
type MissingError struct{}

func (e *MissingError) Error() string { return "missing capability token" }

// InvalidError wraps a short, human-readable cause: bad signature, wrong
// algorithm, expired, wrong audience/issuer, malformed payload.
type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid capability: %s", e.Reason)
}

// NotAllowedError means the capability is valid but does not cover the
// requested action or scope.
type NotAllowedError struct {
	Action string
}

func (e *NotAllowedError) Error() string {
	return fmt.Sprintf("action not allowed: %s", e.Action)
}

// DenialEvent is the structured event published to the event bus on every
// capability-rejection path in an inbound handler (spec.md §4.1). It is
// never persisted as a receipt.
type DenialEvent struct {
	Kind     string `json:"kind"`
	Severity string `json:"severity"`
	Action   string `json:"action"`
	Reason   string `json:"reason"`
	At       string `json:"ts"`
}

// NewDenialEvent builds the structured denial event for a given action and
// human-readable reason.
func NewDenialEvent(action, reason, at string) DenialEvent {
	return DenialEvent{
		Kind:     "capability_denied",
		Severity: "high",
		Action:   action,
		Reason:   reason,
		At:       at,
	}
}
