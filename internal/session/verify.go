package session

import "time"

// Reason explains why a scanned payload was rejected.
type Reason string

const (
	ReasonMalformed     Reason = "MALFORMED"
	ReasonWrongType     Reason = "WRONG_TYPE"
	ReasonClassMismatch Reason = "CLASS_MISMATCH"
	ReasonExpired       Reason = "EXPIRED"
)

// Message is the user-facing text for a rejection.
func (r Reason) Message() string {
	switch r {
	case ReasonMalformed:
		return "Failed to read QR"
	case ReasonWrongType:
		return "Invalid QR type"
	case ReasonClassMismatch:
		return "QR does not match this class"
	case ReasonExpired:
		return "This QR has expired"
	}
	return ""
}

// Result is the outcome of Verify. Reason is empty when the payload was accepted.
type Result struct {
	Session *Session
	Reason  Reason
}

func (r Result) Accepted() bool { return r.Reason == "" }

// Outcome is a label for the result, suitable for logs and metrics.
func (r Result) Outcome() string {
	if r.Accepted() {
		return "ACCEPTED"
	}
	return string(r.Reason)
}

// Verify checks a scanned payload against the class being scanned for at time now.
// Checks run in a fixed order and the first failure wins: structure, type tag,
// class name (exact match), expiry timestamp, expiry.
func Verify(raw, expectedClass string, now time.Time) Result {
	p, reason := parse(raw)
	if reason != "" {
		return Result{Reason: reason}
	}
	if p.Class != expectedClass {
		return Result{Reason: ReasonClassMismatch}
	}
	s, err := p.session()
	if err != nil {
		return Result{Reason: ReasonMalformed}
	}
	if now.After(s.ExpiresAt) {
		return Result{Reason: ReasonExpired}
	}
	return Result{Session: s}
}
