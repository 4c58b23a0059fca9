package session

// Issuer is the teacher side of the protocol. The current session is owned by the
// caller and threaded through each call; Issuer itself keeps no state.
type Issuer struct {
	manager *Manager
}

func NewIssuer(m *Manager) *Issuer {
	return &Issuer{manager: m}
}

// Issue supersedes current with a new session. On failure current is returned unchanged.
func (i *Issuer) Issue(current *Session, className string, ttlMinutes int) (*Session, error) {
	next, err := i.manager.Issue(className, ttlMinutes)
	if err != nil {
		return current, err
	}
	return next, nil
}

// Clear drops current once its countdown has reached zero.
func (i *Issuer) Clear(current *Session) *Session {
	if SecondsRemaining(current, i.manager.Now()) == 0 {
		return nil
	}
	return current
}

// Remaining is the countdown for current at the manager's clock.
func (i *Issuer) Remaining(current *Session) int {
	return SecondsRemaining(current, i.manager.Now())
}
