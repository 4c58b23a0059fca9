package session

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrMalformed = errors.New("malformed attendance payload")
	ErrWrongType = errors.New("not an attendance payload")
)

// payload is the JSON record carried by the QR code.
type payload struct {
	Type      string `json:"type"`
	Class     string `json:"class"`
	SessionID string `json:"sessionId"`
	IssuedAt  string `json:"issuedAt"`
	ExpiresAt string `json:"expiresAt"`
}

// Encode serializes a session into its scannable JSON form.
func Encode(s *Session) (string, error) {
	if s == nil {
		return "", errors.New("nil session")
	}
	b, err := json.Marshal(payload{
		Type:      PayloadType,
		Class:     s.ClassName,
		SessionID: s.ID,
		IssuedAt:  s.IssuedAt.UTC().Format(time.RFC3339Nano),
		ExpiresAt: s.ExpiresAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses a scanned payload without checking class or expiry.
func Decode(raw string) (*Session, error) {
	p, reason := parse(raw)
	switch reason {
	case "":
	case ReasonWrongType:
		return nil, ErrWrongType
	default:
		return nil, ErrMalformed
	}
	s, err := p.session()
	if err != nil {
		return nil, ErrMalformed
	}
	return s, nil
}

// parse checks structure and the type tag. Keys match exactly; timestamps are
// left to session().
func parse(raw string) (payload, Reason) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil || fields == nil {
		return payload{}, ReasonMalformed
	}

	tag, ok := fields["type"]
	if !ok {
		return payload{}, ReasonMalformed
	}
	var typ string
	if err := json.Unmarshal(tag, &typ); err != nil {
		// present but not a string: some other kind of code
		return payload{}, ReasonWrongType
	}
	if typ == "" {
		return payload{}, ReasonMalformed
	}
	if typ != PayloadType {
		return payload{}, ReasonWrongType
	}

	p := payload{Type: typ}
	for key, dst := range map[string]*string{
		"class":     &p.Class,
		"sessionId": &p.SessionID,
		"expiresAt": &p.ExpiresAt,
	} {
		if !stringField(fields, key, dst) || *dst == "" {
			return payload{}, ReasonMalformed
		}
	}
	if _, ok := fields["issuedAt"]; ok && !stringField(fields, "issuedAt", &p.IssuedAt) {
		return payload{}, ReasonMalformed
	}
	return p, ""
}

// stringField decodes fields[key] into dst. It reports false when the key is
// missing or not a JSON string.
func stringField(fields map[string]json.RawMessage, key string, dst *string) bool {
	v, ok := fields[key]
	if !ok || string(v) == "null" {
		return false
	}
	return json.Unmarshal(v, dst) == nil
}

// session converts the timestamps. issuedAt is informational and may be absent.
func (p payload) session() (*Session, error) {
	exp, err := time.Parse(time.RFC3339Nano, p.ExpiresAt)
	if err != nil {
		return nil, err
	}
	s := &Session{ID: p.SessionID, ClassName: p.Class, ExpiresAt: exp.UTC()}
	if p.IssuedAt != "" {
		if iat, err := time.Parse(time.RFC3339Nano, p.IssuedAt); err == nil {
			s.IssuedAt = iat.UTC()
		}
	}
	return s, nil
}
