package attendance

import (
	"errors"
	"time"
)

// Method is how attendance was captured.
type Method string

const (
	MethodQR              Method = "qr"
	MethodFaceRecognition Method = "face_recognition"
	MethodManual          Method = "manual"
)

// Status of a student for a class.
type Status string

const (
	StatusPresent Status = "present"
	StatusLate    Status = "late"
	StatusAbsent  Status = "absent"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusAbsent:
		return true
	}
	return false
}

var (
	ErrStudentRequired = errors.New("student id required")
	ErrClassRequired   = errors.New("class id required")
	ErrInvalidStatus   = errors.New("status must be present, late or absent")
	ErrNoMatch         = errors.New("no student recognised")
)

// Record represents one stored attendance mark. ClassID is the class name the
// session was issued for.
type Record struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	ClassID   string    `json:"class_id"`
	SessionID string    `json:"session_id,omitempty"`
	Method    Method    `json:"attendance_type"`
	Status    Status    `json:"status"`
	MarkedAt  time.Time `json:"marked_at"`
}

// MarkedEvent is the queue body published for new records.
type MarkedEvent struct {
	RecordID  string `json:"record_id"`
	StudentID string `json:"student_id"`
	ClassID   string `json:"class_id"`
}

// Filter narrows ListRecords.
type Filter struct {
	ClassID   string
	StudentID string
	Limit     int
	Offset    int
}
