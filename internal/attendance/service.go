package attendance

import (
	"context"

	"github.com/sirupsen/logrus"

	"classattend/internal/facematch"
	"classattend/internal/metrics"
	"classattend/internal/queue"
	"classattend/internal/session"
)

// Store is the persistence the service needs; *Repository implements it.
type Store interface {
	InsertRecord(ctx context.Context, rec Record) (Record, bool, error)
	FaceCandidates(ctx context.Context) ([]facematch.Candidate, error)
}

// Service turns verified scans, face matches and manual marks into stored records.
type Service struct {
	store   Store
	matcher facematch.Matcher
	events  queue.Queue
	clock   session.Clock
}

// NewService wires the service. events may be nil when nothing consumes records.
func NewService(store Store, matcher facematch.Matcher, events queue.Queue, clock session.Clock) *Service {
	if clock == nil {
		clock = session.SystemClock()
	}
	return &Service{store: store, matcher: matcher, events: events, clock: clock}
}

// ScanOutcome is the result of MarkFromScan.
type ScanOutcome struct {
	Result  session.Result
	Record  Record
	Created bool
}

// MarkFromScan verifies a scanned payload for classID and, when accepted, records
// the student present. A repeated scan of the same session returns the first record.
func (s *Service) MarkFromScan(ctx context.Context, studentID, classID, raw string) (ScanOutcome, error) {
	if studentID == "" {
		return ScanOutcome{}, ErrStudentRequired
	}
	if classID == "" {
		return ScanOutcome{}, ErrClassRequired
	}
	res := session.Verify(raw, classID, s.clock.Now())
	metrics.ScanOutcomes.WithLabelValues(res.Outcome()).Inc()
	if !res.Accepted() {
		logrus.WithFields(logrus.Fields{
			"student_id": studentID,
			"class_id":   classID,
			"reason":     res.Reason,
		}).Info("scan rejected")
		return ScanOutcome{Result: res}, nil
	}

	rec, created, err := s.record(ctx, Record{
		StudentID: studentID,
		ClassID:   classID,
		SessionID: res.Session.ID,
		Method:    MethodQR,
		Status:    StatusPresent,
	})
	if err != nil {
		return ScanOutcome{Result: res}, err
	}
	return ScanOutcome{Result: res, Record: rec, Created: created}, nil
}

// MarkManual records a status chosen by the teacher.
func (s *Service) MarkManual(ctx context.Context, studentID, classID string, status Status) (Record, error) {
	if studentID == "" {
		return Record{}, ErrStudentRequired
	}
	if classID == "" {
		return Record{}, ErrClassRequired
	}
	if !status.Valid() {
		return Record{}, ErrInvalidStatus
	}
	rec, _, err := s.record(ctx, Record{StudentID: studentID, ClassID: classID, Method: MethodManual, Status: status})
	return rec, err
}

// MarkFace asks the matcher who is in the picture and marks them present.
func (s *Service) MarkFace(ctx context.Context, classID, imageURL string) (facematch.Candidate, Record, error) {
	if classID == "" {
		return facematch.Candidate{}, Record{}, ErrClassRequired
	}
	candidates, err := s.store.FaceCandidates(ctx)
	if err != nil {
		return facematch.Candidate{}, Record{}, err
	}
	who, ok, err := s.matcher.Match(ctx, imageURL, candidates)
	if err != nil {
		return facematch.Candidate{}, Record{}, err
	}
	if !ok {
		return facematch.Candidate{}, Record{}, ErrNoMatch
	}
	rec, _, err := s.record(ctx, Record{
		StudentID: who.UserID,
		ClassID:   classID,
		Method:    MethodFaceRecognition,
		Status:    StatusPresent,
	})
	return who, rec, err
}

func (s *Service) record(ctx context.Context, rec Record) (Record, bool, error) {
	if rec.MarkedAt.IsZero() {
		rec.MarkedAt = s.clock.Now().UTC()
	}
	stored, created, err := s.store.InsertRecord(ctx, rec)
	if err != nil {
		return Record{}, false, err
	}
	metrics.ObserveRecord(string(rec.Method), created)

	log := logrus.WithFields(logrus.Fields{
		"record_id":  stored.ID,
		"student_id": stored.StudentID,
		"class_id":   stored.ClassID,
		"method":     stored.Method,
	})
	if !created {
		log.Info("attendance already recorded for session")
		return stored, false, nil
	}
	log.Info("attendance recorded")

	if s.events != nil {
		msg, err := queue.NewMessage(queue.TypeAttendanceMarked, MarkedEvent{
			RecordID:  stored.ID,
			StudentID: stored.StudentID,
			ClassID:   stored.ClassID,
		})
		if err == nil {
			err = s.events.Publish(ctx, msg)
		}
		if err != nil {
			log.WithError(err).Warn("publish attendance event failed")
		}
	}
	return stored, true, nil
}
