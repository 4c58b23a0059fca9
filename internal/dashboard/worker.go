package dashboard

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"classattend/internal/attendance"
	"classattend/internal/queue"
)

// Run consumes attendance events from q and refreshes the affected summaries
// until ctx is cancelled.
func (s *Service) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		if msg.Type != queue.TypeAttendanceMarked {
			logrus.WithField("type", msg.Type).Debug("skipping message")
			continue
		}
		var evt attendance.MarkedEvent
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			logrus.WithError(err).Warn("bad attendance event")
			continue
		}
		log := logrus.WithFields(logrus.Fields{
			"record_id":  evt.RecordID,
			"class_id":   evt.ClassID,
			"student_id": evt.StudentID,
		})
		if err := s.RefreshForRecord(ctx, evt); err != nil {
			log.WithError(err).Warn("summary refresh failed")
			continue
		}
		log.Debug("summaries refreshed")
	}
	return ctx.Err()
}
