// internal/app/retention_service.go
package app

import (
	"context"
	"fmt"
	"time"

	"clan_helper_bot/internal/domain/attendance"
	"clan_helper_bot/internal/domain/botlog"
	"clan_helper_bot/internal/domain/callout"

	"github.com/sirupsen/logrus"
)

// RetentionService drops polls, answers, job markers and rosters that are
// older than the retention horizon.
type RetentionService struct {
	attendance attendance.Repository
	markers    botlog.Repository
	callouts   callout.Repository
	logger     *logrus.Entry
	now        func() time.Time
}

func NewRetentionService(
	att attendance.Repository,
	markers botlog.Repository,
	callouts callout.Repository,
	logger *logrus.Entry,
	now func() time.Time,
) *RetentionService {
	if now == nil {
		now = time.Now
	}
	return &RetentionService{
		attendance: att,
		markers:    markers,
		callouts:   callouts,
		logger:     logger.WithField("component", "retention"),
		now:        now,
	}
}

// Cleanup returns the total number of rows removed.
func (s *RetentionService) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention)
	day := cutoff.Format(time.DateOnly)

	polls, err := s.attendance.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup polls before %s: %w", day, err)
	}
	markers, err := s.markers.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return polls, fmt.Errorf("cleanup markers before %s: %w", day, err)
	}
	rosters, err := s.callouts.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return polls + markers, fmt.Errorf("cleanup callouts before %s: %w", day, err)
	}

	s.logger.WithFields(logrus.Fields{
		"cutoff":  cutoff,
		"polls":   polls,
		"markers": markers,
		"rosters": rosters,
	}).Info("Old data removed")
	return polls + markers + rosters, nil
}
