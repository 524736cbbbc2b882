package service

import (
	"context"
	"time"

	"unitedhelp/internal/event/models"
	id "unitedhelp/pkg/domain"
	dErrors "unitedhelp/pkg/domain-errors"
	"unitedhelp/pkg/platform/audit"
	"unitedhelp/pkg/requestcontext"
)

const (
	SweepEventFinished      = "event_finished"
	SweepEventStartTomorrow = "event_start_tomorrow"
)

// SweepResult counts what one sweep run did.
type SweepResult struct {
	Sweep     string
	Processed int
	Skipped   int
	Failed    int
}

// SweepFinished finishes active events ending within the next finish window,
// marking every participant as attended. An occurrence already finished in
// this window is skipped, so overlapping runs do not log twice.
func (s *Service) SweepFinished(ctx context.Context) (*SweepResult, error) {
	now := requestcontext.Now(ctx)
	until := now.Add(s.finishWindow)
	active := true
	events, err := s.List(ctx, models.EventFilter{Active: &active, EndBefore: &until})
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Sweep: SweepEventFinished}
	for _, event := range events {
		if event.EndTime.Before(now) {
			continue
		}
		done, err := s.finishedSince(ctx, event, event.EndTime.Add(-s.finishWindow))
		if err != nil {
			result.Failed++
			s.warn(ctx, "finish sweep could not read event log", err, event.ID)
			continue
		}
		if done {
			result.Skipped++
			continue
		}

		_, _, err = s.finish(ctx, id.UserID{}, event.ID, nil, true, systemGuard)
		switch {
		case err == nil:
			result.Processed++
		case dErrors.HasCode(err, dErrors.CodeConflict):
			result.Skipped++
		default:
			result.Failed++
			s.warn(ctx, "finish sweep failed", err, event.ID)
		}
	}
	s.sweepCompleted(ctx, result)
	return result, nil
}

// SweepStartTomorrow reminds participants and owners of active events that
// start during tomorrow's calendar day.
func (s *Service) SweepStartTomorrow(ctx context.Context) (*SweepResult, error) {
	now := requestcontext.Now(ctx)
	y, m, d := now.AddDate(0, 0, 1).Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 0, 1)
	active := true
	events, err := s.List(ctx, models.EventFilter{Active: &active, StartAfter: &from})
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Sweep: SweepEventStartTomorrow}
	for _, event := range events {
		if !event.StartTime.Before(to) {
			result.Skipped++
			continue
		}
		s.notifyStartTomorrow(ctx, event)
		result.Processed++
	}
	s.sweepCompleted(ctx, result)
	return result, nil
}

func systemGuard(context.Context, *models.Event) (string, error) {
	return systemActor, nil
}

func (s *Service) finishedSince(ctx context.Context, event *models.Event, since time.Time) (bool, error) {
	logs, err := s.events.ListLogs(ctx, event.ID)
	if err != nil {
		return false, err
	}
	for _, l := range logs {
		if l.Happened && !l.LogDate.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) sweepCompleted(ctx context.Context, result *SweepResult) {
	if s.metrics != nil {
		s.metrics.AddSweepEvents(result.Sweep, result.Processed)
	}
	s.logAudit(ctx, string(audit.EventSweepCompleted),
		"actor_id", systemActor,
		"reason", result.Sweep,
		"processed", result.Processed,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
}
