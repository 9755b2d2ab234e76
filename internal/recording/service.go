// Package recording persists call recording sessions. Media capture happens
// at the telephony backend; this service tracks the recording lifecycle per
// call and keeps the durable record.
package recording

import (
	"context"
	"errors"
	"time"

	"github.com/elloello/softphone/internal/calling"
	"github.com/elloello/softphone/internal/model"
	"github.com/elloello/softphone/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service implements the engine's recorder collaborator on top of the
// recording repository.
type Service struct {
	repo   *repository.RecordingRepository
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewService(repo *repository.RecordingRepository, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Start opens a recording session for the call. A call has at most one
// active recording; starting twice is an error.
func (s *Service) Start(ctx context.Context, call calling.Call) error {
	if _, err := s.repo.ActiveByCall(ctx, call.ID); err == nil {
		return errors.New("recording already active for call")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	rec := &model.Recording{
		ID:          uuid.NewString(),
		CallID:      call.ID,
		CallSID:     call.SID,
		PhoneNumber: call.PhoneNumber,
		StartedAt:   s.now(),
		Status:      model.RecordingStatusActive,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return err
	}
	s.logger.Infow("recording started", "recording_id", rec.ID, "call_id", call.ID)
	return nil
}

// Stop completes the active recording for the call. Stopping with no active
// recording is a no-op so the engine can call it unconditionally on hangup.
func (s *Service) Stop(ctx context.Context, call calling.Call) error {
	rec, err := s.repo.ActiveByCall(ctx, call.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	ended := s.now()
	duration := int(ended.Sub(rec.StartedAt) / time.Second)
	if err := s.repo.Complete(ctx, rec.ID, ended, duration); err != nil {
		return err
	}
	s.logger.Infow("recording stopped", "recording_id", rec.ID, "call_id", call.ID, "duration", duration)
	return nil
}
