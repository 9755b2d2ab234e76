package repository

import (
	"context"
	"time"

	"github.com/elloello/softphone/internal/model"
	"gorm.io/gorm"
)

type RecordingRepository struct {
	db *gorm.DB
}

func NewRecordingRepository(db *gorm.DB) *RecordingRepository {
	return &RecordingRepository{db: db}
}

func (r *RecordingRepository) Create(ctx context.Context, rec *model.Recording) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// Complete marks an active recording finished and stamps its duration.
func (r *RecordingRepository) Complete(ctx context.Context, id string, endedAt time.Time, duration int) error {
	res := r.db.WithContext(ctx).Model(&model.Recording{}).
		Where("id = ? AND status = ?", id, model.RecordingStatusActive).
		Updates(map[string]interface{}{
			"status":   model.RecordingStatusCompleted,
			"ended_at": endedAt,
			"duration": duration,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *RecordingRepository) List(ctx context.Context) ([]model.Recording, error) {
	var list []model.Recording
	err := r.db.WithContext(ctx).Order("started_at desc").Find(&list).Error
	return list, err
}

func (r *RecordingRepository) FindByCall(ctx context.Context, callID string) ([]model.Recording, error) {
	var list []model.Recording
	err := r.db.WithContext(ctx).
		Where("call_id = ?", callID).
		Order("started_at desc").
		Find(&list).Error
	return list, err
}

// ActiveByCall returns the in-progress recording for a call, if any.
func (r *RecordingRepository) ActiveByCall(ctx context.Context, callID string) (*model.Recording, error) {
	var rec model.Recording
	err := r.db.WithContext(ctx).
		Where("call_id = ? AND status = ?", callID, model.RecordingStatusActive).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *RecordingRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&model.Recording{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
