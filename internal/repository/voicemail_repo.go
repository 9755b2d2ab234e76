package repository

import (
	"context"

	"github.com/elloello/softphone/internal/model"
	"gorm.io/gorm"
)

type VoicemailRepository struct {
	db *gorm.DB
}

func NewVoicemailRepository(db *gorm.DB) *VoicemailRepository {
	return &VoicemailRepository{db: db}
}

func (r *VoicemailRepository) Create(ctx context.Context, vm *model.Voicemail) error {
	return r.db.WithContext(ctx).Create(vm).Error
}

func (r *VoicemailRepository) List(ctx context.Context) ([]model.Voicemail, error) {
	var list []model.Voicemail
	err := r.db.WithContext(ctx).Order("timestamp desc").Find(&list).Error
	return list, err
}

func (r *VoicemailRepository) MarkRead(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&model.Voicemail{}).
		Where("id = ?", id).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *VoicemailRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&model.Voicemail{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *VoicemailRepository) UnreadCount(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Voicemail{}).
		Where("is_read = ?", false).
		Count(&n).Error
	return n, err
}
