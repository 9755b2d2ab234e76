package repository

import (
	"context"

	"github.com/elloello/softphone/internal/calling"
	"github.com/elloello/softphone/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// The log keeps only the newest entries; older ones are trimmed on insert.
const maxCallLogEntries = 1000

type CallLogRepository struct {
	db *gorm.DB
}

func NewCallLogRepository(db *gorm.DB) *CallLogRepository {
	return &CallLogRepository{db: db}
}

// AddEntry implements calling.CallLog.
func (r *CallLogRepository) AddEntry(ctx context.Context, rec calling.LogRecord) error {
	entry := model.CallLogEntry{
		ID:          uuid.NewString(),
		PhoneNumber: rec.PhoneNumber,
		DisplayName: rec.DisplayName,
		Timestamp:   rec.Timestamp,
		Duration:    rec.Duration,
		Type:        rec.Type,
	}
	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return err
	}
	return r.trim(ctx)
}

// trim drops everything older than the newest maxCallLogEntries rows. The
// derived table keeps the statement valid on both sqlite and mysql.
func (r *CallLogRepository) trim(ctx context.Context) error {
	return r.db.WithContext(ctx).Exec(
		`DELETE FROM call_log_entries WHERE id NOT IN (
			SELECT id FROM (
				SELECT id FROM call_log_entries ORDER BY timestamp DESC LIMIT ?
			) keep
		)`, maxCallLogEntries).Error
}

func (r *CallLogRepository) Recent(ctx context.Context, limit, offset int) ([]model.CallLogEntry, error) {
	var list []model.CallLogEntry
	err := r.db.WithContext(ctx).
		Order("timestamp desc").
		Limit(limit).
		Offset(offset).
		Find(&list).Error
	return list, err
}

func (r *CallLogRepository) FindByNumber(ctx context.Context, number string) ([]model.CallLogEntry, error) {
	var list []model.CallLogEntry
	err := r.db.WithContext(ctx).
		Where("phone_number = ?", number).
		Order("timestamp desc").
		Find(&list).Error
	return list, err
}

func (r *CallLogRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.CallLogEntry{}).Count(&n).Error
	return n, err
}

func (r *CallLogRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&model.CallLogEntry{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *CallLogRepository) Clear(ctx context.Context) error {
	return r.db.WithContext(ctx).Where("1 = 1").Delete(&model.CallLogEntry{}).Error
}

// CallLogStats summarizes the log per entry type.
type CallLogStats struct {
	Total         int64 `json:"total"`
	Incoming      int64 `json:"incoming"`
	Outgoing      int64 `json:"outgoing"`
	Missed        int64 `json:"missed"`
	TotalDuration int64 `json:"total_duration"` // seconds
}

func (r *CallLogRepository) Stats(ctx context.Context) (*CallLogStats, error) {
	var rows []struct {
		Type    string
		Count   int64
		Seconds int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.CallLogEntry{}).
		Select("type, COUNT(*) as count, COALESCE(SUM(duration), 0) as seconds").
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &CallLogStats{}
	for _, row := range rows {
		stats.Total += row.Count
		stats.TotalDuration += row.Seconds
		switch row.Type {
		case model.CallTypeIncoming:
			stats.Incoming = row.Count
		case model.CallTypeOutgoing:
			stats.Outgoing = row.Count
		case model.CallTypeMissed:
			stats.Missed = row.Count
		}
	}
	return stats, nil
}
