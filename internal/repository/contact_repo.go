package repository

import (
	"context"
	"errors"

	"github.com/elloello/softphone/internal/calling"
	"github.com/elloello/softphone/internal/model"
	"github.com/elloello/softphone/internal/phone"
	"gorm.io/gorm"
)

type ContactRepository struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) Create(ctx context.Context, contact *model.Contact) error {
	return r.db.WithContext(ctx).Create(contact).Error
}

func (r *ContactRepository) Update(ctx context.Context, contact *model.Contact) error {
	res := r.db.WithContext(ctx).Model(&model.Contact{}).
		Where("id = ?", contact.ID).
		Updates(map[string]interface{}{
			"name":         contact.Name,
			"phone_number": contact.PhoneNumber,
			"avatar_url":   contact.AvatarURL,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ContactRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Contact{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ContactRepository) FindByID(ctx context.Context, id uint) (*model.Contact, error) {
	var contact model.Contact
	if err := r.db.WithContext(ctx).First(&contact, id).Error; err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *ContactRepository) List(ctx context.Context) ([]model.Contact, error) {
	var list []model.Contact
	err := r.db.WithContext(ctx).Order("name asc").Find(&list).Error
	return list, err
}

func (r *ContactRepository) Search(ctx context.Context, query string) ([]model.Contact, error) {
	var list []model.Contact
	pattern := "%" + query + "%"
	err := r.db.WithContext(ctx).
		Where("name LIKE ? OR phone_number LIKE ?", pattern, pattern).
		Order("name asc").
		Find(&list).Error
	return list, err
}

// ContactByPhoneNumber implements calling.ContactsResolver. Numbers are
// matched on their last ten digits so "+15551234567", "15551234567" and
// "5551234567" all resolve to the same contact.
func (r *ContactRepository) ContactByPhoneNumber(ctx context.Context, number string) (*calling.ContactInfo, error) {
	digits := phone.ExtractDigits(number)
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}
	if digits == "" {
		return nil, nil
	}

	var contact model.Contact
	err := r.db.WithContext(ctx).
		Where("phone_number LIKE ?", "%"+digits).
		First(&contact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &calling.ContactInfo{DisplayName: contact.Name}, nil
}
