package repository

import (
	"ecare/cmd/internal/domain/entity"
	"errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DefaultNotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *DefaultNotificationRepository {
	return &DefaultNotificationRepository{db: db}
}

func (n *DefaultNotificationRepository) Save(notification *entity.Notification) error {
	return n.db.Save(notification).Error
}

func (n *DefaultNotificationRepository) FindByID(id int) (*entity.Notification, error) {
	var notif entity.Notification
	err := n.db.First(&notif, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &notif, err
}

func (n *DefaultNotificationRepository) FindByUserID(userID int, unreadOnly bool) ([]*entity.Notification, error) {
	var notifs []*entity.Notification
	q := n.db.Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	err := q.Order("created_at desc, id desc").Find(&notifs).Error
	return notifs, err
}

func (n *DefaultNotificationRepository) MarkAllRead(userID int) (int64, error) {
	res := n.db.Model(&entity.Notification{}).
		Where("user_id = ?", userID).
		Where("is_read = ?", false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// SaveDevice registers a push token, moving it to userID if another user
// registered the same token before.
func (n *DefaultNotificationRepository) SaveDevice(device *entity.Device) error {
	return n.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "platform", "updated_at"}),
	}).Create(device).Error
}

func (n *DefaultNotificationRepository) FindDevicesByUserID(userID int) ([]*entity.Device, error) {
	var devices []*entity.Device
	err := n.db.Where("user_id = ?", userID).Find(&devices).Error
	return devices, err
}

func (n *DefaultNotificationRepository) DeleteDeviceByToken(token string) error {
	return n.db.Where("token = ?", token).Delete(&entity.Device{}).Error
}
