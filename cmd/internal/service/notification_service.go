package service

import (
	"context"
	"ecare/cmd/internal/domain/entity"
	fcmclient "ecare/cmd/internal/integration/firebase"
	"ecare/cmd/internal/utils"
	"ecare/cmd/internal/utils/apierror"
	"errors"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/gommon/log"
	"strconv"
	"time"
)

type NotificationRepository interface {
	Save(notification *entity.Notification) error
	FindByID(id int) (*entity.Notification, error)
	FindByUserID(userID int, unreadOnly bool) ([]*entity.Notification, error)
	MarkAllRead(userID int) (int64, error)
	SaveDevice(device *entity.Device) error
	FindDevicesByUserID(userID int) ([]*entity.Device, error)
	DeleteDeviceByToken(token string) error
}

type DeviceRequest struct {
	Token    string `json:"token" validate:"required,max=4096,nospaces"`
	Platform string `json:"platform" validate:"required,oneof=android ios web"`
}

type NotificationResponse struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Type        string  `json:"notification_type"`
	RelatedID   *string `json:"related_id"`
	IsRead      bool    `json:"is_read"`
	CreatedAt   string  `json:"created_at"`
}

type DefaultNotificationService struct {
	NotificationRepo NotificationRepository
	UserRepo         UserRepository
	Validate         *validator.Validate
	Push             fcmclient.PushInterface
	PushTimeout      time.Duration
}

// NewNotificationService builds the service; push may be nil, in which
// case notifications are only stored.
func NewNotificationService(notifRepo NotificationRepository, userRepo UserRepository, validate *validator.Validate, push fcmclient.PushInterface) *DefaultNotificationService {
	return &DefaultNotificationService{
		NotificationRepo: notifRepo,
		UserRepo:         userRepo,
		Validate:         validate,
		Push:             push,
		PushTimeout:      10 * time.Second,
	}
}

// Notify stores the notification and pushes it to every registered device
// of the user. Failures are logged and never reach the caller.
func (n *DefaultNotificationService) Notify(userID int, kind entity.NotificationType, title, body, relatedID string) {
	notification := &entity.Notification{
		UserID:      userID,
		Title:       title,
		Description: body,
		Type:        kind,
		CreatedAt:   utils.NowUTC(),
	}
	if relatedID != "" {
		notification.RelatedID = &relatedID
	}

	if err := n.NotificationRepo.Save(notification); err != nil {
		log.Errorf("failed to save notification for user %d: %v", userID, err)
		return
	}

	if n.Push == nil {
		return
	}

	devices, err := n.NotificationRepo.FindDevicesByUserID(userID)
	if err != nil {
		log.Errorf("failed to fetch devices of user %d: %v", userID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.PushTimeout)
	defer cancel()

	for _, device := range devices {
		msg := &fcmclient.Message{
			Token:          device.Token,
			Title:          title,
			Body:           body,
			Type:           string(kind),
			NotificationID: strconv.Itoa(notification.ID),
		}

		err := n.Push.Send(ctx, msg)
		if errors.Is(err, fcmclient.ErrUnregistered) {
			if err := n.NotificationRepo.DeleteDeviceByToken(device.Token); err != nil {
				log.Errorf("failed to forget device %d: %v", device.ID, err)
			}
			continue
		}
		if err != nil {
			log.Warnf("failed to push notification %d to device %d: %v", notification.ID, device.ID, err)
		}
	}
}

func (n *DefaultNotificationService) GetNotifications(sub string, unreadOnly bool) ([]*NotificationResponse, apierror.ErrorResponse) {
	caller, apierr := lookupCaller(n.UserRepo, sub)
	if apierr != nil {
		return nil, apierr
	}

	notifications, err := n.NotificationRepo.FindByUserID(caller.ID, unreadOnly)
	if err != nil {
		log.Errorf("failed to fetch notifications of user %d: %v", caller.ID, err)
		return nil, apierror.InternalServerError
	}

	resp := make([]*NotificationResponse, len(notifications))
	for i, notification := range notifications {
		resp[i] = toNotificationResponse(notification)
	}
	return resp, nil
}

func (n *DefaultNotificationService) MarkRead(id int, sub string) (*NotificationResponse, apierror.ErrorResponse) {
	caller, apierr := lookupCaller(n.UserRepo, sub)
	if apierr != nil {
		return nil, apierr
	}

	notification, err := n.NotificationRepo.FindByID(id)
	if err != nil {
		log.Errorf("failed to fetch notification %d: %v", id, err)
		return nil, apierror.InternalServerError
	}
	if notification == nil || notification.UserID != caller.ID {
		return nil, apierror.NotFoundError
	}

	if !notification.IsRead {
		notification.IsRead = true
		if err := n.NotificationRepo.Save(notification); err != nil {
			log.Errorf("failed to mark notification %d read: %v", id, err)
			return nil, apierror.InternalServerError
		}
	}
	return toNotificationResponse(notification), nil
}

func (n *DefaultNotificationService) MarkAllRead(sub string) (int64, apierror.ErrorResponse) {
	caller, apierr := lookupCaller(n.UserRepo, sub)
	if apierr != nil {
		return 0, apierr
	}

	count, err := n.NotificationRepo.MarkAllRead(caller.ID)
	if err != nil {
		log.Errorf("failed to mark notifications of user %d read: %v", caller.ID, err)
		return 0, apierror.InternalServerError
	}
	return count, nil
}

// RegisterDevice binds a push token to the caller. A token already known
// for another user moves to the caller.
func (n *DefaultNotificationService) RegisterDevice(req *DeviceRequest, sub string) apierror.ErrorResponse {
	caller, apierr := lookupCaller(n.UserRepo, sub)
	if apierr != nil {
		return apierr
	}

	utils.Sanitize(req)
	if valerr := n.Validate.Struct(req); valerr != nil {
		return apierror.FromValidationError(valerr)
	}

	now := utils.NowUTC()
	device := &entity.Device{
		UserID:    caller.ID,
		Token:     req.Token,
		Platform:  req.Platform,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := n.NotificationRepo.SaveDevice(device); err != nil {
		log.Errorf("failed to register device for user %d: %v", caller.ID, err)
		return apierror.InternalServerError
	}
	return nil
}

func (n *DefaultNotificationService) UnregisterDevice(token string) apierror.ErrorResponse {
	if err := n.NotificationRepo.DeleteDeviceByToken(token); err != nil {
		log.Errorf("failed to unregister device: %v", err)
		return apierror.InternalServerError
	}
	return nil
}

func toNotificationResponse(notification *entity.Notification) *NotificationResponse {
	return &NotificationResponse{
		ID:          notification.ID,
		Title:       notification.Title,
		Description: notification.Description,
		Type:        string(notification.Type),
		RelatedID:   notification.RelatedID,
		IsRead:      notification.IsRead,
		CreatedAt:   utils.FormatEpoch(notification.CreatedAt),
	}
}
