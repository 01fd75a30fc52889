package routes

import (
	"ecare/cmd/internal/service"
	"ecare/cmd/internal/utils/apierror"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

type NotificationService interface {
	GetNotifications(sub string, unreadOnly bool) ([]*service.NotificationResponse, apierror.ErrorResponse)
	MarkRead(id int, sub string) (*service.NotificationResponse, apierror.ErrorResponse)
	MarkAllRead(sub string) (int64, apierror.ErrorResponse)
	RegisterDevice(req *service.DeviceRequest, sub string) apierror.ErrorResponse
	UnregisterDevice(token string) apierror.ErrorResponse
}

type DefaultNotificationRoute struct {
	NotificationService NotificationService
}

func NewNotificationDefault(notifService NotificationService) *DefaultNotificationRoute {
	return &DefaultNotificationRoute{NotificationService: notifService}
}

func (n *DefaultNotificationRoute) GetNotifications(c echo.Context) error {
	sub, apierr := tokenSub(c)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	unread := false
	if raw := c.QueryParam("unread"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, apierror.NewInvalidParamTypeError("unread", "bool"))
		}
		unread = v
	}

	notifications, apierr := n.NotificationService.GetNotifications(sub, unread)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	resp := echo.Map{"notifications": notifications}
	return c.JSON(http.StatusOK, &resp)
}

func (n *DefaultNotificationRoute) MarkRead(c echo.Context) error {
	id, apierr := intParam(c, "id")
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	sub, apierr := tokenSub(c)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	notification, apierr := n.NotificationService.MarkRead(id, sub)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.JSON(http.StatusOK, notification)
}

func (n *DefaultNotificationRoute) MarkAllRead(c echo.Context) error {
	sub, apierr := tokenSub(c)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	count, apierr := n.NotificationService.MarkAllRead(sub)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	resp := echo.Map{"updated": count}
	return c.JSON(http.StatusOK, &resp)
}

func (n *DefaultNotificationRoute) RegisterDevice(c echo.Context) error {
	var req service.DeviceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierror.MalformedBodyError)
	}

	sub, apierr := tokenSub(c)
	if apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}

	if apierr := n.NotificationService.RegisterDevice(&req, sub); apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.NoContent(http.StatusCreated)
}

func (n *DefaultNotificationRoute) UnregisterDevice(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, apierror.NewMissingParamError("token"))
	}

	if apierr := n.NotificationService.UnregisterDevice(token); apierr != nil {
		return c.JSON(apierr.Code(), apierr)
	}
	return c.NoContent(http.StatusNoContent)
}
