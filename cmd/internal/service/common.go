package service

import (
	"ecare/cmd/internal/domain/entity"
	"ecare/cmd/internal/utils/apierror"

	"github.com/labstack/gommon/log"
)

// Notifier records an in-app notification for a user and pushes it to
// their devices. Delivery is best effort.
type Notifier interface {
	Notify(userID int, kind entity.NotificationType, title, body, relatedID string)
}

// lookupCaller resolves the token subject to one of our users. An unknown
// subject is treated as an invalid token.
func lookupCaller(repo UserRepository, sub string) (*entity.User, apierror.ErrorResponse) {
	caller, err := repo.FindBySub(sub)
	if err != nil {
		log.Errorf("failed to fetch user %s: %v", sub, err)
		return nil, apierror.InternalServerError
	}
	if caller == nil {
		return nil, apierror.InvalidAuthTokenError
	}
	return caller, nil
}

func canActAs(caller *entity.User, userID int) bool {
	return caller.IsAdmin() || caller.ID == userID
}

func notify(n Notifier, userID int, kind entity.NotificationType, title, body, relatedID string) {
	if n == nil {
		return
	}
	n.Notify(userID, kind, title, body, relatedID)
}
