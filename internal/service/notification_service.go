package service

import (
	"context"
	"strings"

	"github.com/pesio-ai/be-purchase-requests/internal/errors"
	"github.com/pesio-ai/be-purchase-requests/internal/repository"
)

// NotificationService reads a user's in-app inbox.
type NotificationService struct {
	store repository.Store
}

func NewNotificationService(store repository.Store) *NotificationService {
	return &NotificationService{store: store}
}

func (s *NotificationService) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]*repository.Notification, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.InvalidInput("user_id", "user is required")
	}
	return s.store.Notifications().ListForUser(ctx, userID, unreadOnly)
}

func (s *NotificationService) MarkNotificationRead(ctx context.Context, userID, id string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.InvalidInput("user_id", "user is required")
	}
	return s.store.Notifications().MarkRead(ctx, userID, id)
}
