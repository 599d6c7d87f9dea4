package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joshua-takyi/repairhub/internal/models"
	"github.com/joshua-takyi/repairhub/internal/realtime"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Pusher delivers a frame to every live connection of one user.
type Pusher interface {
	Emit(userID, event string, data any) int
}

type NotificationService struct {
	repo   models.NotificationRepo
	pusher Pusher
	logger *slog.Logger
	now    func() time.Time
}

func NewNotificationService(repo models.NotificationRepo, pusher Pusher, logger *slog.Logger) *NotificationService {
	return &NotificationService{repo: repo, pusher: pusher, logger: logger, now: time.Now}
}

// Notify stores one notification for the user and then makes a single best
// effort push to their room. A failed or missed push never fails the call;
// offline users read the stored copy from the list endpoint.
func (ns *NotificationService) Notify(ctx context.Context, userID primitive.ObjectID, typ models.NotificationType, title, message string, data map[string]any) (*models.Notification, error) {
	n := &models.Notification{
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		Data:      data,
		CreatedAt: ns.now(),
	}
	if userID.IsZero() {
		return nil, fmt.Errorf("%w: notification needs a recipient", ErrInvalidInput)
	}
	if err := models.Validate.Struct(n); err != nil {
		return nil, invalid(err)
	}

	saved, err := ns.repo.CreateNotification(ctx, n)
	if err != nil {
		return nil, err
	}

	if ns.pusher != nil {
		delivered := ns.pusher.Emit(userID.Hex(), realtime.EventNotification, saved)
		ns.logger.Debug("notification pushed", "user_id", userID.Hex(), "type", typ, "sockets", delivered)
	}
	return saved, nil
}

// notifyQuietly is used for side effects of another operation that has
// already succeeded.
func (ns *NotificationService) notifyQuietly(ctx context.Context, userID primitive.ObjectID, typ models.NotificationType, title, message string, data map[string]any) {
	if _, err := ns.Notify(ctx, userID, typ, title, message, data); err != nil {
		ns.logger.Error("failed to store notification", "user_id", userID.Hex(), "type", typ, "error", err)
	}
}

func (ns *NotificationService) List(ctx context.Context, userID primitive.ObjectID, page models.Page) ([]*models.Notification, int64, error) {
	return ns.repo.ListNotifications(ctx, userID, page)
}

func (ns *NotificationService) UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return ns.repo.CountUnread(ctx, userID)
}

func (ns *NotificationService) MarkRead(ctx context.Context, userID, id primitive.ObjectID) error {
	return ns.repo.MarkNotificationRead(ctx, userID, id)
}

func (ns *NotificationService) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return ns.repo.MarkAllNotificationsRead(ctx, userID)
}
