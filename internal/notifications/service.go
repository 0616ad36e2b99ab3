package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fanjava-backend/internal/analytics"
	"github.com/angelmondragon/fanjava-backend/pkg/config"
	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/fanjava-backend/pkg/db/types"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fanjava-backend/pkg/errors"
	"github.com/angelmondragon/fanjava-backend/pkg/logger"
	"github.com/angelmondragon/fanjava-backend/pkg/pagination"
)

// Service defines broadcast, inbox and moderation operations.
type Service interface {
	Broadcast(ctx context.Context, input BroadcastInput) (*BroadcastResult, error)
	Notify(ctx context.Context, input NotifyInput) (int, error)
	Stats(ctx context.Context, notificationID uuid.UUID) (*Stats, error)
	ToggleActive(ctx context.Context, notificationID uuid.UUID) (*NotificationDTO, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

type deliverer interface {
	Deliver(ctx context.Context, notificationID uuid.UUID, recipients []uuid.UUID) (int, error)
	Enqueue(ctx context.Context, notificationID uuid.UUID, recipients []uuid.UUID) error
}

// BroadcastInput is an admin broadcast request.
type BroadcastInput struct {
	CreatedBy     uuid.UUID
	RecipientType enums.RecipientType
	TargetIDs     []uuid.UUID
	Type          enums.NotificationType
	Title         string
	Body          string
	Link          *string
}

// BroadcastResult reports either the achieved fan-out or, when Queued, the
// resolved audience size. Incomplete is set when some receipt batches failed;
// RecipientCount then counts only the receipts that were written.
type BroadcastResult struct {
	NotificationID uuid.UUID `json:"notification_id"`
	RecipientCount int       `json:"recipient_count"`
	ResolvedCount  int       `json:"resolved_count"`
	Queued         bool      `json:"queued"`
	Incomplete     bool      `json:"incomplete,omitempty"`
}

// NotifyInput is a system notification addressed to specific users. A non-nil
// ID makes the call repeatable: the notification is stored once and a repeat
// only adds receipts that are still missing.
type NotifyInput struct {
	ID         uuid.UUID
	Type       enums.NotificationType
	Title      string
	Body       string
	Link       *string
	Recipients []uuid.UUID
}

// Stats describes how a notification was received.
type Stats struct {
	NotificationID uuid.UUID         `json:"notification_id"`
	Active         bool              `json:"active"`
	RecipientCount int64             `json:"recipient_count"`
	ReadCount      int64             `json:"read_count"`
	UnreadCount    int64             `json:"unread_count"`
	ReadPercentage analytics.Percent `json:"read_percentage"`
}

// NotificationDTO is the admin view of a notification.
type NotificationDTO struct {
	ID            uuid.UUID              `json:"id"`
	Type          enums.NotificationType `json:"type"`
	Title         string                 `json:"title"`
	Body          string                 `json:"body"`
	Link          *string                `json:"link,omitempty"`
	RecipientType enums.RecipientType    `json:"recipient_type"`
	TargetIDs     []uuid.UUID            `json:"target_ids"`
	Active        bool                   `json:"active"`
	CreatedBy     *uuid.UUID             `json:"created_by,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// ListParams configures the caller's inbox page.
type ListParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// InboxItemDTO is one received notification.
type InboxItemDTO struct {
	NotificationID uuid.UUID              `json:"notification_id"`
	Type           enums.NotificationType `json:"type"`
	Title          string                 `json:"title"`
	Body           string                 `json:"body"`
	Link           *string                `json:"link,omitempty"`
	Active         bool                   `json:"active"`
	Read           bool                   `json:"read"`
	ReadAt         *time.Time             `json:"read_at,omitempty"`
	ReceivedAt     time.Time              `json:"received_at"`
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []InboxItemDTO `json:"items"`
	Cursor string         `json:"cursor"`
}

type service struct {
	repo      Repository
	fanout    deliverer
	syncLimit int
	logg      *logger.Logger
	now       func() time.Time
}

// NewService wires notifications dependencies.
func NewService(repo Repository, fanout deliverer, cfg config.NotificationsConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if fanout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notification fan-out required")
	}
	return &service{
		repo:      repo,
		fanout:    fanout,
		syncLimit: cfg.SyncLimit,
		logg:      logg,
		now:       time.Now,
	}, nil
}

func (s *service) Broadcast(ctx context.Context, input BroadcastInput) (*BroadcastResult, error) {
	if !input.RecipientType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid recipient_type %q", input.RecipientType))
	}
	targets := dbtypes.UUIDArray(input.TargetIDs).Dedupe()
	if input.RecipientType == enums.RecipientSpecific && len(targets) == 0 {
		return nil, noRecipients()
	}
	if input.RecipientType != enums.RecipientSpecific {
		targets = dbtypes.UUIDArray{}
	}
	notification, err := buildNotification(input.Type, input.Title, input.Body, input.Link)
	if err != nil {
		return nil, err
	}

	recipients, err := s.repo.ResolveRecipients(ctx, input.RecipientType, targets)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve recipients")
	}
	if len(recipients) == 0 {
		return nil, noRecipients()
	}

	notification.RecipientType = input.RecipientType
	notification.TargetIDs = targets
	if input.CreatedBy != uuid.Nil {
		createdBy := input.CreatedBy
		notification.CreatedBy = &createdBy
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}

	result := &BroadcastResult{NotificationID: notification.ID, ResolvedCount: len(recipients)}
	if s.syncLimit > 0 && len(recipients) > s.syncLimit {
		err := s.fanout.Enqueue(ctx, notification.ID, recipients)
		if err == nil {
			result.Queued = true
			return result, nil
		}
		if !errors.Is(err, ErrQueueFull) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue notification fan-out")
		}
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "notification_id", notification.ID.String()), "fan-out queue full; delivering inline")
		}
	}

	written, err := s.fanout.Deliver(ctx, notification.ID, recipients)
	if err != nil && written == 0 {
		s.discard(ctx, notification.ID)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deliver notification")
	}
	result.RecipientCount = written
	result.Incomplete = err != nil
	return result, nil
}

// discard removes a notification nobody received.
func (s *service) discard(ctx context.Context, notificationID uuid.UUID) {
	if err := s.repo.Delete(ctx, notificationID); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithField(ctx, "notification_id", notificationID.String()), "discard undelivered notification", err)
	}
}

// Notify stores a system notification and its receipts in one transaction.
// Recipients are treated as a specific audience.
func (s *service) Notify(ctx context.Context, input NotifyInput) (int, error) {
	targets := dbtypes.UUIDArray(input.Recipients).Dedupe()
	if len(targets) == 0 {
		return 0, noRecipients()
	}
	notification, err := buildNotification(input.Type, input.Title, input.Body, input.Link)
	if err != nil {
		return 0, err
	}
	notification.ID = input.ID
	notification.RecipientType = enums.RecipientSpecific
	notification.TargetIDs = targets
	written, err := s.repo.CreateWithReceipts(ctx, notification, targets)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	return written, nil
}

func (s *service) Stats(ctx context.Context, notificationID uuid.UUID) (*Stats, error) {
	notification, err := s.find(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.Stats(ctx, notificationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "notification stats")
	}
	return &Stats{
		NotificationID: notificationID,
		Active:         notification.Active,
		RecipientCount: counts.RecipientCount,
		ReadCount:      counts.ReadCount,
		UnreadCount:    counts.RecipientCount - counts.ReadCount,
		ReadPercentage: analytics.Percentage(counts.ReadCount, counts.RecipientCount),
	}, nil
}

func (s *service) ToggleActive(ctx context.Context, notificationID uuid.UUID) (*NotificationDTO, error) {
	found, err := s.repo.ToggleActive(ctx, notificationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "toggle notification")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	notification, err := s.find(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	dto := newNotificationDTO(notification)
	return &dto, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.List(ctx, listParams{
		UserID:     params.UserID,
		Limit:      params.Limit,
		Cursor:     cursor,
		UnreadOnly: params.UnreadOnly,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	rows, next := pagination.Trim(rows, params.Limit, func(item InboxItem) pagination.Cursor {
		return pagination.Cursor{CreatedAt: item.CreatedAt, ID: item.ReceiptID}
	})

	items := make([]InboxItemDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, InboxItemDTO{
			NotificationID: row.NotificationID,
			Type:           row.Type,
			Title:          row.Title,
			Body:           row.Body,
			Link:           row.Link,
			Active:         row.Active,
			Read:           row.ReadAt != nil,
			ReadAt:         row.ReadAt,
			ReceivedAt:     row.CreatedAt,
		})
	}
	return &ListResult{Items: items, Cursor: next}, nil
}

func (s *service) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	count, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}
	return count, nil
}

func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, userID, notificationID, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	count, err := s.repo.MarkAllRead(ctx, userID, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}

func (s *service) find(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	notification, err := s.repo.Find(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load notification")
	}
	return notification, nil
}

func buildNotification(kind enums.NotificationType, title, body string, link *string) (*models.Notification, error) {
	if kind == "" {
		kind = enums.NotificationTypeGeneral
	}
	if !kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid notification type %q", kind))
	}
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	if title == "" || body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title and body are required")
	}
	if link != nil {
		trimmed := strings.TrimSpace(*link)
		link = &trimmed
		if trimmed == "" {
			link = nil
		}
	}
	return &models.Notification{Type: kind, Title: title, Body: body, Link: link, Active: true}, nil
}

func newNotificationDTO(n *models.Notification) NotificationDTO {
	targets := []uuid.UUID(n.TargetIDs)
	if targets == nil {
		targets = []uuid.UUID{}
	}
	return NotificationDTO{
		ID:            n.ID,
		Type:          n.Type,
		Title:         n.Title,
		Body:          n.Body,
		Link:          n.Link,
		RecipientType: n.RecipientType,
		TargetIDs:     targets,
		Active:        n.Active,
		CreatedBy:     n.CreatedBy,
		CreatedAt:     n.CreatedAt,
	}
}

func noRecipients() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "no recipients")
}
