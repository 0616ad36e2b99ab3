package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/fanjava-backend/internal/users"
	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	"github.com/angelmondragon/fanjava-backend/pkg/pagination"
)

// Repository exposes persistence helpers for notifications and receipts.
type Repository interface {
	ResolveRecipients(ctx context.Context, recipientType enums.RecipientType, targets []uuid.UUID) ([]uuid.UUID, error)
	Create(ctx context.Context, notification *models.Notification) error
	CreateWithReceipts(ctx context.Context, notification *models.Notification, userIDs []uuid.UUID) (int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Find(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	InsertReceipts(ctx context.Context, notificationID uuid.UUID, userIDs []uuid.UUID) (written, skipped int, err error)
	Stats(ctx context.Context, notificationID uuid.UUID) (ReceiptCounts, error)
	ToggleActive(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, params listParams) ([]InboxItem, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (markResult, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
}

// ReceiptCounts is the single aggregate row behind notification stats.
type ReceiptCounts struct {
	RecipientCount int64 `gorm:"column:recipient_count"`
	ReadCount      int64 `gorm:"column:read_count"`
}

// InboxItem joins a receipt with the notification it delivers.
type InboxItem struct {
	ReceiptID      uuid.UUID              `gorm:"column:receipt_id"`
	NotificationID uuid.UUID              `gorm:"column:notification_id"`
	Type           enums.NotificationType `gorm:"column:type"`
	Title          string                 `gorm:"column:title"`
	Body           string                 `gorm:"column:body"`
	Link           *string                `gorm:"column:link"`
	Active         bool                   `gorm:"column:active"`
	ReadAt         *time.Time             `gorm:"column:read_at"`
	CreatedAt      time.Time              `gorm:"column:created_at"`
}

type listParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     *pagination.Cursor
	UnreadOnly bool
}

type markResult struct {
	Updated bool
	Found   bool
}

type repositoryImpl struct {
	db    *gorm.DB
	users *users.Repository
}

// NewRepository returns a notifications repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db, users: users.NewRepository(db)}
}

// ResolveRecipients returns the live users of an audience. Specific targets
// that do not exist or are deactivated are dropped.
func (r *repositoryImpl) ResolveRecipients(ctx context.Context, recipientType enums.RecipientType, targets []uuid.UUID) ([]uuid.UUID, error) {
	if recipientType == enums.RecipientSpecific {
		return r.users.FilterActive(ctx, targets)
	}
	var role *enums.UserRole
	if value, ok := recipientType.Role(); ok {
		role = &value
	}
	return r.users.ListActiveIDs(ctx, role)
}

func (r *repositoryImpl) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *repositoryImpl) Find(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	var notification models.Notification
	if err := r.db.WithContext(ctx).Take(&notification, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &notification, nil
}

// CreateWithReceipts stores a notification and its receipts atomically. An id
// that already exists is kept as is, so only missing receipts are added.
func (r *repositoryImpl) CreateWithReceipts(ctx context.Context, notification *models.Notification, userIDs []uuid.UUID) (int, error) {
	var written int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(notification).Error; err != nil {
			return err
		}
		n, _, err := insertReceipts(ctx, tx, r.users.WithTx(tx), notification.ID, userIDs)
		written = n
		return err
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// Delete drops a notification together with its receipts.
func (r *repositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("notification_id = ?", id).Delete(&models.NotificationReceipt{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Notification{}).Error
	})
}

// InsertReceipts writes one batch. Users that vanished since resolution are
// skipped and existing receipts are left untouched.
func (r *repositoryImpl) InsertReceipts(ctx context.Context, notificationID uuid.UUID, userIDs []uuid.UUID) (int, int, error) {
	return insertReceipts(ctx, r.db, r.users, notificationID, userIDs)
}

func insertReceipts(ctx context.Context, conn *gorm.DB, people *users.Repository, notificationID uuid.UUID, userIDs []uuid.UUID) (int, int, error) {
	if len(userIDs) == 0 {
		return 0, 0, nil
	}
	live, err := people.FilterActive(ctx, userIDs)
	if err != nil {
		return 0, 0, err
	}
	skipped := len(userIDs) - len(live)
	if len(live) == 0 {
		return 0, skipped, nil
	}

	rows := make([]models.NotificationReceipt, 0, len(live))
	for _, id := range live {
		rows = append(rows, models.NotificationReceipt{NotificationID: notificationID, UserID: id})
	}
	res := conn.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows)
	if res.Error != nil {
		return 0, skipped, res.Error
	}
	return int(res.RowsAffected), skipped, nil
}

// Stats counts recipients and reads in one statement so both numbers come from
// the same snapshot.
func (r *repositoryImpl) Stats(ctx context.Context, notificationID uuid.UUID) (ReceiptCounts, error) {
	var counts ReceiptCounts
	err := r.db.WithContext(ctx).Model(&models.NotificationReceipt{}).
		Select("COUNT(*) AS recipient_count, COUNT(read_at) AS read_count").
		Where("notification_id = ?", notificationID).
		Scan(&counts).Error
	return counts, err
}

func (r *repositoryImpl) ToggleActive(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", id).
		UpdateColumn("active", gorm.Expr("NOT active"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repositoryImpl) inbox(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("notification_receipts").
		Joins("JOIN notifications ON notifications.id = notification_receipts.notification_id").
		Where("notification_receipts.user_id = ?", userID)
}

func (r *repositoryImpl) List(ctx context.Context, params listParams) ([]InboxItem, error) {
	query := r.inbox(ctx, params.UserID).Select(
		"notification_receipts.id AS receipt_id, notifications.id AS notification_id, " +
			"notifications.type, notifications.title, notifications.body, notifications.link, " +
			"notifications.active, notification_receipts.read_at, notification_receipts.created_at")
	if params.UnreadOnly {
		query = query.Where("notification_receipts.read_at IS NULL AND notifications.active = ?", true)
	}
	var items []InboxItem
	err := query.Scopes(pagination.Keyset("notification_receipts", params.Cursor, params.Limit)).
		Scan(&items).Error
	return items, err
}

// UnreadCount ignores deactivated notifications.
func (r *repositoryImpl) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.inbox(ctx, userID).
		Where("notification_receipts.read_at IS NULL AND notifications.active = ?", true).
		Count(&count).Error
	return count, err
}

func (r *repositoryImpl) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (markResult, error) {
	result := r.db.WithContext(ctx).
		Model(&models.NotificationReceipt{}).
		Where("notification_id = ? AND user_id = ? AND read_at IS NULL", notificationID, userID).
		UpdateColumn("read_at", now)
	if result.Error != nil {
		return markResult{}, result.Error
	}

	mark := markResult{Updated: result.RowsAffected > 0}
	if mark.Updated {
		mark.Found = true
		return mark, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.NotificationReceipt{}).
		Where("notification_id = ? AND user_id = ?", notificationID, userID).
		Count(&count).Error; err != nil {
		return markResult{}, err
	}
	mark.Found = count > 0
	return mark, nil
}

func (r *repositoryImpl) MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	active := r.db.Model(&models.Notification{}).Select("id").Where("active = ?", true)
	result := r.db.WithContext(ctx).
		Model(&models.NotificationReceipt{}).
		Where("user_id = ? AND read_at IS NULL AND notification_id IN (?)", userID, active).
		UpdateColumn("read_at", now)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
