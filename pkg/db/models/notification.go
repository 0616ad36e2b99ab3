package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/fanjava-backend/pkg/db/types"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
)

// Notification is the immutable broadcast body. Only Active changes after creation.
type Notification struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	Type          enums.NotificationType `gorm:"column:type;type:text;not null"`
	Title         string                 `gorm:"column:title;not null"`
	Body          string                 `gorm:"column:body;not null"`
	Link          *string                `gorm:"column:link"`
	RecipientType enums.RecipientType    `gorm:"column:recipient_type;type:text;not null"`
	TargetIDs     dbtypes.UUIDArray      `gorm:"column:target_ids;type:uuid[];not null"`
	Active        bool                   `gorm:"column:active;not null"`
	CreatedBy     *uuid.UUID             `gorm:"column:created_by;type:uuid"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	assignID(&n.ID)
	return nil
}

// NotificationReceipt records delivery of a notification to one user.
type NotificationReceipt struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	NotificationID uuid.UUID  `gorm:"column:notification_id;type:uuid;not null;uniqueIndex:notification_receipts_notification_user_key"`
	UserID         uuid.UUID  `gorm:"column:user_id;type:uuid;not null;uniqueIndex:notification_receipts_notification_user_key"`
	ReadAt         *time.Time `gorm:"column:read_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (r *NotificationReceipt) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}
