package enums

import "fmt"

// NotificationType categorises notifications for clients.
type NotificationType string

const (
	NotificationTypeGeneral     NotificationType = "general"
	NotificationTypeOrder       NotificationType = "order"
	NotificationTypeOrderStatus NotificationType = "order_status"
	NotificationTypeStock       NotificationType = "stock"
	NotificationTypePayment     NotificationType = "payment"
	NotificationTypeReview      NotificationType = "review"
	NotificationTypeAccount     NotificationType = "account"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeGeneral,
	NotificationTypeOrder,
	NotificationTypeOrderStatus,
	NotificationTypeStock,
	NotificationTypePayment,
	NotificationTypeReview,
	NotificationTypeAccount,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}

// RecipientType selects the audience of a broadcast.
type RecipientType string

const (
	RecipientAll      RecipientType = "all"
	RecipientClients  RecipientType = "clients"
	RecipientVendors  RecipientType = "vendors"
	RecipientSpecific RecipientType = "specific"
)

var validRecipientTypes = []RecipientType{
	RecipientAll,
	RecipientClients,
	RecipientVendors,
	RecipientSpecific,
}

func (r RecipientType) IsValid() bool {
	for _, candidate := range validRecipientTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// Role returns the user role an audience is restricted to, if any.
func (r RecipientType) Role() (UserRole, bool) {
	switch r {
	case RecipientClients:
		return UserRoleClient, true
	case RecipientVendors:
		return UserRoleVendor, true
	default:
		return "", false
	}
}
