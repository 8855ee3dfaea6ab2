package notifications

import (
	"fmt"

	"github.com/angelmondragon/expiry-tracker/pkg/enums"
	"github.com/google/uuid"
)

// Intent is a decision that a notification is owed, prior to persistence or
// delivery.
type Intent struct {
	UserID   uuid.UUID
	ItemID   *uuid.UUID
	Type     enums.NotificationType
	Reason   enums.NotificationReason
	Priority enums.NotificationPriority
	Status   enums.NotificationStatus
	Message  string
}

// PriorityForDays buckets days-until-expiry into a delivery priority.
func PriorityForDays(days int) enums.NotificationPriority {
	switch {
	case days <= 3:
		return enums.NotificationPriorityHigh
	case days <= 7:
		return enums.NotificationPriorityNormal
	default:
		return enums.NotificationPriorityLow
	}
}

// ReminderMessage is the in-app text for an item days away from expiry.
func ReminderMessage(name string, days int) string {
	switch {
	case days <= 1:
		return fmt.Sprintf("Critical: %s expires tomorrow!", name)
	case days <= 3:
		return fmt.Sprintf("Warning: %s expires in %d days!", name, days)
	case days <= 7:
		return fmt.Sprintf("Notice: %s expires in %d days.", name, days)
	default:
		return fmt.Sprintf("Info: %s expires in %d days.", name, days)
	}
}

// IsNotificationDay reports whether days matches one of the configured reminder
// offsets.
func IsNotificationDay(days int, offsets []int) bool {
	for _, offset := range offsets {
		if offset == days {
			return true
		}
	}
	return false
}
