package enums

import "fmt"

// NotificationType is the delivery channel of a notification record.
type NotificationType string

const (
	NotificationTypeEmail NotificationType = "email"
	NotificationTypeInApp NotificationType = "in_app"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeEmail,
	NotificationTypeInApp,
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

type NotificationPriority string

const (
	NotificationPriorityHigh   NotificationPriority = "high"
	NotificationPriorityNormal NotificationPriority = "normal"
	NotificationPriorityLow    NotificationPriority = "low"
)

func (p NotificationPriority) IsValid() bool {
	switch p {
	case NotificationPriorityHigh, NotificationPriorityNormal, NotificationPriorityLow:
		return true
	}
	return false
}

// Rank orders priorities so that high sorts first.
func (p NotificationPriority) Rank() int {
	switch p {
	case NotificationPriorityHigh:
		return 0
	case NotificationPriorityNormal:
		return 1
	default:
		return 2
	}
}

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

func (s NotificationStatus) IsValid() bool {
	switch s {
	case NotificationStatusPending, NotificationStatusSent, NotificationStatusFailed:
		return true
	}
	return false
}

// NotificationReason identifies why a record was written. Together with the
// owner, item and calendar day it forms the dedup key.
type NotificationReason string

const (
	NotificationReasonExpired        NotificationReason = "expired"
	NotificationReasonExpiringSoon   NotificationReason = "expiring_soon"
	NotificationReasonExpiryReminder NotificationReason = "expiry_reminder"
	NotificationReasonItemRemoved    NotificationReason = "item_removed"
	NotificationReasonDailyDigest    NotificationReason = "daily_digest"
)

var validNotificationReasons = []NotificationReason{
	NotificationReasonExpired,
	NotificationReasonExpiringSoon,
	NotificationReasonExpiryReminder,
	NotificationReasonItemRemoved,
	NotificationReasonDailyDigest,
}

func (r NotificationReason) IsValid() bool {
	for _, candidate := range validNotificationReasons {
		if candidate == r {
			return true
		}
	}
	return false
}
