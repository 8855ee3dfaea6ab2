package enums

import "fmt"

// ItemStatus is the lifecycle state derived from an item's expiry date.
type ItemStatus string

const (
	ItemStatusPending      ItemStatus = "pending"
	ItemStatusActive       ItemStatus = "active"
	ItemStatusExpiringSoon ItemStatus = "expiring_soon"
	ItemStatusExpired      ItemStatus = "expired"
)

var validItemStatuses = []ItemStatus{
	ItemStatusPending,
	ItemStatusActive,
	ItemStatusExpiringSoon,
	ItemStatusExpired,
}

var itemStatusLabels = map[ItemStatus]string{
	ItemStatusPending:      "Pending Expiry Date",
	ItemStatusActive:       "Active",
	ItemStatusExpiringSoon: "Expiring Soon",
	ItemStatusExpired:      "Expired",
}

// String implements fmt.Stringer.
func (s ItemStatus) String() string {
	return string(s)
}

// Label is the human readable form used in notifications and emails.
func (s ItemStatus) Label() string {
	if label, ok := itemStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// IsValid reports whether the value is a known ItemStatus.
func (s ItemStatus) IsValid() bool {
	for _, candidate := range validItemStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// RemoteStatus maps a local status onto the remote inventory's active flag.
func (s ItemStatus) RemoteStatus() RemoteStatus {
	switch s {
	case ItemStatusActive, ItemStatusExpiringSoon:
		return RemoteStatusActive
	default:
		return RemoteStatusInactive
	}
}

// ParseItemStatus converts raw input into an ItemStatus.
func ParseItemStatus(value string) (ItemStatus, error) {
	for _, candidate := range validItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid item status %q", value)
}

// RemoteStatus mirrors the active/inactive flag of the remote inventory service.
type RemoteStatus string

const (
	RemoteStatusActive   RemoteStatus = "active"
	RemoteStatusInactive RemoteStatus = "inactive"
)

func (s RemoteStatus) String() string {
	return string(s)
}

func (s RemoteStatus) IsValid() bool {
	return s == RemoteStatusActive || s == RemoteStatusInactive
}
