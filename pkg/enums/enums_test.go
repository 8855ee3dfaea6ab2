package enums

import "testing"

func TestParseItemStatus(t *testing.T) {
	for _, status := range validItemStatuses {
		got, err := ParseItemStatus(string(status))
		if err != nil {
			t.Fatalf("ParseItemStatus(%q) returned error: %v", status, err)
		}
		if got != status {
			t.Fatalf("expected %q got %q", status, got)
		}
	}
	if _, err := ParseItemStatus("Expiring Soon"); err == nil {
		t.Fatal("expected display labels to be rejected")
	}
}

func TestItemStatusRemoteStatus(t *testing.T) {
	cases := map[ItemStatus]RemoteStatus{
		ItemStatusActive:       RemoteStatusActive,
		ItemStatusExpiringSoon: RemoteStatusActive,
		ItemStatusExpired:      RemoteStatusInactive,
		ItemStatusPending:      RemoteStatusInactive,
	}
	for status, want := range cases {
		if got := status.RemoteStatus(); got != want {
			t.Fatalf("%s: expected %s got %s", status, want, got)
		}
	}
}

func TestNotificationEnums(t *testing.T) {
	if !NotificationTypeInApp.IsValid() || NotificationType("sms").IsValid() {
		t.Fatal("unexpected notification type validity")
	}
	if NotificationPriority("medium").IsValid() {
		t.Fatal("medium is not a stored priority")
	}
	if NotificationPriorityHigh.Rank() >= NotificationPriorityLow.Rank() {
		t.Fatal("high priority must rank before low")
	}
	if !NotificationReasonItemRemoved.IsValid() {
		t.Fatal("item_removed should be valid")
	}
}
