package items

import (
	"fmt"
	"time"

	"github.com/angelmondragon/expiry-tracker/internal/notifications"
	"github.com/angelmondragon/expiry-tracker/pkg/calendar"
	"github.com/angelmondragon/expiry-tracker/pkg/config"
	"github.com/angelmondragon/expiry-tracker/pkg/db/models"
	"github.com/angelmondragon/expiry-tracker/pkg/enums"
	"github.com/google/uuid"
)

const (
	defaultExpiringSoonDays = 30
	defaultPendingGrace     = 24 * time.Hour
)

// Policy holds the thresholds the lifecycle engine evaluates against.
type Policy struct {
	ExpiringSoonDays int
	PendingGrace     time.Duration
	// PendingFallback labels undated items as expiring soon, with a synthetic
	// threshold-day countdown, once the pending grace has elapsed.
	PendingFallback bool
	Location        *time.Location
}

// PolicyFromConfig builds a Policy from loaded configuration.
func PolicyFromConfig(cfg *config.Config) (Policy, error) {
	if cfg == nil {
		return Policy{}, fmt.Errorf("config required")
	}
	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return Policy{}, err
	}
	return Policy{
		ExpiringSoonDays: cfg.Notifications.ExpiringSoonDays,
		PendingGrace:     cfg.Notifications.PendingGrace,
		PendingFallback:  cfg.FeatureFlags.PendingFallback,
		Location:         loc,
	}.normalized(), nil
}

func (p Policy) normalized() Policy {
	if p.ExpiringSoonDays <= 0 {
		p.ExpiringSoonDays = defaultExpiringSoonDays
	}
	if p.PendingGrace <= 0 {
		p.PendingGrace = defaultPendingGrace
	}
	if p.Location == nil {
		p.Location = time.UTC
	}
	return p
}

// RemoteSyncIntent asks the remote adapter to mirror a local status.
type RemoteSyncIntent struct {
	UserID     uuid.UUID
	ItemID     uuid.UUID
	ExternalID string
	Status     enums.RemoteStatus
}

// Transition is the outcome of a recognized recompute. It carries every side
// effect the dispatcher must execute.
type Transition struct {
	ItemID          uuid.UUID
	UserID          uuid.UUID
	Name            string
	From            enums.ItemStatus
	To              enums.ItemStatus
	At              time.Time
	DaysUntilExpiry *int
	Forced          bool
	Notifications   []notifications.Intent
	Remote          *RemoteSyncIntent
}

// Changed reports whether the stored status moves.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Apply writes the transition onto item. status_changed_at only moves when the
// status does, so forced recomputes never extend a grace window.
func (t Transition) Apply(item *models.Item) {
	if !t.Changed() {
		return
	}
	at := t.At.UTC()
	item.Status = t.To
	item.StatusChangedAt = &at
	item.ExpiryReportedAt = nil
}

// Evaluate computes the status item should hold at now, plus the day count used
// for messaging. Days is nil when the item is pending.
func Evaluate(item models.Item, now time.Time, p Policy) (enums.ItemStatus, *int) {
	p = p.normalized()
	if item.ExpiryDate != nil {
		days := calendar.DaysUntil(now, *item.ExpiryDate, p.Location)
		switch {
		case days <= 0:
			return enums.ItemStatusExpired, &days
		case days <= p.ExpiringSoonDays:
			return enums.ItemStatusExpiringSoon, &days
		default:
			return enums.ItemStatusActive, &days
		}
	}

	switch item.Status {
	case enums.ItemStatusPending:
		anchor := item.CreatedAt
		if item.StatusChangedAt != nil {
			anchor = *item.StatusChangedAt
		}
		if anchor.IsZero() || now.Sub(anchor) <= p.PendingGrace || !p.PendingFallback {
			return enums.ItemStatusPending, nil
		}
		days := p.ExpiringSoonDays
		return enums.ItemStatusExpiringSoon, &days
	case enums.ItemStatusExpiringSoon:
		if p.PendingFallback {
			days := p.ExpiringSoonDays
			return enums.ItemStatusExpiringSoon, &days
		}
	}
	return enums.ItemStatusPending, nil
}

// Recompute derives the item's status at now. It returns ok=false when the
// status is unchanged and force is not set; the caller then has nothing to do.
func Recompute(item models.Item, now time.Time, p Policy, force bool) (Transition, bool) {
	next, days := Evaluate(item, now, p)
	if next == item.Status && !force {
		return Transition{}, false
	}

	t := Transition{
		ItemID:          item.ID,
		UserID:          item.UserID,
		Name:            item.Name,
		From:            item.Status,
		To:              next,
		At:              now.UTC(),
		DaysUntilExpiry: days,
		Forced:          force,
	}

	itemID := item.ID
	switch next {
	case enums.ItemStatusExpired:
		t.Notifications = append(t.Notifications, notifications.Intent{
			UserID:   item.UserID,
			ItemID:   &itemID,
			Type:     enums.NotificationTypeInApp,
			Reason:   enums.NotificationReasonExpired,
			Priority: enums.NotificationPriorityHigh,
			Message:  fmt.Sprintf("Item '%s' has expired", item.Name),
		})
	case enums.ItemStatusExpiringSoon:
		n := 0
		if days != nil {
			n = *days
		}
		t.Notifications = append(t.Notifications, notifications.Intent{
			UserID:   item.UserID,
			ItemID:   &itemID,
			Type:     enums.NotificationTypeInApp,
			Reason:   enums.NotificationReasonExpiringSoon,
			Priority: enums.NotificationPriorityNormal,
			Message:  fmt.Sprintf("Item '%s' is expiring in %d days", item.Name, n),
		})
	}

	if item.IsLinked() {
		t.Remote = &RemoteSyncIntent{
			UserID:     item.UserID,
			ItemID:     item.ID,
			ExternalID: *item.ExternalID,
			Status:     next.RemoteStatus(),
		}
	}
	return t, true
}
