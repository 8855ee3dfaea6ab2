package notifications

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/angelmondragon/expiry-tracker/pkg/calendar"
	"github.com/angelmondragon/expiry-tracker/pkg/config"
	"github.com/angelmondragon/expiry-tracker/pkg/db/models"
	"github.com/angelmondragon/expiry-tracker/pkg/enums"
	"github.com/angelmondragon/expiry-tracker/pkg/logger"
	"github.com/angelmondragon/expiry-tracker/pkg/mailer"
	"github.com/angelmondragon/expiry-tracker/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const (
	digestSentMessage = "Daily expiry alert email sent"
	testItemPrefix    = "test"
)

type candidateSource interface {
	ListDigestCandidates(ctx context.Context) ([]models.Item, error)
	MarkExpiryReported(ctx context.Context, itemIDs []uuid.UUID, at time.Time) error
}

type userDirectory interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
}

// Sender is the email transport.
type Sender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

type DigestSweeperParams struct {
	Logger     *logger.Logger
	Items      candidateSource
	Users      userDirectory
	Repository Repository
	Recorder   *Recorder
	Mailer     Sender
	Renderer   *Renderer
	Metrics    *metrics.ExpiryMetrics
	Config     config.NotificationsConfig
	Location   *time.Location
}

// DigestResult summarises one sweep.
type DigestResult struct {
	Candidates int
	Reminders  int
	Sent       int
	Failed     int
	Skipped    int
}

// DigestSweeper sends at most one batched email per user per rolling window and
// records in-app reminders on the configured notification days.
type DigestSweeper struct {
	logg     *logger.Logger
	items    candidateSource
	users    userDirectory
	repo     Repository
	recorder *Recorder
	mailer   Sender
	renderer *Renderer
	metrics  *metrics.ExpiryMetrics
	cfg      config.NotificationsConfig
	loc      *time.Location
}

func NewDigestSweeper(params DigestSweeperParams) (*DigestSweeper, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Items == nil {
		return nil, fmt.Errorf("item source required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user directory required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if params.Recorder == nil {
		return nil, fmt.Errorf("recorder required")
	}
	if params.Mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if params.Renderer == nil {
		return nil, fmt.Errorf("renderer required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	cfg := params.Config
	if cfg.DigestWindow <= 0 {
		cfg.DigestWindow = 24 * time.Hour
	}
	if cfg.DigestSubject == "" {
		cfg.DigestSubject = "Items needing your attention"
	}
	return &DigestSweeper{
		logg:     params.Logger,
		items:    params.Items,
		users:    params.Users,
		repo:     params.Repository,
		recorder: params.Recorder,
		mailer:   params.Mailer,
		renderer: params.Renderer,
		metrics:  params.Metrics,
		cfg:      cfg,
		loc:      loc,
	}, nil
}

type candidate struct {
	item     models.Item
	days     int
	priority enums.NotificationPriority
}

// Run performs one sweep as of now. Transport failures are counted and logged
// per user; only storage errors are returned.
func (s *DigestSweeper) Run(ctx context.Context, now time.Time) (DigestResult, error) {
	var result DigestResult

	items, err := s.items.ListDigestCandidates(ctx)
	if err != nil {
		return result, fmt.Errorf("list digest candidates: %w", err)
	}
	result.Candidates = len(items)
	if len(items) == 0 {
		return result, nil
	}

	byUser := map[uuid.UUID][]candidate{}
	for _, item := range items {
		if item.ExpiryDate == nil {
			continue
		}
		days := calendar.DaysUntil(now, *item.ExpiryDate, s.loc)
		byUser[item.UserID] = append(byUser[item.UserID], candidate{
			item:     item,
			days:     days,
			priority: PriorityForDays(days),
		})
	}

	userIDs := make([]uuid.UUID, 0, len(byUser))
	for id := range byUser {
		userIDs = append(userIDs, id)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i].String() < userIDs[j].String() })

	found, err := s.users.FindByIDs(ctx, userIDs)
	if err != nil {
		return result, fmt.Errorf("load digest recipients: %w", err)
	}
	users := make(map[uuid.UUID]models.User, len(found))
	for _, user := range found {
		users[user.ID] = user
	}

	var errs error
	for _, userID := range userIDs {
		userCtx := s.logg.WithUserID(ctx, userID.String())
		user, ok := users[userID]
		if !ok {
			s.logg.Warn(userCtx, "digest owner not found")
			s.skip(&result)
			continue
		}
		group := byUser[userID]

		reminders, err := s.recordReminders(userCtx, user, group, now)
		result.Reminders += reminders
		errs = multierr.Append(errs, err)

		errs = multierr.Append(errs, s.deliver(userCtx, user, group, now, &result))
	}
	return result, errs
}

func (s *DigestSweeper) recordReminders(ctx context.Context, user models.User, group []candidate, now time.Time) (int, error) {
	if !user.InAppNotifications {
		return 0, nil
	}
	var (
		count int
		errs  error
	)
	for _, c := range group {
		if c.days <= 0 || !IsNotificationDay(c.days, s.cfg.Days) {
			continue
		}
		itemID := c.item.ID
		created, err := s.recorder.Record(ctx, Intent{
			UserID:   user.ID,
			ItemID:   &itemID,
			Type:     enums.NotificationTypeInApp,
			Reason:   enums.NotificationReasonExpiryReminder,
			Priority: c.priority,
			Message:  ReminderMessage(c.item.Name, c.days),
		}, now)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if created {
			count++
		}
	}
	return count, errs
}

func (s *DigestSweeper) deliver(ctx context.Context, user models.User, group []candidate, now time.Time, result *DigestResult) error {
	if !user.EmailNotifications || strings.TrimSpace(user.Email) == "" {
		s.logg.Info(ctx, "digest skipped: email notifications disabled or no address")
		s.skip(result)
		return nil
	}

	eligible := s.filter(group)
	if len(eligible) == 0 {
		return nil
	}

	last, err := s.repo.LastSentEmailAt(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load last digest for %s: %w", user.ID, err)
	}
	if last != nil && now.Sub(*last) < s.cfg.DigestWindow {
		ctx = s.logg.WithField(ctx, "last_sent_at", last.UTC())
		s.logg.Info(ctx, "digest skipped: already sent within window")
		s.skip(result)
		return nil
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].days != eligible[j].days {
			return eligible[i].days < eligible[j].days
		}
		return eligible[i].item.Name < eligible[j].item.Name
	})

	body, err := s.renderer.Render(DigestContext{
		Subject:     s.cfg.DigestSubject,
		UserName:    user.Name,
		Items:       toDigestItems(eligible),
		GeneratedAt: now,
	})
	if err != nil {
		return err
	}

	err = s.mailer.Send(ctx, mailer.Message{
		To:       []string{user.Email},
		Subject:  s.cfg.DigestSubject,
		HTMLBody: body,
	})
	if err != nil {
		s.logg.Error(ctx, "digest delivery failed", err)
		result.Failed++
		s.metrics.IncDigest(metrics.OutcomeFailed)
		return nil
	}
	result.Sent++
	s.metrics.IncDigest(metrics.OutcomeSent)

	anchor := eligible[0]
	anchorID := anchor.item.ID
	if _, err := s.recorder.Record(ctx, Intent{
		UserID:   user.ID,
		ItemID:   &anchorID,
		Type:     enums.NotificationTypeEmail,
		Reason:   enums.NotificationReasonDailyDigest,
		Priority: anchor.priority,
		Status:   enums.NotificationStatusSent,
		Message:  digestSentMessage,
	}, now); err != nil {
		return err
	}

	var expired []uuid.UUID
	for _, c := range eligible {
		if c.days <= 0 {
			expired = append(expired, c.item.ID)
		}
	}
	if len(expired) > 0 {
		if err := s.items.MarkExpiryReported(ctx, expired, now.UTC()); err != nil {
			return fmt.Errorf("mark expiry reported: %w", err)
		}
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"items": len(eligible), "anchor_item_id": anchorID.String()})
	s.logg.Info(ctx, "digest sent")
	return nil
}

func (s *DigestSweeper) filter(group []candidate) []candidate {
	out := make([]candidate, 0, len(group))
	for _, c := range group {
		if s.cfg.ExcludeTestItemName && strings.HasPrefix(strings.ToLower(strings.TrimSpace(c.item.Name)), testItemPrefix) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *DigestSweeper) skip(result *DigestResult) {
	result.Skipped++
	s.metrics.IncDigest(metrics.OutcomeSkipped)
}

func toDigestItems(group []candidate) []DigestItem {
	out := make([]DigestItem, 0, len(group))
	for _, c := range group {
		out = append(out, DigestItem{
			Name:            c.item.Name,
			ExpiryDate:      *c.item.ExpiryDate,
			DaysUntilExpiry: c.days,
			Priority:        c.priority,
		})
	}
	return out
}
