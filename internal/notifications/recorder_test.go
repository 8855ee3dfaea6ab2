package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/expiry-tracker/pkg/db/dbtest"
	"github.com/angelmondragon/expiry-tracker/pkg/db/models"
	"github.com/angelmondragon/expiry-tracker/pkg/enums"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_DefaultsAndDedup(t *testing.T) {
	conn := dbtest.Open(t)
	user := dbtest.SeedUser(t, conn)
	item := dbtest.SeedItem(t, conn, user.ID)

	london, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	recorder, err := NewRecorder(NewRepository(conn), london)
	require.NoError(t, err)

	// 23:30 UTC on 31 May is already 1 June in London.
	now := time.Date(2026, time.May, 31, 23, 30, 0, 0, time.UTC)
	intent := Intent{
		UserID:   user.ID,
		ItemID:   &item.ID,
		Reason:   enums.NotificationReasonExpired,
		Priority: "urgent",
		Message:  "Item 'Milk' has expired",
	}

	created, err := recorder.Record(context.Background(), intent, now)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = recorder.Record(context.Background(), intent, now.Add(10*time.Minute))
	require.NoError(t, err)
	assert.False(t, created)

	var rows []models.Notification
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.NotificationTypeInApp, rows[0].Type)
	assert.Equal(t, enums.NotificationStatusPending, rows[0].Status)
	assert.Equal(t, enums.NotificationPriorityNormal, rows[0].Priority)
	assert.Equal(t, time.June, rows[0].NotifyDate.Month())
	assert.Equal(t, 1, rows[0].NotifyDate.Day())
}

func TestNewRecorder_RequiresRepository(t *testing.T) {
	_, err := NewRecorder(nil, nil)
	require.Error(t, err)
}

func TestPriorityAndMessageTiers(t *testing.T) {
	assert.Equal(t, enums.NotificationPriorityHigh, PriorityForDays(3))
	assert.Equal(t, enums.NotificationPriorityNormal, PriorityForDays(7))
	assert.Equal(t, enums.NotificationPriorityLow, PriorityForDays(15))

	assert.Equal(t, "Critical: Milk expires tomorrow!", ReminderMessage("Milk", 1))
	assert.Equal(t, "Warning: Milk expires in 3 days!", ReminderMessage("Milk", 3))
	assert.Equal(t, "Notice: Milk expires in 7 days.", ReminderMessage("Milk", 7))
	assert.Equal(t, "Info: Milk expires in 30 days.", ReminderMessage("Milk", 30))

	assert.True(t, IsNotificationDay(7, []int{30, 15, 7, 3, 1}))
	assert.False(t, IsNotificationDay(8, []int{30, 15, 7, 3, 1}))
}
