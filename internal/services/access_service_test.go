package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vladimiradmaev/food-diary/internal/database"
)

func TestCheckEnableRequestsAdmin(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccessService(db, 7)

	user := &database.User{TgUserID: "100", IsAdmin: true}
	// Admin access ignores trial windows entirely, even ancient accounts.
	user.CreatedAt = time.Now().UTC().AddDate(-1, 0, 0)
	require.NoError(t, db.Create(user).Error)

	allowed, err := svc.CheckEnableRequests(context.Background(), user)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCheckEnableRequestsFreeTrial(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccessService(db, 7)

	fresh := &database.User{TgUserID: "101"}
	fresh.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, db.Create(fresh).Error)

	allowed, err := svc.CheckEnableRequests(context.Background(), fresh)
	require.NoError(t, err)
	assert.True(t, allowed)

	expired := &database.User{TgUserID: "102"}
	expired.CreatedAt = time.Now().UTC().AddDate(0, 0, -8)
	require.NoError(t, db.Create(expired).Error)

	allowed, err = svc.CheckEnableRequests(context.Background(), expired)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCheckEnableRequestsTrialBoundary(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccessService(db, 7)

	// Created exactly the window length ago: the deadline has already been
	// reached, so access is denied.
	user := &database.User{TgUserID: "103"}
	user.CreatedAt = time.Now().UTC().Add(-7 * 24 * time.Hour)
	require.NoError(t, db.Create(user).Error)

	allowed, err := svc.CheckEnableRequests(context.Background(), user)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCheckEnableRequestsSubscription(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccessService(db, 7)

	user := &database.User{TgUserID: "104"}
	user.CreatedAt = time.Now().UTC().AddDate(0, -2, 0)
	require.NoError(t, db.Create(user).Error)

	future := time.Now().UTC().AddDate(0, 1, 0)
	require.NoError(t, db.Create(&database.UserRequest{
		UserID:           user.ID,
		SubscribeDateEnd: &future,
		NextUpdFree:      NextMonday(time.Now().UTC()),
	}).Error)

	allowed, err := svc.CheckEnableRequests(context.Background(), user)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCheckEnableRequestsExpiredSubscription(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccessService(db, 7)

	user := &database.User{TgUserID: "105"}
	user.CreatedAt = time.Now().UTC().AddDate(0, -2, 0)
	require.NoError(t, db.Create(user).Error)

	past := time.Now().UTC().AddDate(0, -1, 0)
	require.NoError(t, db.Create(&database.UserRequest{
		UserID:           user.ID,
		SubscribeDateEnd: &past,
		NextUpdFree:      NextMonday(time.Now().UTC()),
	}).Error)

	allowed, err := svc.CheckEnableRequests(context.Background(), user)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCheckEnableRequestsSettingOverride(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccessService(db, 7)

	// A longer window in the settings table extends the trial beyond the
	// configured default.
	require.NoError(t, db.Create(&database.Setting{
		UniqueName: FreeRequestsSetting,
		Value:      "30",
	}).Error)

	user := &database.User{TgUserID: "106"}
	user.CreatedAt = time.Now().UTC().AddDate(0, 0, -10)
	require.NoError(t, db.Create(user).Error)

	allowed, err := svc.CheckEnableRequests(context.Background(), user)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCheckEnableRequestsCreatesCounterRow(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccessService(db, 7)

	user := &database.User{TgUserID: "107"}
	user.CreatedAt = time.Now().UTC()
	require.NoError(t, db.Create(user).Error)

	_, err := svc.CheckEnableRequests(context.Background(), user)
	require.NoError(t, err)

	var request database.UserRequest
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&request).Error)
	assert.False(t, request.NextUpdFree.IsZero())
}

func TestNextMonday(t *testing.T) {
	// Wednesday rolls forward to the coming Monday.
	wed := time.Date(2024, 1, 3, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), NextMonday(wed))

	// Sunday rolls forward a single day.
	sun := time.Date(2024, 1, 7, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), NextMonday(sun))

	// A Monday stays on the same day, truncated to midnight.
	mon := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), NextMonday(mon))
}
