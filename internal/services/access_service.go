package services

import (
	"context"
	"strconv"
	"time"

	"github.com/vladimiradmaev/food-diary/internal/database"
	apperrors "github.com/vladimiradmaev/food-diary/internal/errors"
	"gorm.io/gorm"
)

// FreeRequestsSetting is the settings-table key for the free trial window
// length in days.
const FreeRequestsSetting = "free_requests"

// AccessService decides whether a user may run a photo analysis.
// Precedence: admin > active subscription > free-trial window > deny.
type AccessService struct {
	db               *gorm.DB
	freeRequestsDays int
}

func NewAccessService(db *gorm.DB, freeRequestsDays int) *AccessService {
	return &AccessService{
		db:               db,
		freeRequestsDays: freeRequestsDays,
	}
}

func (s *AccessService) CheckEnableRequests(ctx context.Context, user *database.User) (bool, error) {
	if user.IsAdmin {
		return true, nil
	}

	request := &database.UserRequest{
		UserID:      user.ID,
		NextUpdFree: NextMonday(time.Now().UTC()),
	}
	result := s.db.WithContext(ctx).FirstOrCreate(request, database.UserRequest{UserID: user.ID})
	if result.Error != nil {
		return false, apperrors.NewDatabaseError(result.Error)
	}

	now := time.Now().UTC()
	if request.SubscribeDateEnd != nil && request.SubscribeDateEnd.After(now) {
		return true, nil
	}

	deadline := user.CreatedAt.Add(time.Duration(s.freeTrialDays(ctx)) * 24 * time.Hour)
	return deadline.Sub(now) > 0, nil
}

// freeTrialDays reads the trial window from the settings table, falling back
// to the configured default when the row is missing or malformed.
func (s *AccessService) freeTrialDays(ctx context.Context) int {
	var setting database.Setting
	if err := s.db.WithContext(ctx).Where("unique_name = ?", FreeRequestsSetting).First(&setting).Error; err != nil {
		return s.freeRequestsDays
	}
	days, err := strconv.Atoi(setting.Value)
	if err != nil {
		return s.freeRequestsDays
	}
	return days
}

// NextMonday returns the start of the next Monday (or today's start when now
// is a Monday), used as the free-tier counter reset point.
func NextMonday(now time.Time) time.Time {
	// time.Weekday counts from Sunday; shift so Monday is 0.
	weekday := (int(now.Weekday()) + 6) % 7
	daysAhead := 7 - weekday
	if daysAhead == 7 {
		daysAhead = 0
	}
	next := now.AddDate(0, 0, daysAhead)
	return time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, next.Location())
}
