package services

import (
	"context"
	"errors"
	"time"

	"github.com/vladimiradmaev/food-diary/internal/database"
	apperrors "github.com/vladimiradmaev/food-diary/internal/errors"
	"github.com/vladimiradmaev/food-diary/internal/interfaces"
	"github.com/vladimiradmaev/food-diary/internal/logger"
	"gorm.io/gorm"
)

// DiaryService promotes staged analysis results into the permanent diary and
// serves the diary listing.
type DiaryService struct {
	db       *gorm.DB
	ai       interfaces.AIServiceInterface
	users    interfaces.UserServiceInterface
	access   interfaces.AccessServiceInterface
	notifier interfaces.NotifierInterface // may be nil
}

func NewDiaryService(
	db *gorm.DB,
	ai interfaces.AIServiceInterface,
	users interfaces.UserServiceInterface,
	access interfaces.AccessServiceInterface,
	notifier interfaces.NotifierInterface,
) *DiaryService {
	return &DiaryService{
		db:       db,
		ai:       ai,
		users:    users,
		access:   access,
		notifier: notifier,
	}
}

// ConfirmEntry promotes the staged result into a permanent diary entry.
// The timezone offset is learned from the client the first time only; once
// stored on the user it is never asked again.
func (s *DiaryService) ConfirmEntry(ctx context.Context, userID, temporaryID uint, tzOffset *int) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	var staged database.TemporaryAnalysis
	if err := s.db.WithContext(ctx).First(&staged, temporaryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrAnalysisNotFound
		}
		return apperrors.NewDatabaseError(err)
	}
	if staged.UserID != userID {
		return apperrors.ErrAnalysisNotFound
	}

	// The subscription may have lapsed between staging and confirming.
	allowed, err := s.access.CheckEnableRequests(ctx, user)
	if err != nil {
		return err
	}
	if !allowed {
		return apperrors.ErrRequestsExhausted
	}

	if user.Timezone == nil && tzOffset != nil {
		if err := s.users.LearnTimezone(ctx, user, *tzOffset); err != nil {
			return err
		}
	}

	fields, err := s.ai.ExtractNutrition(ctx, staged.Text)
	if err != nil {
		logger.Warnf("Nutrition extraction failed for staged analysis %d: %v", staged.ID, err)
		return err
	}

	offset := 0
	if user.Timezone != nil {
		offset = *user.Timezone
	}
	localNow := LocalizedNow(time.Now().UTC(), offset)

	entry := diaryFromFields(fields)
	entry.UserID = userID
	entry.PathToPhoto = &staged.PathToPhoto
	entry.CreatedAt = localNow
	entry.UpdatedAt = localNow

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return apperrors.NewDatabaseError(err)
	}

	// The photo is now owned by the diary; the reaper must leave it alone.
	if err := s.db.WithContext(ctx).Model(&database.TemporaryAnalysis{}).
		Where("id = ?", staged.ID).
		Update("recorded", true).Error; err != nil {
		return apperrors.NewDatabaseError(err)
	}

	logger.Infof("Diary entry %d recorded for user %d", entry.ID, userID)
	if s.notifier != nil {
		s.notifier.DiaryRecorded(ctx, user.TgUserID, entry)
	}
	return nil
}

// GetDiaries returns the entries whose calendar day matches date, plus the
// deduplicated list of every other day the user has entries on.
func (s *DiaryService) GetDiaries(ctx context.Context, userID uint, date string) ([]map[string]interface{}, []string, error) {
	var entries []database.FoodDiary
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id").
		Find(&entries).Error; err != nil {
		return nil, nil, apperrors.NewDatabaseError(err)
	}

	matched := make([]map[string]interface{}, 0)
	otherDates := make([]string, 0)
	seen := make(map[string]bool)
	for i := range entries {
		day := entries[i].UpdatedAt.Format(database.DiaryDateFormat)
		if day == date {
			matched = append(matched, entries[i].Data())
		} else if !seen[day] {
			seen[day] = true
			otherDates = append(otherDates, day)
		}
	}
	return matched, otherDates, nil
}

// LocalizedNow shifts server time by the signed timezone offset in hours,
// producing what the clock reads in the user's locale right now.
func LocalizedNow(now time.Time, offset int) time.Time {
	return now.Add(time.Duration(offset) * time.Hour).Truncate(time.Second)
}

func diaryFromFields(fields map[string]*string) *database.FoodDiary {
	return &database.FoodDiary{
		DishName:             fields["dish_name"],
		Calories:             fields["calories"],
		Proteins:             fields["proteins"],
		ProteinsPercent:      fields["proteins_percent"],
		Fats:                 fields["fats"],
		FatsPercent:          fields["fats_percent"],
		Carbohydrates:        fields["carbohydrates"],
		CarbohydratesPercent: fields["carbohydrates_percent"],
		BreadUnits:           fields["bread_units"],
		TotalWeight:          fields["total_weight"],
		GlycemicIndex:        fields["glycemic_index"],
		ProteinBJE:           fields["protein_bje"],
		FatsBJE:              fields["fats_bje"],
		CaloriesBJE:          fields["calories_bje"],
		BJEUnits:             fields["bje_units"],
	}
}
