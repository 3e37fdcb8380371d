package interfaces

import (
	"context"

	"github.com/vladimiradmaev/food-diary/internal/database"
	"github.com/vladimiradmaev/food-diary/internal/tasks"
)

// AIServiceInterface defines the contract for the vision analyzer backend
type AIServiceInterface interface {
	AnalyzeFoodImage(ctx context.Context, image []byte) (string, error)
	ExtractNutrition(ctx context.Context, text string) (map[string]*string, error)
}

// UserServiceInterface defines the contract for user operations
type UserServiceInterface interface {
	RegisterUser(ctx context.Context, tgUserID, username, firstName, lastName string) (*database.User, error)
	GetByID(ctx context.Context, id uint) (*database.User, error)
	GetByTgUserID(ctx context.Context, tgUserID string) (*database.User, error)
	LearnTimezone(ctx context.Context, user *database.User, offset int) error
}

// AccessServiceInterface defines the contract for quota/subscription checks
type AccessServiceInterface interface {
	CheckEnableRequests(ctx context.Context, user *database.User) (bool, error)
}

// AnalysisServiceInterface defines the contract for the photo analysis pipeline
type AnalysisServiceInterface interface {
	SubmitPhoto(ctx context.Context, userID uint, image []byte) error
	PollResult(ctx context.Context, userID uint) (tasks.Status, *tasks.Result, error)
}

// DiaryServiceInterface defines the contract for diary operations
type DiaryServiceInterface interface {
	ConfirmEntry(ctx context.Context, userID, temporaryID uint, tzOffset *int) error
	GetDiaries(ctx context.Context, userID uint, date string) ([]map[string]interface{}, []string, error)
}

// FAQServiceInterface defines the contract for FAQ content
type FAQServiceInterface interface {
	List(ctx context.Context, search string) ([]map[string]string, error)
}

// NotifierInterface delivers best-effort user notifications
type NotifierInterface interface {
	DiaryRecorded(ctx context.Context, tgUserID string, entry *database.FoodDiary)
}
