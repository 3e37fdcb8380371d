package services

import (
	"context"
	"time"

	"github.com/vladimiradmaev/food-diary/internal/database"
	apperrors "github.com/vladimiradmaev/food-diary/internal/errors"
	"github.com/vladimiradmaev/food-diary/internal/interfaces"
	"github.com/vladimiradmaev/food-diary/internal/logger"
	"github.com/vladimiradmaev/food-diary/internal/storage"
	"github.com/vladimiradmaev/food-diary/internal/tasks"
	"gorm.io/gorm"
)

const analysisAttempts = 3

// AnalysisService coordinates the photo analysis pipeline: quota check,
// analyzer invocation with retries, photo persistence and staging of the
// result for later confirmation.
type AnalysisService struct {
	ai       interfaces.AIServiceInterface
	db       *gorm.DB
	photos   *storage.PhotoStore
	registry *tasks.Registry
	users    interfaces.UserServiceInterface
	access   interfaces.AccessServiceInterface
}

func NewAnalysisService(
	ai interfaces.AIServiceInterface,
	db *gorm.DB,
	photos *storage.PhotoStore,
	registry *tasks.Registry,
	users interfaces.UserServiceInterface,
	access interfaces.AccessServiceInterface,
) *AnalysisService {
	return &AnalysisService{
		ai:       ai,
		db:       db,
		photos:   photos,
		registry: registry,
		users:    users,
		access:   access,
	}
}

// SubmitPhoto validates access and detaches the analysis into a background
// task so the caller can return immediately and poll later. A resubmission
// by the same user cancels the previous task.
func (s *AnalysisService) SubmitPhoto(ctx context.Context, userID uint, image []byte) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	allowed, err := s.access.CheckEnableRequests(ctx, user)
	if err != nil {
		return err
	}
	if !allowed {
		return apperrors.ErrRequestsExhausted
	}

	logger.Infof("Starting food analysis task for user %d", user.ID)
	s.registry.Submit(user.ID, func(taskCtx context.Context) (*tasks.Result, error) {
		return s.runAnalysis(taskCtx, user.ID, image)
	})
	return nil
}

// PollResult reports the state of the user's analysis task; a ready result
// is consumed by the call.
func (s *AnalysisService) PollResult(ctx context.Context, userID uint) (tasks.Status, *tasks.Result, error) {
	return s.registry.Poll(userID)
}

func (s *AnalysisService) runAnalysis(ctx context.Context, userID uint, image []byte) (*tasks.Result, error) {
	// At most one pending temporary result per user: a new submission
	// discards the previous unconfirmed one, row and file both.
	if err := s.discardStaged(ctx, userID); err != nil {
		return nil, err
	}

	text, accepted := s.analyzeWithRetries(ctx, image)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !accepted {
		logger.Warnf("Analyzer produced no valid nutrition answer for user %d", userID)
		return &tasks.Result{Text: text, CanWrite: false}, nil
	}

	now := time.Now().UTC()
	path, err := s.photos.Save(userID, image, now)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	// Cancellation checkpoint: a superseded task must not stage its row
	// after the replacement already swept the user's staging area.
	if err := ctx.Err(); err != nil {
		_ = s.photos.Remove(path)
		return nil, err
	}

	staged := &database.TemporaryAnalysis{
		UserID:      userID,
		PathToPhoto: path,
		Text:        text,
		Datetime:    now,
	}
	if err := s.db.WithContext(ctx).Create(staged).Error; err != nil {
		_ = s.photos.Remove(path)
		return nil, apperrors.NewDatabaseError(err)
	}

	logger.Infof("Staged analysis %d for user %d", staged.ID, userID)
	return &tasks.Result{
		Text:        text,
		PhotoPath:   path,
		CanWrite:    true,
		TemporaryID: staged.ID,
	}, nil
}

// analyzeWithRetries invokes the analyzer up to 3 times. A reply passing the
// keyword gate is accepted, after at most one corrective re-request when the
// analyzer flags its own reply as an error. Returns the last raw text and
// whether it was accepted.
func (s *AnalysisService) analyzeWithRetries(ctx context.Context, image []byte) (string, bool) {
	var lastText string
	for attempt := 0; attempt < analysisAttempts; attempt++ {
		text, err := s.ai.AnalyzeFoodImage(ctx, image)
		if err != nil {
			if ctx.Err() != nil {
				return lastText, false
			}
			logger.Warnf("Analyzer attempt %d failed: %v", attempt+1, err)
			continue
		}
		lastText = text

		if !IsFoodAnalysis(text) {
			continue
		}
		if HasAnalyzerError(text) {
			retry, err := s.ai.AnalyzeFoodImage(ctx, image)
			if err == nil && IsFoodAnalysis(retry) {
				return retry, true
			}
		}
		return text, true
	}
	return lastText, false
}

func (s *AnalysisService) discardStaged(ctx context.Context, userID uint) error {
	var staged []database.TemporaryAnalysis
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND recorded = ?", userID, false).
		Find(&staged).Error; err != nil {
		return apperrors.NewDatabaseError(err)
	}
	if len(staged) == 0 {
		return nil
	}

	ids := make([]uint, 0, len(staged))
	for _, row := range staged {
		if row.PathToPhoto != "" {
			if err := s.photos.Remove(row.PathToPhoto); err != nil {
				logger.Warnf("Failed to remove superseded photo %s: %v", row.PathToPhoto, err)
			}
		}
		ids = append(ids, row.ID)
	}

	if err := s.db.WithContext(ctx).Delete(&database.TemporaryAnalysis{}, ids).Error; err != nil {
		return apperrors.NewDatabaseError(err)
	}
	return nil
}
