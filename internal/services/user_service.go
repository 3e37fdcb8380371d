package services

import (
	"context"
	"errors"

	"github.com/vladimiradmaev/food-diary/internal/database"
	apperrors "github.com/vladimiradmaev/food-diary/internal/errors"
	"gorm.io/gorm"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// RegisterUser gets an existing telegram user or creates a new one.
func (s *UserService) RegisterUser(ctx context.Context, tgUserID, username, firstName, lastName string) (*database.User, error) {
	user := &database.User{
		TgUserID:  tgUserID,
		Username:  username,
		FirstName: firstName,
		LastName:  lastName,
	}

	result := s.db.WithContext(ctx).FirstOrCreate(user, database.User{TgUserID: tgUserID})
	if result.Error != nil {
		return nil, apperrors.NewDatabaseError(result.Error)
	}

	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id uint) (*database.User, error) {
	var user database.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.NewDatabaseError(err)
	}
	return &user, nil
}

func (s *UserService) GetByTgUserID(ctx context.Context, tgUserID string) (*database.User, error) {
	var user database.User
	if err := s.db.WithContext(ctx).Where("tg_user_id = ?", tgUserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.NewDatabaseError(err)
	}
	return &user, nil
}

// LearnTimezone persists the client-supplied offset onto the user record
// the first time it is seen. Once set it is never changed again.
func (s *UserService) LearnTimezone(ctx context.Context, user *database.User, offset int) error {
	if user.Timezone != nil {
		return nil
	}
	if err := s.db.WithContext(ctx).Model(&database.User{}).
		Where("id = ? AND timezone IS NULL", user.ID).
		Update("timezone", offset).Error; err != nil {
		return apperrors.NewDatabaseError(err)
	}
	user.Timezone = &offset
	return nil
}
