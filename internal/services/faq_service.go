package services

import (
	"context"

	"github.com/vladimiradmaev/food-diary/internal/database"
	apperrors "github.com/vladimiradmaev/food-diary/internal/errors"
	"gorm.io/gorm"
)

type FAQService struct {
	db *gorm.DB
}

func NewFAQService(db *gorm.DB) *FAQService {
	return &FAQService{db: db}
}

// List returns FAQ items, optionally filtered by a case-insensitive search
// over both question and answer.
func (s *FAQService) List(ctx context.Context, search string) ([]map[string]string, error) {
	query := s.db.WithContext(ctx).Order("id")
	if search != "" {
		pattern := "%" + search + "%"
		query = query.Where("lower(question) LIKE lower(?) OR lower(answer) LIKE lower(?)", pattern, pattern)
	}

	var items []database.FAQ
	if err := query.Find(&items).Error; err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	result := make([]map[string]string, 0, len(items))
	for _, item := range items {
		result = append(result, map[string]string{
			"question": item.Question,
			"answer":   item.Answer,
		})
	}
	return result, nil
}
