package database

import (
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/vladimiradmaev/food-diary/internal/config"
	"github.com/vladimiradmaev/food-diary/internal/database/migrations"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DiaryDateFormat is the calendar-day format used by the diary listing API.
const DiaryDateFormat = "02-01-2006"

type User struct {
	gorm.Model
	TgUserID  string `gorm:"uniqueIndex;size:255"`
	Username  string
	FirstName string
	LastName  string
	IsAdmin   bool `gorm:"default:false"`
	Deleted   bool `gorm:"default:false"`
	Timezone  *int // Signed offset in hours, learned on first diary confirmation
}

// UserRequest tracks paid access and free-tier counters for a user.
type UserRequest struct {
	gorm.Model
	UserID            uint `gorm:"uniqueIndex"`
	User              User
	SubscribeDateEnd  *time.Time
	UsageFreeRequests int `gorm:"default:0"`
	NextUpdFree       time.Time
}

// Setting is a key-value configuration row editable from the admin panel.
type Setting struct {
	gorm.Model
	UniqueName string `gorm:"uniqueIndex;size:255"`
	Value      string
}

type FAQ struct {
	gorm.Model
	CategoryID *int
	Question   string
	Answer     string
}

// AdminUser is a privileged panel account, separate from telegram users.
type AdminUser struct {
	gorm.Model
	Name         string `gorm:"size:50"`
	Username     string `gorm:"uniqueIndex;size:50"`
	PasswordHash string
	IsAdmin      bool `gorm:"default:true"`
}

// TemporaryAnalysis is an unconfirmed nutrition estimate staged for user
// acceptance. Rows older than the current calendar day with Recorded=false
// are garbage-collected together with their photo file.
type TemporaryAnalysis struct {
	ID          uint `gorm:"primaryKey"`
	UserID      uint
	PathToPhoto string
	Text        string
	Recorded    bool `gorm:"default:false"`
	Datetime    time.Time
}

// FoodDiary is a confirmed, permanent nutrition record. All nutrition fields
// are stringified; nil means the analyzer reported no value. Timestamps are
// set explicitly in the user's local time, so GORM auto-time is disabled.
type FoodDiary struct {
	ID                   uint `gorm:"primaryKey"`
	UserID               uint
	DishName             *string
	Calories             *string
	Proteins             *string
	ProteinsPercent      *string
	Fats                 *string
	FatsPercent          *string
	Carbohydrates        *string
	CarbohydratesPercent *string
	BreadUnits           *string
	TotalWeight          *string
	GlycemicIndex        *string
	ProteinBJE           *string
	FatsBJE              *string
	CaloriesBJE          *string
	BJEUnits             *string
	PathToPhoto          *string
	SendNotif            bool      `gorm:"default:false"`
	CreatedAt            time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime:false"`
}

// Data shapes a diary entry for the listing API.
func (d *FoodDiary) Data() map[string]interface{} {
	return map[string]interface{}{
		"dish_name":               d.DishName,
		"calories":                d.Calories,
		"proteins":                d.Proteins,
		"proteins_percent":        d.ProteinsPercent,
		"fats":                    d.Fats,
		"fats_percent":            d.FatsPercent,
		"carbohydrates":           d.Carbohydrates,
		"carbohydrates_percent":   d.CarbohydratesPercent,
		"bread_units":             d.BreadUnits,
		"total_weight":            d.TotalWeight,
		"glycemic_index":          d.GlycemicIndex,
		"protein_bje":             d.ProteinBJE,
		"fats_bje":                d.FatsBJE,
		"calories_bje":            d.CaloriesBJE,
		"bje_units":               d.BJEUnits,
		"path_to_photo":           d.PathToPhoto,
		"updated_at":              d.UpdatedAt.Format("2006-01-02 15:04:05"),
		"updated_at_without_time": d.UpdatedAt.Format(DiaryDateFormat),
	}
}

// Summary renders the entry as the Russian plain-text digest shown to users.
func (d *FoodDiary) Summary() string {
	str := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	percent := func(p *string) string {
		if p == nil || *p == "" {
			return ""
		}
		return fmt.Sprintf(" (%s%%)", *p)
	}
	return fmt.Sprintf(
		"%s\n%s (%s г.)\nКалории: %s ккал\nБелки: %s г.%s\nЖиры: %s г.%s\nУглеводы: %s г.%s (%s ХЕ)\nГликемический индекс: %s\nБЖЕ: %s\n    Протеин: %s г.\n    Жиры: %s г.",
		d.CreatedAt.Format("15:04"),
		str(d.DishName), str(d.TotalWeight),
		str(d.Calories),
		str(d.Proteins), percent(d.ProteinsPercent),
		str(d.Fats), percent(d.FatsPercent),
		str(d.Carbohydrates), percent(d.CarbohydratesPercent), str(d.BreadUnits),
		str(d.GlycemicIndex),
		str(d.BJEUnits),
		str(d.ProteinBJE),
		str(d.FatsBJE),
	)
}

// Models returns every model the schema consists of, in migration order.
func Models() []interface{} {
	return []interface{}{
		&User{},
		&UserRequest{},
		&Setting{},
		&FAQ{},
		&AdminUser{},
		&TemporaryAnalysis{},
		&FoodDiary{},
	}
}

func NewPostgresDB(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get the directory of the current file
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return nil, fmt.Errorf("failed to get current file path")
	}
	migrationsDir := filepath.Join(filepath.Dir(filename), "migrations")

	// Load and run migrations
	if err := migrations.LoadSQLMigrations(db, migrationsDir); err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	if err := migrations.RunMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Auto-migrate the schema for models that don't have explicit migrations
	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	return db, nil
}
