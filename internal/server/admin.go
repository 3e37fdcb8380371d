package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/vladimiradmaev/food-diary/internal/config"
	"github.com/vladimiradmaev/food-diary/internal/database"
	"github.com/vladimiradmaev/food-diary/internal/logger"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const adminSessionKey = "adminID"

func (s *Server) registerAdminRoutes(router *gin.Engine) {
	store := cookie.NewStore([]byte(s.cfg.Admin.CookieSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400,
		HttpOnly: true,
	})

	admin := router.Group("/admin")
	admin.Use(sessions.Sessions("admin_session", store))
	admin.POST("/login", s.handleAdminLogin)
	admin.POST("/logout", s.handleAdminLogout)

	protected := admin.Group("/")
	protected.Use(adminRequired())
	protected.GET("/faq", s.handleAdminListFAQ)
	protected.POST("/faq", s.handleAdminCreateFAQ)
	protected.PUT("/faq/:id", s.handleAdminUpdateFAQ)
	protected.DELETE("/faq/:id", s.handleAdminDeleteFAQ)
	protected.GET("/settings", s.handleAdminListSettings)
	protected.PUT("/settings/:name", s.handleAdminUpdateSetting)
}

func adminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if session.Get(adminSessionKey) == nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"status": "error",
				"detail": "not authorized",
			})
			return
		}
		c.Next()
	}
}

// EnsureAdminUser creates the bootstrap panel account when the table is empty.
func EnsureAdminUser(db *gorm.DB, cfg config.AdminConfig) error {
	if cfg.Username == "" || cfg.Password == "" {
		return nil
	}

	var count int64
	if err := db.Model(&database.AdminUser{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := database.AdminUser{
		Name:         cfg.Username,
		Username:     cfg.Username,
		PasswordHash: string(hash),
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	logger.Infof("Created bootstrap admin account %q", cfg.Username)
	return nil
}

func (s *Server) handleAdminLogin(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "detail": "username and password are required"})
		return
	}

	var admin database.AdminUser
	err := s.deps.DB.WithContext(c.Request.Context()).
		Where("username = ?", req.Username).First(&admin).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Errorf("Admin lookup failed: %v", err)
		}
		c.JSON(http.StatusForbidden, gin.H{"status": "error", "detail": "invalid credentials"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusForbidden, gin.H{"status": "error", "detail": "invalid credentials"})
		return
	}

	session := sessions.Default(c)
	session.Set(adminSessionKey, int64(admin.ID))
	if err := session.Save(); err != nil {
		logger.Errorf("Failed to save admin session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) handleAdminLogout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		logger.Errorf("Failed to clear admin session: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) handleAdminListFAQ(c *gin.Context) {
	var items []database.FAQ
	if err := s.deps.DB.WithContext(c.Request.Context()).Order("id").Find(&items).Error; err != nil {
		logger.Errorf("Failed to list FAQ: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) handleAdminCreateFAQ(c *gin.Context) {
	var req struct {
		CategoryID *int   `json:"category_id"`
		Question   string `json:"question" binding:"required"`
		Answer     string `json:"answer" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "detail": "question and answer are required"})
		return
	}

	item := database.FAQ{CategoryID: req.CategoryID, Question: req.Question, Answer: req.Answer}
	if err := s.deps.DB.WithContext(c.Request.Context()).Create(&item).Error; err != nil {
		logger.Errorf("Failed to create FAQ entry: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "id": item.ID})
}

func (s *Server) handleAdminUpdateFAQ(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "detail": "invalid id"})
		return
	}
	var req struct {
		CategoryID *int   `json:"category_id"`
		Question   string `json:"question" binding:"required"`
		Answer     string `json:"answer" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "detail": "question and answer are required"})
		return
	}

	res := s.deps.DB.WithContext(c.Request.Context()).
		Model(&database.FAQ{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"category_id": req.CategoryID,
			"question":    req.Question,
			"answer":      req.Answer,
		})
	if res.Error != nil {
		logger.Errorf("Failed to update FAQ entry %d: %v", id, res.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "detail": "entry not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) handleAdminDeleteFAQ(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "detail": "invalid id"})
		return
	}
	if err := s.deps.DB.WithContext(c.Request.Context()).Delete(&database.FAQ{}, id).Error; err != nil {
		logger.Errorf("Failed to delete FAQ entry %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) handleAdminListSettings(c *gin.Context) {
	var items []database.Setting
	if err := s.deps.DB.WithContext(c.Request.Context()).Order("unique_name").Find(&items).Error; err != nil {
		logger.Errorf("Failed to list settings: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) handleAdminUpdateSetting(c *gin.Context) {
	var req struct {
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "detail": "value is required"})
		return
	}

	name := c.Param("name")
	setting := database.Setting{UniqueName: name, Value: req.Value}
	err := s.deps.DB.WithContext(c.Request.Context()).
		Where(database.Setting{UniqueName: name}).
		Assign(database.Setting{Value: req.Value}).
		FirstOrCreate(&setting).Error
	if err != nil {
		logger.Errorf("Failed to update setting %q: %v", name, err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
