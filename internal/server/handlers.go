package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vladimiradmaev/food-diary/internal/auth"
	"github.com/vladimiradmaev/food-diary/internal/database"
	apperrors "github.com/vladimiradmaev/food-diary/internal/errors"
	"github.com/vladimiradmaev/food-diary/internal/logger"
	"github.com/vladimiradmaev/food-diary/internal/tasks"
)

const maxPhotoSize = 10 << 20 // 10 MiB

// handleAuth validates a Telegram handshake and issues a bearer token in the
// Authorization response header. Payloads carrying a nested "user" object are
// WebApp init data; flat payloads come from the login widget.
func (s *Server) handleAuth(c *gin.Context) {
	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "detail": "invalid payload"})
		return
	}

	var user *database.User
	if nested, ok := payload["user"].(map[string]interface{}); ok {
		if err := auth.CheckWebAppHash(payload, s.cfg.BotToken); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"status": "error", "detail": "bad signature"})
			return
		}
		// WebApp sessions require a user already registered through the widget.
		existing, err := s.deps.Users.GetByTgUserID(c.Request.Context(), claimString(nested["id"]))
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"status": "error", "detail": "unknown user"})
			return
		}
		user = existing
	} else {
		if err := auth.CheckWidgetHash(payload, s.cfg.BotToken); err != nil {
			c.JSON(http.StatusForbidden, gin.H{"status": "error", "detail": "bad signature"})
			return
		}
		registered, err := s.deps.Users.RegisterUser(
			c.Request.Context(),
			claimString(payload["id"]),
			claimString(payload["username"]),
			claimString(payload["first_name"]),
			claimString(payload["last_name"]),
		)
		if err != nil {
			logger.Errorf("Failed to register user: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "detail": "registration failed"})
			return
		}
		user = registered
	}

	authDate := time.Now().UTC().Unix()
	claims := map[string]interface{}{
		"id":         user.TgUserID,
		"username":   user.Username,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"auth_date":  strconv.FormatInt(authDate, 10),
		"session_id": s.deps.Tokens.SessionHash(user.TgUserID, user.ID, authDate),
	}
	token, err := s.deps.Tokens.Generate(claims)
	if err != nil {
		logger.Errorf("Failed to issue token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "detail": "token issue failed"})
		return
	}

	c.Header("Authorization", "Bearer "+token)
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) handleFAQ(c *gin.Context) {
	items, err := s.deps.FAQ.List(c.Request.Context(), c.Query("search"))
	if err != nil {
		logger.Errorf("Failed to list FAQ: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) handleDiaries(c *gin.Context) {
	var req struct {
		Date string `json:"date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "detail": "date is required"})
		return
	}
	if _, err := time.Parse(database.DiaryDateFormat, req.Date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "detail": "invalid date"})
		return
	}

	entries, otherDates, err := s.deps.Diary.GetDiaries(c.Request.Context(), currentUserID(c), req.Date)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":           entries,
		"list_all_dates": otherDates,
	})
}

// handleSubmitPhoto accepts a meal photo and schedules its analysis. The
// response carries no result: clients follow up on the result endpoint.
func (s *Server) handleSubmitPhoto(c *gin.Context) {
	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "detail": "image file is required"})
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxPhotoSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "detail": "failed to read image"})
		return
	}
	if len(image) == 0 || len(image) > maxPhotoSize {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "detail": "image size out of bounds"})
		return
	}

	if err := s.deps.Analysis.SubmitPhoto(c.Request.Context(), currentUserID(c), image); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "processing"})
}

func (s *Server) handlePollResult(c *gin.Context) {
	status, result, err := s.deps.Analysis.PollResult(c.Request.Context(), currentUserID(c))

	switch status {
	case tasks.StatusAbsent:
		c.JSON(http.StatusOK, gin.H{"status": "absent"})
	case tasks.StatusPending:
		c.JSON(http.StatusOK, gin.H{"status": "pending"})
	case tasks.StatusReady:
		if err != nil {
			logger.Warnf("Analysis task for user %d finished with error: %v", currentUserID(c), err)
			c.JSON(http.StatusOK, gin.H{"status": "failed"})
			return
		}
		body := gin.H{
			"status":             "ready",
			"text":               result.Text,
			"can_write_to_diary": result.CanWrite,
		}
		if result.CanWrite {
			body["id"] = result.TemporaryID
			body["photo_path"] = result.PhotoPath
		}
		c.JSON(http.StatusOK, body)
	}
}

func (s *Server) handleConfirmEntry(c *gin.Context) {
	var req struct {
		ID       uint `json:"id" binding:"required"`
		Timezone *int `json:"timezone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "detail": "id is required"})
		return
	}

	if err := s.deps.Diary.ConfirmEntry(c.Request.Context(), currentUserID(c), req.ID, req.Timezone); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// renderError maps typed application errors onto HTTP statuses.
func (s *Server) renderError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		switch {
		case apperrors.IsType(appErr, apperrors.ErrorTypeNotFound):
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "detail": appErr.Message})
			return
		case apperrors.IsType(appErr, apperrors.ErrorTypePermission):
			c.JSON(http.StatusForbidden, gin.H{"status": "error", "detail": appErr.Message})
			return
		case errors.Is(appErr, apperrors.ErrExtractionFailed):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"status": "error", "detail": appErr.Message})
			return
		}
	}
	logger.Errorf("Unhandled request error: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "detail": "internal error"})
}

func currentUserID(c *gin.Context) uint {
	return c.GetUint("userID")
}
