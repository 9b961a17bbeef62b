package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"expoboard-backend/shared/database/models"
	utils "expoboard-backend/shared/utils/auth"
)

// SessionHandler exposes the identity/session lookup interface
type SessionHandler struct {
	db *gorm.DB
}

// NewSessionHandler creates a session handler
func NewSessionHandler(db *gorm.DB) *SessionHandler {
	return &SessionHandler{db: db}
}

// LoginRequest carries login credentials
type LoginRequest struct {
	Email    string `json:"email" binding:"required" example:"admin@expoboard.local"`
	Password string `json:"password" binding:"required" example:"admin123"`
}

// LoginResponse carries the issued session token
type LoginResponse struct {
	Token   string          `json:"token"`
	Profile *models.Profile `json:"profile"`
}

// SessionStatusResponse is what the session guard polls
type SessionStatusResponse struct {
	ForceLogoutAt   *time.Time `json:"force_logout_at"`
	MaintenanceMode bool       `json:"maintenance_mode"`
	Role            string     `json:"role"`
}

// Login authenticates a profile and issues a session token
// @Summary Login
// @Description Authenticate with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body handlers.LoginRequest true "Credentials"
// @Success 200 {object} handlers.LoginResponse
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Router /api/auth/login [post]
func (h *SessionHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	if err := utils.ValidateEmail(req.Email); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var profile models.Profile
	err := h.db.Where("email = ?", req.Email).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up profile"})
		return
	}

	if !utils.CheckPasswordHash(req.Password, profile.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, err := utils.GenerateJWT(profile.ID, profile.Email, profile.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{Token: token, Profile: &profile})
}

// Signout terminates the current session
// @Summary Sign out
// @Description End the current session
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} gin.H
// @Router /api/auth/signout [post]
func (h *SessionHandler) Signout(c *gin.Context) {
	// Tokens are stateless; sign-out is acknowledged so clients drop theirs
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Status returns the signals the session guard watches: the account's
// force-logout marker and the maintenance flag
// @Summary Session status
// @Description Current force-logout marker and maintenance mode for the session guard
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} handlers.SessionStatusResponse
// @Failure 401 {object} map[string]string "Not authenticated"
// @Router /api/session/status [get]
func (h *SessionHandler) Status(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var profile models.Profile
	if err := h.db.First(&profile, "id = ?", userID.(uuid.UUID)).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Profile not found"})
		return
	}

	maintenance := false
	var setting models.SystemSetting
	err := h.db.Where("key = ?", models.SettingMaintenanceMode).First(&setting).Error
	if err == nil {
		maintenance = setting.BoolValue()
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read system settings"})
		return
	}

	c.JSON(http.StatusOK, SessionStatusResponse{
		ForceLogoutAt:   profile.ForceLogoutAt,
		MaintenanceMode: maintenance,
		Role:            profile.Role,
	})
}
