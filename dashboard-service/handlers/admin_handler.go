package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"expoboard-backend/dashboard-service/services"
	"expoboard-backend/shared/database/models"
	utils "expoboard-backend/shared/utils/auth"
)

// AdminHandler exposes the privileged administration actions. Every route
// behind it must be mounted with AuthMiddleware + AdminOnly; the elevated
// database capability is confined to these operations.
type AdminHandler struct {
	db       *gorm.DB
	realtime *services.RealtimeManager
	archive  *services.ArchiveService
}

// NewAdminHandler creates an admin handler. The archive service may be nil
// when object storage is not configured; export endpoints then degrade.
func NewAdminHandler(db *gorm.DB, realtime *services.RealtimeManager, archive *services.ArchiveService) *AdminHandler {
	return &AdminHandler{db: db, realtime: realtime, archive: archive}
}

// CreateUserRequest carries a new profile definition
type CreateUserRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required,min=8"`
	Role        string `json:"role" binding:"required"`
	GroupName   string `json:"group_name"`
	DisplayName string `json:"display_name"`
}

// ResetPasswordRequest carries the replacement password
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// MaintenanceRequest toggles maintenance mode
type MaintenanceRequest struct {
	Enabled bool `json:"enabled"`
}

// SystemResetRequest guards the destructive reset behind a typed confirmation
type SystemResetRequest struct {
	Confirm string `json:"confirm" binding:"required"`
}

// CreateUser creates a new profile
// @Summary Create user
// @Description Create a new dashboard profile (admin only)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body handlers.CreateUserRequest true "Profile"
// @Success 201 {object} models.Profile
// @Failure 403 {object} map[string]string "Admins only"
// @Router /api/admin/users [post]
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	if err := utils.ValidateEmail(req.Email); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := utils.ValidatePassword(req.Password); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Role != models.RoleAdmin && req.Role != models.RoleGroup && req.Role != models.RoleGuest {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
		return
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	profile := models.Profile{
		Email:       req.Email,
		Password:    hashedPassword,
		Role:        req.Role,
		GroupName:   req.GroupName,
		DisplayName: req.DisplayName,
	}

	if err := h.db.Create(&profile).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create profile"})
		return
	}

	c.JSON(http.StatusCreated, profile)
}

// ResetUserPassword replaces a profile's password
// @Summary Reset user password
// @Description Replace a profile's password (admin only)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Profile ID"
// @Param payload body handlers.ResetPasswordRequest true "New password"
// @Success 200 {object} gin.H
// @Failure 403 {object} map[string]string "Admins only"
// @Router /api/admin/users/{id}/reset-password [post]
func (h *AdminHandler) ResetUserPassword(c *gin.Context) {
	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid profile ID"})
		return
	}

	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	if err := utils.ValidatePassword(req.NewPassword); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hashedPassword, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	result := h.db.Model(&models.Profile{}).
		Where("id = ?", targetID).
		Update("password", hashedPassword)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset password"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ForceLogout bumps the target profile's force-logout marker and pushes the
// change to its connected session guard
// @Summary Force logout
// @Description Terminate every live session of a profile (admin only)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Profile ID"
// @Success 200 {object} gin.H
// @Failure 403 {object} map[string]string "Admins only"
// @Router /api/admin/users/{id}/force-logout [post]
func (h *AdminHandler) ForceLogout(c *gin.Context) {
	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid profile ID"})
		return
	}

	now := time.Now().UTC()
	result := h.db.Model(&models.Profile{}).
		Where("id = ?", targetID).
		Update("force_logout_at", now)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to set force logout"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found"})
		return
	}

	event := &services.SecurityEvent{
		Type:   services.EventForceLogout,
		UserID: targetID.String(),
		Value:  now.Format(time.RFC3339Nano),
	}
	if err := h.realtime.Publish(c.Request.Context(), event); err != nil {
		// The guard's poll fallback still picks the change up
		log.Printf("❌ Failed to publish force-logout event: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "force_logout_at": now})
}

// SetMaintenance toggles maintenance mode and broadcasts the change
// @Summary Set maintenance mode
// @Description Enable or disable maintenance mode (admin only)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body handlers.MaintenanceRequest true "Flag"
// @Success 200 {object} gin.H
// @Failure 403 {object} map[string]string "Admins only"
// @Router /api/admin/maintenance [put]
func (h *AdminHandler) SetMaintenance(c *gin.Context) {
	var req MaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	value := strconv.FormatBool(req.Enabled)

	setting := models.SystemSetting{Key: models.SettingMaintenanceMode, Value: value}
	err := h.db.Where("key = ?", models.SettingMaintenanceMode).First(&models.SystemSetting{}).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = h.db.Create(&setting).Error
	} else if err == nil {
		err = h.db.Model(&models.SystemSetting{}).
			Where("key = ?", models.SettingMaintenanceMode).
			Update("value", value).Error
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update maintenance mode"})
		return
	}

	event := &services.SecurityEvent{
		Type:  services.EventMaintenanceMode,
		Value: value,
	}
	if err := h.realtime.Publish(c.Request.Context(), event); err != nil {
		log.Printf("❌ Failed to publish maintenance event: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "maintenance_mode": req.Enabled})
}

// SystemReset archives the security ledger, then deletes every non-admin
// profile. Reference data and the ledger itself are preserved.
// @Summary System reset
// @Description Archive the security ledger and delete all non-admin profiles (admin only)
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body handlers.SystemResetRequest true "Confirmation"
// @Success 200 {object} gin.H
// @Failure 403 {object} map[string]string "Admins only"
// @Router /api/admin/system/reset [post]
func (h *AdminHandler) SystemReset(c *gin.Context) {
	var req SystemResetRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Confirm != "RESET" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Confirmation mismatch: type RESET to proceed"})
		return
	}

	if h.archive != nil {
		if _, err := h.archive.ExportSecurityLogs(c.Request.Context(), h.db); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Pre-reset archive failed, reset aborted"})
			return
		}
	}

	result := h.db.Where("role <> ?", models.RoleAdmin).Delete(&models.Profile{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset system data"})
		return
	}

	log.Printf("🗑️ System reset executed: %d profiles removed", result.RowsAffected)
	c.JSON(http.StatusOK, gin.H{"success": true, "profiles_removed": result.RowsAffected})
}

// ExportSecurityLogs archives a ledger snapshot to object storage
// @Summary Export security logs
// @Description Write a JSON snapshot of the security ledger to the archive bucket (admin only)
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} gin.H
// @Failure 403 {object} map[string]string "Admins only"
// @Failure 503 {object} map[string]string "Archive storage not configured"
// @Router /api/admin/security-logs/export [post]
func (h *AdminHandler) ExportSecurityLogs(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Archive storage not configured"})
		return
	}

	objectName, err := h.archive.ExportSecurityLogs(c.Request.Context(), h.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export security logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "object": objectName})
}
