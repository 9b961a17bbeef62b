package handlers

import (
	"crypto/subtle"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"expoboard-backend/dashboard-service/security"
	"expoboard-backend/shared/config"
	seclog "expoboard-backend/shared/database/models/security"
	utils "expoboard-backend/shared/utils/auth"
	"expoboard-backend/shared/utils/query"
)

// SecurityHandler exposes the security server actions
type SecurityHandler struct {
	db        *gorm.DB
	store     *security.LogStore
	evaluator *security.Evaluator
}

// NewSecurityHandler creates a security handler on the service database handle
func NewSecurityHandler(db *gorm.DB) *SecurityHandler {
	store := security.NewLogStore(db)
	window := time.Duration(config.GetConfig().GetSecurityLockoutHours()) * time.Hour

	return &SecurityHandler{
		db:        db,
		store:     store,
		evaluator: security.NewEvaluator(store, window),
	}
}

// Store returns the underlying log store
func (h *SecurityHandler) Store() *security.LogStore {
	return h.store
}

// Evaluator returns the underlying lockout evaluator
func (h *SecurityHandler) Evaluator() *security.Evaluator {
	return h.evaluator
}

// LockoutStatusResponse reports the caller's lockout state
type LockoutStatusResponse struct {
	Locked      bool  `json:"locked"`
	RemainingMs int64 `json:"remaining_ms,omitempty"`
	LockoutEnd  int64 `json:"lockout_end,omitempty"` // epoch milliseconds
}

// VerifyKeyRequest carries the override secret
type VerifyKeyRequest struct {
	Key string `json:"key" binding:"required"`
}

// VerifyKeyResponse reports whether the override secret matched
type VerifyKeyResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// UnlockResponse reports the outcome of an unlock attempt
type UnlockResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// LogEventRequest carries a fire-and-forget security event
type LogEventRequest struct {
	Reason string `json:"reason" binding:"required"`
	UserID string `json:"user_id"`
}

// CheckIPLockout returns the lockout state for the caller's apparent IP
// @Summary Check IP lockout
// @Description Report whether the caller's IP currently has an active security lockout
// @Tags security
// @Produce json
// @Success 200 {object} handlers.LockoutStatusResponse
// @Router /locked [get]
func (h *SecurityHandler) CheckIPLockout(c *gin.Context) {
	ip := security.ExtractClientIP(c.Request.Header)

	now := time.Now().UTC()
	status, err := h.evaluator.IsLocked(ip, now)
	if err != nil {
		// Ledger unreachable: report not locked rather than fail the caller
		log.Printf("❌ Failed to check IP lockout for %s: %v", ip, err)
		c.JSON(http.StatusOK, LockoutStatusResponse{Locked: false})
		return
	}

	if !status.Locked {
		c.JSON(http.StatusOK, LockoutStatusResponse{Locked: false})
		return
	}

	c.JSON(http.StatusOK, LockoutStatusResponse{
		Locked:      true,
		RemainingMs: status.RemainingAt(now).Milliseconds(),
		LockoutEnd:  status.LockoutEnd.UnixMilli(),
	})
}

// VerifyKey checks the supplied override secret
// @Summary Verify security key
// @Description Validate the admin override secret without changing any state
// @Tags security
// @Accept json
// @Produce json
// @Param payload body handlers.VerifyKeyRequest true "Override secret"
// @Success 200 {object} handlers.VerifyKeyResponse
// @Router /api/security/verify-key [post]
func (h *SecurityHandler) VerifyKey(c *gin.Context) {
	var req VerifyKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	adminKey := config.GetConfig().AdminSecurityKey
	if adminKey == "" {
		// Missing secret always fails closed
		log.Println("❌ ADMIN_SECURITY_KEY is not set")
		c.JSON(http.StatusOK, VerifyKeyResponse{Valid: false, Message: "Server configuration error"})
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Key), []byte(adminKey)) == 1 {
		c.JSON(http.StatusOK, VerifyKeyResponse{Valid: true})
		return
	}

	c.JSON(http.StatusOK, VerifyKeyResponse{Valid: false, Message: "Invalid Security Key"})
}

// Unlock resolves every unresolved ledger entry for the caller's IP when the
// override secret matches
// @Summary Unlock caller IP
// @Description Resolve all active lockout entries for the caller's IP after verifying the override secret
// @Tags security
// @Accept json
// @Produce json
// @Param payload body handlers.VerifyKeyRequest true "Override secret"
// @Success 200 {object} handlers.UnlockResponse
// @Router /api/security/unlock [post]
func (h *SecurityHandler) Unlock(c *gin.Context) {
	var req VerifyKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	adminKey := config.GetConfig().AdminSecurityKey
	if adminKey == "" || subtle.ConstantTimeCompare([]byte(req.Key), []byte(adminKey)) != 1 {
		c.JSON(http.StatusOK, UnlockResponse{Success: false, Message: "Invalid Security Key"})
		return
	}

	ip := security.ExtractClientIP(c.Request.Header)
	if ip == security.UnknownIP {
		c.JSON(http.StatusOK, UnlockResponse{Success: false, Message: "Could not identify device IP"})
		return
	}

	resolved, err := h.store.ResolveAllForIP(ip)
	if err != nil {
		log.Printf("❌ Failed to unlock IP %s: %v", ip, err)
		c.JSON(http.StatusOK, UnlockResponse{Success: false, Message: "Database error during unlock"})
		return
	}

	log.Printf("🔓 Security lockout lifted for %s (%d entries resolved)", ip, resolved)
	c.JSON(http.StatusOK, UnlockResponse{Success: true})
}

// LogEvent appends a security event for the caller. Fire-and-forget: store
// failures are logged server-side, never surfaced as an error.
// @Summary Log security event
// @Description Append a security ledger entry attributed to the acting session
// @Tags security
// @Accept json
// @Produce json
// @Param payload body handlers.LogEventRequest true "Event"
// @Success 202 {object} gin.H
// @Router /api/security/events [post]
func (h *SecurityHandler) LogEvent(c *gin.Context) {
	var req LogEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	userID := eventUserID(c, req.UserID)
	ip := security.ExtractClientIP(c.Request.Header)

	_, err := h.store.Append(security.LogEntry{
		UserID:    userID,
		IPAddress: ip,
		UserAgent: userAgent(c),
		Reason:    req.Reason,
	})
	if err != nil {
		log.Printf("❌ Failed to log security event: %v", err)
	}

	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

// SecurityLogListResponse is the admin listing payload
type SecurityLogListResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Items      []seclog.SecurityLog     `json:"items"`
		Pagination query.PaginationResponse `json:"pagination"`
	} `json:"data"`
}

// ListLogs lists security ledger entries for administrators
// @Summary List security logs
// @Description Paginated security ledger listing with filters
// @Tags security
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (default: 1)"
// @Param limit query int false "Items per page (default: 20)"
// @Param filters[ip_address] query string false "Filter by IP address"
// @Param search query string false "Search in reason and user agent"
// @Success 200 {object} handlers.SecurityLogListResponse
// @Failure 403 {object} map[string]string "Admins only"
// @Router /api/security/logs [get]
func (h *SecurityHandler) ListLogs(c *gin.Context) {
	params := query.ParseQueryParams(c)

	allowedFilters := map[string]string{
		"ip_address": "ip_address",
		"user_id":    "user_id",
	}

	allowedSortFields := map[string]string{
		"created_at":  "created_at",
		"resolved_at": "resolved_at",
		"ip_address":  "ip_address",
	}

	dbQuery := h.db.Model(&seclog.SecurityLog{})
	dbQuery = query.ApplyFilters(dbQuery, params.Filters, allowedFilters)
	dbQuery = query.ApplySearch(dbQuery, params.Search, []string{"reason", "user_agent"})

	// Resolution-state filter: filters[resolved]=true|false
	if resolved, ok := params.Filters["resolved"]; ok {
		if resolved == "true" {
			dbQuery = dbQuery.Where("resolved_at IS NOT NULL")
		} else if resolved == "false" {
			dbQuery = dbQuery.Where("resolved_at IS NULL")
		}
	}

	var total int64
	if err := dbQuery.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count security logs"})
		return
	}

	dbQuery = query.ApplySort(dbQuery, params.Sort, allowedSortFields)
	dbQuery = query.ApplyPagination(dbQuery, params.Page, params.Limit)

	var items []seclog.SecurityLog
	if err := dbQuery.Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve security logs"})
		return
	}

	response := SecurityLogListResponse{Success: true}
	response.Data.Items = items
	response.Data.Pagination = query.BuildPaginationResponse(params.Page, params.Limit, total)

	c.JSON(http.StatusOK, response)
}

// eventUserID resolves the acting user: bearer token claims win, then the
// explicit body field (the guard reports forced logouts after sign-out).
func eventUserID(c *gin.Context, bodyUserID string) *uuid.UUID {
	if authHeader := c.GetHeader("Authorization"); len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		if claims, err := utils.ValidateJWT(authHeader[7:]); err == nil {
			if id, err := uuid.Parse(claims.UserID); err == nil {
				return &id
			}
		}
	}

	if bodyUserID != "" {
		if id, err := uuid.Parse(bodyUserID); err == nil {
			return &id
		}
	}

	return nil
}

func userAgent(c *gin.Context) string {
	if ua := c.Request.UserAgent(); ua != "" {
		return ua
	}
	return "unknown"
}
