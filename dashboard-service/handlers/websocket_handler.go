package handlers

import (
	"github.com/gin-gonic/gin"

	"expoboard-backend/dashboard-service/services"
)

// HandleGuardWebSocket handles session guard WebSocket connection requests
// @Summary Guard WebSocket connection
// @Description Establish a WebSocket connection for realtime security events
// @Tags websocket
// @Param user_id path string true "User ID"
// @Router /ws/guard/{user_id} [get]
func HandleGuardWebSocket(c *gin.Context) {
	rtManager := services.GetRealtimeManager()
	rtManager.HandleConnection(c)
}
