package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"expoboard-backend/shared/config"
)

// Security event types pushed to session guards
const (
	EventMaintenanceMode = "maintenance_mode"
	EventForceLogout     = "force_logout"
)

// SecurityEventChannel is the Redis pub/sub channel carrying guard events
const SecurityEventChannel = "expoboard:security:events"

// SecurityEvent is a state change pushed to connected session guards.
// For EventForceLogout, UserID targets one account and Value carries the
// new force_logout_at timestamp (RFC3339). For EventMaintenanceMode,
// UserID is empty (broadcast) and Value is "true"/"false".
type SecurityEvent struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id,omitempty"`
	Value     string    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// RealtimeManager fans security events out to connected WebSocket clients.
// Events are published through Redis so every service instance's hub sees
// admin actions regardless of which instance handled them.
type RealtimeManager struct {
	clients    map[string]*websocket.Conn // userID -> connection
	mutex      sync.RWMutex
	upgrader   websocket.Upgrader
	register   chan *ClientConnection
	unregister chan *ClientConnection
	redis      *redis.Client
}

// ClientConnection represents a client WebSocket connection
type ClientConnection struct {
	UserID     string
	Connection *websocket.Conn
}

var rtManager *RealtimeManager
var once sync.Once

// GetRealtimeManager returns the singleton realtime manager
func GetRealtimeManager() *RealtimeManager {
	once.Do(func() {
		cfg := config.GetConfig()

		redisDB, err := strconv.Atoi(cfg.RedisDB)
		if err != nil {
			log.Printf("❌ Invalid Redis DB number: %s, using default 0", cfg.RedisDB)
			redisDB = 0
		}

		rtManager = &RealtimeManager{
			clients: make(map[string]*websocket.Conn),
			upgrader: websocket.Upgrader{
				CheckOrigin: func(r *http.Request) bool {
					origin := r.Header.Get("Origin")
					if origin == "" || origin == cfg.FrontendURL {
						return true
					}
					log.Printf("🚫 WebSocket connection rejected from origin: %s", origin)
					return false
				},
			},
			register:   make(chan *ClientConnection, 100),
			unregister: make(chan *ClientConnection, 100),
			redis: redis.NewClient(&redis.Options{
				Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
				Password: cfg.RedisPassword,
				DB:       redisDB,
			}),
		}

		go rtManager.run()
		go rtManager.subscribe()
	})
	return rtManager
}

// run handles the connection registry event loop
func (rm *RealtimeManager) run() {
	for {
		select {
		case client := <-rm.register:
			rm.registerClient(client)

		case client := <-rm.unregister:
			rm.unregisterClient(client)
		}
	}
}

// subscribe listens on the Redis channel and dispatches incoming events
func (rm *RealtimeManager) subscribe() {
	ctx := context.Background()
	sub := rm.redis.Subscribe(ctx, SecurityEventChannel)

	for msg := range sub.Channel() {
		var event SecurityEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Printf("❌ Failed to decode security event: %v", err)
			continue
		}
		rm.dispatch(&event)
	}
}

// Publish sends a security event through Redis to every instance's hub
func (rm *RealtimeManager) Publish(ctx context.Context, event *SecurityEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return rm.redis.Publish(ctx, SecurityEventChannel, payload).Err()
}

// dispatch routes an event to the targeted user or broadcasts it
func (rm *RealtimeManager) dispatch(event *SecurityEvent) {
	if event.UserID != "" {
		if err := rm.sendToUser(event.UserID, event); err != nil {
			log.Printf("📡 Event %s not delivered to %s: %v", event.Type, event.UserID, err)
		}
		return
	}

	rm.broadcast(event)
}

func (rm *RealtimeManager) registerClient(client *ClientConnection) {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	// Close existing connection if any
	if existingConn, exists := rm.clients[client.UserID]; exists {
		existingConn.Close()
	}

	rm.clients[client.UserID] = client.Connection
	log.Printf("🔌 Guard client connected: %s (Total: %d)", client.UserID, len(rm.clients))
}

func (rm *RealtimeManager) unregisterClient(client *ClientConnection) {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	if _, exists := rm.clients[client.UserID]; exists {
		delete(rm.clients, client.UserID)
		client.Connection.Close()
		log.Printf("🔌 Guard client disconnected: %s (Total: %d)", client.UserID, len(rm.clients))
	}
}

func (rm *RealtimeManager) broadcast(event *SecurityEvent) {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()

	for userID, conn := range rm.clients {
		if err := conn.WriteJSON(event); err != nil {
			log.Printf("❌ Failed to push event to user %s: %v", userID, err)
			go func(uid string, connection *websocket.Conn) {
				rm.unregister <- &ClientConnection{UserID: uid, Connection: connection}
			}(userID, conn)
		}
	}
}

func (rm *RealtimeManager) sendToUser(userID string, event *SecurityEvent) error {
	rm.mutex.RLock()
	conn, exists := rm.clients[userID]
	rm.mutex.RUnlock()

	if !exists {
		return fmt.Errorf("user %s is not connected", userID)
	}

	return conn.WriteJSON(event)
}

// HandleConnection upgrades the request and keeps the connection registered
// until the client goes away
func (rm *RealtimeManager) HandleConnection(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	conn, err := rm.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ WebSocket upgrade failed: %v", err)
		return
	}

	client := &ClientConnection{UserID: userID, Connection: conn}
	rm.register <- client

	// Consume control frames until the peer disconnects
	go func() {
		defer func() {
			rm.unregister <- client
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
