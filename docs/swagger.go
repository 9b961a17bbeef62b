// Package docs ExpoBoard API documentation
package docs

// Swagger documentation info
// @title ExpoBoard Dashboard API
// @version 1.0
// @description Event-exhibition status dashboard backend - security, session and admin endpoints

// @host localhost:8001
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the JWT token.

// @tag.name security
// @tag.description IP lockout, honeypot ledger and unlock override

// @tag.name auth
// @tag.description Authentication and session status

// @tag.name admin
// @tag.description User administration, maintenance mode and system reset

// @tag.name websocket
// @tag.description Realtime security event push
