// Package controllers controllers/poll_controller.go
package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classpulse/logger"
	"classpulse/services"
)

var (
	ApplicationURL string
	WebsocketURL   string
)

// sessionStore is the read-only view the HTTP endpoints expose.
var sessionStore services.SessionStoreInterface

// SetConfig stores the externally visible URLs.
func SetConfig(applicationURL, websocketURL string) {
	ApplicationURL = applicationURL
	WebsocketURL = websocketURL
}

// SetStore injects the session store; called once from main.
func SetStore(store services.SessionStoreInterface) {
	sessionStore = store
}

// Health is the liveness probe.
func Health(c *gin.Context) {
	logger.Debug.Println("Health: Health check requested")
	c.String(http.StatusOK, "OK")
}

// GetQRCode serves a PNG QR code of the join URL.
func GetQRCode(c *gin.Context) {
	png, err := services.GenerateJoinQRCode(256)
	if err != nil {
		logger.Error.Printf("GetQRCode: failed to generate QR code: %v", err)
		c.String(http.StatusInternalServerError, "Failed to generate QR code")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// GetSession returns the current session snapshot: the poll (or null) and the
// roster, exactly as the mirrors hold them.
func GetSession(c *gin.Context) {
	if sessionStore == nil {
		logger.Error.Println("GetSession: no session store configured")
		c.String(http.StatusInternalServerError, "Session unavailable")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"poll":     sessionStore.CurrentPoll(),
		"students": sessionStore.RosterSnapshot(),
	})
}
