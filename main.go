// main.go
package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"classpulse/controllers"
	"classpulse/logger"
	"classpulse/middleware"
	"classpulse/services"
	"classpulse/websocket"
)

func main() {
	// Load .env if present; deployed environments set variables directly.
	if err := godotenv.Load(); err != nil {
		logger.Debug.Println("No .env file found; using process environment")
	}
	logger.SetLogLevel(os.Getenv("APP_ENV"))

	// Set Gin to release mode for production (optional but recommended)
	gin.SetMode(gin.ReleaseMode)

	// Initialize the router
	router := gin.Default()

	// Read configuration from environment variables
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	applicationURL := os.Getenv("APPLICATION_URL")
	if applicationURL == "" {
		applicationURL = "http://localhost:" + port // Default to localhost for local testing
	}

	websocketURL := os.Getenv("WEBSOCKET_URL")
	if websocketURL == "" {
		websocketURL = "ws://localhost:" + port + "/poll-updates" // Default to localhost for local testing
	}

	allowedOrigin := os.Getenv("ALLOWED_ORIGIN")

	timeLimit := 60
	if v := os.Getenv("POLL_TIME_LIMIT"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			logger.Warn.Printf("Invalid POLL_TIME_LIMIT %q; keeping default of %ds", v, timeLimit)
		} else {
			timeLimit = parsed
		}
	}

	// Pass these values to controllers or wherever needed
	controllers.SetConfig(applicationURL, websocketURL)
	websocket.SetAllowedOrigin(allowedOrigin)

	// The session store lives for exactly the lifetime of the process: built
	// here, gone on exit, nothing persisted.
	store := services.NewSessionStore(timeLimit)
	controllers.SetStore(store)

	coordinator := websocket.NewSessionCoordinator(
		store,
		websocket.DefaultMessenger(),
		time.Duration(timeLimit)*time.Second,
	)
	websocket.InitCoordinator(coordinator)

	// Allow the frontend origin for cross-connection requests
	router.Use(middleware.CORS(allowedOrigin))

	// Add this route for health checks
	router.GET("/health", controllers.Health)

	// Session join QR code and read-only session snapshot
	router.GET("/qrcode", controllers.GetQRCode)
	router.GET("/session", controllers.GetSession)

	// WebSocket entry point for all participants
	router.GET("/poll-updates", func(c *gin.Context) {
		websocket.ServeWs(c.Writer, c.Request)
	})

	// Start the WebSocket broadcast loop
	go websocket.HandleMessages()

	logger.Info.Printf("ClassPulse listening on :%s (poll time limit %ds)", port, timeLimit)

	// Start the server
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
