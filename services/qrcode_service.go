// services/qrcode_service.go
package services

import (
	"os"

	"github.com/skip2/go-qrcode"
)

// GenerateJoinQRCode creates a QR code for the session join URL, so students
// can scan their way in instead of typing the address.
func GenerateJoinQRCode(size int) ([]byte, error) {
	applicationURL := os.Getenv("APPLICATION_URL")
	if applicationURL == "" {
		applicationURL = "http://localhost:8080" // Default for local testing
	}

	png, err := qrcode.Encode(applicationURL, qrcode.Medium, size)
	if err != nil {
		return nil, err
	}
	return png, nil
}
