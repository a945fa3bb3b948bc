package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"
)

// Notifier is the outbound side of the chat transport. Delivery is
// fire-and-forget everywhere in this service: callers log failures and move
// on, they never let a missed message roll back a payout or stop a batch.
type Notifier interface {
	Notify(userID int64, text string) error
	NotifyImage(userID int64, assetRef string, caption string) error
}

// GatewayNotifier delivers messages through the bot-gateway service.
type GatewayNotifier struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewGatewayNotifier() *GatewayNotifier {
	baseURL := os.Getenv("BOT_GATEWAY_URL")
	if baseURL == "" {
		log.Fatal("BOT_GATEWAY_URL environment variable is required")
	}
	token := os.Getenv("STAR_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("STAR_SERVICE_TOKEN environment variable is required for the notifier")
	}

	return &GatewayNotifier{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (n *GatewayNotifier) Notify(userID int64, text string) error {
	return n.post("/api/v1/internal/messages", map[string]interface{}{
		"user_id": userID,
		"text":    text,
	})
}

func (n *GatewayNotifier) NotifyImage(userID int64, assetRef string, caption string) error {
	return n.post("/api/v1/internal/messages", map[string]interface{}{
		"user_id": userID,
		"image":   assetRef,
		"caption": caption,
	})
}

func (n *GatewayNotifier) post(path string, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequest("POST", n.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", n.Token)

	resp, err := n.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call bot gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("bot gateway returned status %d: %s", resp.StatusCode, string(snippet))
	}
	return nil
}
