package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
)

// GatewayTransport sends messages through a self-hosted session bridge.
// The bridge base URL and API key come from the session's credentials.
type GatewayTransport struct {
	client *http.Client
}

// NewGatewayTransport creates a gateway bridge transport
func NewGatewayTransport(timeout time.Duration) *GatewayTransport {
	return &GatewayTransport{
		client: &http.Client{Timeout: timeout},
	}
}

type gatewaySendRequest struct {
	To       string `json:"to"`
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	MediaURL string `json:"media_url,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type gatewaySendResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id"`
	Error     string `json:"error,omitempty"`
}

// Send delivers one message through the session's gateway bridge
func (t *GatewayTransport) Send(ctx context.Context, session *models.Session, recipient string, payload OutboundPayload) (string, error) {
	creds := session.Credentials
	if creds.GatewayBaseURL == "" || creds.GatewayAPIKey == "" {
		return "", fmt.Errorf("session %s is missing gateway credentials", session.UUID)
	}

	body := gatewaySendRequest{
		To:       recipient,
		Type:     string(payload.Type),
		Content:  payload.Text,
		MediaURL: payload.MediaURL,
		Filename: payload.Filename,
	}
	requestBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal gateway send request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/sessions/%s/messages", strings.TrimRight(creds.GatewayBaseURL, "/"), session.UUID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", creds.GatewayAPIKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send gateway request: %w", err)
	}
	defer resp.Body.Close()

	var result gatewaySendResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !result.Success {
		msg := result.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("gateway delivery failed for %s: %s", recipient, msg)
	}
	return result.MessageID, nil
}
