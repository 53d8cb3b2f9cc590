package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
)

const telegramAPIBaseURL = "https://api.telegram.org"

// TelegramTransport sends messages through the Telegram Bot API
type TelegramTransport struct {
	baseURL string
	client  *http.Client
}

// NewTelegramTransport creates a Telegram Bot API transport
func NewTelegramTransport(timeout time.Duration) *TelegramTransport {
	return &TelegramTransport{
		baseURL: telegramAPIBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type telegramSendResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
	Result      *struct {
		MessageID int64 `json:"message_id"`
	} `json:"result,omitempty"`
}

// Send delivers one message to a Telegram chat. The recipient is the chat id.
func (t *TelegramTransport) Send(ctx context.Context, session *models.Session, recipient string, payload OutboundPayload) (string, error) {
	creds := session.Credentials
	if creds.BotToken == "" {
		return "", fmt.Errorf("session %s is missing a Telegram bot token", session.UUID)
	}

	method := "sendMessage"
	body := map[string]any{"chat_id": recipient}
	switch payload.Type {
	case models.MessageTypeImage:
		method = "sendPhoto"
		body["photo"] = payload.MediaURL
		body["caption"] = payload.Text
	case models.MessageTypeVideo:
		method = "sendVideo"
		body["video"] = payload.MediaURL
		body["caption"] = payload.Text
	case models.MessageTypeAudio:
		method = "sendAudio"
		body["audio"] = payload.MediaURL
	case models.MessageTypeDocument:
		method = "sendDocument"
		body["document"] = payload.MediaURL
		body["caption"] = payload.Text
	default:
		body["text"] = payload.Text
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal Telegram request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", t.baseURL, creds.BotToken, method)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send Telegram request: %w", err)
	}
	defer resp.Body.Close()

	var result telegramSendResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode Telegram response: %w", err)
	}
	if !result.OK || result.Result == nil {
		return "", fmt.Errorf("Telegram delivery failed for %s: %s", recipient, result.Description)
	}
	return strconv.FormatInt(result.Result.MessageID, 10), nil
}
