package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
)

const whatsAppGraphBaseURL = "https://graph.facebook.com/v19.0"

// WhatsAppTransport sends messages through the WhatsApp Business Cloud API
type WhatsAppTransport struct {
	baseURL string
	client  *http.Client
}

// NewWhatsAppTransport creates a WhatsApp Cloud API transport
func NewWhatsAppTransport(timeout time.Duration) *WhatsAppTransport {
	return &WhatsAppTransport{
		baseURL: whatsAppGraphBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type whatsAppSendRequest struct {
	MessagingProduct string             `json:"messaging_product"`
	RecipientType    string             `json:"recipient_type"`
	To               string             `json:"to"`
	Type             string             `json:"type"`
	Text             *whatsAppSendText  `json:"text,omitempty"`
	Image            *whatsAppSendMedia `json:"image,omitempty"`
	Video            *whatsAppSendMedia `json:"video,omitempty"`
	Audio            *whatsAppSendMedia `json:"audio,omitempty"`
	Document         *whatsAppSendMedia `json:"document,omitempty"`
}

type whatsAppSendText struct {
	Body string `json:"body"`
}

type whatsAppSendMedia struct {
	Link     string `json:"link"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type whatsAppSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// Send delivers one message to a WhatsApp recipient via the Cloud API
func (t *WhatsAppTransport) Send(ctx context.Context, session *models.Session, recipient string, payload OutboundPayload) (string, error) {
	creds := session.Credentials
	if creds.PhoneNumberID == "" || creds.AccessToken == "" {
		return "", fmt.Errorf("session %s is missing WhatsApp credentials", session.UUID)
	}

	body := whatsAppSendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               recipient,
	}
	switch payload.Type {
	case models.MessageTypeImage:
		body.Type = "image"
		body.Image = &whatsAppSendMedia{Link: payload.MediaURL, Caption: payload.Text}
	case models.MessageTypeVideo:
		body.Type = "video"
		body.Video = &whatsAppSendMedia{Link: payload.MediaURL, Caption: payload.Text}
	case models.MessageTypeAudio:
		body.Type = "audio"
		body.Audio = &whatsAppSendMedia{Link: payload.MediaURL}
	case models.MessageTypeDocument:
		body.Type = "document"
		body.Document = &whatsAppSendMedia{Link: payload.MediaURL, Caption: payload.Text, Filename: payload.Filename}
	default:
		body.Type = "text"
		body.Text = &whatsAppSendText{Body: payload.Text}
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal WhatsApp send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", t.baseURL, creds.PhoneNumberID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send WhatsApp request: %w", err)
	}
	defer resp.Body.Close()

	var result whatsAppSendResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode WhatsApp response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("WhatsApp delivery failed for %s: %s (%d)", recipient, result.Error.Message, result.Error.Code)
	}
	if resp.StatusCode != http.StatusOK || len(result.Messages) == 0 {
		return "", fmt.Errorf("WhatsApp delivery failed for %s: status %d", recipient, resp.StatusCode)
	}
	return result.Messages[0].ID, nil
}
