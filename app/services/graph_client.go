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

const metaGraphBaseURL = "https://graph.facebook.com/v19.0"

// GraphTransport sends messages through the Meta Send API. The same wire
// contract serves both Instagram direct messages and Facebook Messenger;
// only the credential selection differs.
type GraphTransport struct {
	channel models.Channel
	baseURL string
	client  *http.Client
}

// NewGraphTransport creates a Meta Send API transport for one channel
func NewGraphTransport(channel models.Channel, timeout time.Duration) *GraphTransport {
	return &GraphTransport{
		channel: channel,
		baseURL: metaGraphBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type graphSendRequest struct {
	Recipient graphRecipient   `json:"recipient"`
	Message   graphSendMessage `json:"message"`
}

type graphRecipient struct {
	ID string `json:"id"`
}

type graphSendMessage struct {
	Text       string           `json:"text,omitempty"`
	Attachment *graphAttachment `json:"attachment,omitempty"`
}

type graphAttachment struct {
	Type    string `json:"type"`
	Payload struct {
		URL        string `json:"url"`
		IsReusable bool   `json:"is_reusable,omitempty"`
	} `json:"payload"`
}

type graphSendResponse struct {
	RecipientID string `json:"recipient_id"`
	MessageID   string `json:"message_id"`
	Error       *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// Send delivers one direct message to an Instagram or Messenger recipient
func (t *GraphTransport) Send(ctx context.Context, session *models.Session, recipient string, payload OutboundPayload) (string, error) {
	creds := session.Credentials
	principalID := creds.PageID
	if t.channel == models.ChannelInstagram && creds.InstagramAccountID != "" {
		principalID = creds.InstagramAccountID
	}
	if principalID == "" || creds.AccessToken == "" {
		return "", fmt.Errorf("session %s is missing %s credentials", session.UUID, t.channel)
	}

	body := graphSendRequest{Recipient: graphRecipient{ID: recipient}}
	switch payload.Type {
	case models.MessageTypeImage, models.MessageTypeVideo, models.MessageTypeAudio, models.MessageTypeDocument:
		att := &graphAttachment{Type: graphAttachmentType(payload.Type)}
		att.Payload.URL = payload.MediaURL
		body.Message.Attachment = att
	default:
		body.Message.Text = payload.Text
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal Send API request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages?access_token=%s", t.baseURL, principalID, creds.AccessToken)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send %s request: %w", t.channel, err)
	}
	defer resp.Body.Close()

	var result graphSendResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode %s response: %w", t.channel, err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("%s delivery failed for %s: %s (%d)", t.channel, recipient, result.Error.Message, result.Error.Code)
	}
	if resp.StatusCode != http.StatusOK || result.MessageID == "" {
		return "", fmt.Errorf("%s delivery failed for %s: status %d", t.channel, recipient, resp.StatusCode)
	}
	return result.MessageID, nil
}

func graphAttachmentType(t models.MessageType) string {
	switch t {
	case models.MessageTypeImage:
		return "image"
	case models.MessageTypeVideo:
		return "video"
	case models.MessageTypeAudio:
		return "audio"
	default:
		return "file"
	}
}
