// Package services provides external service integrations like channel message transports
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
	"github.com/muhammad-febriansyah/chatcepat-sub007/utils"
)

// OutboundPayload is a rendered, channel-agnostic message ready for delivery
type OutboundPayload struct {
	Type     models.MessageType
	Text     string
	MediaURL string
	Filename string
}

// MessageTransport sends one message over a connected session's channel.
// Send returns the provider-assigned message id when the provider reports one.
type MessageTransport interface {
	Send(ctx context.Context, session *models.Session, recipient string, payload OutboundPayload) (string, error)
}

// TransportRegistry resolves the transport for a session's channel
type TransportRegistry struct {
	transports map[models.Channel]MessageTransport
}

// NewTransportRegistry creates a registry with the default transport per channel
func NewTransportRegistry(timeout time.Duration) *TransportRegistry {
	return &TransportRegistry{
		transports: map[models.Channel]MessageTransport{
			models.ChannelWhatsApp:  NewWhatsAppTransport(timeout),
			models.ChannelInstagram: NewGraphTransport(models.ChannelInstagram, timeout),
			models.ChannelFacebook:  NewGraphTransport(models.ChannelFacebook, timeout),
			models.ChannelGateway:   NewGatewayTransport(timeout),
			models.ChannelTelegram:  NewTelegramTransport(timeout),
		},
	}
}

// Register replaces the transport for a channel
func (r *TransportRegistry) Register(channel models.Channel, t MessageTransport) {
	r.transports[channel] = t
}

// ForChannel returns the transport for a channel
func (r *TransportRegistry) ForChannel(channel models.Channel) (MessageTransport, error) {
	t, ok := r.transports[channel]
	if !ok {
		return nil, fmt.Errorf("no transport registered for channel %s", channel)
	}
	return t, nil
}

// MockTransport implements MessageTransport for testing
type MockTransport struct {
	mu           sync.Mutex
	SentMessages []MockSentMessage
	FailFor      map[string]error
	NextID       int
}

// MockSentMessage records one mock delivery
type MockSentMessage struct {
	SessionID uint
	Recipient string
	Payload   OutboundPayload
	SentAt    time.Time
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		SentMessages: make([]MockSentMessage, 0),
		FailFor:      make(map[string]error),
	}
}

// Send records the message, or fails when the recipient is marked in FailFor
func (m *MockTransport) Send(_ context.Context, session *models.Session, recipient string, payload OutboundPayload) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.FailFor[recipient]; ok {
		return "", err
	}
	m.NextID++
	m.SentMessages = append(m.SentMessages, MockSentMessage{
		SessionID: session.ID,
		Recipient: recipient,
		Payload:   payload,
		SentAt:    utils.UTCNow(),
	})
	return fmt.Sprintf("mock-%d", m.NextID), nil
}

// GetSentMessages returns all recorded deliveries
func (m *MockTransport) GetSentMessages() []MockSentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockSentMessage, len(m.SentMessages))
	copy(out, m.SentMessages)
	return out
}

// ClearSentMessages clears the recorded deliveries
func (m *MockTransport) ClearSentMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = m.SentMessages[:0]
}
