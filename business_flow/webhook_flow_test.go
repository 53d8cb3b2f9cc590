package businessflow

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/muhammad-febriansyah/chatcepat-sub007/app/dto"
	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
	"github.com/muhammad-febriansyah/chatcepat-sub007/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// In-memory fakes shared by the flow tests in this package.

type stubSessionRepo struct {
	byPhone map[string]*models.Session
	byPage  map[string]*models.Session
	byInsta map[string]*models.Session
	byBot   map[string]*models.Session
	byUUID  map[uuid.UUID]*models.Session
	byID    map[uint]*models.Session
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{
		byPhone: map[string]*models.Session{},
		byPage:  map[string]*models.Session{},
		byInsta: map[string]*models.Session{},
		byBot:   map[string]*models.Session{},
		byUUID:  map[uuid.UUID]*models.Session{},
		byID:    map[uint]*models.Session{},
	}
}

func (r *stubSessionRepo) ByID(_ context.Context, id uint) (*models.Session, error) {
	return r.byID[id], nil
}
func (r *stubSessionRepo) ByFilter(context.Context, models.SessionFilter, string, int, int) ([]*models.Session, error) {
	return nil, nil
}
func (r *stubSessionRepo) Save(context.Context, *models.Session) error        { return nil }
func (r *stubSessionRepo) SaveBatch(context.Context, []*models.Session) error { return nil }
func (r *stubSessionRepo) Count(context.Context, models.SessionFilter) (int64, error) {
	return 0, nil
}
func (r *stubSessionRepo) ByUUID(_ context.Context, id uuid.UUID) (*models.Session, error) {
	return r.byUUID[id], nil
}
func (r *stubSessionRepo) ByPhoneNumberID(_ context.Context, id string) (*models.Session, error) {
	return r.byPhone[id], nil
}
func (r *stubSessionRepo) ByPageID(_ context.Context, id string) (*models.Session, error) {
	return r.byPage[id], nil
}
func (r *stubSessionRepo) ByInstagramAccountID(_ context.Context, id string) (*models.Session, error) {
	return r.byInsta[id], nil
}
func (r *stubSessionRepo) ByBotID(_ context.Context, id string) (*models.Session, error) {
	return r.byBot[id], nil
}
func (r *stubSessionRepo) UpdateStatus(context.Context, uint, models.SessionStatus) error {
	return nil
}

type memMessageRepo struct {
	mu       sync.Mutex
	messages []*models.ChatMessage
	updates  []models.StatusUpdate
}

func (r *memMessageRepo) ByID(context.Context, uint) (*models.ChatMessage, error) { return nil, nil }
func (r *memMessageRepo) ByFilter(context.Context, models.ChatMessageFilter, string, int, int) ([]*models.ChatMessage, error) {
	return nil, nil
}
func (r *memMessageRepo) Save(context.Context, *models.ChatMessage) error        { return nil }
func (r *memMessageRepo) SaveBatch(context.Context, []*models.ChatMessage) error { return nil }
func (r *memMessageRepo) Count(context.Context, models.ChatMessageFilter) (int64, error) {
	return 0, nil
}

func (r *memMessageRepo) SaveIfAbsent(_ context.Context, message *models.ChatMessage) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.messages {
		if existing.Channel == message.Channel && existing.SessionID == message.SessionID && existing.ExternalID == message.ExternalID {
			return false, nil
		}
	}
	r.messages = append(r.messages, message)
	return true, nil
}

func (r *memMessageRepo) ByFingerprint(_ context.Context, channel models.Channel, sessionID uint, externalID string) (*models.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.messages {
		if existing.Channel == channel && existing.SessionID == sessionID && existing.ExternalID == externalID {
			return existing, nil
		}
	}
	return nil, nil
}

func (r *memMessageRepo) ApplyStatusUpdate(_ context.Context, update models.StatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update)
	return nil
}

func (r *memMessageRepo) CountInboundFrom(_ context.Context, channel models.Channel, sessionID uint, from string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, existing := range r.messages {
		if existing.Channel == channel && existing.SessionID == sessionID &&
			existing.FromIdentifier == from && existing.Direction == models.DirectionInbound {
			count++
		}
	}
	return count, nil
}

type memContactRepo struct {
	mu      sync.Mutex
	touches []models.ContactUpsert
}

func (r *memContactRepo) ByID(context.Context, uint) (*models.Contact, error) { return nil, nil }
func (r *memContactRepo) ByFilter(context.Context, models.ContactFilter, string, int, int) ([]*models.Contact, error) {
	return nil, nil
}
func (r *memContactRepo) Save(context.Context, *models.Contact) error        { return nil }
func (r *memContactRepo) SaveBatch(context.Context, []*models.Contact) error { return nil }
func (r *memContactRepo) Count(context.Context, models.ContactFilter) (int64, error) {
	return 0, nil
}
func (r *memContactRepo) ByIdentity(context.Context, uint, models.Channel, string) (*models.Contact, error) {
	return nil, nil
}

func (r *memContactRepo) UpsertTouch(_ context.Context, hint models.ContactUpsert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touches = append(r.touches, hint)
	return nil
}

// recordingAutoReply records which messages reached auto-reply evaluation
type recordingAutoReply struct {
	mu    sync.Mutex
	calls []*models.ChatMessage
}

func (a *recordingAutoReply) HandleInbound(_ context.Context, _ *models.Session, message *models.ChatMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, message)
	return nil
}

type eventCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func newEventCounter() *eventCounter {
	return &eventCounter{counts: map[string]int{}}
}

func (c *eventCounter) observe(_ models.Channel, kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[kind]++
}

func (c *eventCounter) count(kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[kind]
}

type webhookFixture struct {
	flow      WebhookFlow
	sessions  *stubSessionRepo
	messages  *memMessageRepo
	contacts  *memContactRepo
	autoReply *recordingAutoReply
	events    *eventCounter
}

func newWebhookFixture() *webhookFixture {
	sessions := newStubSessionRepo()
	messages := &memMessageRepo{}
	contacts := &memContactRepo{}
	autoReply := &recordingAutoReply{}
	events := newEventCounter()
	flow := NewWebhookFlow(sessions, messages, contacts, autoReply, events.observe, log.New(io.Discard, "", 0))
	return &webhookFixture{flow: flow, sessions: sessions, messages: messages, contacts: contacts, autoReply: autoReply, events: events}
}

func whatsAppSession() *models.Session {
	return &models.Session{
		ID:      1,
		UUID:    uuid.New(),
		UserID:  7,
		Channel: models.ChannelWhatsApp,
		Status:  models.SessionStatusConnected,
		Credentials: models.SessionCredentials{
			AccessToken:   "token",
			PhoneNumberID: "1055001",
		},
		IsActive: utils.ToPtr(true),
	}
}

func whatsAppTextPayload(messageID string) *dto.MetaWebhookPayload {
	msg := dto.WhatsAppMessage{
		ID:        messageID,
		From:      "628111222333",
		Timestamp: "1700000000",
		Type:      "text",
		Text:      &dto.WhatsAppText{Body: "halo, ada promo?"},
	}
	contact := dto.WhatsAppContact{WaID: "628111222333"}
	contact.Profile.Name = "Rina"
	return &dto.MetaWebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []dto.MetaWebhookEntry{{
			ID: "entry-1",
			Changes: []dto.WhatsAppChange{{
				Field: "messages",
				Value: dto.WhatsAppValue{
					MessagingProduct: "whatsapp",
					Metadata:         dto.WhatsAppMetadata{PhoneNumberID: "1055001"},
					Contacts:         []dto.WhatsAppContact{contact},
					Messages:         []dto.WhatsAppMessage{msg},
				},
			}},
		}},
	}
}

func TestWhatsAppMessageIngestion(t *testing.T) {
	fx := newWebhookFixture()
	fx.sessions.byPhone["1055001"] = whatsAppSession()

	err := fx.flow.HandleMeta(context.Background(), whatsAppTextPayload("wamid.1"))
	require.NoError(t, err)

	require.Len(t, fx.messages.messages, 1)
	msg := fx.messages.messages[0]
	assert.Equal(t, "wamid.1", msg.ExternalID)
	assert.Equal(t, models.ChannelWhatsApp, msg.Channel)
	assert.Equal(t, uint(1), msg.SessionID)
	assert.Equal(t, "628111222333", msg.FromIdentifier)
	assert.Equal(t, "1055001", msg.ToIdentifier)
	assert.Equal(t, models.MessageTypeText, msg.Type)
	assert.Equal(t, models.DirectionInbound, msg.Direction)
	assert.Equal(t, models.MessageStatusReceived, msg.Status)
	require.NotNil(t, msg.Content)
	assert.Equal(t, "halo, ada promo?", *msg.Content)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), msg.SentAt)

	// Contact refreshed with the profile name
	require.Len(t, fx.contacts.touches, 1)
	touch := fx.contacts.touches[0]
	assert.Equal(t, uint(7), touch.UserID)
	assert.Equal(t, "628111222333", touch.Identifier)
	require.NotNil(t, touch.PushName)
	assert.Equal(t, "Rina", *touch.PushName)

	// Inbound text reaches auto-reply
	assert.Len(t, fx.autoReply.calls, 1)
	assert.Equal(t, 1, fx.events.count("message"))
}

func TestWebhookReplayIsIdempotent(t *testing.T) {
	fx := newWebhookFixture()
	fx.sessions.byPhone["1055001"] = whatsAppSession()

	require.NoError(t, fx.flow.HandleMeta(context.Background(), whatsAppTextPayload("wamid.dup")))
	require.NoError(t, fx.flow.HandleMeta(context.Background(), whatsAppTextPayload("wamid.dup")))

	// The replay produced no second row, contact touch or auto-reply
	assert.Len(t, fx.messages.messages, 1)
	assert.Len(t, fx.contacts.touches, 1)
	assert.Len(t, fx.autoReply.calls, 1)
	assert.Equal(t, 1, fx.events.count("duplicate"))
}

func TestWhatsAppUnknownPhoneNumberDropped(t *testing.T) {
	fx := newWebhookFixture()

	err := fx.flow.HandleMeta(context.Background(), whatsAppTextPayload("wamid.2"))
	require.NoError(t, err)

	assert.Empty(t, fx.messages.messages)
	assert.Equal(t, 1, fx.events.count("unknown_principal"))
}

func TestWhatsAppStatusUpdate(t *testing.T) {
	fx := newWebhookFixture()
	session := whatsAppSession()
	fx.sessions.byPhone["1055001"] = session

	// Seed the outbound message the receipt refers to
	fx.messages.messages = append(fx.messages.messages, &models.ChatMessage{
		ExternalID: "wamid.out",
		Channel:    models.ChannelWhatsApp,
		SessionID:  session.ID,
		Direction:  models.DirectionOutbound,
		Status:     models.MessageStatusSent,
	})

	payload := &dto.MetaWebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []dto.MetaWebhookEntry{{
			ID: "entry-1",
			Changes: []dto.WhatsAppChange{{
				Field: "messages",
				Value: dto.WhatsAppValue{
					Metadata: dto.WhatsAppMetadata{PhoneNumberID: "1055001"},
					Statuses: []dto.WhatsAppStatus{
						{ID: "wamid.out", Status: "delivered", Timestamp: "1700000100"},
						{ID: "wamid.ghost", Status: "read", Timestamp: "1700000100"},
					},
				},
			}},
		}},
	}

	require.NoError(t, fx.flow.HandleMeta(context.Background(), payload))

	// Known id applied, unknown id skipped
	require.Len(t, fx.messages.updates, 1)
	update := fx.messages.updates[0]
	assert.Equal(t, "wamid.out", update.ExternalID)
	assert.Equal(t, models.MessageStatusDelivered, update.Status)
	assert.Equal(t, 1, fx.events.count("status"))
}

func TestWhatsAppFailedStatusCarriesErrorDetail(t *testing.T) {
	fx := newWebhookFixture()
	session := whatsAppSession()
	fx.sessions.byPhone["1055001"] = session
	fx.messages.messages = append(fx.messages.messages, &models.ChatMessage{
		ExternalID: "wamid.fail",
		Channel:    models.ChannelWhatsApp,
		SessionID:  session.ID,
	})

	payload := &dto.MetaWebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []dto.MetaWebhookEntry{{
			Changes: []dto.WhatsAppChange{{
				Field: "messages",
				Value: dto.WhatsAppValue{
					Metadata: dto.WhatsAppMetadata{PhoneNumberID: "1055001"},
					Statuses: []dto.WhatsAppStatus{{
						ID:        "wamid.fail",
						Status:    "failed",
						Timestamp: "1700000100",
						Errors:    []dto.WhatsAppError{{Code: 131047, Title: "Re-engagement message"}},
					}},
				},
			}},
		}},
	}

	require.NoError(t, fx.flow.HandleMeta(context.Background(), payload))

	require.Len(t, fx.messages.updates, 1)
	update := fx.messages.updates[0]
	assert.Equal(t, models.MessageStatusFailed, update.Status)
	require.NotNil(t, update.ErrorDetail)
	assert.Equal(t, "Re-engagement message", *update.ErrorDetail)
}

func TestWhatsAppFailedStatusWithoutErrorsDefaultsDetail(t *testing.T) {
	fx := newWebhookFixture()
	session := whatsAppSession()
	fx.sessions.byPhone["1055001"] = session
	fx.messages.messages = append(fx.messages.messages, &models.ChatMessage{
		ExternalID: "wamid.fail.bare",
		Channel:    models.ChannelWhatsApp,
		SessionID:  session.ID,
	})

	payload := &dto.MetaWebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []dto.MetaWebhookEntry{{
			Changes: []dto.WhatsAppChange{{
				Field: "messages",
				Value: dto.WhatsAppValue{
					Metadata: dto.WhatsAppMetadata{PhoneNumberID: "1055001"},
					Statuses: []dto.WhatsAppStatus{{
						ID:        "wamid.fail.bare",
						Status:    "failed",
						Timestamp: "1700000100",
					}},
				},
			}},
		}},
	}

	require.NoError(t, fx.flow.HandleMeta(context.Background(), payload))

	require.Len(t, fx.messages.updates, 1)
	update := fx.messages.updates[0]
	assert.Equal(t, models.MessageStatusFailed, update.Status)
	require.NotNil(t, update.ErrorDetail)
	assert.Equal(t, "Unknown error", *update.ErrorDetail)
}

func messengerSession(channel models.Channel) *models.Session {
	return &models.Session{
		ID:       2,
		UUID:     uuid.New(),
		UserID:   7,
		Channel:  channel,
		Status:   models.SessionStatusConnected,
		IsActive: utils.ToPtr(true),
	}
}

func TestFacebookMessageIngestionAndEchoSuppression(t *testing.T) {
	fx := newWebhookFixture()
	fx.sessions.byPage["90210"] = messengerSession(models.ChannelFacebook)

	payload := &dto.MetaWebhookPayload{
		Object: "page",
		Entry: []dto.MetaWebhookEntry{{
			ID: "90210",
			Messaging: []dto.MessengerEventItem{
				{
					Sender:    dto.MessengerParty{ID: "user-55"},
					Recipient: dto.MessengerParty{ID: "90210"},
					Timestamp: 1700000000000,
					Message:   &dto.MessengerMessage{MID: "m.1", Text: "hi there"},
				},
				{
					// The page's own send echoed back must be skipped
					Sender:    dto.MessengerParty{ID: "90210"},
					Recipient: dto.MessengerParty{ID: "user-55"},
					Timestamp: 1700000001000,
					Message:   &dto.MessengerMessage{MID: "m.echo", Text: "thanks!"},
				},
			},
		}},
	}

	require.NoError(t, fx.flow.HandleMeta(context.Background(), payload))

	require.Len(t, fx.messages.messages, 1)
	msg := fx.messages.messages[0]
	assert.Equal(t, "m.1", msg.ExternalID)
	assert.Equal(t, models.ChannelFacebook, msg.Channel)
	assert.Equal(t, "user-55", msg.FromIdentifier)
	assert.Equal(t, "90210", msg.ToIdentifier)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), msg.SentAt)
}

func TestFacebookReadReceiptFansOut(t *testing.T) {
	fx := newWebhookFixture()
	session := messengerSession(models.ChannelFacebook)
	fx.sessions.byPage["90210"] = session
	for _, mid := range []string{"m.a", "m.b"} {
		fx.messages.messages = append(fx.messages.messages, &models.ChatMessage{
			ExternalID: mid,
			Channel:    models.ChannelFacebook,
			SessionID:  session.ID,
		})
	}

	payload := &dto.MetaWebhookPayload{
		Object: "page",
		Entry: []dto.MetaWebhookEntry{{
			ID: "90210",
			Messaging: []dto.MessengerEventItem{{
				Sender:    dto.MessengerParty{ID: "user-55"},
				Timestamp: 1700000002000,
				Read:      &dto.MessengerReceipt{MIDs: []string{"m.a", "m.b"}},
			}},
		}},
	}

	require.NoError(t, fx.flow.HandleMeta(context.Background(), payload))

	require.Len(t, fx.messages.updates, 2)
	assert.Equal(t, models.MessageStatusRead, fx.messages.updates[0].Status)
	assert.Equal(t, models.MessageStatusRead, fx.messages.updates[1].Status)
}

func TestInstagramResolvesByAccountID(t *testing.T) {
	fx := newWebhookFixture()
	fx.sessions.byInsta["ig-777"] = messengerSession(models.ChannelInstagram)

	payload := &dto.MetaWebhookPayload{
		Object: "instagram",
		Entry: []dto.MetaWebhookEntry{{
			ID: "ig-777",
			Messaging: []dto.MessengerEventItem{{
				Sender:    dto.MessengerParty{ID: "ig-user-9"},
				Timestamp: 1700000000000,
				Message:   &dto.MessengerMessage{MID: "ig.m.1", Text: "dm masuk"},
			}},
		}},
	}

	require.NoError(t, fx.flow.HandleMeta(context.Background(), payload))

	require.Len(t, fx.messages.messages, 1)
	assert.Equal(t, models.ChannelInstagram, fx.messages.messages[0].Channel)
	assert.Equal(t, "ig.m.1", fx.messages.messages[0].ExternalID)
}

func TestUnsupportedObjectIgnored(t *testing.T) {
	fx := newWebhookFixture()

	err := fx.flow.HandleMeta(context.Background(), &dto.MetaWebhookPayload{Object: "ad_account"})
	assert.NoError(t, err)
	assert.Empty(t, fx.messages.messages)
}

func gatewaySession() *models.Session {
	return &models.Session{
		ID:       3,
		UUID:     uuid.New(),
		UserID:   7,
		Channel:  models.ChannelGateway,
		Status:   models.SessionStatusConnected,
		IsActive: utils.ToPtr(true),
	}
}

func TestGatewayInboundMessage(t *testing.T) {
	fx := newWebhookFixture()
	session := gatewaySession()
	fx.sessions.byUUID[session.UUID] = session

	req := &dto.GatewayMessageRequest{
		MessageID:  "gw-1",
		FromNumber: "6281234567890",
		ToNumber:   "6280000000001",
		Direction:  "incoming",
		Type:       "text",
		Content:    utils.ToPtr("pagi kak"),
		Status:     "pending",
		PushName:   utils.ToPtr("Budi"),
	}

	require.NoError(t, fx.flow.HandleGateway(context.Background(), session.UUID.String(), req))

	require.Len(t, fx.messages.messages, 1)
	msg := fx.messages.messages[0]
	assert.Equal(t, models.DirectionInbound, msg.Direction)
	assert.Equal(t, models.MessageStatusReceived, msg.Status)
	require.Len(t, fx.contacts.touches, 1)
	require.NotNil(t, fx.contacts.touches[0].PushName)
	assert.Equal(t, "Budi", *fx.contacts.touches[0].PushName)
}

func TestGatewayOutgoingMessage(t *testing.T) {
	fx := newWebhookFixture()
	session := gatewaySession()
	fx.sessions.byUUID[session.UUID] = session

	req := &dto.GatewayMessageRequest{
		MessageID:  "gw-2",
		FromNumber: "6280000000001",
		ToNumber:   "6281234567890",
		Direction:  "outgoing",
		Type:       "text",
		Content:    utils.ToPtr("pesanan dikirim"),
		Status:     "delivered",
	}

	require.NoError(t, fx.flow.HandleGateway(context.Background(), session.UUID.String(), req))

	require.Len(t, fx.messages.messages, 1)
	msg := fx.messages.messages[0]
	assert.Equal(t, models.DirectionOutbound, msg.Direction)
	assert.Equal(t, models.MessageStatusDelivered, msg.Status)
	// Outgoing traffic never refreshes the contact
	assert.Empty(t, fx.contacts.touches)
	// And never triggers auto-reply
	assert.Empty(t, fx.autoReply.calls)
}

func TestGatewayUnknownSessionDropped(t *testing.T) {
	fx := newWebhookFixture()

	req := &dto.GatewayMessageRequest{
		MessageID: "gw-3", FromNumber: "628", ToNumber: "628", Direction: "incoming", Type: "text", Status: "pending",
	}

	assert.NoError(t, fx.flow.HandleGateway(context.Background(), uuid.NewString(), req))
	assert.NoError(t, fx.flow.HandleGateway(context.Background(), "not-a-uuid", req))
	assert.Empty(t, fx.messages.messages)
	assert.Equal(t, 2, fx.events.count("unknown_principal"))
}

func telegramSession(secret string) *models.Session {
	return &models.Session{
		ID:      4,
		UUID:    uuid.New(),
		UserID:  7,
		Channel: models.ChannelTelegram,
		Status:  models.SessionStatusConnected,
		Credentials: models.SessionCredentials{
			BotToken:      "5511223344:AAFakeToken",
			WebhookSecret: secret,
		},
		IsActive: utils.ToPtr(true),
	}
}

func telegramTextUpdate(messageID int64, text string) *dto.TelegramUpdate {
	return &dto.TelegramUpdate{
		UpdateID: 100,
		Message: &dto.TelegramMessage{
			MessageID: messageID,
			From:      &dto.TelegramUser{ID: 42, FirstName: "Sari", LastName: "Putri"},
			Chat:      dto.TelegramChat{ID: 987654321, Type: "private"},
			Date:      1700000000,
			Text:      text,
		},
	}
}

func TestTelegramMessageIngestion(t *testing.T) {
	fx := newWebhookFixture()
	fx.sessions.byBot["5511223344"] = telegramSession("s3cret")

	err := fx.flow.HandleTelegram(context.Background(), "5511223344", "s3cret", telegramTextUpdate(11, "halo bot"))
	require.NoError(t, err)

	require.Len(t, fx.messages.messages, 1)
	msg := fx.messages.messages[0]
	assert.Equal(t, "11", msg.ExternalID)
	assert.Equal(t, "987654321", msg.FromIdentifier)
	assert.Equal(t, "5511223344", msg.ToIdentifier)
	require.NotNil(t, msg.Content)
	assert.Equal(t, "halo bot", *msg.Content)

	require.Len(t, fx.contacts.touches, 1)
	require.NotNil(t, fx.contacts.touches[0].PushName)
	assert.Equal(t, "Sari Putri", *fx.contacts.touches[0].PushName)
}

func TestTelegramSecretMismatch(t *testing.T) {
	fx := newWebhookFixture()
	fx.sessions.byBot["5511223344"] = telegramSession("s3cret")

	err := fx.flow.HandleTelegram(context.Background(), "5511223344", "wrong", telegramTextUpdate(12, "halo"))
	require.Error(t, err)
	assert.True(t, IsWebhookSecretInvalid(err))
	assert.Empty(t, fx.messages.messages)
}

func TestTelegramUnknownBotDropped(t *testing.T) {
	fx := newWebhookFixture()

	err := fx.flow.HandleTelegram(context.Background(), "404404", "s3cret", telegramTextUpdate(13, "halo"))
	assert.NoError(t, err)
	assert.Empty(t, fx.messages.messages)
	assert.Equal(t, 1, fx.events.count("unknown_principal"))
}

func TestTelegramInactiveSessionAcknowledgedSilently(t *testing.T) {
	fx := newWebhookFixture()
	session := telegramSession("s3cret")
	session.IsActive = utils.ToPtr(false)
	fx.sessions.byBot["5511223344"] = session

	err := fx.flow.HandleTelegram(context.Background(), "5511223344", "s3cret", telegramTextUpdate(14, "halo"))
	assert.NoError(t, err)
	assert.Empty(t, fx.messages.messages)
}

// Lookup failures surface as business errors rather than silent drops
type failingSessionRepo struct {
	stubSessionRepo
}

func (r *failingSessionRepo) ByPhoneNumberID(context.Context, string) (*models.Session, error) {
	return nil, errors.New("db down")
}

func TestWhatsAppLookupFailureSurfaces(t *testing.T) {
	sessions := &failingSessionRepo{stubSessionRepo: *newStubSessionRepo()}
	flow := NewWebhookFlow(sessions, &memMessageRepo{}, &memContactRepo{}, &recordingAutoReply{}, nil, log.New(io.Discard, "", 0))

	err := flow.HandleMeta(context.Background(), whatsAppTextPayload("wamid.9"))
	require.Error(t, err)

	var businessErr *BusinessError
	assert.True(t, errors.As(err, &businessErr))
}
