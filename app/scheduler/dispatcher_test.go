package scheduler

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/muhammad-febriansyah/chatcepat-sub007/app/progress"
	"github.com/muhammad-febriansyah/chatcepat-sub007/app/services"
	businessflow "github.com/muhammad-febriansyah/chatcepat-sub007/business_flow"
	"github.com/muhammad-febriansyah/chatcepat-sub007/config"
	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
	"github.com/muhammad-febriansyah/chatcepat-sub007/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// In-memory repository fakes. Only the methods the dispatcher touches carry
// behavior; the rest satisfy the interfaces.

type fakeCampaignRepo struct {
	mu          sync.Mutex
	status      models.CampaignStatus
	sent        int
	failed      int
	finished    models.CampaignStatus
	errMessage  *string
	completedAt *time.Time
	flushes     int

	due      []*models.Campaign
	claims   int
	reclaims []time.Time
}

func (r *fakeCampaignRepo) ByID(context.Context, uint) (*models.Campaign, error) { return nil, nil }
func (r *fakeCampaignRepo) ByFilter(context.Context, models.CampaignFilter, string, int, int) ([]*models.Campaign, error) {
	return nil, nil
}
func (r *fakeCampaignRepo) Save(context.Context, *models.Campaign) error        { return nil }
func (r *fakeCampaignRepo) SaveBatch(context.Context, []*models.Campaign) error { return nil }
func (r *fakeCampaignRepo) Count(context.Context, models.CampaignFilter) (int64, error) {
	return 0, nil
}
func (r *fakeCampaignRepo) ByUUID(context.Context, uuid.UUID) (*models.Campaign, error) {
	return nil, nil
}
func (r *fakeCampaignRepo) ListDue(context.Context, time.Time, int) ([]*models.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	due := r.due
	r.due = nil
	return due, nil
}

func (r *fakeCampaignRepo) ClaimForProcessing(context.Context, uint, time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claims++
	return true, nil
}

func (r *fakeCampaignRepo) ReclaimStale(_ context.Context, olderThan time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reclaims = append(r.reclaims, olderThan)
	return 0, nil
}

func (r *fakeCampaignRepo) GetStatus(context.Context, uint) (models.CampaignStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, nil
}

func (r *fakeCampaignRepo) UpdateCounters(_ context.Context, _ uint, sent, failed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent, r.failed = sent, failed
	r.flushes++
	return nil
}

func (r *fakeCampaignRepo) Finish(_ context.Context, _ uint, status models.CampaignStatus, errorMessage *string, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = status
	r.errMessage = errorMessage
	r.completedAt = &completedAt
	return nil
}

func (r *fakeCampaignRepo) RequestCancel(context.Context, uint, uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = models.CampaignStatusCancelled
	return true, nil
}

func (r *fakeCampaignRepo) SetCompletedAt(_ context.Context, _ uint, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completedAt = &completedAt
	return nil
}

func (r *fakeCampaignRepo) UpdateStatus(_ context.Context, _ uint, _, to models.CampaignStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = to
	return true, nil
}

func (r *fakeCampaignRepo) snapshot() (models.CampaignStatus, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished, r.sent, r.failed
}

type fakeSessionRepo struct {
	session *models.Session
}

func (r *fakeSessionRepo) ByID(context.Context, uint) (*models.Session, error) {
	return r.session, nil
}
func (r *fakeSessionRepo) ByFilter(context.Context, models.SessionFilter, string, int, int) ([]*models.Session, error) {
	return nil, nil
}
func (r *fakeSessionRepo) Save(context.Context, *models.Session) error        { return nil }
func (r *fakeSessionRepo) SaveBatch(context.Context, []*models.Session) error { return nil }
func (r *fakeSessionRepo) Count(context.Context, models.SessionFilter) (int64, error) {
	return 0, nil
}
func (r *fakeSessionRepo) ByUUID(context.Context, uuid.UUID) (*models.Session, error) {
	return r.session, nil
}
func (r *fakeSessionRepo) ByPhoneNumberID(context.Context, string) (*models.Session, error) {
	return r.session, nil
}
func (r *fakeSessionRepo) ByPageID(context.Context, string) (*models.Session, error) {
	return r.session, nil
}
func (r *fakeSessionRepo) ByInstagramAccountID(context.Context, string) (*models.Session, error) {
	return r.session, nil
}
func (r *fakeSessionRepo) ByBotID(context.Context, string) (*models.Session, error) {
	return r.session, nil
}
func (r *fakeSessionRepo) UpdateStatus(context.Context, uint, models.SessionStatus) error {
	return nil
}

type fakeUserRepo struct {
	user *models.User
}

func (r *fakeUserRepo) ByID(context.Context, uint) (*models.User, error) { return r.user, nil }
func (r *fakeUserRepo) ByFilter(context.Context, models.UserFilter, string, int, int) ([]*models.User, error) {
	return nil, nil
}
func (r *fakeUserRepo) Save(context.Context, *models.User) error                { return nil }
func (r *fakeUserRepo) SaveBatch(context.Context, []*models.User) error         { return nil }
func (r *fakeUserRepo) Count(context.Context, models.UserFilter) (int64, error) { return 0, nil }
func (r *fakeUserRepo) ByEmail(context.Context, string) (*models.User, error)   { return nil, nil }
func (r *fakeUserRepo) ByAPIKey(context.Context, string) (*models.User, error)  { return nil, nil }

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []*models.ChatMessage
}

func (r *fakeMessageRepo) ByID(context.Context, uint) (*models.ChatMessage, error) {
	return nil, nil
}
func (r *fakeMessageRepo) ByFilter(context.Context, models.ChatMessageFilter, string, int, int) ([]*models.ChatMessage, error) {
	return nil, nil
}
func (r *fakeMessageRepo) Save(context.Context, *models.ChatMessage) error        { return nil }
func (r *fakeMessageRepo) SaveBatch(context.Context, []*models.ChatMessage) error { return nil }
func (r *fakeMessageRepo) Count(context.Context, models.ChatMessageFilter) (int64, error) {
	return 0, nil
}

func (r *fakeMessageRepo) SaveIfAbsent(_ context.Context, message *models.ChatMessage) (bool, error) {
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

func (r *fakeMessageRepo) ByFingerprint(context.Context, models.Channel, uint, string) (*models.ChatMessage, error) {
	return nil, nil
}
func (r *fakeMessageRepo) ApplyStatusUpdate(context.Context, models.StatusUpdate) error {
	return nil
}
func (r *fakeMessageRepo) CountInboundFrom(context.Context, models.Channel, uint, string) (int64, error) {
	return 0, nil
}

func newTestHarness(t *testing.T, campaign *models.Campaign) (*Dispatcher, *fakeCampaignRepo, *fakeMessageRepo, *services.MockTransport) {
	t.Helper()

	session := &models.Session{
		ID:      campaign.SessionID,
		UUID:    uuid.New(),
		UserID:  campaign.UserID,
		Channel: models.ChannelWhatsApp,
		Status:  models.SessionStatusConnected,
	}
	campaignRepo := &fakeCampaignRepo{status: models.CampaignStatusProcessing}
	sessionRepo := &fakeSessionRepo{session: session}
	userRepo := &fakeUserRepo{user: &models.User{ID: campaign.UserID, Role: "user", IsActive: utils.ToPtr(true)}}
	messageRepo := &fakeMessageRepo{}

	transport := services.NewMockTransport()
	transports := services.NewTransportRegistry(time.Second)
	transports.Register(models.ChannelWhatsApp, transport)

	dispatcher := NewDispatcher(
		campaignRepo,
		sessionRepo,
		userRepo,
		messageRepo,
		transports,
		&businessflow.MockRateLimiter{},
		progress.NewHub(log.New(io.Discard, "", 0)),
		config.DispatchConfig{DefaultCountryCode: "62"},
		log.New(io.Discard, "", 0),
		nil,
		nil,
	)
	return dispatcher, campaignRepo, messageRepo, transport
}

func fastPolicy() models.BatchPolicy {
	return models.BatchPolicy{
		MinDelay:      time.Millisecond,
		MaxDelay:      time.Millisecond,
		BatchSize:     1000,
		BatchCooldown: time.Millisecond,
	}
}

func testCampaign(recipients ...models.Recipient) *models.Campaign {
	return &models.Campaign{
		ID:          1,
		UUID:        uuid.New(),
		UserID:      10,
		SessionID:   20,
		Name:        "promo",
		Recipients:  recipients,
		Template:    models.Template{Type: models.TemplateTypeText, Content: "Hello {{name}}!"},
		BatchPolicy: fastPolicy(),
		Status:      models.CampaignStatusProcessing,
	}
}

func TestDispatcherSendsInListOrder(t *testing.T) {
	campaign := testCampaign(
		models.Recipient{Identifier: "6281100000001", Variables: map[string]string{"name": "Andi"}},
		models.Recipient{Identifier: "6281100000002", Variables: map[string]string{"name": "Budi"}},
		models.Recipient{Identifier: "6281100000003", Variables: map[string]string{"name": "Citra"}},
	)
	dispatcher, campaignRepo, messageRepo, transport := newTestHarness(t, campaign)

	dispatcher.Run(context.Background(), campaign)

	sent := transport.GetSentMessages()
	require.Len(t, sent, 3)
	assert.Equal(t, "6281100000001", sent[0].Recipient)
	assert.Equal(t, "6281100000002", sent[1].Recipient)
	assert.Equal(t, "6281100000003", sent[2].Recipient)

	// Personalization applied per recipient
	assert.Equal(t, "Hello Andi!", sent[0].Payload.Text)
	assert.Equal(t, "Hello Budi!", sent[1].Payload.Text)

	status, sentCount, failedCount := campaignRepo.snapshot()
	assert.Equal(t, models.CampaignStatusCompleted, status)
	assert.Equal(t, 3, sentCount)
	assert.Equal(t, 0, failedCount)

	// Each delivery leaves an outbound record tagged with the campaign
	require.Len(t, messageRepo.messages, 3)
	for _, msg := range messageRepo.messages {
		assert.Equal(t, models.DirectionOutbound, msg.Direction)
		assert.Equal(t, models.MessageStatusSent, msg.Status)
		require.NotNil(t, msg.CampaignID)
		assert.Equal(t, campaign.ID, *msg.CampaignID)
	}
}

func TestDispatcherIsolatesRecipientFailures(t *testing.T) {
	campaign := testCampaign(
		models.Recipient{Identifier: "6281100000001", Variables: map[string]string{"name": "Andi"}},
		models.Recipient{Identifier: "6281100000002", Variables: map[string]string{"name": "Budi"}},
		models.Recipient{Identifier: "6281100000003", Variables: map[string]string{"name": "Citra"}},
	)
	dispatcher, campaignRepo, _, transport := newTestHarness(t, campaign)
	transport.FailFor["6281100000002"] = errors.New("provider rejected recipient")

	dispatcher.Run(context.Background(), campaign)

	// The failure did not stop the remaining recipients
	sent := transport.GetSentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, "6281100000003", sent[1].Recipient)

	status, sentCount, failedCount := campaignRepo.snapshot()
	assert.Equal(t, models.CampaignStatusCompleted, status)
	assert.Equal(t, 2, sentCount)
	assert.Equal(t, 1, failedCount)
}

func TestDispatcherAllFailedIsTerminalFailure(t *testing.T) {
	campaign := testCampaign(
		models.Recipient{Identifier: "6281100000001", Variables: map[string]string{"name": "Andi"}},
		models.Recipient{Identifier: "6281100000002", Variables: map[string]string{"name": "Budi"}},
	)
	dispatcher, campaignRepo, _, transport := newTestHarness(t, campaign)
	transport.FailFor["6281100000001"] = errors.New("boom")
	transport.FailFor["6281100000002"] = errors.New("boom")

	dispatcher.Run(context.Background(), campaign)

	status, sentCount, failedCount := campaignRepo.snapshot()
	assert.Equal(t, models.CampaignStatusFailed, status)
	assert.Equal(t, 0, sentCount)
	assert.Equal(t, 2, failedCount)
	require.NotNil(t, campaignRepo.errMessage)
	assert.Equal(t, "all sends failed", *campaignRepo.errMessage)
}

func TestDispatcherRenderFailureCountsAsFailed(t *testing.T) {
	campaign := testCampaign(
		models.Recipient{Identifier: "6281100000001", Variables: map[string]string{"name": "Andi"}},
		models.Recipient{Identifier: "6281100000002"}, // no value for {{name}}
	)
	dispatcher, campaignRepo, _, transport := newTestHarness(t, campaign)

	dispatcher.Run(context.Background(), campaign)

	assert.Len(t, transport.GetSentMessages(), 1)
	status, sentCount, failedCount := campaignRepo.snapshot()
	assert.Equal(t, models.CampaignStatusCompleted, status)
	assert.Equal(t, 1, sentCount)
	assert.Equal(t, 1, failedCount)
}

func TestDispatcherRateLimitDenialCountsAsFailed(t *testing.T) {
	campaign := testCampaign(
		models.Recipient{Identifier: "6281100000001", Variables: map[string]string{"name": "Andi"}},
		models.Recipient{Identifier: "6281100000002", Variables: map[string]string{"name": "Budi"}},
		models.Recipient{Identifier: "6281100000003", Variables: map[string]string{"name": "Citra"}},
	)
	dispatcher, campaignRepo, _, transport := newTestHarness(t, campaign)
	dispatcher.limiter = &businessflow.MockRateLimiter{Limit: 1}

	dispatcher.Run(context.Background(), campaign)

	assert.Len(t, transport.GetSentMessages(), 1)
	status, sentCount, failedCount := campaignRepo.snapshot()
	assert.Equal(t, models.CampaignStatusCompleted, status)
	assert.Equal(t, 1, sentCount)
	assert.Equal(t, 2, failedCount)
}

func TestDispatcherHonorsDatabaseCancel(t *testing.T) {
	campaign := testCampaign(
		models.Recipient{Identifier: "6281100000001", Variables: map[string]string{"name": "Andi"}},
		models.Recipient{Identifier: "6281100000002", Variables: map[string]string{"name": "Budi"}},
	)
	dispatcher, campaignRepo, _, transport := newTestHarness(t, campaign)
	campaignRepo.status = models.CampaignStatusCancelled

	dispatcher.Run(context.Background(), campaign)

	// Cancelled before the first send
	assert.Empty(t, transport.GetSentMessages())
	status, _, _ := campaignRepo.snapshot()
	assert.Equal(t, models.CampaignStatusCancelled, status)
	assert.NotNil(t, campaignRepo.completedAt)
}

func TestDispatcherCancelInterruptsRunningTask(t *testing.T) {
	recipients := make([]models.Recipient, 50)
	for i := range recipients {
		recipients[i] = models.Recipient{Identifier: "62811000000", Variables: map[string]string{"name": "X"}}
	}
	campaign := testCampaign(recipients...)
	campaign.BatchPolicy.MinDelay = 50 * time.Millisecond
	campaign.BatchPolicy.MaxDelay = 50 * time.Millisecond

	dispatcher, campaignRepo, _, transport := newTestHarness(t, campaign)

	done := make(chan struct{})
	go func() {
		dispatcher.Run(context.Background(), campaign)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	dispatcher.Cancel(campaign.ID)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop after cancel")
	}

	status, _, _ := campaignRepo.snapshot()
	assert.Equal(t, models.CampaignStatusCancelled, status)
	assert.Less(t, len(transport.GetSentMessages()), len(recipients))
}

func TestDispatcherCooldownsOncePerFullBatch(t *testing.T) {
	recipients := make([]models.Recipient, 25)
	for i := range recipients {
		recipients[i] = models.Recipient{Identifier: "62811000000", Variables: map[string]string{"name": "X"}}
	}
	campaign := testCampaign(recipients...)
	campaign.BatchPolicy = models.BatchPolicy{
		BatchSize:     20,
		MinDelay:      time.Millisecond,
		MaxDelay:      time.Millisecond,
		BatchCooldown: time.Millisecond,
	}
	dispatcher, campaignRepo, _, transport := newTestHarness(t, campaign)
	cooldowns := 0
	dispatcher.onCooldown = func() { cooldowns++ }

	dispatcher.Run(context.Background(), campaign)

	// 25 recipients at batch size 20 pause exactly once, after the 20th send
	assert.Len(t, transport.GetSentMessages(), 25)
	assert.Equal(t, 1, cooldowns)
	status, sent, failed := campaignRepo.snapshot()
	assert.Equal(t, models.CampaignStatusCompleted, status)
	assert.Equal(t, 25, sent)
	assert.Equal(t, 0, failed)
}

func TestDispatcherCooldownCountScalesWithBatches(t *testing.T) {
	recipients := make([]models.Recipient, 45)
	for i := range recipients {
		recipients[i] = models.Recipient{Identifier: "62811000000", Variables: map[string]string{"name": "X"}}
	}
	campaign := testCampaign(recipients...)
	campaign.BatchPolicy = models.BatchPolicy{
		BatchSize:     20,
		MinDelay:      time.Millisecond,
		MaxDelay:      time.Millisecond,
		BatchCooldown: time.Millisecond,
	}
	dispatcher, _, _, transport := newTestHarness(t, campaign)
	cooldowns := 0
	dispatcher.onCooldown = func() { cooldowns++ }

	dispatcher.Run(context.Background(), campaign)

	assert.Len(t, transport.GetSentMessages(), 45)
	assert.Equal(t, 2, cooldowns)
}

func TestDispatcherPublishesCancelledEvent(t *testing.T) {
	campaign := testCampaign(
		models.Recipient{Identifier: "6281100000001", Variables: map[string]string{"name": "Andi"}},
	)
	dispatcher, campaignRepo, _, _ := newTestHarness(t, campaign)
	campaignRepo.status = models.CampaignStatusCancelled

	hub := dispatcher.publisher.(*progress.Hub)
	events, cancel := hub.Subscribe(campaign.ID)
	defer cancel()

	dispatcher.Run(context.Background(), campaign)

	var kinds []string
	for len(events) > 0 {
		kinds = append(kinds, (<-events).Status)
	}
	require.NotEmpty(t, kinds)
	assert.Equal(t, "cancelled", kinds[len(kinds)-1])
}

func TestDispatcherFailsWhenSessionNotConnected(t *testing.T) {
	campaign := testCampaign(models.Recipient{Identifier: "6281100000001", Variables: map[string]string{"name": "Andi"}})
	dispatcher, campaignRepo, _, transport := newTestHarness(t, campaign)
	dispatcher.sessionRepo.(*fakeSessionRepo).session.Status = models.SessionStatusDisconnected

	dispatcher.Run(context.Background(), campaign)

	assert.Empty(t, transport.GetSentMessages())
	status, _, _ := campaignRepo.snapshot()
	assert.Equal(t, models.CampaignStatusFailed, status)
	require.NotNil(t, campaignRepo.errMessage)
	assert.Contains(t, *campaignRepo.errMessage, "not connected")
}

func TestDispatcherPublishesProgressEvents(t *testing.T) {
	campaign := testCampaign(
		models.Recipient{Identifier: "6281100000001", Variables: map[string]string{"name": "Andi"}},
	)
	dispatcher, _, _, _ := newTestHarness(t, campaign)

	hub := dispatcher.publisher.(*progress.Hub)
	events, cancel := hub.Subscribe(campaign.ID)
	defer cancel()

	dispatcher.Run(context.Background(), campaign)

	var kinds []string
	for len(events) > 0 {
		kinds = append(kinds, (<-events).Status)
	}
	require.NotEmpty(t, kinds)
	assert.Equal(t, "started", kinds[0])
	assert.Equal(t, "completed", kinds[len(kinds)-1])
}

func TestRenderTemplate(t *testing.T) {
	out, err := renderTemplate("Hi {{ name }}, order {{order_id}} shipped", map[string]string{
		"name":     "Dewi",
		"order_id": "A-1043",
	})
	assert.NoError(t, err)
	assert.Equal(t, "Hi Dewi, order A-1043 shipped", out)

	// No placeholders passes content through untouched
	out, err = renderTemplate("plain message", nil)
	assert.NoError(t, err)
	assert.Equal(t, "plain message", out)

	// A missing variable fails the render
	_, err = renderTemplate("Hi {{name}}", map[string]string{})
	assert.ErrorIs(t, err, businessflow.ErrUnresolvedPlaceholder)
}
