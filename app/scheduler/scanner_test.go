package scheduler

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/muhammad-febriansyah/chatcepat-sub007/config"
	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScanner(repo *fakeCampaignRepo, dispatcher *Dispatcher, slots int) *CampaignScanner {
	return &CampaignScanner{
		campaignRepo: repo,
		dispatcher:   dispatcher,
		cfg:          config.DispatchConfig{CampaignBudget: time.Hour},
		logger:       log.New(io.Discard, "", 0),
		slots:        make(chan struct{}, slots),
	}
}

func TestScannerReclaimsStaleClaimsEachScan(t *testing.T) {
	campaign := testCampaign(models.Recipient{Identifier: "6281100000001", Variables: map[string]string{"name": "Andi"}})
	dispatcher, repo, _, _ := newTestHarness(t, campaign)
	scanner := newTestScanner(repo, dispatcher, 2)

	scanner.runOnce(context.Background())

	// A processing row older than the task budget is handed back to the scan
	require.Len(t, repo.reclaims, 1)
	assert.WithinDuration(t, time.Now().UTC().Add(-time.Hour), repo.reclaims[0], time.Minute)
}

func TestScannerClaimsAndDispatchesDueCampaigns(t *testing.T) {
	campaign := testCampaign(models.Recipient{Identifier: "6281100000001", Variables: map[string]string{"name": "Andi"}})
	dispatcher, repo, _, transport := newTestHarness(t, campaign)
	repo.due = []*models.Campaign{campaign}
	scanner := newTestScanner(repo, dispatcher, 2)

	scanner.runOnce(context.Background())
	scanner.wg.Wait()

	assert.Equal(t, 1, repo.claims)
	assert.Len(t, transport.GetSentMessages(), 1)
	status, _, _ := repo.snapshot()
	assert.Equal(t, models.CampaignStatusCompleted, status)
}

func TestScannerDoesNotClaimWithoutWorkerSlot(t *testing.T) {
	campaign := testCampaign(models.Recipient{Identifier: "6281100000001", Variables: map[string]string{"name": "Andi"}})
	dispatcher, repo, _, transport := newTestHarness(t, campaign)
	repo.due = []*models.Campaign{campaign}
	scanner := newTestScanner(repo, dispatcher, 1)

	// All worker slots busy and shutdown already requested: the campaign must
	// stay scheduled rather than being claimed into a task that never starts.
	scanner.slots <- struct{}{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scanner.runOnce(ctx)
	scanner.wg.Wait()

	assert.Zero(t, repo.claims)
	assert.Empty(t, transport.GetSentMessages())
}
