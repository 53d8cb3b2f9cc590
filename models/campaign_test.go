package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignStatusTerminal(t *testing.T) {
	assert.False(t, CampaignStatusDraft.Terminal())
	assert.False(t, CampaignStatusScheduled.Terminal())
	assert.False(t, CampaignStatusProcessing.Terminal())
	assert.True(t, CampaignStatusCompleted.Terminal())
	assert.True(t, CampaignStatusFailed.Terminal())
	assert.True(t, CampaignStatusCancelled.Terminal())
}

func TestCampaignStatusTransitions(t *testing.T) {
	tests := []struct {
		from    CampaignStatus
		to      CampaignStatus
		allowed bool
	}{
		{CampaignStatusDraft, CampaignStatusScheduled, true},
		{CampaignStatusDraft, CampaignStatusCancelled, true},
		{CampaignStatusDraft, CampaignStatusProcessing, false},
		{CampaignStatusDraft, CampaignStatusCompleted, false},
		{CampaignStatusScheduled, CampaignStatusProcessing, true},
		{CampaignStatusScheduled, CampaignStatusCancelled, true},
		{CampaignStatusScheduled, CampaignStatusFailed, true},
		{CampaignStatusScheduled, CampaignStatusCompleted, false},
		{CampaignStatusProcessing, CampaignStatusCompleted, true},
		{CampaignStatusProcessing, CampaignStatusFailed, true},
		{CampaignStatusProcessing, CampaignStatusCancelled, true},
		{CampaignStatusProcessing, CampaignStatusScheduled, false},
		{CampaignStatusCompleted, CampaignStatusProcessing, false},
		{CampaignStatusFailed, CampaignStatusScheduled, false},
		{CampaignStatusCancelled, CampaignStatusProcessing, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestCampaignStatusValid(t *testing.T) {
	assert.True(t, CampaignStatusProcessing.Valid())
	assert.False(t, CampaignStatus("archived").Valid())
}

func TestRecipientListRoundTrip(t *testing.T) {
	list := RecipientList{
		{Identifier: "6281234567890", Variables: map[string]string{"name": "Budi"}},
		{Identifier: "6289876543210"},
	}

	value, err := list.Value()
	require.NoError(t, err)

	var decoded RecipientList
	require.NoError(t, decoded.Scan(value))

	require.Len(t, decoded, 2)
	assert.Equal(t, "6281234567890", decoded[0].Identifier)
	assert.Equal(t, "Budi", decoded[0].Variables["name"])
	assert.Equal(t, "6289876543210", decoded[1].Identifier)
}

func TestBatchPolicyRoundTrip(t *testing.T) {
	policy := BatchPolicy{
		BatchSize:     20,
		MinDelay:      7 * time.Second,
		MaxDelay:      10 * time.Second,
		BatchCooldown: time.Minute,
	}

	value, err := policy.Value()
	require.NoError(t, err)

	var decoded BatchPolicy
	require.NoError(t, decoded.Scan(value))
	assert.Equal(t, policy, decoded)
}

func TestTemplateScanNilResets(t *testing.T) {
	decoded := Template{Type: TemplateTypeText, Content: "stale"}
	require.NoError(t, decoded.Scan(nil))
	assert.Equal(t, Template{}, decoded)
}

func TestCampaignStatusValueRejectsInvalid(t *testing.T) {
	_, err := CampaignStatus("archived").Value()
	assert.Error(t, err)
}
