// Package scheduler
package scheduler

import (
	"math/rand"
	"time"

	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
	"github.com/muhammad-febriansyah/chatcepat-sub007/utils"
)

// Pacer decides the anti-ban delays between campaign sends: a uniformly
// random pause per message and a longer cooldown after each batch.
type Pacer struct {
	minDelay      time.Duration
	maxDelay      time.Duration
	batchSize     int
	batchCooldown time.Duration
	rng           *rand.Rand
}

// NewPacer builds a pacer from the campaign's batch policy, falling back to
// platform defaults for unset fields.
func NewPacer(policy models.BatchPolicy, defaults models.BatchPolicy, seed int64) *Pacer {
	p := &Pacer{
		minDelay:      policy.MinDelay,
		maxDelay:      policy.MaxDelay,
		batchSize:     policy.BatchSize,
		batchCooldown: policy.BatchCooldown,
		rng:           rand.New(rand.NewSource(seed)),
	}
	if p.minDelay <= 0 {
		p.minDelay = defaults.MinDelay
	}
	if p.maxDelay <= 0 {
		p.maxDelay = defaults.MaxDelay
	}
	if p.batchSize <= 0 {
		p.batchSize = defaults.BatchSize
	}
	if p.batchCooldown <= 0 {
		p.batchCooldown = defaults.BatchCooldown
	}

	if p.minDelay <= 0 {
		p.minDelay = utils.DefaultMinMessageDelay
	}
	if p.maxDelay < p.minDelay {
		p.maxDelay = p.minDelay
	}
	if p.batchSize <= 0 {
		p.batchSize = utils.DefaultBatchSize
	}
	if p.batchCooldown <= 0 {
		p.batchCooldown = utils.DefaultBatchCooldown
	}
	return p
}

// NextDelay returns a uniformly random pause in [minDelay, maxDelay]
func (p *Pacer) NextDelay() time.Duration {
	span := p.maxDelay - p.minDelay
	if span <= 0 {
		return p.minDelay
	}
	return p.minDelay + time.Duration(p.rng.Int63n(int64(span)+1))
}

// BatchSize returns the number of sends between cooldowns
func (p *Pacer) BatchSize() int {
	return p.batchSize
}

// Cooldown returns the pause applied at batch boundaries
func (p *Pacer) Cooldown() time.Duration {
	return p.batchCooldown
}

// ShouldCooldown reports whether a cooldown is due after the given number of
// sends in the current batch. No cooldown fires when nothing remains.
func (p *Pacer) ShouldCooldown(sentInBatch, remaining int) bool {
	return sentInBatch >= p.batchSize && remaining > 0
}
