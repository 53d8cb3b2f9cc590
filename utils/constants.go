package utils

import (
	"time"
)

// Dispatch pacing constants (defaults, overridable via config)
const (
	// DefaultMinMessageDelay is the lower bound of the per-message jitter window
	DefaultMinMessageDelay = 7 * time.Second

	// DefaultMaxMessageDelay is the upper bound of the per-message jitter window
	DefaultMaxMessageDelay = 10 * time.Second

	// DefaultBatchSize is the number of sends before a cooldown pause
	DefaultBatchSize = 20

	// DefaultBatchCooldown is the pause between consecutive batches
	DefaultBatchCooldown = 60 * time.Second

	// DefaultCampaignBudget is the wall-clock limit for a single campaign run
	DefaultCampaignBudget = 2 * time.Hour

	// CounterFlushInterval is how many successful sends pass between counter flushes
	CounterFlushInterval = 10

	// DefaultProviderTimeout bounds a single outbound provider HTTP call
	DefaultProviderTimeout = 30 * time.Second
)

// Rate limiting constants
const (
	// DefaultRateLimitWindow is the fixed counting window for send-path rate limits
	DefaultRateLimitWindow = 1 * time.Hour

	// DefaultRateLimitMax is the maximum sends per principal per window
	DefaultRateLimitMax = 1000

	// AdminRole bypasses send-path rate limiting entirely
	AdminRole = "admin"
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)
