package scheduler

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/muhammad-febriansyah/chatcepat-sub007/config"
	"github.com/muhammad-febriansyah/chatcepat-sub007/models"
	"github.com/muhammad-febriansyah/chatcepat-sub007/repository"
	"github.com/muhammad-febriansyah/chatcepat-sub007/utils"
)

// CampaignScanner periodically claims due campaigns and hands them to the
// dispatcher through a bounded worker pool.
type CampaignScanner struct {
	campaignRepo repository.CampaignRepository
	dispatcher   *Dispatcher
	cfg          config.DispatchConfig
	logger       *log.Logger
	logFile      *os.File

	// semaphore bounding concurrent campaign tasks
	slots chan struct{}
	wg    sync.WaitGroup
}

// NewCampaignScanner creates a scanner. The logger writes to both stdout and
// a persistent file under data/ when available.
func NewCampaignScanner(campaignRepo repository.CampaignRepository, dispatcher *Dispatcher, cfg config.DispatchConfig) *CampaignScanner {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	s := &CampaignScanner{
		campaignRepo: campaignRepo,
		dispatcher:   dispatcher,
		cfg:          cfg,
		slots:        make(chan struct{}, maxConcurrent),
	}
	if err := s.initScannerLogger(); err != nil {
		s.logger = log.New(os.Stdout, "dispatch ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
	}
	if dispatcher.logger == nil {
		dispatcher.logger = s.logger
	}
	return s
}

// Logger exposes the scanner's logger for components sharing its output
func (s *CampaignScanner) Logger() *log.Logger {
	return s.logger
}

// initScannerLogger configures a logger that writes to both stdout and a persistent file under data/ (or /data)
func (s *CampaignScanner) initScannerLogger() error {
	// Prefer relative data/ then fallback to /data for containerized environments
	candidates := []string{
		filepath.Join("data"),
		"/data",
	}
	for _, dir := range candidates {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			continue
		}
		logPath := filepath.Join(dir, "dispatch.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			continue
		}
		s.logFile = f
		mw := io.MultiWriter(os.Stdout, f)
		// log.Logger is goroutine-safe; include timestamps with microseconds and UTC
		s.logger = log.New(mw, "dispatch ", log.LstdFlags|log.Lmicroseconds|log.LUTC)
		return nil
	}
	return fmt.Errorf("could not create dispatch log file in any candidate directory")
}

// Start launches the scan loop in a background goroutine and returns a stop
// function that waits for running campaign tasks to wind down.
func (s *CampaignScanner) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	interval := s.cfg.ScanInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		s.wg.Wait()
		if s.logFile != nil {
			_ = s.logFile.Close()
		}
	}
}

// runOnce reclaims stale claims, then claims every due campaign it can and
// starts a task per claim.
func (s *CampaignScanner) runOnce(ctx context.Context) {
	if n, err := s.campaignRepo.ReclaimStale(ctx, utils.UTCNow().Add(-s.budget())); err != nil {
		s.logger.Printf("stale campaign reclaim failed: %v", err)
	} else if n > 0 {
		s.logger.Printf("reclaimed %d stale processing campaign(s)", n)
	}

	due, err := s.campaignRepo.ListDue(ctx, utils.UTCNow(), cap(s.slots)*2)
	if err != nil {
		s.logger.Printf("scan for due campaigns failed: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}
	s.logger.Printf("found %d due campaign(s)", len(due))

	for _, campaign := range due {
		// Hold a worker slot before claiming, so a shutdown between claim
		// and launch cannot strand the row in processing.
		select {
		case s.slots <- struct{}{}:
		case <-ctx.Done():
			return
		}
		claimed, err := s.campaignRepo.ClaimForProcessing(ctx, campaign.ID, utils.UTCNow())
		if err != nil {
			s.logger.Printf("campaign %s: claim failed: %v", campaign.UUID, err)
			<-s.slots
			continue
		}
		if !claimed {
			// another scanner instance won this one
			<-s.slots
			continue
		}
		s.launch(ctx, campaign)
	}
}

// launch runs one claimed campaign under the per-campaign wall-clock budget.
// The caller already holds a worker slot; the task releases it.
func (s *CampaignScanner) launch(ctx context.Context, campaign *models.Campaign) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.slots }()

		taskCtx, cancel := context.WithTimeout(ctx, s.budget())
		defer cancel()

		s.logger.Printf("campaign %s: dispatch task starting (%d recipients)", campaign.UUID, len(campaign.Recipients))
		s.dispatcher.Run(taskCtx, campaign)
	}()
}

func (s *CampaignScanner) budget() time.Duration {
	if s.cfg.CampaignBudget > 0 {
		return s.cfg.CampaignBudget
	}
	return utils.DefaultCampaignBudget
}
