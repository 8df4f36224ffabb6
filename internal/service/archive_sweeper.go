package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type pastArchiver interface {
	ArchivePast(ctx context.Context, cutoff time.Time) (int, error)
}

// ArchiveSweeperConfig drives the scheduled sweep.
type ArchiveSweeperConfig struct {
	Schedule string
	After    time.Duration
	Location *time.Location
	Timeout  time.Duration
}

// ArchiveSweeper periodically archives events whose start lies further back than After.
type ArchiveSweeper struct {
	archiver pastArchiver
	cfg      ArchiveSweeperConfig
	logger   *zap.Logger
	cron     *cron.Cron
	now      func() time.Time

	mu      sync.Mutex
	running bool
}

// NewArchiveSweeper validates the cron expression and builds a sweeper.
func NewArchiveSweeper(archiver pastArchiver, cfg ArchiveSweeperConfig, logger *zap.Logger) (*ArchiveSweeper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "@hourly"
	}
	if cfg.After < 0 {
		cfg.After = 0
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	s := &ArchiveSweeper{
		archiver: archiver,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		cron:     cron.New(cron.WithLocation(cfg.Location)),
	}
	if _, err := s.cron.AddFunc(cfg.Schedule, s.tick); err != nil {
		return nil, fmt.Errorf("invalid auto-archive schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// Start runs the cron scheduler in the background.
func (s *ArchiveSweeper) Start() {
	s.cron.Start()
	s.logger.Info("auto-archive sweeper started", zap.String("schedule", s.cfg.Schedule), zap.Duration("after", s.cfg.After))
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *ArchiveSweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep archives events older than the configured age and returns the count.
func (s *ArchiveSweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().In(s.cfg.Location).Add(-s.cfg.After)
	n, err := s.archiver.ArchivePast(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("archived past events", zap.Int("count", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

func (s *ArchiveSweeper) tick() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("auto-archive sweep still running, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	defer cancel()
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Error("auto-archive sweep failed", zap.Error(err))
	}
}
