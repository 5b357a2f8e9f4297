package taskstore

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/overlax/overlax/internal/models"
)

// Fetcher loads a user's tasks and categories from the backend
type Fetcher interface {
	Tasks(ctx context.Context, uid string) ([]models.Task, error)
	Categories(ctx context.Context, uid string) ([]models.Category, error)
}

// PollerConfig holds poller settings
type PollerConfig struct {
	UserID   string
	Interval time.Duration
	// ManualRate bounds refreshes triggered by Refresh and mutation events.
	ManualRate  rate.Limit
	ManualBurst int
}

// Poller refetches the snapshot periodically and on demand
type Poller struct {
	fetcher Fetcher
	store   *Store
	cfg     PollerConfig
	limiter *rate.Limiter
	trigger chan struct{}
	logger  *zap.Logger
}

// NewPoller creates a poller. Call Run to start it.
func NewPoller(fetcher Fetcher, store *Store, cfg PollerConfig, logger *zap.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.ManualRate == 0 {
		cfg.ManualRate = rate.Every(2 * time.Second)
	}
	if cfg.ManualBurst <= 0 {
		cfg.ManualBurst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		fetcher: fetcher,
		store:   store,
		cfg:     cfg,
		limiter: rate.NewLimiter(cfg.ManualRate, cfg.ManualBurst),
		trigger: make(chan struct{}, 1),
		logger:  logger,
	}
}

// Refresh requests an immediate refetch without blocking. Requests made while
// one is already pending are coalesced.
func (p *Poller) Refresh() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Run fetches once, then keeps the store fresh until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	events, unsubscribe := p.store.Subscribe()
	defer unsubscribe()

	if err := p.fetch(ctx); err != nil {
		p.logger.Warn("initial task fetch failed", zap.Error(err))
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.fetchAndLog(ctx, "interval")
		case <-p.trigger:
			p.manualFetch(ctx, "manual")
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.IsMutation() {
				p.manualFetch(ctx, string(ev.Type))
			}
		}
	}
}

func (p *Poller) manualFetch(ctx context.Context, reason string) {
	if err := p.limiter.Wait(ctx); err != nil {
		return
	}
	p.fetchAndLog(ctx, reason)
}

func (p *Poller) fetchAndLog(ctx context.Context, reason string) {
	if err := p.fetch(ctx); err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("task refresh failed", zap.String("reason", reason), zap.Error(err))
		}
		return
	}
	p.logger.Debug("tasks refreshed", zap.String("reason", reason))
}

func (p *Poller) fetch(ctx context.Context) error {
	tasks, err := p.fetcher.Tasks(ctx, p.cfg.UserID)
	if err != nil {
		return fmt.Errorf("failed to fetch tasks: %w", err)
	}
	categories, err := p.fetcher.Categories(ctx, p.cfg.UserID)
	if err != nil {
		// Keep the previous categories; tasks are still worth publishing.
		p.logger.Debug("category fetch failed", zap.Error(err))
		categories = nil
	}
	p.store.Replace(tasks, categories)
	return nil
}
