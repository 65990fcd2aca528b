// Package scheduler runs the periodic update cycle: simulate and persist new
// prices for every asset, revalue every account against them, then notify
// subscribers.
package scheduler

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	apperrors "papertrade/internal/errors"
	"papertrade/internal/logger"
	"papertrade/internal/metrics"
	"papertrade/internal/models"
	"papertrade/internal/pricing"
	"papertrade/internal/services"
	"papertrade/internal/valuation"
)

// Event names pushed to clients.
const (
	EventPriceUpdate     = "priceUpdate"
	EventPortfolioUpdate = "portfolioUpdate"
)

// Triggers recorded in metrics and logs.
const (
	TriggerScheduled = "cron"
	TriggerManual    = "manual"
)

// AssetSource lists assets and persists simulated ticks.
type AssetSource interface {
	ListAssets(ctx context.Context) ([]models.Asset, error)
	ApplyTick(ctx context.Context, asset *models.Asset, tick pricing.Tick, at time.Time) error
}

// AccountValuer revalues accounts against a price book.
type AccountValuer interface {
	ListUserIDs(ctx context.Context) ([]string, error)
	PriceBook(ctx context.Context) (valuation.PriceBook, error)
	RevalueUser(ctx context.Context, userID string, prices valuation.PriceBook, at time.Time) (*services.RevalueOutcome, error)
}

// Publisher delivers events to connected clients.
type Publisher interface {
	Publish(accountID, event string, payload interface{})
	Broadcast(event string, payload interface{})
}

// Options configures a Scheduler.
type Options struct {
	// Interval between cycles. Used for the next-update estimate and, when
	// Schedule is empty, as an @every spec.
	Interval time.Duration
	// Schedule is an optional standard cron expression.
	Schedule string
	// Concurrency bounds parallel account revaluations.
	Concurrency int
}

// ItemError records a failure for one asset or account.
type ItemError struct {
	Phase string `json:"phase"`
	ID    string `json:"id,omitempty"`
	Err   string `json:"error"`
}

// CycleResult summarises one cycle.
type CycleResult struct {
	Trigger         string        `json:"trigger"`
	StartedAt       time.Time     `json:"startedAt"`
	CompletedAt     time.Time     `json:"completedAt"`
	Duration        time.Duration `json:"-"`
	AssetsUpdated   int           `json:"assetsUpdated"`
	AccountsValued  int           `json:"accountsValued"`
	AccountsChanged int           `json:"accountsChanged"`
	HoldingsDropped int           `json:"holdingsDropped"`
	AvgStockChange  float64       `json:"avgStockChange"`
	AvgFundChange   float64       `json:"avgFundChange"`
	Errors          []ItemError   `json:"errors,omitempty"`
}

func (r *CycleResult) countErrors(phase string) int {
	n := 0
	for _, e := range r.Errors {
		if e.Phase == phase {
			n++
		}
	}
	return n
}

// PriceUpdate is the payload of the priceUpdate broadcast.
type PriceUpdate struct {
	Timestamp      time.Time `json:"timestamp"`
	Message        string    `json:"message"`
	AssetsUpdated  int       `json:"assetsUpdated"`
	AvgStockChange string    `json:"avgStockChange"`
	AvgFundChange  string    `json:"avgFundChange"`
}

// Timing is the client-facing countdown to the next cycle.
type Timing struct {
	LastUpdate         time.Time `json:"lastUpdate"`
	NextUpdate         time.Time `json:"nextUpdate"`
	SecondsUntilUpdate int64     `json:"secondsUntilUpdate"`
}

// Scheduler is Idle or Running; at most one cycle runs at a time.
type Scheduler struct {
	assets    AssetSource
	accounts  AccountValuer
	publisher Publisher
	metrics   *metrics.Metrics
	sim       *pricing.Simulator
	opts      Options
	log       *zap.SugaredLogger
	now       func() time.Time

	running sync.Mutex

	mu         sync.RWMutex
	lastUpdate time.Time

	cron *cron.Cron
}

// New creates a Scheduler. publisher and m may be nil.
func New(assets AssetSource, accounts AccountValuer, publisher Publisher, sim *pricing.Simulator, m *metrics.Metrics, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Minute
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	s := &Scheduler{
		assets:    assets,
		accounts:  accounts,
		publisher: publisher,
		metrics:   m,
		sim:       sim,
		opts:      opts,
		log:       logger.Named("scheduler"),
		now:       func() time.Time { return time.Now().UTC() },
	}
	s.lastUpdate = s.now()
	return s
}

// Start registers the cycle with cron and starts it.
func (s *Scheduler) Start() error {
	spec := s.opts.Schedule
	if spec == "" {
		spec = "@every " + s.opts.Interval.String()
	}

	cl := cronLogger{s.log}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(spec, func() {
		if _, err := s.run(context.Background(), TriggerScheduled); err != nil {
			s.log.Warnw("scheduled cycle skipped", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid update schedule %q: %w", spec, err)
	}

	s.cron = c
	c.Start()
	s.log.Infow("scheduler started", "schedule", spec)
	return nil
}

// Stop halts the cron and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}

// RunCycle runs one cycle now. It fails with ErrCycleInProgress when a cycle
// is already running.
func (s *Scheduler) RunCycle(ctx context.Context) (*CycleResult, error) {
	return s.run(ctx, TriggerManual)
}

// Running reports whether a cycle is in progress.
func (s *Scheduler) Running() bool {
	if s.running.TryLock() {
		s.running.Unlock()
		return false
	}
	return true
}

// Timing reports the last completion time and the countdown to the next cycle.
func (s *Scheduler) Timing(now time.Time) Timing {
	s.mu.RLock()
	last := s.lastUpdate
	s.mu.RUnlock()

	next := last.Add(s.opts.Interval)
	secs := int64(math.Ceil(next.Sub(now).Seconds()))
	if secs < 0 {
		secs = 0
	}
	return Timing{LastUpdate: last, NextUpdate: next, SecondsUntilUpdate: secs}
}

func (s *Scheduler) run(ctx context.Context, trigger string) (*CycleResult, error) {
	if !s.running.TryLock() {
		s.metrics.CycleRejected(trigger)
		return nil, apperrors.ErrCycleInProgress
	}
	defer s.running.Unlock()

	res := &CycleResult{Trigger: trigger, StartedAt: s.now()}
	s.log.Infow("update cycle started", "trigger", trigger)

	s.updateAssets(ctx, res)
	s.revalueAccounts(ctx, res)

	res.CompletedAt = s.now()
	res.Duration = res.CompletedAt.Sub(res.StartedAt)

	s.broadcast(EventPriceUpdate, PriceUpdate{
		Timestamp:      res.CompletedAt,
		Message:        "Prices updated",
		AssetsUpdated:  res.AssetsUpdated,
		AvgStockChange: fmt.Sprintf("%.2f%%", res.AvgStockChange),
		AvgFundChange:  fmt.Sprintf("%.2f%%", res.AvgFundChange),
	})

	s.mu.Lock()
	s.lastUpdate = res.CompletedAt
	s.mu.Unlock()

	assetErrs, accountErrs := res.countErrors("asset"), res.countErrors("account")
	s.metrics.ObserveCycle(trigger, res.Duration, assetErrs, accountErrs, res.CompletedAt)
	s.log.Infow("update cycle completed",
		"trigger", trigger,
		"assets_updated", res.AssetsUpdated,
		"accounts_valued", res.AccountsValued,
		"accounts_changed", res.AccountsChanged,
		"holdings_dropped", res.HoldingsDropped,
		"avg_stock_change", res.AvgStockChange,
		"avg_fund_change", res.AvgFundChange,
		"asset_errors", assetErrs,
		"account_errors", accountErrs,
		"duration", res.Duration,
	)
	return res, nil
}

// updateAssets simulates and persists a tick per asset. A failed asset is
// logged and skipped.
func (s *Scheduler) updateAssets(ctx context.Context, res *CycleResult) {
	assets, err := s.assets.ListAssets(ctx)
	if err != nil {
		s.log.Errorw("listing assets failed, skipping price phase", "error", err)
		res.Errors = append(res.Errors, ItemError{Phase: "asset", Err: err.Error()})
		return
	}

	var stockMoves, fundMoves []float64
	for i := range assets {
		asset := &assets[i]
		tick := s.sim.Next(pricing.Quote{
			Price:     asset.Price,
			Reference: asset.ReferencePrice,
			Category:  asset.Category,
		})
		if err := s.assets.ApplyTick(ctx, asset, tick, s.now()); err != nil {
			s.log.Errorw("asset update failed", "asset_id", asset.ID, "symbol", asset.Symbol, "error", err)
			res.Errors = append(res.Errors, ItemError{Phase: "asset", ID: asset.ID, Err: err.Error()})
			continue
		}
		res.AssetsUpdated++
		switch asset.Category {
		case models.AssetCategoryStock:
			stockMoves = append(stockMoves, tick.ChangePercent)
		case models.AssetCategoryFund:
			fundMoves = append(fundMoves, tick.ChangePercent)
		}
	}

	res.AvgStockChange = mean(stockMoves)
	res.AvgFundChange = mean(fundMoves)
}

// revalueAccounts revalues every account concurrently against the prices
// persisted by the asset phase.
func (s *Scheduler) revalueAccounts(ctx context.Context, res *CycleResult) {
	ids, err := s.accounts.ListUserIDs(ctx)
	if err != nil {
		s.log.Errorw("listing accounts failed, skipping revaluation", "error", err)
		res.Errors = append(res.Errors, ItemError{Phase: "account", Err: err.Error()})
		return
	}
	prices, err := s.accounts.PriceBook(ctx)
	if err != nil {
		s.log.Errorw("reading price book failed, skipping revaluation", "error", err)
		res.Errors = append(res.Errors, ItemError{Phase: "account", Err: err.Error()})
		return
	}

	at := s.now()
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			out, err := s.accounts.RevalueUser(ctx, id, prices, at)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.Errorw("account revaluation failed", "user_id", id, "error", err)
				res.Errors = append(res.Errors, ItemError{Phase: "account", ID: id, Err: err.Error()})
				return nil
			}
			res.AccountsValued++
			res.HoldingsDropped += out.Dropped
			if out.Changed {
				res.AccountsChanged++
				s.publish(id, EventPortfolioUpdate, out)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) publish(accountID, event string, payload interface{}) {
	if s.publisher != nil {
		s.publisher.Publish(accountID, event, payload)
	}
}

func (s *Scheduler) broadcast(event string, payload interface{}) {
	if s.publisher != nil {
		s.publisher.Broadcast(event, payload)
	}
}

// mean returns the average rounded to two places, or 0 for no values.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return math.Round(stat.Mean(xs, nil)*100) / 100
}

// cronLogger routes cron's logging through zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
