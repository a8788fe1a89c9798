package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/codyseavey/tcg-binder/internal/logging"
	"github.com/codyseavey/tcg-binder/internal/metrics"
)

// defaultWorkerBatchSize is the number of binders refreshed per tick
const defaultWorkerBatchSize = 10

// binderRefresher is the part of BinderService the worker drives
type binderRefresher interface {
	StaleBinderIDs(ctx context.Context, limit int) ([]string, error)
	RefreshPrices(ctx context.Context, binderID string) (int, error)
}

type PriceWorker struct {
	binders        binderRefresher
	quotes         *PriceQuoteService
	updateInterval time.Duration
	batchSize      int
	mu             sync.RWMutex

	// Priority queue for user-requested refreshes
	urgentQueue []string
	urgentMu    sync.Mutex

	// Stats (reset at midnight)
	bindersRefreshedToday int
	lastUpdateTime        time.Time
	lastStatsDay          time.Time

	failedBinders map[string]string // binder ID -> last refresh error
}

type PriceStatus struct {
	LastUpdateTime        time.Time         `json:"last_update_time"`
	NextUpdateTime        time.Time         `json:"next_update_time"`
	BindersRefreshedToday int               `json:"binders_refreshed_today"`
	BatchSize             int               `json:"batch_size"`
	QueueSize             int               `json:"queue_size"`
	CachedQuotes          int               `json:"cached_quotes"`
	FailedBinders         map[string]string `json:"failed_binders,omitempty"`
}

func NewPriceWorker(binders *BinderService, quotes *PriceQuoteService, updateInterval time.Duration, batchSize int) *PriceWorker {
	return newPriceWorker(binderServiceRefresher{binders}, quotes, updateInterval, batchSize)
}

func newPriceWorker(binders binderRefresher, quotes *PriceQuoteService, updateInterval time.Duration, batchSize int) *PriceWorker {
	if updateInterval <= 0 {
		updateInterval = 15 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = defaultWorkerBatchSize
	}
	return &PriceWorker{
		binders:        binders,
		quotes:         quotes,
		updateInterval: updateInterval,
		batchSize:      batchSize,
		failedBinders:  make(map[string]string),
	}
}

// QueueRefresh adds a binder to the high-priority refresh queue and returns its 1-indexed position
func (w *PriceWorker) QueueRefresh(binderID string) int {
	w.urgentMu.Lock()
	defer w.urgentMu.Unlock()

	for i, id := range w.urgentQueue {
		if id == binderID {
			return i + 1
		}
	}
	w.urgentQueue = append(w.urgentQueue, binderID)
	metrics.PriceQueueSize.Set(float64(len(w.urgentQueue)))
	logging.Sugar.Infof("Price worker: queued refresh for binder %s (queue size: %d)", binderID, len(w.urgentQueue))
	return len(w.urgentQueue)
}

// GetQueueSize returns current urgent queue size
func (w *PriceWorker) GetQueueSize() int {
	w.urgentMu.Lock()
	defer w.urgentMu.Unlock()
	return len(w.urgentQueue)
}

// resetDailyStatsIfNeeded resets bindersRefreshedToday at midnight
func (w *PriceWorker) resetDailyStatsIfNeeded() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if w.lastStatsDay.Before(today) {
		if !w.lastStatsDay.IsZero() {
			logging.Sugar.Infof("Price worker: daily stats reset (previous day: %d binders refreshed)", w.bindersRefreshedToday)
		}
		w.bindersRefreshedToday = 0
		w.lastStatsDay = today
	}
}

// Start begins the background price update worker
func (w *PriceWorker) Start(ctx context.Context) {
	logging.Sugar.Infof("Price worker started: will refresh %d binders every %v", w.batchSize, w.updateInterval)

	if updated, err := w.UpdateBatch(ctx); err != nil {
		logging.Sugar.Warnf("Price worker: initial batch update failed: %v", err)
	} else {
		logging.Sugar.Infof("Price worker: initial batch refreshed %d binders", updated)
	}

	ticker := time.NewTicker(w.updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Sugar.Info("Price worker stopping...")
			return
		case <-ticker.C:
			if updated, err := w.UpdateBatch(ctx); err != nil {
				logging.Sugar.Warnf("Price worker: batch update failed: %v", err)
			} else if updated > 0 {
				logging.Sugar.Infof("Price worker: batch refreshed %d binders", updated)
			}
		}
	}
}

// UpdateBatch refreshes a batch of binders with priority ordering:
// 1. User-requested refreshes
// 2. Binders with the oldest valuations
func (w *PriceWorker) UpdateBatch(ctx context.Context) (int, error) {
	w.resetDailyStatsIfNeeded()

	w.urgentMu.Lock()
	urgentIDs := w.urgentQueue
	if len(urgentIDs) > w.batchSize {
		urgentIDs = urgentIDs[:w.batchSize]
		w.urgentQueue = w.urgentQueue[w.batchSize:]
	} else {
		w.urgentQueue = nil
	}
	metrics.PriceQueueSize.Set(float64(len(w.urgentQueue)))
	w.urgentMu.Unlock()

	batch := append([]string(nil), urgentIDs...)
	seen := make(map[string]bool, len(batch))
	for _, id := range batch {
		seen[id] = true
	}

	if remaining := w.batchSize - len(batch); remaining > 0 {
		staleIDs, err := w.binders.StaleBinderIDs(ctx, remaining+len(batch))
		if err != nil {
			return 0, err
		}
		for _, id := range staleIDs {
			if len(batch) >= w.batchSize {
				break
			}
			if !seen[id] {
				batch = append(batch, id)
				seen[id] = true
			}
		}
	}

	if len(batch) == 0 {
		logging.Sugar.Debug("Price worker: no binders to refresh")
		return 0, nil
	}

	updated := 0
	for _, id := range batch {
		if ctx.Err() != nil {
			break
		}
		priced, err := w.binders.RefreshPrices(ctx, id)
		w.mu.Lock()
		if err != nil {
			if !errors.Is(err, ErrBinderNotFound) {
				w.failedBinders[id] = err.Error()
			}
			w.mu.Unlock()
			logging.Sugar.Warnf("Price worker: refresh of binder %s failed: %v", id, err)
			continue
		}
		delete(w.failedBinders, id)
		w.mu.Unlock()
		logging.Sugar.Debugf("Price worker: binder %s priced %d variants", id, priced)
		updated++
	}

	w.mu.Lock()
	w.bindersRefreshedToday += updated
	w.lastUpdateTime = time.Now()
	w.mu.Unlock()

	metrics.PriceWorkerBindersRefreshed.Add(float64(updated))
	return updated, nil
}

// GetStatus returns the current status
func (w *PriceWorker) GetStatus() PriceStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	failed := make(map[string]string, len(w.failedBinders))
	for id, reason := range w.failedBinders {
		failed[id] = reason
	}

	status := PriceStatus{
		LastUpdateTime:        w.lastUpdateTime,
		NextUpdateTime:        w.lastUpdateTime.Add(w.updateInterval),
		BindersRefreshedToday: w.bindersRefreshedToday,
		BatchSize:             w.batchSize,
		QueueSize:             w.GetQueueSize(),
		FailedBinders:         failed,
	}
	if w.quotes != nil {
		status.CachedQuotes = w.quotes.CacheSize()
	}
	return status
}

// binderServiceRefresher adapts BinderService to the worker's narrower interface
type binderServiceRefresher struct {
	svc *BinderService
}

func (r binderServiceRefresher) StaleBinderIDs(ctx context.Context, limit int) ([]string, error) {
	return r.svc.StaleBinderIDs(ctx, limit)
}

func (r binderServiceRefresher) RefreshPrices(ctx context.Context, binderID string) (int, error) {
	binder, quotes, err := r.svc.RefreshPrices(ctx, binderID)
	if err != nil {
		return 0, err
	}
	priced := 0
	for _, v := range binder.Variants() {
		if q, ok := quotes[v.PricingRequest().Key()]; ok && q.HasPrice() {
			priced++
		}
	}
	return priced, nil
}
