package conveyor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"kaspimarket_api/config"
	"kaspimarket_api/internal/kaspi/business/models"
	"kaspimarket_api/metrics"
	"kaspimarket_api/pkg/locks"
	"kaspimarket_api/pkg/logger"
)

// BatchSource выбирает очередную порцию товаров для прогона.
type BatchSource interface {
	SelectBatch(ctx context.Context, limit int) ([]*models.ProductRecord, error)
}

// CacheInvalidator сбрасывает кэш схем между прогонами.
type CacheInvalidator interface {
	Invalidate()
}

// Dispatcher запускает один прогон конвейера: порция товаров, пул
// воркеров, по одному владельцу на товар.
type Dispatcher struct {
	conveyor *Conveyor
	source   BatchSource
	locker   locks.Locker
	cache    CacheInvalidator
	cfg      config.ConveyorConfig
	log      logger.Logger
}

func NewDispatcher(
	conveyor *Conveyor,
	source BatchSource,
	locker locks.Locker,
	cache CacheInvalidator,
	cfg config.ConveyorConfig,
	writer io.Writer,
) *Dispatcher {
	return &Dispatcher{
		conveyor: conveyor,
		source:   source,
		locker:   locker,
		cache:    cache,
		cfg:      cfg,
		log:      logger.NewLogger(writer, "[Dispatcher]"),
	}
}

// Run выполняет один прогон. Дедлайн прогона режет работу посередине:
// товары остаются в последнем сохранённом состоянии и дойдут в следующий раз.
func (d *Dispatcher) Run(ctx context.Context) error {
	runID := uuid.NewString()
	started := time.Now()

	if d.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.RunTimeout)
		defer cancel()
	}

	// Справочник категорий мог поменяться между прогонами.
	d.cache.Invalidate()

	batch, err := d.source.SelectBatch(ctx, d.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("run %s: batch select failed: %w", runID, err)
	}
	if len(batch) == 0 {
		d.log.Log("run %s: nothing to process", runID)
		return nil
	}
	d.log.Log("run %s: %d products in batch", runID, len(batch))

	workerCount := d.cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
	}

	var cm metrics.ConveyorMetrics
	productCh := make(chan *models.ProductRecord)

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range productCh {
				d.processOne(ctx, p, &cm)
			}
		}()
	}

feed:
	for _, p := range batch {
		select {
		case productCh <- p:
		case <-ctx.Done():
			break feed
		}
	}
	close(productCh)
	wg.Wait()

	d.log.Log("run %s finished in %s: processed=%d confirmed=%d errored=%d retriable=%d skipped_locked=%d",
		runID, time.Since(started).Round(time.Millisecond),
		cm.ProcessedCount.Load(), cm.ConfirmedCount.Load(),
		cm.ErroredProducts.Load(), cm.Retriable.Load(), cm.SkippedLocked.Load())
	return ctx.Err()
}

func (d *Dispatcher) processOne(ctx context.Context, p *models.ProductRecord, cm *metrics.ConveyorMetrics) {
	release, ok, err := d.locker.TryAcquire(ctx, fmt.Sprintf("conveyor:product:%d", p.ID))
	if err != nil {
		d.log.Log("product %d: lock error: %v", p.ID, err)
		return
	}
	if !ok {
		cm.SkippedLocked.Add(1)
		return
	}
	defer release()

	statusBefore := p.ConveyorStatus
	if err := d.conveyor.ProcessProduct(ctx, p); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		d.log.Log("product %d: %v", p.ID, err)
		return
	}

	cm.ProcessedCount.Add(1)
	switch p.ConveyorStatus {
	case models.StatusConfirmed:
		cm.ConfirmedCount.Add(1)
	case models.StatusError:
		cm.ErroredProducts.Add(1)
	default:
		if p.ConveyorStatus == statusBefore {
			cm.Retriable.Add(1)
		}
	}
}
