package conveyor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"kaspimarket_api/config"
	"kaspimarket_api/config/values"
	"kaspimarket_api/internal/kaspi/business/models"
	"kaspimarket_api/internal/kaspi/business/models/dto/request"
	"kaspimarket_api/internal/kaspi/business/services/parse"
	"kaspimarket_api/internal/kaspi/business/services/pricing"
	"kaspimarket_api/internal/kaspi/storage"
	"kaspimarket_api/internal/notify"
	"kaspimarket_api/metrics"
	"kaspimarket_api/pkg/business/service"
	"kaspimarket_api/pkg/logger"
)

// PermanentError помечает сбой, который не лечится повтором.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Bookkeeping — граница учётной системы.
type Bookkeeping interface {
	CreateItem(ctx context.Context, product *models.ProductRecord) (string, error)
	StockAndPrice(ctx context.Context, externalID string) (int, int64, error)
	Images(ctx context.Context, externalID string) ([]string, error)
}

// Marketplace — срез API маркетплейса, нужный конвейеру: отправка и опрос.
type Marketplace interface {
	SubmitImport(ctx context.Context, items []request.ImportItem) (string, error)
	ImportStatus(ctx context.Context, jobID string) (*models.UploadJob, error)
}

// AttributeResolver — граница резолвера атрибутов.
type AttributeResolver interface {
	ResolveAttributes(ctx context.Context, categoryCode string, product *models.ProductRecord) (map[string]string, error)
}

// CategoryDetector — граница маппера категорий.
type CategoryDetector interface {
	DetectCategory(name string) (categoryCode, listingType string)
}

// ProductStore — частичные записи в карточку товара. Каждый метод трогает
// только свои поля: last-writer-wins на уровне поля, не строки.
type ProductStore interface {
	UpdateStatus(ctx context.Context, id int64, from, to models.ConveyorStatus) error
	AppendLog(ctx context.Context, id int64, entry models.LogEntry) error
	SetSpec(ctx context.Context, id int64, key, value string) error
	SetStepFlag(ctx context.Context, id int64, flag string) error
	SetPriceBase(ctx context.Context, id int64, priceBase int64) error
	ScheduleRetry(ctx context.Context, id int64, nextRetryAt time.Time) error
	ClearRetry(ctx context.Context, id int64) error
	MarkError(ctx context.Context, id int64) error
}

// JobStore — журнал заданий выгрузки.
type JobStore interface {
	Insert(ctx context.Context, job *models.UploadJob) error
	RecordPoll(ctx context.Context, id string, status models.JobStatus, itemErrors []models.ItemError, polledAt time.Time) error
	Get(ctx context.Context, id string) (*models.UploadJob, error)
}

// Conveyor выполняет переходы машины состояний для одного товара.
type Conveyor struct {
	store    ProductStore
	jobs     JobStore
	ms       Bookkeeping
	market   Marketplace
	mapper   CategoryDetector
	resolver AttributeResolver
	brands   parse.BrandService
	policy   *pricing.PricePolicy
	text     service.ITextService
	notifier notify.Sink
	cfg      config.ConveyorConfig
	values   values.KaspiValues
	log      logger.Logger
}

func NewConveyor(
	store ProductStore,
	jobs JobStore,
	ms Bookkeeping,
	market Marketplace,
	mapper CategoryDetector,
	resolver AttributeResolver,
	brands parse.BrandService,
	policy *pricing.PricePolicy,
	notifier notify.Sink,
	cfg config.ConveyorConfig,
	kaspiValues values.KaspiValues,
	writer io.Writer,
) *Conveyor {
	return &Conveyor{
		store:    store,
		jobs:     jobs,
		ms:       ms,
		market:   market,
		mapper:   mapper,
		resolver: resolver,
		brands:   brands,
		policy:   policy,
		text:     service.NewTextService(),
		notifier: notifier,
		cfg:      cfg,
		values:   kaspiValues,
		log:      logger.NewLogger(writer, "[Conveyor]"),
	}
}

// ProcessProduct двигает товар вперёд, пока не упрётся в терминальное
// состояние, ожидающее задание или ошибку. Повторный вход на confirmed —
// no-op без внешних вызовов.
func (c *Conveyor) ProcessProduct(ctx context.Context, p *models.ProductRecord) error {
	for !IsTerminal(p.ConveyorStatus) {
		if err := ctx.Err(); err != nil {
			// Дедлайн прогона: товар остаётся ровно в последнем
			// сохранённом состоянии.
			return err
		}

		step := stepFor(p.ConveyorStatus)
		advanced, err := c.runStep(ctx, p)
		metrics.RecordTransition(step, err)

		if err != nil {
			return c.handleFailure(ctx, p, step, err)
		}
		if !advanced {
			// Задание ещё в работе: один опрос на прогон, дальше ждём
			// следующего расписания.
			return nil
		}
	}
	return nil
}

func (c *Conveyor) runStep(ctx context.Context, p *models.ProductRecord) (advanced bool, err error) {
	switch p.ConveyorStatus {
	case models.StatusNew:
		return true, c.stepMsSync(ctx, p)
	case models.StatusMsSynced:
		return true, c.stepStockSync(ctx, p)
	case models.StatusStockSynced:
		return true, c.stepBuild(ctx, p)
	case models.StatusListingBuilt:
		return true, c.stepUpload(ctx, p)
	case models.StatusUploaded:
		return c.stepPoll(ctx, p)
	}
	return false, &PermanentError{Err: fmt.Errorf("no step defined for status %q", p.ConveyorStatus)}
}

// advance фиксирует успешный переход: CAS статуса, запись журнала,
// сброс счётчика ретраев.
func (c *Conveyor) advance(ctx context.Context, p *models.ProductRecord, to models.ConveyorStatus, step, message string) error {
	if !IsTransitionAllowed(p.ConveyorStatus, to) {
		return &PermanentError{Err: fmt.Errorf("transition %s -> %s is not allowed", p.ConveyorStatus, to)}
	}
	if err := c.store.UpdateStatus(ctx, p.ID, p.ConveyorStatus, to); err != nil {
		return err
	}
	if err := c.store.AppendLog(ctx, p.ID, models.LogEntry{Time: time.Now(), Step: step, Message: message}); err != nil {
		return err
	}
	if p.RetryCount > 0 {
		if err := c.store.ClearRetry(ctx, p.ID); err != nil {
			return err
		}
		p.RetryCount = 0
	}
	p.ConveyorStatus = to
	return nil
}

func (c *Conveyor) setSpec(ctx context.Context, p *models.ProductRecord, key, value string) error {
	if err := c.store.SetSpec(ctx, p.ID, key, value); err != nil {
		return err
	}
	if p.Specs == nil {
		p.Specs = make(map[string]string)
	}
	p.Specs[key] = value
	return nil
}

// stepMsSync: new → ms_synced. Заводим товар в учётной системе.
func (c *Conveyor) stepMsSync(ctx context.Context, p *models.ProductRecord) error {
	if !p.MsCreated {
		externalID, err := c.ms.CreateItem(ctx, p)
		if err != nil {
			return err
		}
		if err := c.setSpec(ctx, p, models.SpecMsID, externalID); err != nil {
			return err
		}
		if err := c.store.SetStepFlag(ctx, p.ID, "ms_created"); err != nil {
			return err
		}
		p.MsCreated = true
	}
	return c.advance(ctx, p, models.StatusMsSynced, StepMsSync, "товар заведён в учётной системе")
}

// stepStockSync: ms_synced → stock_synced. Подтягиваем остатки и закупку.
func (c *Conveyor) stepStockSync(ctx context.Context, p *models.ProductRecord) error {
	msID := p.Spec(models.SpecMsID)
	if msID == "" {
		return &PermanentError{Err: fmt.Errorf("product %d is ms_synced but has no %s", p.ID, models.SpecMsID)}
	}

	stock, price, err := c.ms.StockAndPrice(ctx, msID)
	if err != nil {
		return err
	}

	if err := c.store.SetPriceBase(ctx, p.ID, price); err != nil {
		return err
	}
	p.PriceBase = price
	if err := c.setSpec(ctx, p, "stock", strconv.Itoa(stock)); err != nil {
		return err
	}
	if err := c.setSpec(ctx, p, models.SpecIsInFeed, strconv.FormatBool(stock > 0)); err != nil {
		return err
	}
	if err := c.store.SetStepFlag(ctx, p.ID, "stock_added"); err != nil {
		return err
	}
	p.StockAdded = true

	return c.advance(ctx, p, models.StatusStockSynced, StepStockSync,
		fmt.Sprintf("остатки и цена получены: stock=%d, price=%d", stock, price))
}

// stepBuild: stock_synced → listing_built. Карточка собирается локально,
// API выгрузки на этом шаге не зовётся.
func (c *Conveyor) stepBuild(ctx context.Context, p *models.ProductRecord) error {
	item, err := c.buildListing(ctx, p)
	if err != nil {
		return err
	}
	if err := c.setSpec(ctx, p, models.SpecKaspiSKU, item.SKU); err != nil {
		return err
	}
	return c.advance(ctx, p, models.StatusListingBuilt, StepBuild,
		fmt.Sprintf("карточка собрана: категория %q, цена %d", item.Category, item.Price))
}

// buildListing детерминированно собирает карточку из текущей записи.
// После падения между listing_built и uploaded карточка пересобирается
// заново — отдельного хранения payload нет.
func (c *Conveyor) buildListing(ctx context.Context, p *models.ProductRecord) (request.ImportItem, error) {
	var item request.ImportItem

	if c.brands.IsBanned(p.Brand) {
		return item, &PermanentError{Err: fmt.Errorf("brand %q is banned from marketplace upload", p.Brand)}
	}
	if p.PriceBase <= 0 {
		return item, &PermanentError{Err: fmt.Errorf("product %d has no cost basis", p.ID)}
	}

	categoryCode, listingType := c.mapper.DetectCategory(p.Name)

	attrs, err := c.resolver.ResolveAttributes(ctx, categoryCode, p)
	if err != nil {
		return item, err
	}

	sku := p.Spec(models.SpecKaspiSKU)
	if sku == "" {
		sku = fmt.Sprintf("KM-%d", p.ID)
	}

	var images []string
	if msID := p.Spec(models.SpecMsID); msID != "" {
		images, err = c.ms.Images(ctx, msID)
		if err != nil {
			return item, err
		}
	}

	attributes := make(map[string]interface{}, len(attrs)+1)
	for k, v := range attrs {
		attributes[k] = v
	}
	attributes["type"] = listingType

	brand := p.Brand
	if brand == "" {
		brand = c.values.DefaultBrand
	}

	item = request.ImportItem{
		SKU:         sku,
		Title:       c.text.ClearAndReduce(p.Name, c.values.TitleMaxLen),
		Brand:       brand,
		Category:    categoryCode,
		Description: c.text.ClearAndReduce(p.Spec("description"), c.values.DescriptionMaxLen),
		Price:       c.policy.Retail(p.PriceBase),
		Attributes:  attributes,
		Images:      images,
	}
	return item, nil
}

// stepUpload: listing_built → uploaded. Код задания пишется в specs ДО
// смены статуса: после падения между отправкой и записью статуса
// следующий прогон опросит сохранённое задание, а не отправит заново.
func (c *Conveyor) stepUpload(ctx context.Context, p *models.ProductRecord) error {
	if !p.EligibleForUpload() {
		return &PermanentError{Err: fmt.Errorf("product %d is not eligible for upload: ms_created=%t stock_added=%t",
			p.ID, p.MsCreated, p.StockAdded)}
	}

	if p.UploadID() != "" {
		// Отправка уже случилась в прошлом прогоне — не дублируем.
		return c.advance(ctx, p, models.StatusUploaded, StepUpload, "задание уже отправлено, переходим к опросу")
	}

	item, err := c.buildListing(ctx, p)
	if err != nil {
		return err
	}

	jobID, err := c.market.SubmitImport(ctx, []request.ImportItem{item})
	if err != nil {
		return err
	}

	if err := c.setSpec(ctx, p, models.SpecKaspiUploadID, jobID); err != nil {
		return err
	}

	job := &models.UploadJob{
		ID:          jobID,
		ProductIDs:  []int64{p.ID},
		Status:      models.JobPending,
		SubmittedAt: time.Now(),
	}
	if err := c.jobs.Insert(ctx, job); err != nil {
		return err
	}

	return c.advance(ctx, p, models.StatusUploaded, StepUpload, fmt.Sprintf("партия отправлена, задание %s", jobID))
}

// stepPoll: uploaded → confirmed. Один опрос задания на прогон.
func (c *Conveyor) stepPoll(ctx context.Context, p *models.ProductRecord) (bool, error) {
	jobID := p.UploadID()
	if jobID == "" {
		return false, &PermanentError{Err: fmt.Errorf("product %d is uploaded but has no %s", p.ID, models.SpecKaspiUploadID)}
	}

	job, err := c.market.ImportStatus(ctx, jobID)
	if err != nil {
		return false, err
	}
	if err := c.jobs.RecordPoll(ctx, jobID, job.Status, job.ItemErrors, job.LastPolledAt); err != nil {
		return false, err
	}

	sku := p.Spec(models.SpecKaspiSKU)

	switch job.Status {
	case models.JobPending:
		if c.pendingTooLong(ctx, p, jobID) {
			return false, &PermanentError{Err: fmt.Errorf("job %s is pending longer than %s, needs manual intervention",
				jobID, c.cfg.MaxPendingAge)}
		}
		return false, nil

	case models.JobPartial:
		if itemErr, rejected := job.ErrorFor(sku); rejected {
			return false, &PermanentError{Err: fmt.Errorf("marketplace rejected sku %s: %s", sku, itemErr.Message)}
		}
		return true, c.confirm(ctx, p, jobID)

	case models.JobSuccess:
		return true, c.confirm(ctx, p, jobID)

	case models.JobFailed:
		msg := "import job failed"
		if len(job.ItemErrors) > 0 {
			msg = job.ItemErrors[0].Message
		}
		return false, &PermanentError{Err: fmt.Errorf("job %s failed: %s", jobID, msg)}
	}
	return false, &PermanentError{Err: fmt.Errorf("job %s has unknown status %q", jobID, job.Status)}
}

func (c *Conveyor) confirm(ctx context.Context, p *models.ProductRecord, jobID string) error {
	if err := c.store.SetStepFlag(ctx, p.ID, "kaspi_created"); err != nil {
		return err
	}
	p.KaspiCreated = true
	return c.advance(ctx, p, models.StatusConfirmed, StepPoll, fmt.Sprintf("задание %s подтверждено, карточка создана", jobID))
}

// pendingTooLong сверяет возраст задания с потолком ожидания.
func (c *Conveyor) pendingTooLong(ctx context.Context, p *models.ProductRecord, jobID string) bool {
	if c.cfg.MaxPendingAge <= 0 {
		return false
	}
	submittedAt := p.UpdatedAt
	if job, err := c.jobs.Get(ctx, jobID); err == nil {
		submittedAt = job.SubmittedAt
	}
	return time.Since(submittedAt) > c.cfg.MaxPendingAge
}

// handleFailure: transient уходит на отложенный ретрай без смены статуса,
// permanent — в поглощающее error. Каждая ошибка оставляет след в журнале.
func (c *Conveyor) handleFailure(ctx context.Context, p *models.ProductRecord, step string, stepErr error) error {
	if errors.Is(stepErr, context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		// Прогон оборвали целиком: состояние товара уже консистентно,
		// ничего не помечаем.
		return stepErr
	}
	if errors.Is(stepErr, storage.ErrPersistenceConflict) {
		// Запись увёл другой писатель — он и отвечает за итог.
		c.log.Log("product %d: %s skipped, %v", p.ID, step, stepErr)
		return nil
	}

	entry := models.LogEntry{
		Time:    time.Now(),
		Step:    step,
		Message: stepErr.Error(),
	}
	if err := c.store.AppendLog(ctx, p.ID, entry); err != nil {
		c.log.Log("product %d: failed to append conveyor log: %v", p.ID, err)
	}

	switch Classify(stepErr) {
	case Transient:
		delay := RetryDelay(p.RetryCount, c.cfg.RetryBaseDelay, c.cfg.RetryMaxDelay)
		if err := c.store.ScheduleRetry(ctx, p.ID, time.Now().Add(delay)); err != nil {
			c.log.Log("product %d: failed to schedule retry: %v", p.ID, err)
		}
		c.log.Log("product %d: %s failed (attempt %d, retry in %s): %v", p.ID, step, p.RetryCount+1, delay, stepErr)

		// Порог срабатывания, чтобы мигающий удалённый сервис не
		// устраивал шторм оповещений.
		if c.cfg.AlertAfterErrors > 0 && p.RetryCount+1 >= c.cfg.AlertAfterErrors {
			c.notifier.SendAlert(fmt.Sprintf("Конвейер: товар %d, шаг %s падает %d раз подряд: %v",
				p.ID, step, p.RetryCount+1, stepErr))
		}

	case Permanent:
		if err := c.store.MarkError(ctx, p.ID); err != nil {
			c.log.Log("product %d: failed to mark error: %v", p.ID, err)
		}
		p.ConveyorStatus = models.StatusError
		c.log.Log("product %d: %s failed permanently: %v", p.ID, step, stepErr)
		c.notifier.SendAlert(fmt.Sprintf("Конвейер: товар %d снят в error на шаге %s: %v", p.ID, step, stepErr))
	}
	return nil
}
