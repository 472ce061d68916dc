package conveyor_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kaspimarket_api/config"
	"kaspimarket_api/config/values"
	"kaspimarket_api/internal/kaspi/business/models"
	"kaspimarket_api/internal/kaspi/business/models/dto/request"
	"kaspimarket_api/internal/kaspi/business/services/attributes"
	"kaspimarket_api/internal/kaspi/business/services/conveyor"
	"kaspimarket_api/internal/kaspi/business/services/parse"
	"kaspimarket_api/internal/kaspi/business/services/pricing"
	"kaspimarket_api/internal/kaspi/pkg/clients"
	"kaspimarket_api/internal/kaspi/storage"
)

// fakeStore записывает все операции с карточкой в общую ленту событий,
// чтобы проверять их порядок. Диспетчер зовёт его из нескольких воркеров.
type fakeStore struct {
	mu          sync.Mutex
	events      []string
	specs       map[string]string
	flags       map[string]bool
	markedError bool
	retryAt     *time.Time
	statusErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{specs: map[string]string{}, flags: map[string]bool{}}
}

func (s *fakeStore) record(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *fakeStore) UpdateStatus(_ context.Context, _ int64, from, to models.ConveyorStatus) error {
	s.mu.Lock()
	statusErr := s.statusErr
	s.mu.Unlock()
	if statusErr != nil {
		return statusErr
	}
	s.record(fmt.Sprintf("status:%s->%s", from, to))
	return nil
}

func (s *fakeStore) AppendLog(_ context.Context, _ int64, entry models.LogEntry) error {
	s.record("log:" + entry.Step)
	return nil
}

func (s *fakeStore) SetSpec(_ context.Context, _ int64, key, value string) error {
	s.mu.Lock()
	s.specs[key] = value
	s.mu.Unlock()
	s.record("spec:" + key)
	return nil
}

func (s *fakeStore) SetStepFlag(_ context.Context, _ int64, flag string) error {
	s.mu.Lock()
	s.flags[flag] = true
	s.mu.Unlock()
	s.record("flag:" + flag)
	return nil
}

func (s *fakeStore) SetPriceBase(_ context.Context, _ int64, priceBase int64) error {
	s.record(fmt.Sprintf("price:%d", priceBase))
	return nil
}

func (s *fakeStore) ScheduleRetry(_ context.Context, _ int64, nextRetryAt time.Time) error {
	s.mu.Lock()
	s.retryAt = &nextRetryAt
	s.mu.Unlock()
	s.record("retry")
	return nil
}

func (s *fakeStore) ClearRetry(_ context.Context, _ int64) error {
	s.record("clear_retry")
	return nil
}

func (s *fakeStore) MarkError(_ context.Context, _ int64) error {
	s.mu.Lock()
	s.markedError = true
	s.mu.Unlock()
	s.record("mark_error")
	return nil
}

func (s *fakeStore) indexOf(event string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.events {
		if e == event {
			return i
		}
	}
	return -1
}

type fakeJobs struct {
	mu       sync.Mutex
	inserted []*models.UploadJob
	polls    []string
	stored   map[string]*models.UploadJob
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{stored: map[string]*models.UploadJob{}}
}

func (j *fakeJobs) Insert(_ context.Context, job *models.UploadJob) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.inserted = append(j.inserted, job)
	j.stored[job.ID] = job
	return nil
}

func (j *fakeJobs) RecordPoll(_ context.Context, id string, _ models.JobStatus, _ []models.ItemError, _ time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.polls = append(j.polls, id)
	return nil
}

func (j *fakeJobs) Get(_ context.Context, id string) (*models.UploadJob, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	job, ok := j.stored[id]
	if !ok {
		return nil, &clients.NotFoundError{Resource: id}
	}
	return job, nil
}

type fakeBookkeeping struct {
	mu          sync.Mutex
	createCalls int
	createErr   error
	stockErr    error
	stock       int
	price       int64
}

func (b *fakeBookkeeping) CreateItem(context.Context, *models.ProductRecord) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.createCalls++
	if b.createErr != nil {
		return "", b.createErr
	}
	return "ms-uuid-1", nil
}

func (b *fakeBookkeeping) StockAndPrice(context.Context, string) (int, int64, error) {
	if b.stockErr != nil {
		return 0, 0, b.stockErr
	}
	return b.stock, b.price, nil
}

func (b *fakeBookkeeping) Images(context.Context, string) ([]string, error) {
	return []string{"https://img.example/1.jpg"}, nil
}

type fakeMarketplace struct {
	mu          sync.Mutex
	submitCalls int
	submitted   [][]request.ImportItem
	submitErr   error
	jobID       string

	pollResult *models.UploadJob
	pollErr    error
}

func (m *fakeMarketplace) SubmitImport(_ context.Context, items []request.ImportItem) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitCalls++
	m.submitted = append(m.submitted, items)
	if m.submitErr != nil {
		return "", m.submitErr
	}
	return m.jobID, nil
}

func (m *fakeMarketplace) ImportStatus(_ context.Context, jobID string) (*models.UploadJob, error) {
	if m.pollErr != nil {
		return nil, m.pollErr
	}
	job := *m.pollResult
	job.ID = jobID
	job.LastPolledAt = time.Now()
	return &job, nil
}

type fakeMapper struct{}

func (fakeMapper) DetectCategory(string) (string, string) {
	return "Master - Soft toys", "Мягкие игрушки"
}

type fakeResolver struct {
	attrs map[string]string
	err   error
}

func (r fakeResolver) ResolveAttributes(context.Context, string, *models.ProductRecord) (map[string]string, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.attrs, nil
}

type fakeSink struct {
	mu     sync.Mutex
	alerts []string
}

func (s *fakeSink) SendAlert(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, text)
	return true
}

type env struct {
	store  *fakeStore
	jobs   *fakeJobs
	ms     *fakeBookkeeping
	market *fakeMarketplace
	sink   *fakeSink
	conv   *conveyor.Conveyor
}

func newEnv(t *testing.T) *env {
	t.Helper()

	policy, err := pricing.NewPricePolicy(0.3, 0.45)
	require.NoError(t, err)

	e := &env{
		store:  newFakeStore(),
		jobs:   newFakeJobs(),
		ms:     &fakeBookkeeping{stock: 5, price: 1000},
		market: &fakeMarketplace{jobID: "job-1", pollResult: &models.UploadJob{Status: models.JobPending}},
		sink:   &fakeSink{},
	}
	e.conv = conveyor.NewConveyor(
		e.store,
		e.jobs,
		e.ms,
		e.market,
		fakeMapper{},
		fakeResolver{attrs: map[string]string{"color": "Красный"}},
		parse.NewBrandServiceKaspi([]string{"запрещённый бренд"}),
		policy,
		e.sink,
		config.ConveyorConfig{
			RetryBaseDelay:   time.Minute,
			RetryMaxDelay:    time.Hour,
			AlertAfterErrors: 3,
			MaxPendingAge:    24 * time.Hour,
		},
		values.KaspiValues{
			TargetDivisor: 0.3, MinDivisor: 0.45,
			DefaultBrand: "NoName", TitleMaxLen: 100, DescriptionMaxLen: 500,
		},
		io.Discard,
	)
	return e
}

func newProduct(status models.ConveyorStatus) *models.ProductRecord {
	return &models.ProductRecord{
		ID:             42,
		Name:           "Мягкая игрушка медведь 30 см",
		Brand:          "Teddy&Co",
		ConveyorStatus: status,
		Specs:          map[string]string{},
		UpdatedAt:      time.Now(),
	}
}

func TestProcessProduct_FullPassUntilPending(t *testing.T) {
	e := newEnv(t)
	p := newProduct(models.StatusNew)

	require.NoError(t, e.conv.ProcessProduct(context.Background(), p))

	// Товар прошёл все шаги и остановился на ожидании задания.
	assert.Equal(t, models.StatusUploaded, p.ConveyorStatus)
	assert.Equal(t, 1, e.ms.createCalls)
	assert.Equal(t, 1, e.market.submitCalls)
	require.Len(t, e.jobs.inserted, 1)
	assert.Equal(t, "job-1", e.jobs.inserted[0].ID)

	assert.True(t, e.store.flags["ms_created"])
	assert.True(t, e.store.flags["stock_added"])
	assert.False(t, e.store.flags["kaspi_created"], "kaspi_created is set only after confirmation")

	assert.Equal(t, "ms-uuid-1", e.store.specs[models.SpecMsID])
	assert.Equal(t, "KM-42", e.store.specs[models.SpecKaspiSKU])
	assert.Equal(t, "true", e.store.specs[models.SpecIsInFeed])
	assert.Equal(t, "job-1", e.store.specs[models.SpecKaspiUploadID])
}

// Код задания должен лечь в specs раньше смены статуса: иначе падение
// между этими записями приведёт к повторной отправке.
func TestProcessProduct_UploadIDPersistedBeforeStatus(t *testing.T) {
	e := newEnv(t)
	p := newProduct(models.StatusNew)

	require.NoError(t, e.conv.ProcessProduct(context.Background(), p))

	specIdx := e.store.indexOf("spec:" + models.SpecKaspiUploadID)
	statusIdx := e.store.indexOf("status:listing_built->uploaded")
	require.GreaterOrEqual(t, specIdx, 0)
	require.GreaterOrEqual(t, statusIdx, 0)
	assert.Less(t, specIdx, statusIdx, "job id must be persisted before the status advance")
}

func TestProcessProduct_ConfirmedIsNoOp(t *testing.T) {
	e := newEnv(t)
	p := newProduct(models.StatusConfirmed)

	require.NoError(t, e.conv.ProcessProduct(context.Background(), p))

	assert.Empty(t, e.store.events, "no writes on terminal status")
	assert.Zero(t, e.ms.createCalls)
	assert.Zero(t, e.market.submitCalls)
}

// После рестарта товар в uploaded опрашивает сохранённое задание,
// а не отправляет партию заново.
func TestProcessProduct_ResumeUploadedPollsStoredJob(t *testing.T) {
	e := newEnv(t)
	e.market.pollResult = &models.UploadJob{Status: models.JobSuccess}

	p := newProduct(models.StatusUploaded)
	p.MsCreated, p.StockAdded = true, true
	p.Specs[models.SpecKaspiUploadID] = "job-9"
	p.Specs[models.SpecKaspiSKU] = "KM-42"

	require.NoError(t, e.conv.ProcessProduct(context.Background(), p))

	assert.Zero(t, e.market.submitCalls, "must not resubmit")
	assert.Equal(t, []string{"job-9"}, e.jobs.polls)
	assert.Equal(t, models.StatusConfirmed, p.ConveyorStatus)
	assert.True(t, e.store.flags["kaspi_created"])
}

// Падение между отправкой и записью статуса: upload id уже в specs,
// товар ещё в listing_built.
func TestProcessProduct_ResumeAfterCrashBetweenSubmitAndAdvance(t *testing.T) {
	e := newEnv(t)
	e.market.pollResult = &models.UploadJob{Status: models.JobSuccess}

	p := newProduct(models.StatusListingBuilt)
	p.MsCreated, p.StockAdded = true, true
	p.Specs[models.SpecKaspiUploadID] = "job-9"
	p.Specs[models.SpecKaspiSKU] = "KM-42"

	require.NoError(t, e.conv.ProcessProduct(context.Background(), p))

	assert.Zero(t, e.market.submitCalls, "stored job id suppresses a second submit")
	assert.Equal(t, models.StatusConfirmed, p.ConveyorStatus)
}

func TestProcessProduct_MandatoryAttributeIsPermanent(t *testing.T) {
	e := newEnv(t)
	p := newProduct(models.StatusStockSynced)
	p.MsCreated, p.StockAdded = true, true
	p.PriceBase = 1000

	policy, err := pricing.NewPricePolicy(0.3, 0.45)
	require.NoError(t, err)
	e.conv = conveyor.NewConveyor(
		e.store, e.jobs, e.ms, e.market, fakeMapper{},
		fakeResolver{err: &attributes.MandatoryAttributeMissing{Code: "color"}},
		parse.NewBrandServiceKaspi(nil), policy, e.sink,
		config.ConveyorConfig{AlertAfterErrors: 3},
		values.KaspiValues{TitleMaxLen: 100},
		io.Discard,
	)

	require.NoError(t, e.conv.ProcessProduct(context.Background(), p))

	assert.True(t, e.store.markedError)
	assert.Equal(t, models.StatusError, p.ConveyorStatus)
	assert.False(t, e.store.flags["kaspi_created"])
	assert.Len(t, e.sink.alerts, 1, "permanent failures alert immediately")
	assert.Zero(t, e.market.submitCalls)
}

func TestProcessProduct_BannedBrandIsPermanent(t *testing.T) {
	e := newEnv(t)
	p := newProduct(models.StatusStockSynced)
	p.MsCreated, p.StockAdded = true, true
	p.PriceBase = 1000
	p.Brand = "Запрещённый Бренд"

	require.NoError(t, e.conv.ProcessProduct(context.Background(), p))

	assert.True(t, e.store.markedError)
	assert.Equal(t, models.StatusError, p.ConveyorStatus)
}

func TestProcessProduct_TransientSchedulesRetry(t *testing.T) {
	e := newEnv(t)
	e.ms.createErr = &clients.RemoteError{StatusCode: 503, Body: "unavailable"}

	p := newProduct(models.StatusNew)
	require.NoError(t, e.conv.ProcessProduct(context.Background(), p))

	assert.False(t, e.store.markedError)
	assert.Equal(t, models.StatusNew, p.ConveyorStatus, "status unchanged on transient failure")
	require.NotNil(t, e.store.retryAt)
	assert.Empty(t, e.sink.alerts, "below the alert threshold")
	assert.GreaterOrEqual(t, e.store.indexOf("log:ms_sync"), 0, "failure is logged")
}

func TestProcessProduct_TransientAlertsAfterThreshold(t *testing.T) {
	e := newEnv(t)
	e.ms.createErr = &clients.RateLimitError{}

	p := newProduct(models.StatusNew)
	p.RetryCount = 2

	require.NoError(t, e.conv.ProcessProduct(context.Background(), p))
	assert.Len(t, e.sink.alerts, 1, "third consecutive failure crosses the threshold")
}

// Проигранный CAS статуса означает, что карточку увёл другой писатель:
// товар пропускается без пометки ошибки и без оповещений.
func TestProcessProduct_PersistenceConflictSkipsProduct(t *testing.T) {
	e := newEnv(t)
	e.store.statusErr = storage.ErrPersistenceConflict

	p := newProduct(models.StatusNew)
	require.NoError(t, e.conv.ProcessProduct(context.Background(), p))

	assert.False(t, e.store.markedError)
	assert.Nil(t, e.store.retryAt)
	assert.Empty(t, e.sink.alerts)
	assert.Equal(t, models.StatusNew, p.ConveyorStatus, "in-memory status stays at the last persisted state")
	assert.Less(t, e.store.indexOf("log:ms_sync"), 0, "conflict leaves no failure entry in the conveyor log")
}

func TestProcessProduct_PartialJobRejectsOwnSKU(t *testing.T) {
	e := newEnv(t)
	e.market.pollResult = &models.UploadJob{
		Status: models.JobPartial,
		ItemErrors: []models.ItemError{
			{SKU: "KM-42", Message: "invalid attribute value"},
		},
	}

	p := newProduct(models.StatusUploaded)
	p.MsCreated, p.StockAdded = true, true
	p.Specs[models.SpecKaspiUploadID] = "job-1"
	p.Specs[models.SpecKaspiSKU] = "KM-42"

	require.NoError(t, e.conv.ProcessProduct(context.Background(), p))

	assert.True(t, e.store.markedError)
	assert.False(t, e.store.flags["kaspi_created"])
}

func TestProcessProduct_PartialJobConfirmsForeignErrors(t *testing.T) {
	e := newEnv(t)
	e.market.pollResult = &models.UploadJob{
		Status: models.JobPartial,
		ItemErrors: []models.ItemError{
			{SKU: "KM-777", Message: "someone else's problem"},
		},
	}

	p := newProduct(models.StatusUploaded)
	p.MsCreated, p.StockAdded = true, true
	p.Specs[models.SpecKaspiUploadID] = "job-1"
	p.Specs[models.SpecKaspiSKU] = "KM-42"

	require.NoError(t, e.conv.ProcessProduct(context.Background(), p))

	assert.Equal(t, models.StatusConfirmed, p.ConveyorStatus)
	assert.True(t, e.store.flags["kaspi_created"])
}

func TestProcessProduct_FailedJobIsPermanent(t *testing.T) {
	e := newEnv(t)
	e.market.pollResult = &models.UploadJob{
		Status:     models.JobFailed,
		ItemErrors: []models.ItemError{{SKU: "KM-42", Message: "rejected"}},
	}

	p := newProduct(models.StatusUploaded)
	p.MsCreated, p.StockAdded = true, true
	p.Specs[models.SpecKaspiUploadID] = "job-1"
	p.Specs[models.SpecKaspiSKU] = "KM-42"

	require.NoError(t, e.conv.ProcessProduct(context.Background(), p))
	assert.True(t, e.store.markedError)
}

func TestProcessProduct_StalePendingJobEscalates(t *testing.T) {
	e := newEnv(t)
	e.market.pollResult = &models.UploadJob{Status: models.JobPending}
	e.jobs.stored["job-1"] = &models.UploadJob{
		ID:          "job-1",
		Status:      models.JobPending,
		SubmittedAt: time.Now().Add(-48 * time.Hour),
	}

	p := newProduct(models.StatusUploaded)
	p.MsCreated, p.StockAdded = true, true
	p.Specs[models.SpecKaspiUploadID] = "job-1"
	p.Specs[models.SpecKaspiSKU] = "KM-42"

	require.NoError(t, e.conv.ProcessProduct(context.Background(), p))

	assert.True(t, e.store.markedError, "job pending beyond the ceiling needs manual intervention")
	assert.Len(t, e.sink.alerts, 1)
}

func TestProcessProduct_PendingJobWaits(t *testing.T) {
	e := newEnv(t)
	e.market.pollResult = &models.UploadJob{Status: models.JobPending}
	e.jobs.stored["job-1"] = &models.UploadJob{
		ID:          "job-1",
		Status:      models.JobPending,
		SubmittedAt: time.Now().Add(-time.Minute),
	}

	p := newProduct(models.StatusUploaded)
	p.MsCreated, p.StockAdded = true, true
	p.Specs[models.SpecKaspiUploadID] = "job-1"
	p.Specs[models.SpecKaspiSKU] = "KM-42"

	require.NoError(t, e.conv.ProcessProduct(context.Background(), p))

	assert.False(t, e.store.markedError)
	assert.Equal(t, models.StatusUploaded, p.ConveyorStatus)
	assert.Len(t, e.jobs.polls, 1, "exactly one poll per run")
}

// Цена на карточке считается политикой: 1000 / 0.3 = 3333.
func TestProcessProduct_RetailPriceOnListing(t *testing.T) {
	e := newEnv(t)
	p := newProduct(models.StatusNew)

	require.NoError(t, e.conv.ProcessProduct(context.Background(), p))

	require.Len(t, e.market.submitted, 1)
	require.Len(t, e.market.submitted[0], 1)
	item := e.market.submitted[0][0]
	assert.Equal(t, int64(3333), item.Price)
	assert.Equal(t, "KM-42", item.SKU)
	assert.Equal(t, "Master - Soft toys", item.Category)
	assert.Equal(t, "Мягкие игрушки", item.Attributes["type"])
	assert.Equal(t, "Красный", item.Attributes["color"])
}
