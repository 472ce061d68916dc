package conveyor_test

import (
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kaspimarket_api/config"
	"kaspimarket_api/internal/kaspi/business/models"
	"kaspimarket_api/internal/kaspi/business/services/conveyor"
	"kaspimarket_api/pkg/locks"
)

type fakeBatchSource struct {
	batch []*models.ProductRecord
}

func (s *fakeBatchSource) SelectBatch(context.Context, int) ([]*models.ProductRecord, error) {
	return s.batch, nil
}

type fakeInvalidator struct {
	calls atomic.Int32
}

func (f *fakeInvalidator) Invalidate() { f.calls.Add(1) }

func newDispatcherEnv(t *testing.T, batch []*models.ProductRecord, locker locks.Locker) (*conveyor.Dispatcher, *env, *fakeInvalidator) {
	t.Helper()

	e := newEnv(t)
	inv := &fakeInvalidator{}
	d := conveyor.NewDispatcher(
		e.conv,
		&fakeBatchSource{batch: batch},
		locker,
		inv,
		config.ConveyorConfig{BatchSize: 10, WorkerCount: 4},
		io.Discard,
	)
	return d, e, inv
}

func TestDispatcherRun_ProcessesBatch(t *testing.T) {
	batch := []*models.ProductRecord{
		{ID: 1, Name: "Мягкая игрушка заяц", ConveyorStatus: models.StatusNew, Specs: map[string]string{}},
		{ID: 2, Name: "Мягкая игрушка кот", ConveyorStatus: models.StatusNew, Specs: map[string]string{}},
		{ID: 3, Name: "Мягкая игрушка пёс", ConveyorStatus: models.StatusNew, Specs: map[string]string{}},
	}
	d, e, inv := newDispatcherEnv(t, batch, locks.NewMemoryLocker())

	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, int32(1), inv.calls.Load(), "schema cache is dropped once per run")
	assert.Equal(t, 3, e.ms.createCalls)
	assert.Equal(t, 3, e.market.submitCalls)
	for _, p := range batch {
		assert.Equal(t, models.StatusUploaded, p.ConveyorStatus, "product %d", p.ID)
	}
}

func TestDispatcherRun_SkipsLockedProduct(t *testing.T) {
	locker := locks.NewMemoryLocker()
	release, ok, err := locker.TryAcquire(context.Background(), "conveyor:product:1")
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	batch := []*models.ProductRecord{
		{ID: 1, Name: "Мягкая игрушка заяц", ConveyorStatus: models.StatusNew, Specs: map[string]string{}},
		{ID: 2, Name: "Мягкая игрушка кот", ConveyorStatus: models.StatusNew, Specs: map[string]string{}},
	}
	d, e, _ := newDispatcherEnv(t, batch, locker)

	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, 1, e.ms.createCalls, "held product must be skipped")
	assert.Equal(t, models.StatusNew, batch[0].ConveyorStatus)
	assert.Equal(t, models.StatusUploaded, batch[1].ConveyorStatus)
}

func TestDispatcherRun_EmptyBatch(t *testing.T) {
	d, e, _ := newDispatcherEnv(t, nil, locks.NewMemoryLocker())

	require.NoError(t, d.Run(context.Background()))
	assert.Zero(t, e.ms.createCalls)
}

func TestDispatcherRun_CancelledContext(t *testing.T) {
	batch := []*models.ProductRecord{
		{ID: 1, Name: "Мягкая игрушка заяц", ConveyorStatus: models.StatusNew, Specs: map[string]string{}},
	}
	d, _, _ := newDispatcherEnv(t, batch, locks.NewMemoryLocker())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.StatusNew, batch[0].ConveyorStatus, "cancelled run leaves products untouched")
}
