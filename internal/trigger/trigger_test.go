package trigger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/mocks"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/models"
	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/trigger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrigger_FiresBothTickers(t *testing.T) {
	syncSvc := mocks.NewMockSyncService()
	collectSvc := mocks.NewMockCollectService()

	tr := trigger.New(syncSvc, collectSvc, 10*time.Millisecond, 15*time.Millisecond, zerolog.Nop())
	tr.Start(context.Background())
	defer tr.Stop()

	require.Eventually(t, func() bool {
		return syncSvc.Pending() >= 2 && collectSvc.Collects() >= 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTrigger_StartStopIdempotent(t *testing.T) {
	syncSvc := mocks.NewMockSyncService()
	collectSvc := mocks.NewMockCollectService()
	tr := trigger.New(syncSvc, collectSvc, time.Hour, time.Hour, zerolog.Nop())

	tr.Stop()
	assert.False(t, tr.Running())

	tr.Start(context.Background())
	tr.Start(context.Background())
	assert.True(t, tr.Running())

	tr.Stop()
	tr.Stop()
	assert.False(t, tr.Running())
	assert.Zero(t, syncSvc.Pending())
}

func TestTrigger_NoTicksAfterStop(t *testing.T) {
	syncSvc := mocks.NewMockSyncService()
	collectSvc := mocks.NewMockCollectService()
	tr := trigger.New(syncSvc, collectSvc, 5*time.Millisecond, 5*time.Millisecond, zerolog.Nop())

	tr.Start(context.Background())
	require.Eventually(t, func() bool { return syncSvc.Pending() > 0 }, 2*time.Second, time.Millisecond)
	tr.Stop()

	count := syncSvc.Pending()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, count, syncSvc.Pending())
}

func TestTrigger_SurvivesFailingAndPanickingTicks(t *testing.T) {
	syncSvc := mocks.NewMockSyncService()
	syncSvc.SyncPendingFunc = func(ctx context.Context) (*models.SyncResult, error) {
		panic("store exploded")
	}
	collectSvc := mocks.NewMockCollectService()
	collectSvc.CollectFunc = func(ctx context.Context) ([]*models.ReportJob, error) {
		return nil, errors.New("db down")
	}

	tr := trigger.New(syncSvc, collectSvc, 5*time.Millisecond, 5*time.Millisecond, zerolog.Nop())
	tr.Start(context.Background())
	defer tr.Stop()

	require.Eventually(t, func() bool {
		return syncSvc.Pending() >= 3 && collectSvc.Collects() >= 3
	}, 2*time.Second, 5*time.Millisecond)
}
