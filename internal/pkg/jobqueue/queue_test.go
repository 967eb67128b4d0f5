package jobqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/Scribefox/app/models"
	"github.com/ManuelReschke/Scribefox/internal/pkg/ledgersync"
)

func offlineClient(t *testing.T) *redis.Client {
	c := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewQueue(t *testing.T) {
	tests := []struct {
		name            string
		workers         int
		expectedWorkers int
	}{
		{"Valid worker count", 5, 5},
		{"Zero workers", 0, 3},
		{"Negative workers", -1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := NewQueue(offlineClient(t), tt.workers)

			assert.NotNil(t, queue)
			assert.Equal(t, tt.expectedWorkers, queue.workers)
			assert.Equal(t, tt.expectedWorkers, cap(queue.workerPool))
			assert.NotNil(t, queue.stopCh)
			assert.False(t, queue.running)
		})
	}
}

func TestConstants(t *testing.T) {
	assert.Equal(t, "job:", JobKeyPrefix)
	assert.Equal(t, "job_queue", JobQueueKey)
	assert.Equal(t, "job_processing", JobProcessingKey)
	assert.Equal(t, "job_failed", JobFailedKey)
	assert.Equal(t, "job_stats", JobStatsKey)
	assert.Equal(t, 0, LedgerSyncMaxRetries)
	assert.Equal(t, 24*time.Hour, JobTTL)
}

func TestDispatch_RejectsInvalidTaskWithoutRedis(t *testing.T) {
	q := NewQueue(offlineClient(t), 1)
	err := q.Dispatch(context.Background(), ledgersync.Task{Op: "bogus", EntityType: models.LedgerEntityStyle, EntityID: 1})
	assert.Error(t, err)
}

func TestDispatch_ReportsRedisOutage(t *testing.T) {
	q := NewQueue(offlineClient(t), 1)
	err := q.Dispatch(context.Background(), ledgersync.Task{Op: ledgersync.OpCreate, EntityType: models.LedgerEntityStyle, EntityID: 1})
	assert.Error(t, err)
}

func TestRunHandler_RecoversPanics(t *testing.T) {
	err := runHandler(context.Background(), func(context.Context, *Job) error { panic("bad") }, &Job{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")

	sentinel := errors.New("x")
	assert.ErrorIs(t, runHandler(context.Background(), func(context.Context, *Job) error { return sentinel }, &Job{}), sentinel)
}

type stubSyncer struct {
	got []ledgersync.Task
	err error
}

func (s *stubSyncer) Handle(_ context.Context, task ledgersync.Task) error {
	s.got = append(s.got, task)
	return s.err
}

func TestLedgerSyncHandler_DecodesPayload(t *testing.T) {
	syncer := &stubSyncer{}
	h := NewLedgerSyncHandler(syncer)
	task := ledgersync.Task{Op: ledgersync.OpDelete, EntityType: models.LedgerEntityStyle, EntityID: 8}

	require.NoError(t, h(context.Background(), &Job{Payload: NewLedgerSyncJobPayload(task).ToMap()}))
	assert.Equal(t, []ledgersync.Task{task}, syncer.got)
}
