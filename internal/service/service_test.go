package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"carpics/fetcher/internal/client"
	"carpics/fetcher/internal/domain"
	"carpics/fetcher/internal/domain/task"
	"carpics/fetcher/internal/exterior"
	"carpics/fetcher/internal/plan"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const templateURL = "https://images.example.com/Query?producttoken=abc" +
	"&country=US&model=modelX&vehicle=vehY&exterior=extDefault&upholstery=uphZ" +
	"&view=exterior&angle=00&format=png&mode=fit&image-quality=70&scale-mode=2&meta=end"

type fakeFetcher struct {
	mu      sync.Mutex
	fetched []domain.PlanEntry
	failOn  string
}

func (f *fakeFetcher) Fetch(ctx context.Context, entries []domain.PlanEntry) (*client.FetchReport, error) {
	report := &client.FetchReport{}
	for _, e := range entries {
		res := f.FetchOne(ctx, e)
		report.Results = append(report.Results, res)
		if res.Err != nil {
			return report, res.Err
		}
	}
	return report, nil
}

func (f *fakeFetcher) FetchOne(_ context.Context, e domain.PlanEntry) client.FetchResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, e)
	if f.failOn != "" && e.Filename == f.failOn {
		return client.FetchResult{Entry: e, Err: &client.FetchError{URL: e.URL, Filename: e.Filename, StatusCode: 500}}
	}
	return client.FetchResult{Entry: e, Bytes: 1}
}

func (f *fakeFetcher) Close() error { return nil }

type fakeQueue struct {
	mu      sync.Mutex
	pending []redis.XMessage
	acked   []string
	seq     int
	readErr error
	reads   int
}

func (q *fakeQueue) AddTask(_ context.Context, t task.Task) (string, error) {
	data, err := t.TaskValue()
	if err != nil {
		return "", err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	id := fmt.Sprintf("%d-0", q.seq)
	q.pending = append(q.pending, redis.XMessage{ID: id, Values: map[string]interface{}{
		"task_type": t.TaskType(),
		"task_data": string(data),
	}})
	return id, nil
}

func (q *fakeQueue) GetTask(_ context.Context, _, _ string) (*redis.XMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reads++
	if q.readErr != nil {
		return nil, q.readErr
	}
	if len(q.pending) == 0 {
		time.Sleep(time.Millisecond)
		return nil, nil
	}
	msg := q.pending[0]
	q.pending = q.pending[1:]
	return &msg, nil
}

func (q *fakeQueue) AckTask(_ context.Context, _, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, id)
	return nil
}

func (q *fakeQueue) AutoClaim(context.Context, string, string, time.Duration) ([]redis.XMessage, error) {
	return nil, nil
}

func (q *fakeQueue) EnsureStreamsExist(context.Context) error { return nil }
func (q *fakeQueue) StreamName(t string) string             { return "test:" + t }
func (q *fakeQueue) Close() error                           { return nil }

func (q *fakeQueue) ackedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.acked)
}

func newBuilder() *plan.Builder {
	return plan.NewBuilder(exterior.FromMap([]string{"RED"}, map[string]string{"RED": "3T3"}))
}

func TestFetchAll(t *testing.T) {
	f := &fakeFetcher{}
	s := NewService(newBuilder(), f, nil, 0)

	summary, err := s.FetchAll(context.Background(), []domain.DownloadRequest{
		{URL: templateURL, FilenamePrefix: "Car1", Exteriors: []string{"RED"}, Customize: true},
		{URL: templateURL, FilenamePrefix: "Car2", Exteriors: []string{""}, Interior: true},
	})
	require.NoError(t, err)
	assert.Equal(t, Summary{Requests: 2, Failed: 0, Images: 16}, summary)
	assert.Len(t, f.fetched, 16)
	assert.Equal(t, "Car2_XXXX_int_02.png", f.fetched[15].Filename)
}

func TestFetchAll_FailuresAreIsolatedPerRequest(t *testing.T) {
	f := &fakeFetcher{failOn: "Car1_RED_ext_04.png"}
	s := NewService(newBuilder(), f, nil, 0)

	summary, err := s.FetchAll(context.Background(), []domain.DownloadRequest{
		{URL: templateURL, FilenamePrefix: "Car1", Exteriors: []string{"RED"}, Customize: true},
		{URL: templateURL, FilenamePrefix: "Car2", Exteriors: []string{"BLU"}, Customize: true},
		{URL: templateURL, FilenamePrefix: "Car3", Exteriors: []string{""}, Interior: true},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetchFailed)
	assert.ErrorIs(t, err, domain.ErrUnknownExteriorCode)

	assert.Equal(t, 3, summary.Requests)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 2+3, summary.Images)
}

func TestEnqueue_RequiresQueue(t *testing.T) {
	s := NewService(newBuilder(), &fakeFetcher{}, nil, 0)
	_, err := s.Enqueue(context.Background(), nil)
	assert.ErrorIs(t, err, ErrQueueDisabled)
	assert.ErrorIs(t, s.RunWorkers(context.Background(), 1), ErrQueueDisabled)
}

func TestEnqueueAndWork(t *testing.T) {
	q := &fakeQueue{}
	f := &fakeFetcher{failOn: "Car1_XXXX_int_01.png"}
	s := NewService(newBuilder(), f, q, 0)

	n, err := s.Enqueue(context.Background(), []domain.DownloadRequest{
		{URL: templateURL, FilenamePrefix: "Car1", Exteriors: []string{""}, Interior: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.RunWorkers(ctx, 2) }()

	require.Eventually(t, func() bool { return q.ackedCount() == 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Len(t, f.fetched, 3, "failed entries are acked, not retried")
}

func TestRunWorkers_BacksOffOnReadErrors(t *testing.T) {
	q := &fakeQueue{readErr: errors.New("dial tcp: connection refused")}
	s := NewService(newBuilder(), &fakeFetcher{}, q, 0)
	s.readBackoff = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	require.NoError(t, s.RunWorkers(ctx, 1))

	q.mu.Lock()
	defer q.mu.Unlock()
	assert.GreaterOrEqual(t, q.reads, 1)
	assert.LessOrEqual(t, q.reads, 4)
}

func TestProcessMessage_NullTaskData(t *testing.T) {
	q := &fakeQueue{}
	f := &fakeFetcher{}
	s := NewService(newBuilder(), f, q, 0)

	var err error
	assert.NotPanics(t, func() {
		err = s.processMessage(context.Background(), "test:FetchTask", &redis.XMessage{
			ID:     "7-0",
			Values: map[string]interface{}{"task_type": "FetchTask", "task_data": "null"},
		})
	})
	assert.Error(t, err)
	assert.Equal(t, []string{"7-0"}, q.acked)
	assert.Empty(t, f.fetched)
}

func TestProcessMessage_Undecodable(t *testing.T) {
	q := &fakeQueue{}
	s := NewService(newBuilder(), &fakeFetcher{}, q, 0)

	err := s.processMessage(context.Background(), "test:FetchTask", &redis.XMessage{ID: "9-0", Values: map[string]interface{}{"task_type": "FetchTask"}})
	assert.Error(t, err)
	assert.Equal(t, []string{"9-0"}, q.acked)
	assert.False(t, errors.Is(err, domain.ErrFetchFailed))
}
