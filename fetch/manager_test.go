package fetch

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radatool/radatool/ra"
)

func newTestManager(api *fakeAPI, store *memStore) *Manager {
	return NewManager(api, store, zerolog.Nop())
}

func TestManagerFetch(t *testing.T) {
	api := &fakeAPI{
		list:   []ra.GameListEntry{{ID: 1, Title: "Game", Hash: strings.Repeat("a", 32)}},
		hashes: singleHash(1),
	}
	store := newMemStore()
	manager := newTestManager(api, store)

	result, err := manager.Fetch(context.Background(), 5, fastOptions(), nil)
	require.NoError(t, err)
	assert.Len(t, result.Records, 1)

	cached, ok := manager.Cached(5)
	assert.True(t, ok)
	assert.Equal(t, result.Records, cached)
}

func TestManagerRejectsDuplicateConsole(t *testing.T) {
	release := make(chan struct{})
	api := &fakeAPI{
		list:   []ra.GameListEntry{{ID: 1, Title: "Slow", Hash: strings.Repeat("a", 32)}},
		hashes: singleHash(1),
		onHashCall: func(int) {
			<-release
		},
	}
	store := newMemStore()
	manager := newTestManager(api, store)

	task, err := manager.Start(context.Background(), 5, fastOptions(), nil)
	require.NoError(t, err)

	// second start for the same console while the first is in flight
	_, err = manager.Start(context.Background(), 5, fastOptions(), nil)
	assert.ErrorIs(t, err, ErrFetchInProgress)

	close(release)
	_, err = task.Wait()
	require.NoError(t, err)

	// once finished, the console can be fetched again
	_, err = manager.Start(context.Background(), 5, fastOptions(), nil)
	assert.NoError(t, err)
}

func TestManagerSerializesWork(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	api := &fakeAPI{
		list:   []ra.GameListEntry{{ID: 1, Title: "Slow", Hash: strings.Repeat("a", 32)}},
		hashes: singleHash(1),
		onHashCall: func(int) {
			close(started)
			<-release
		},
	}
	store := newMemStore()
	manager := newTestManager(api, store)

	task, err := manager.Start(context.Background(), 5, fastOptions(), nil)
	require.NoError(t, err)
	<-started

	// a generation pass queues behind the running fetch
	var mu sync.Mutex
	var order []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := manager.Generate(context.Background(), func(context.Context) error {
			mu.Lock()
			order = append(order, "generate")
			mu.Unlock()
			return nil
		})
		assert.NoError(t, err)
	}()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Empty(t, order, "generation must wait for the fetch slot")
	mu.Unlock()

	close(release)
	_, err = task.Wait()
	require.NoError(t, err)
	<-done

	mu.Lock()
	assert.Equal(t, []string{"generate"}, order)
	mu.Unlock()
}

func TestManagerTaskCancel(t *testing.T) {
	api := &fakeAPI{
		list: []ra.GameListEntry{
			{ID: 1, Title: "First", Hash: strings.Repeat("a", 32)},
			{ID: 2, Title: "Second", Hash: strings.Repeat("b", 32)},
		},
		hashes: map[int][]ra.GameHash{
			1: {{MD5: validDigest}},
			2: {{MD5: validDigest}},
		},
	}
	store := newMemStore()
	manager := newTestManager(api, store)

	var task *Task
	var once sync.Once
	ready := make(chan struct{})
	api.onHashCall = func(int) {
		<-ready
		once.Do(func() { task.Cancel() })
	}

	var err error
	task, err = manager.Start(context.Background(), 5, fastOptions(), nil)
	require.NoError(t, err)
	close(ready)

	result, err := task.Wait()
	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Len(t, result.Records, 1)
}

func TestManagerGenerateContextCancelled(t *testing.T) {
	manager := newTestManager(&fakeAPI{}, newMemStore())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// the slot is free, but Acquire still observes the dead context
	err := manager.Generate(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
