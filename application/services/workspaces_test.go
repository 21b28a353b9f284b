package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mindo/domain/config"
	"mindo/infrastructure/persistence/memory"
	pkgerrors "mindo/pkg/errors"
)

func newTestWorkspaces(t *testing.T, gw *memory.Gateway) *Workspaces {
	t.Helper()
	cfg := config.DefaultDomainConfig()
	runner := NewPersistenceRunner(time.Second, nil, zap.NewNop())
	w := NewWorkspaces(func(userID string) *GraphState {
		return NewGraphState(userID, gw, runner, cfg, zap.NewNop(),
			WithClock(func() time.Time { return testNow }),
			WithJitter(func() float64 { return 0.5 }))
	}, 0, zap.NewNop())
	t.Cleanup(func() {
		runner.Wait()
		w.Close()
	})
	return w
}

func TestWorkspaces_LoadsOncePerUser(t *testing.T) {
	gw := memory.NewGateway()
	w := newTestWorkspaces(t, gw)

	var wg sync.WaitGroup
	states := make([]*GraphState, 8)
	for i := range states {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := w.Get(context.Background(), testUser)
			assert.NoError(t, err)
			states[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range states {
		assert.Same(t, states[0], s)
	}
	assert.ElementsMatch(t, []string{"FetchNodes", "FetchEdges"}, gw.Calls())
	assert.Equal(t, 1, w.Len())
}

func TestWorkspaces_FailedLoadIsRetried(t *testing.T) {
	gw := memory.NewGateway()
	w := newTestWorkspaces(t, gw)
	gw.FailOn("FetchNodes", errors.New("down"))

	_, err := w.Get(context.Background(), testUser)
	require.Error(t, err)
	assert.Equal(t, 0, w.Len())

	gw.FailOn("FetchNodes", nil)
	s, err := w.Get(context.Background(), testUser)
	require.NoError(t, err)
	assert.True(t, s.Loaded())
}

func TestWorkspaces_RejectsAnonymous(t *testing.T) {
	w := newTestWorkspaces(t, memory.NewGateway())
	_, err := w.Get(context.Background(), "")
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeUnauthorized))
}

func TestWorkspaces_EvictIdle(t *testing.T) {
	w := newTestWorkspaces(t, memory.NewGateway())
	w.ttl = time.Hour
	clock := testNow
	w.now = func() time.Time { return clock }

	_, err := w.Get(context.Background(), "a")
	require.NoError(t, err)
	clock = clock.Add(30 * time.Minute)
	_, err = w.Get(context.Background(), "b")
	require.NoError(t, err)

	clock = clock.Add(45 * time.Minute)
	assert.Equal(t, 1, w.evictIdle())
	_, ok := w.Peek("a")
	assert.False(t, ok)
	_, ok = w.Peek("b")
	assert.True(t, ok)
}
