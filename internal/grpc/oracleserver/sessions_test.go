package oracleserver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mitchelldurbincs/tonatiuh/internal/game"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
	"github.com/mitchelldurbincs/tonatiuh/internal/testutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(cfg ManagerConfig) (*SessionManager, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	sm := NewSessionManager(cfg, testutil.NopLogger())
	sm.now = clock.Now
	sm.idempotency.now = clock.Now
	return sm, clock
}

func TestSessionManager_CleanupAbandonedGames(t *testing.T) {
	sm, clock := newTestManager(ManagerConfig{})

	active, err := sm.Create(game.GameConfig{Position: testutil.SunsAndKings}, nil, "", core.OwnerNone)
	require.NoError(t, err)
	idle, err := sm.Create(game.GameConfig{Position: testutil.SunsAndKings}, nil, "", core.OwnerNone)
	require.NoError(t, err)
	sm.Idempotency().Store(idle.id, "k", &structpb.Struct{})

	clock.Advance(20 * time.Minute)
	active.lastActivity = clock.Now()
	assert.Empty(t, sm.Cleanup())

	clock.Advance(15 * time.Minute)
	removed := sm.Cleanup()
	assert.Equal(t, []string{idle.id}, removed)
	assert.Equal(t, 1, sm.Count())
	assert.Zero(t, sm.Idempotency().Len())

	_, err = sm.Get(idle.id)
	assert.ErrorIs(t, err, ErrGameNotFound)
	_, err = sm.Get(active.id)
	assert.NoError(t, err)
}

func TestSessionManager_CleanupFinishedGames(t *testing.T) {
	sm, clock := newTestManager(ManagerConfig{})

	done, err := sm.Create(game.GameConfig{Position: finished}, nil, "", core.OwnerNone)
	require.NoError(t, err)
	require.True(t, done.engine.IsGameOver().Over)

	clock.Advance(5 * time.Minute)
	assert.Empty(t, sm.Cleanup())

	clock.Advance(6 * time.Minute)
	assert.Equal(t, []string{done.id}, sm.Cleanup())
}

func TestSessionManager_Capacity(t *testing.T) {
	sm, _ := newTestManager(ManagerConfig{MaxGames: 2})

	_, err := sm.Create(game.GameConfig{Width: 8, Height: 8}, nil, "", core.OwnerNone)
	assert.ErrorIs(t, err, game.ErrInvalidPosition, "no standard opening for 8x8")

	for i := 0; i < 2; i++ {
		_, err := sm.Create(game.GameConfig{}, nil, "", core.OwnerNone)
		require.NoError(t, err)
	}
	_, err = sm.Create(game.GameConfig{}, nil, "", core.OwnerNone)
	assert.ErrorIs(t, err, ErrAtCapacity)
}

func TestSessionManager_RunCleanupStopsWithContext(t *testing.T) {
	sm, _ := newTestManager(ManagerConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sm.RunCleanup(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunCleanup did not return after cancel")
	}
}

func TestIdempotencyManager(t *testing.T) {
	im := NewIdempotencyManager()
	clock := &fakeClock{now: time.Now()}
	im.now = clock.Now

	resp, err := structpb.NewStruct(map[string]any{"rounds": 2})
	require.NoError(t, err)

	im.Store("g1", "", resp)
	assert.Nil(t, im.Check("g1", ""), "empty keys are never cached")

	im.Store("g1", "k1", resp)
	cached := im.Check("g1", "k1")
	require.NotNil(t, cached)
	assert.True(t, proto.Equal(resp, cached))
	assert.NotSame(t, resp, cached)
	assert.Nil(t, im.Check("g2", "k1"), "keys are scoped to a game")

	clock.Advance(25 * time.Hour)
	assert.Nil(t, im.Check("g1", "k1"))

	im.Store("g2", "k2", resp)
	im.Forget("g2")
	assert.Nil(t, im.Check("g2", "k2"))
}

func TestRecoveryInterceptor(t *testing.T) {
	interceptor := RecoveryInterceptor(testutil.NopLogger())
	info := &grpc.UnaryServerInfo{FullMethod: "/" + ServiceName + "/ChooseMove"}

	_, err := interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))

	want := errors.New("plain")
	_, err = interceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, want
	})
	assert.Equal(t, want, err)
}

func TestToStatus(t *testing.T) {
	s := NewServer(Config{}, nil, nil, testutil.NopLogger())

	tests := []struct {
		err  error
		want codes.Code
	}{
		{core.ErrIllegalMove, codes.InvalidArgument},
		{core.Invariantf("broken"), codes.Internal},
		{core.ErrGameOver, codes.FailedPrecondition},
		{ErrAtCapacity, codes.ResourceExhausted},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("disk on fire"), codes.Internal},
		{status.Error(codes.Unavailable, "down"), codes.Unavailable},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(s.toStatus(tt.err)), tt.err.Error())
	}
	assert.NoError(t, s.toStatus(nil))
}
