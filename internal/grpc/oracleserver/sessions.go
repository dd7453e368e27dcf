package oracleserver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mitchelldurbincs/tonatiuh/internal/game"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
	"github.com/mitchelldurbincs/tonatiuh/internal/search"
)

const (
	DefaultCleanupInterval  = 5 * time.Minute
	DefaultFinishedGameTTL  = 10 * time.Minute
	DefaultAbandonedTimeout = 30 * time.Minute
)

var (
	ErrGameNotFound = errors.New("game not found")
	ErrAtCapacity   = errors.New("server at capacity")
)

// session is one hosted game. A bot, when set, plays botSide.
type session struct {
	id      string
	mu      sync.Mutex
	engine  *game.Engine
	bot     search.Policy
	botName string
	botSide core.Owner

	createdAt    time.Time
	lastActivity time.Time
}

// ManagerConfig bounds the number and lifetime of hosted games.
type ManagerConfig struct {
	// MaxGames of zero means unlimited.
	MaxGames         int
	FinishedGameTTL  time.Duration
	AbandonedTimeout time.Duration
}

// SessionManager owns every hosted game.
type SessionManager struct {
	mu          sync.RWMutex
	games       map[string]*session
	cfg         ManagerConfig
	idempotency *IdempotencyManager
	now         func() time.Time
	base        zerolog.Logger
	logger      zerolog.Logger
}

func NewSessionManager(cfg ManagerConfig, logger zerolog.Logger) *SessionManager {
	if cfg.FinishedGameTTL <= 0 {
		cfg.FinishedGameTTL = DefaultFinishedGameTTL
	}
	if cfg.AbandonedTimeout <= 0 {
		cfg.AbandonedTimeout = DefaultAbandonedTimeout
	}
	return &SessionManager{
		games:       make(map[string]*session),
		cfg:         cfg,
		idempotency: NewIdempotencyManager(),
		now:         time.Now,
		base:        logger,
		logger:      logger.With().Str("component", "SessionManager").Logger(),
	}
}

// Create starts a game. bot may be nil for a game where every move is submitted.
func (sm *SessionManager) Create(cfg game.GameConfig, bot search.Policy, botName string, botSide core.Owner) (*session, error) {
	sm.mu.RLock()
	current := len(sm.games)
	sm.mu.RUnlock()
	if sm.cfg.MaxGames > 0 && current >= sm.cfg.MaxGames {
		sm.logger.Warn().
			Int("current_games", current).
			Int("max_games", sm.cfg.MaxGames).
			Msg("Rejecting game creation - server at capacity")
		return nil, fmt.Errorf("%d/%d games active: %w", current, sm.cfg.MaxGames, ErrAtCapacity)
	}

	cfg.Logger = sm.base
	engine, err := game.NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	if bot == nil {
		botSide = core.OwnerNone
	}

	now := sm.now()
	s := &session{
		id:           engine.ID(),
		engine:       engine,
		bot:          bot,
		botName:      botName,
		botSide:      botSide,
		createdAt:    now,
		lastActivity: now,
	}

	sm.mu.Lock()
	sm.games[s.id] = s
	count := len(sm.games)
	sm.mu.Unlock()

	sm.logger.Info().
		Str("game_id", s.id).
		Str("bot", botName).
		Str("bot_side", ownerName(botSide)).
		Int("current_games", count).
		Msg("Created game")
	return s, nil
}

func (sm *SessionManager) Get(id string) (*session, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	s, ok := sm.games[id]
	if !ok {
		return nil, fmt.Errorf("game %s: %w", id, ErrGameNotFound)
	}
	return s, nil
}

func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.games)
}

func (sm *SessionManager) Idempotency() *IdempotencyManager { return sm.idempotency }

func (sm *SessionManager) remove(id string) {
	sm.mu.Lock()
	delete(sm.games, id)
	sm.mu.Unlock()
	sm.idempotency.Forget(id)
}

// Cleanup removes finished games past their TTL and games nobody has touched for the
// abandoned timeout. It returns the removed IDs.
func (sm *SessionManager) Cleanup() []string {
	// Collect references first so no session lock is taken under the manager lock.
	sm.mu.RLock()
	refs := make([]*session, 0, len(sm.games))
	for _, s := range sm.games {
		refs = append(refs, s)
	}
	sm.mu.RUnlock()

	now := sm.now()
	var removed []string
	for _, s := range refs {
		s.mu.Lock()
		reason := ""
		if s.engine.IsGameOver().Over {
			if now.Sub(s.lastActivity) > sm.cfg.FinishedGameTTL {
				reason = "finished game TTL expired"
			}
		} else if now.Sub(s.lastActivity) > sm.cfg.AbandonedTimeout {
			reason = "game abandoned (no activity)"
		}
		createdAt, lastActivity := s.createdAt, s.lastActivity
		s.mu.Unlock()

		if reason == "" {
			continue
		}
		sm.remove(s.id)
		removed = append(removed, s.id)
		sm.logger.Info().
			Str("game_id", s.id).
			Str("reason", reason).
			Dur("age", now.Sub(createdAt)).
			Dur("inactive", now.Sub(lastActivity)).
			Msg("Cleaning up game")
	}
	return removed
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (sm *SessionManager) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.cleanupSafely()
		}
	}
}

func (sm *SessionManager) cleanupSafely() {
	defer func() {
		if r := recover(); r != nil {
			sm.logger.Error().Interface("panic", r).Msg("Game cleanup panicked")
		}
	}()
	sm.Cleanup()
}
