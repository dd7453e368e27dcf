package search

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"

	"github.com/mitchelldurbincs/tonatiuh/internal/game"
)

const (
	BotRandom = "random"
	BotDQN    = "dqn"
)

// MinimaxBot is the registry name of variant n, e.g. "minimax3".
func MinimaxBot(n int) string { return fmt.Sprintf("minimax%d", n) }

// Factory builds a fresh policy. Each policy gets its own random source.
type Factory func(rng *rand.Rand) Policy

// RegistryConfig tunes the policies a Registry builds.
type RegistryConfig struct {
	Rewards game.RewardTable
	// Seed feeds every policy's random source; zero seeds from the clock.
	Seed uint64
	// Tune adjusts the preset of minimax variant n before an engine is built.
	Tune func(n int, opts *Options)
}

// Registry builds policies by bot name. Lookups are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	seed      uint64
	built     uint64
	logger    zerolog.Logger
}

// NewRegistry registers "random" and "minimax1" to "minimax5". Other bots, such as
// the learned "dqn" policy, are added with Register.
func NewRegistry(cfg RegistryConfig, logger zerolog.Logger) *Registry {
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}
	if cfg.Rewards == (game.RewardTable{}) {
		cfg.Rewards = game.DefaultRewards()
	}
	r := &Registry{
		factories: make(map[string]Factory),
		seed:      cfg.Seed,
		logger:    logger.With().Str("component", "BotRegistry").Logger(),
	}

	r.Register(BotRandom, func(rng *rand.Rand) Policy { return NewRandomPolicy(rng) })
	for n := 1; n <= 5; n++ {
		opts := MustVariant(n)
		if cfg.Tune != nil {
			cfg.Tune(n, &opts)
		}
		r.Register(MinimaxBot(n), func(rng *rand.Rand) Policy {
			return NewEngine(opts, cfg.Rewards, rng, logger)
		})
	}
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered bot names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build returns a new policy for name. Unknown names fall back to the random policy.
func (r *Registry) Build(name string) Policy {
	r.mu.Lock()
	f, ok := r.factories[name]
	if !ok {
		f = r.factories[BotRandom]
	}
	r.built++
	rng := rand.New(rand.NewSource(r.seed + r.built))
	r.mu.Unlock()

	if !ok {
		r.logger.Warn().Str("bot", name).Msg("Unknown bot, falling back to random")
	}
	return f(rng)
}
