package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/mitchelldurbincs/tonatiuh/internal/experience"
	"github.com/mitchelldurbincs/tonatiuh/internal/game"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/notation"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/rules"
	"github.com/mitchelldurbincs/tonatiuh/internal/learning"
	"github.com/mitchelldurbincs/tonatiuh/internal/search"
)

// EnvPrefix prefixes every environment override, e.g. TON_SEARCH_VARIANT.
const EnvPrefix = "TON"

// Config holds all configuration for the application
type Config struct {
	Game      GameConfig       `mapstructure:"game"`
	Rewards   game.RewardTable `mapstructure:"rewards"`
	Search    SearchConfig     `mapstructure:"search"`
	Learning  LearningConfig   `mapstructure:"learning"`
	Server    ServerConfig     `mapstructure:"server"`
	Telemetry TelemetryConfig  `mapstructure:"telemetry"`
}

// GameConfig holds board and draw settings
type GameConfig struct {
	Width           int    `mapstructure:"width"`
	Height          int    `mapstructure:"height"`
	MaxPlies        int    `mapstructure:"max_plies"`
	RepetitionLimit int    `mapstructure:"repetition_limit"`
	InitialPosition string `mapstructure:"initial_position"`
}

// SearchConfig tunes the minimax bots. Zero Depth and TimeBudgetMS keep the
// variant's preset.
type SearchConfig struct {
	Variant              int            `mapstructure:"variant"`
	Depth                int            `mapstructure:"depth"`
	TimeBudgetMS         int            `mapstructure:"time_budget_ms"`
	TrainingTimeBudgetMS int            `mapstructure:"training_time_budget_ms"`
	JitterMax            int            `mapstructure:"jitter_max"`
	Weights              search.Weights `mapstructure:"weights"`
}

// LearningConfig holds trainer hyperparameters
type LearningConfig struct {
	Episodes        int                      `mapstructure:"episodes"`
	Epsilon         learning.EpsilonSchedule `mapstructure:"epsilon"`
	Gamma           float64                  `mapstructure:"gamma"`
	LearningRate    float64                  `mapstructure:"learning_rate"`
	BatchSize       int                      `mapstructure:"batch_size"`
	BufferCapacity  int                      `mapstructure:"buffer_capacity"`
	MinBufferFill   int                      `mapstructure:"min_buffer_fill"`
	TargetSyncEvery int                      `mapstructure:"target_sync_every"`
	Opponent        string                   `mapstructure:"opponent"`
	TraineeFirst    bool                     `mapstructure:"trainee_first"`
	DrawReward      float64                  `mapstructure:"draw_reward"`
	RoundIncrement  float64                  `mapstructure:"round_increment"`
	RewardScale     float64                  `mapstructure:"reward_scale"`
	ModelPath       string                   `mapstructure:"model_path"`
	Seed            uint64                   `mapstructure:"seed"`
	Experience      ExperienceConfig         `mapstructure:"experience"`
}

// ExperienceConfig controls where cleared replay transitions go
type ExperienceConfig struct {
	Persistence string `mapstructure:"persistence"`
	Dir         string `mapstructure:"dir"`
	MaxFileSize int64  `mapstructure:"max_file_size"`
}

// ServerConfig holds the oracle server configuration
type ServerConfig struct {
	Host                  string `mapstructure:"host"`
	Port                  int    `mapstructure:"port"`
	LogLevel              string `mapstructure:"log_level"`
	LogFormat             string `mapstructure:"log_format"`
	EnableReflection      bool   `mapstructure:"enable_reflection"`
	GracefulShutdownDelay int    `mapstructure:"graceful_shutdown_delay"`
	// DefaultBot answers requests that name no bot.
	DefaultBot string `mapstructure:"default_bot"`
	// MaxGames caps hosted games; zero means unlimited.
	MaxGames int `mapstructure:"max_games"`
}

// TelemetryConfig holds the websocket event stream settings. An empty Addr disables it.
type TelemetryConfig struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

// setViperDefaults sets all default values using Viper's SetDefault
func setViperDefaults(v *viper.Viper) {
	// Game defaults
	v.SetDefault("game.width", core.DefaultWidth)
	v.SetDefault("game.height", core.DefaultHeight)
	v.SetDefault("game.max_plies", rules.DefaultMaxPlies)
	v.SetDefault("game.repetition_limit", rules.DefaultRepetitionLimit)
	v.SetDefault("game.initial_position", "")

	// Reward defaults
	r := game.DefaultRewards()
	v.SetDefault("rewards.win", r.Win)
	v.SetDefault("rewards.loss", r.Loss)
	v.SetDefault("rewards.draw", r.Draw)
	v.SetDefault("rewards.learning_draw", r.LearningDraw)
	v.SetDefault("rewards.destroy_own", r.DestroyOwn)
	v.SetDefault("rewards.destroy_opponent", r.DestroyOpponent)
	v.SetDefault("rewards.own_wall", r.OwnWall)
	v.SetDefault("rewards.own_angler", r.OwnAngler)
	v.SetDefault("rewards.opponent_wall", r.OpponentWall)
	v.SetDefault("rewards.opponent_angler", r.OpponentAngler)
	v.SetDefault("rewards.block", r.Block)
	v.SetDefault("rewards.per_round", r.PerRound)

	// Search defaults
	w := search.DefaultWeights()
	v.SetDefault("search.variant", 5)
	v.SetDefault("search.depth", 0)
	v.SetDefault("search.time_budget_ms", int(search.DefaultTimeBudget/time.Millisecond))
	v.SetDefault("search.training_time_budget_ms", 200)
	v.SetDefault("search.jitter_max", 100)
	v.SetDefault("search.weights.hop", w.Hop)
	v.SetDefault("search.weights.back_rank_king", w.BackRankKing)
	v.SetDefault("search.weights.king_neighbour", w.KingNeighbour)
	v.SetDefault("search.weights.flank", w.Flank)

	// Learning defaults
	t := learning.DefaultTrainerConfig()
	p := experience.DefaultPersistenceConfig()
	v.SetDefault("learning.episodes", 1000)
	v.SetDefault("learning.epsilon.start", t.Epsilon.Start)
	v.SetDefault("learning.epsilon.min", t.Epsilon.Min)
	v.SetDefault("learning.epsilon.decay", t.Epsilon.Decay)
	v.SetDefault("learning.gamma", t.Gamma)
	v.SetDefault("learning.learning_rate", 0.01)
	v.SetDefault("learning.batch_size", t.BatchSize)
	v.SetDefault("learning.buffer_capacity", t.BufferCapacity)
	v.SetDefault("learning.min_buffer_fill", t.MinBufferFill)
	v.SetDefault("learning.target_sync_every", t.TargetSyncEvery)
	v.SetDefault("learning.opponent", "safe_random")
	v.SetDefault("learning.trainee_first", true)
	v.SetDefault("learning.draw_reward", r.LearningDraw)
	v.SetDefault("learning.round_increment", 0)
	v.SetDefault("learning.reward_scale", 0.001)
	v.SetDefault("learning.model_path", "models/tonatiuh-q.bin")
	v.SetDefault("learning.seed", 0)
	v.SetDefault("learning.experience.persistence", string(p.Type))
	v.SetDefault("learning.experience.dir", p.BaseDir)
	v.SetDefault("learning.experience.max_file_size", p.MaxFileSize)

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 50051)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "console")
	v.SetDefault("server.enable_reflection", true)
	v.SetDefault("server.graceful_shutdown_delay", 5)
	v.SetDefault("server.default_bot", search.MinimaxBot(3))
	v.SetDefault("server.max_games", 100)

	// Telemetry defaults
	v.SetDefault("telemetry.addr", "")
	v.SetDefault("telemetry.path", "/ws")
}

// Loader owns one viper instance and the Config decoded from it.
type Loader struct {
	mu  sync.RWMutex
	v   *viper.Viper
	cfg *Config
}

// Load reads configPath (optional) plus TON_* environment overrides.
func Load(configPath string) (*Config, error) {
	l, err := NewLoader(configPath)
	if err != nil {
		return nil, err
	}
	return l.Config(), nil
}

// NewLoader reads the configuration. An explicit path that does not exist falls back
// to the defaults; without a path config.yaml is looked up in the usual places.
func NewLoader(configPath string) (*Loader, error) {
	v := viper.New()

	// Set defaults before loading any config
	setViperDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/tonatiuh")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case configPath != "" && isMissingFile(err):
			// Specific file requested but not found - use defaults
		case configPath == "" && errors.As(err, &notFound):
		default:
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	l := &Loader{v: v}
	if err := l.reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Config returns the current configuration. Callers must not modify it.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// ConfigFilePath returns the path of the loaded config file
func (l *Loader) ConfigFilePath() string {
	return l.v.ConfigFileUsed()
}

// Set overrides a key at runtime and re-decodes.
func (l *Loader) Set(key string, value any) error {
	l.v.Set(key, value)
	return l.reload()
}

// LoadEnvironmentConfig merges config.<env>.yaml over the loaded configuration.
func (l *Loader) LoadEnvironmentConfig(env string) error {
	if env == "" {
		return nil
	}

	envFile := fmt.Sprintf("config.%s.yaml", env)
	l.v.SetConfigFile(envFile)
	if err := l.v.MergeInConfig(); err != nil && !isMissingFile(err) {
		return fmt.Errorf("error merging environment config %s: %w", envFile, err)
	}
	return l.reload()
}

// Watch enables hot-reloading of the config file. onChange receives the new
// configuration, or the error that kept the previous one in place.
func (l *Loader) Watch(onChange func(*Config, error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		err := l.reload()
		if onChange != nil {
			onChange(l.Config(), err)
		}
	})
	l.v.WatchConfig()
}

func (l *Loader) reload() error {
	c := &Config{}
	if err := l.v.Unmarshal(c); err != nil {
		return fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := Validate(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	l.mu.Lock()
	l.cfg = c
	l.mu.Unlock()
	return nil
}

func isMissingFile(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}

// Validate validates the configuration values
func Validate(c *Config) error {
	// Validate game settings
	if c.Game.Width < 3 || c.Game.Height < 3 || c.Game.Width > core.MaxSide || c.Game.Height > core.MaxSide {
		return fmt.Errorf("game board must be between 3x3 and %dx%d, got %dx%d", core.MaxSide, core.MaxSide, c.Game.Width, c.Game.Height)
	}
	if c.Game.InitialPosition == "" && (c.Game.Width != core.DefaultWidth || c.Game.Height != core.DefaultHeight) {
		return fmt.Errorf("game.initial_position is required for a %dx%d board", c.Game.Width, c.Game.Height)
	}
	if c.Game.InitialPosition != "" {
		if _, err := notation.Decode(c.Game.InitialPosition, c.Game.Height, c.Game.Width); err != nil {
			return fmt.Errorf("game.initial_position: %w", err)
		}
	}
	if c.Game.MaxPlies <= 0 {
		return fmt.Errorf("game.max_plies must be positive")
	}
	if c.Game.RepetitionLimit < 2 {
		return fmt.Errorf("game.repetition_limit must be at least 2")
	}

	// Validate rewards
	if c.Rewards.Win <= 0 || c.Rewards.Loss >= 0 {
		return fmt.Errorf("rewards.win must be positive and rewards.loss negative")
	}

	// Validate search settings
	if _, err := search.Variant(c.Search.Variant); err != nil {
		return fmt.Errorf("search.variant: %w", err)
	}
	if c.Search.Depth < 0 {
		return fmt.Errorf("search.depth must be non-negative")
	}
	if c.Search.TimeBudgetMS < 0 || c.Search.TrainingTimeBudgetMS < 0 {
		return fmt.Errorf("search time budgets must be non-negative")
	}
	if c.Search.JitterMax < 0 {
		return fmt.Errorf("search.jitter_max must be non-negative")
	}

	// Validate learning settings
	l := c.Learning
	if l.Episodes < 1 {
		return fmt.Errorf("learning.episodes must be at least 1")
	}
	if err := l.Epsilon.Validate(); err != nil {
		return fmt.Errorf("learning.epsilon: %w", err)
	}
	if l.LearningRate <= 0 {
		return fmt.Errorf("learning.learning_rate must be positive")
	}
	if l.RewardScale <= 0 {
		return fmt.Errorf("learning.reward_scale must be positive")
	}
	if err := c.TrainerConfig().Validate(); err != nil {
		return fmt.Errorf("learning: %w", err)
	}
	switch experience.PersistenceType(l.Experience.Persistence) {
	case experience.PersistenceTypeNone, experience.PersistenceTypeFile:
	default:
		return fmt.Errorf("learning.experience.persistence: %w: %s", experience.ErrInvalidPersistenceType, l.Experience.Persistence)
	}

	// Validate server configuration
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.GracefulShutdownDelay < 0 {
		return fmt.Errorf("server.graceful_shutdown_delay must be non-negative")
	}
	if c.Server.MaxGames < 0 {
		return fmt.Errorf("server.max_games must be non-negative")
	}
	if c.Telemetry.Addr != "" && !strings.HasPrefix(c.Telemetry.Path, "/") {
		return fmt.Errorf("telemetry.path must start with /")
	}

	return nil
}

// DrawConfig returns the draw limits of a game.
func (c *Config) DrawConfig() rules.DrawConfig {
	return rules.DrawConfig{RepetitionLimit: c.Game.RepetitionLimit, MaxPlies: c.Game.MaxPlies}
}

// SearchOptions returns the preset of variant n with the configured overrides.
func (c *Config) SearchOptions(n int) (search.Options, error) {
	opts, err := search.Variant(n)
	if err != nil {
		return search.Options{}, err
	}
	s := c.Search
	if s.Depth > 0 {
		opts.Depth = s.Depth
	}
	if s.TimeBudgetMS > 0 {
		opts.TimeBudget = time.Duration(s.TimeBudgetMS) * time.Millisecond
	}
	if opts.Heuristic {
		opts.JitterMax = s.JitterMax
	}
	opts.Weights = s.Weights
	return opts, nil
}

// RegistryConfig tunes every minimax bot with the search overrides. training swaps in
// the shorter training time budget.
func (c *Config) RegistryConfig(training bool) search.RegistryConfig {
	return search.RegistryConfig{
		Rewards: c.Rewards,
		Seed:    c.Learning.Seed,
		Tune: func(n int, opts *search.Options) {
			tuned, err := c.SearchOptions(n)
			if err != nil {
				return
			}
			if training && c.Search.TrainingTimeBudgetMS > 0 {
				tuned.TimeBudget = time.Duration(c.Search.TrainingTimeBudgetMS) * time.Millisecond
			}
			*opts = tuned
		},
	}
}

// TrainerConfig maps the learning section onto the trainer's hyperparameters.
func (c *Config) TrainerConfig() learning.TrainerConfig {
	l := c.Learning
	return learning.TrainerConfig{
		Width:           c.Game.Width,
		Height:          c.Game.Height,
		Position:        c.Game.InitialPosition,
		Gamma:           l.Gamma,
		BatchSize:       l.BatchSize,
		BufferCapacity:  l.BufferCapacity,
		MinBufferFill:   l.MinBufferFill,
		TargetSyncEvery: l.TargetSyncEvery,
		Epsilon:         l.Epsilon,
		TraineeFirst:    l.TraineeFirst,
		Rewards:         c.Rewards,
		Learning: experience.RewardConfig{
			Draw:           float32(l.DrawReward),
			RoundIncrement: float32(l.RoundIncrement),
			Scale:          float32(l.RewardScale),
		},
		Draw: c.DrawConfig(),
	}
}

// PersistenceConfig returns the replay persistence settings.
func (c *Config) PersistenceConfig() experience.PersistenceConfig {
	e := c.Learning.Experience
	return experience.PersistenceConfig{
		Type:        experience.PersistenceType(e.Persistence),
		BaseDir:     e.Dir,
		MaxFileSize: e.MaxFileSize,
	}
}

// Addr is the oracle server's listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
