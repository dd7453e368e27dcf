package oracleserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mitchelldurbincs/tonatiuh/internal/game"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/core"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/events"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/notation"
	"github.com/mitchelldurbincs/tonatiuh/internal/game/rules"
	"github.com/mitchelldurbincs/tonatiuh/internal/search"
)

var (
	ErrUnknownBot  = errors.New("unknown bot")
	ErrNotYourTurn = errors.New("side to move is played by the bot")
	ErrBadSide     = errors.New("unknown side")
)

// Config holds the board defaults and game settings for hosted games and stateless
// queries.
type Config struct {
	Width, Height int
	// DefaultBot answers ChooseMove requests that name no bot.
	DefaultBot string
	Rewards    game.RewardTable
	Draw       rules.DrawConfig
	Manager    ManagerConfig
}

// Server implements OracleService: stateless move queries on a notation string, and
// hosted games against a registry bot.
type Server struct {
	cfg       Config
	registry  *search.Registry
	sessions  *SessionManager
	validator *rules.MoveValidator
	publisher events.Publisher
	logger    zerolog.Logger
}

// NewServer builds the oracle. publisher receives the events of hosted games and may
// be nil.
func NewServer(cfg Config, registry *search.Registry, publisher events.Publisher, logger zerolog.Logger) *Server {
	if cfg.Width == 0 && cfg.Height == 0 {
		cfg.Width, cfg.Height = core.DefaultWidth, core.DefaultHeight
	}
	if cfg.DefaultBot == "" {
		cfg.DefaultBot = search.MinimaxBot(3)
	}
	if cfg.Rewards == (game.RewardTable{}) {
		cfg.Rewards = game.DefaultRewards()
	}
	return &Server{
		cfg:       cfg,
		registry:  registry,
		sessions:  NewSessionManager(cfg.Manager, logger),
		validator: rules.NewMoveValidator(),
		publisher: publisher,
		logger:    logger.With().Str("component", "OracleServer").Logger(),
	}
}

func (s *Server) Sessions() *SessionManager { return s.sessions }

// Register adds the oracle, health and (optionally) reflection services to g and
// returns the health server so the caller can flip it to NOT_SERVING on shutdown.
func (s *Server) Register(g *grpc.Server, enableReflection bool) *health.Server {
	RegisterOracleServer(g, s)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(g, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	if enableReflection {
		reflection.Register(g)
		s.logger.Info().Msg("gRPC reflection enabled")
	}
	return healthServer
}

func (s *Server) space(b *core.Board) *rules.ActionSpace {
	return rules.NewActionSpace(b.W, b.H)
}

// decodePosition reads "position" with optional "width" and "height".
func (s *Server) decodePosition(req *structpb.Struct) (notation.Position, error) {
	pos, err := requiredString(req, "position")
	if err != nil {
		return notation.Position{}, err
	}
	w, h, err := boardSize(req, s.cfg.Width, s.cfg.Height)
	if err != nil {
		return notation.Position{}, err
	}
	p, err := notation.Decode(pos, h, w)
	if err != nil {
		return notation.Position{}, err
	}
	if err := game.CheckPosition(p.Board); err != nil {
		return notation.Position{}, err
	}
	return p, nil
}

func (s *Server) buildBot(name string) (search.Policy, error) {
	if !s.registry.Has(name) {
		return nil, fmt.Errorf("%q (known: %s): %w", name, strings.Join(s.registry.Names(), ", "), ErrUnknownBot)
	}
	return s.registry.Build(name), nil
}

// ChooseMove asks a bot for a move.
// Request: position, bot (optional), width and height (optional).
// Response: bot, player, move, reward, position (after the move) and status.
func (s *Server) ChooseMove(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pos, err := s.decodePosition(req)
	if err != nil {
		return nil, s.toStatus(err)
	}
	if game.IsGameOver(pos.Board).Over {
		return nil, s.toStatus(core.ErrGameOver)
	}
	name := stringField(req, "bot")
	if name == "" {
		name = s.cfg.DefaultBot
	}
	bot, err := s.buildBot(name)
	if err != nil {
		return nil, s.toStatus(err)
	}

	m, err := bot.ChooseMove(ctx, pos.Board, pos.Next)
	if err != nil {
		return nil, s.toStatus(err)
	}
	out, err := game.NewExecutor(s.cfg.Rewards).ExecuteWithReward(pos.Board, m, pos.Next)
	if err != nil {
		// A bot must only return legal moves.
		return nil, s.toStatus(core.Invariantf("bot %s returned %s: %v", name, m, err))
	}

	s.logger.Debug().
		Str("bot", name).
		Str("player", pos.Next.String()).
		Str("move", m.String()).
		Msg("Move chosen")
	return structpb.NewStruct(map[string]any{
		"bot":      name,
		"player":   pos.Next.String(),
		"move":     moveFields(m, s.space(pos.Board)),
		"reward":   out.Reward,
		"position": notation.Encode(out.Board, pos.Next.Opponent()),
		"status":   statusFields(game.IsGameOver(out.Board)),
	})
}

// LegalMoves lists the moves of the side to move.
// Request: position, width and height (optional).
// Response: player, count, moves and status.
func (s *Server) LegalMoves(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pos, err := s.decodePosition(req)
	if err != nil {
		return nil, s.toStatus(err)
	}
	st := game.IsGameOver(pos.Board)
	var moves []core.Move
	if !st.Over {
		moves = s.validator.LegalMoves(pos.Board, pos.Next)
	}
	space := s.space(pos.Board)
	return structpb.NewStruct(map[string]any{
		"player": pos.Next.String(),
		"count":  len(moves),
		"moves":  list(moves, func(m core.Move) map[string]any { return moveFields(m, space) }),
		"status": statusFields(st),
	})
}

// GameStatus reports whether a single position is decided. Repetition draws need a
// hosted game's history and show up in GetGame only.
// Request: position, width and height (optional).
// Response: to_move, position (normalised), status.
func (s *Server) GameStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pos, err := s.decodePosition(req)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return structpb.NewStruct(map[string]any{
		"to_move":  pos.Next.String(),
		"position": notation.Encode(pos.Board, pos.Next),
		"status":   statusFields(game.IsGameOver(pos.Board)),
	})
}

func parseSide(name string) (core.Owner, error) {
	switch strings.ToLower(name) {
	case "a", "camaxtli":
		return core.Camaxtli, nil
	case "b", "nanahuatzin":
		return core.Nanahuatzin, nil
	}
	return core.OwnerNone, fmt.Errorf("%q: %w", name, ErrBadSide)
}

// CreateGame hosts a new game.
// Request: position (optional), width and height (optional), bot (optional; empty
// hosts a game with both sides submitted), bot_side (optional, defaults to the side
// not to move).
// Response: the game, plus moves holding any bot opening.
func (s *Server) CreateGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	cfg := game.GameConfig{
		Width:     s.cfg.Width,
		Height:    s.cfg.Height,
		Position:  stringField(req, "position"),
		Rewards:   s.cfg.Rewards,
		Draw:      s.cfg.Draw,
		Publisher: s.publisher,
	}
	w, h, err := boardSize(req, cfg.Width, cfg.Height)
	if err != nil {
		return nil, s.toStatus(err)
	}
	cfg.Width, cfg.Height = w, h

	var bot search.Policy
	botName := stringField(req, "bot")
	botSide := core.OwnerNone
	if botName != "" {
		if bot, err = s.buildBot(botName); err != nil {
			return nil, s.toStatus(err)
		}
		if side := stringField(req, "bot_side"); side != "" {
			if botSide, err = parseSide(side); err != nil {
				return nil, s.toStatus(err)
			}
		}
	}

	sess, err := s.sessions.Create(cfg, bot, botName, botSide)
	if err != nil {
		return nil, s.toStatus(err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if bot != nil && stringField(req, "bot_side") == "" {
		sess.botSide = sess.engine.ToMove().Opponent()
	}
	played, err := s.botReplies(ctx, sess)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return s.gameResponse(sess, played, false)
}

// PlayMove submits a move in a hosted game. With no action, the bot moves for its
// side. After a submitted move the bot replies when it is its turn.
// Request: game_id, action (optional), idempotency_key (optional).
// Response: the game, plus moves holding every move played by this call.
func (s *Server) PlayMove(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredString(req, "game_id")
	if err != nil {
		return nil, s.toStatus(err)
	}
	key := stringField(req, "idempotency_key")
	if cached := s.sessions.Idempotency().Check(id, key); cached != nil {
		s.logger.Debug().Str("game_id", id).Str("idempotency_key", key).Msg("Returning cached response")
		return cached, nil
	}
	action, hasAction, err := intField(req, "action")
	if err != nil {
		return nil, s.toStatus(err)
	}

	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, s.toStatus(err)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.lastActivity = s.sessions.now()

	e := sess.engine
	if e.IsGameOver().Over {
		return nil, s.toStatus(core.ErrGameOver)
	}
	botToMove := sess.bot != nil && e.ToMove() == sess.botSide

	var played []game.Outcome
	switch {
	case hasAction && botToMove:
		return nil, s.toStatus(fmt.Errorf("%s: %w", e.ToMove(), ErrNotYourTurn))
	case hasAction:
		board := e.Board()
		m, err := s.space(board).MoveFromIndex(board, e.ToMove(), action, s.validator)
		if err != nil {
			return nil, s.toStatus(err)
		}
		out, err := e.Apply(m)
		if err != nil {
			return nil, s.toStatus(err)
		}
		played = append(played, out)
	case !botToMove:
		return nil, s.toStatus(fmt.Errorf("action: %w", ErrMissingField))
	}

	replies, err := s.botReplies(ctx, sess)
	played = append(played, replies...)
	if err != nil {
		return nil, s.toStatus(err)
	}
	resp, err := s.gameResponse(sess, played, false)
	if err != nil {
		return nil, err
	}
	s.sessions.Idempotency().Store(id, key, resp)
	return resp, nil
}

// GetGame returns a hosted game with its move history.
// Request: game_id.
func (s *Server) GetGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredString(req, "game_id")
	if err != nil {
		return nil, s.toStatus(err)
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, s.toStatus(err)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.gameResponse(sess, nil, true)
}

// botReplies lets the bot move while it is the bot's turn. It plays at most one move;
// the loop only guards against a session where the bot is to move after its own move.
// Must be called with sess.mu held.
func (s *Server) botReplies(ctx context.Context, sess *session) ([]game.Outcome, error) {
	var played []game.Outcome
	e := sess.engine
	for sess.bot != nil && !e.IsGameOver().Over && e.ToMove() == sess.botSide {
		out, err := e.ComputerMove(ctx, sess.bot)
		if err != nil {
			return played, err
		}
		played = append(played, out)
	}
	return played, nil
}

// gameResponse must be called with sess.mu held.
func (s *Server) gameResponse(sess *session, played []game.Outcome, withHistory bool) (*structpb.Struct, error) {
	e := sess.engine
	board := e.Board()
	space := s.space(board)
	fields := map[string]any{
		"game_id":  sess.id,
		"position": e.Notation(),
		"to_move":  e.ToMove().String(),
		"rounds":   e.Rounds(),
		"status":   statusFields(e.IsGameOver()),
		"bot":      sess.botName,
		"bot_side": ownerName(sess.botSide),
		"moves":    list(played, func(o game.Outcome) map[string]any { return outcomeFields(o, space) }),
	}
	if withHistory {
		fields["history"] = list(e.History(), historyFields)
	}
	resp, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return resp, nil
}

// toStatus maps domain errors onto gRPC codes. Anything unrecognised is a fault.
func (s *Server) toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, core.ErrInvariant):
		s.logger.Error().Err(err).Msg("Engine invariant violated")
		return status.Error(codes.Internal, err.Error())
	case errors.Is(err, ErrGameNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrAtCapacity):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, core.ErrGameOver), errors.Is(err, ErrNotYourTurn):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrMissingField),
		errors.Is(err, ErrBadField),
		errors.Is(err, ErrUnknownBot),
		errors.Is(err, ErrBadSide),
		errors.Is(err, notation.ErrInvalidNotation),
		errors.Is(err, game.ErrInvalidPosition),
		errors.Is(err, core.ErrIllegalMove),
		errors.Is(err, core.ErrInvalidField),
		errors.Is(err, core.ErrEmptyField),
		errors.Is(err, core.ErrNotOwned),
		errors.Is(err, core.ErrPieceChanged):
		return status.Error(codes.InvalidArgument, err.Error())
	}
	s.logger.Error().Err(err).Msg("Unexpected error")
	return status.Error(codes.Internal, err.Error())
}
