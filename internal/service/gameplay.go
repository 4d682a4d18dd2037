package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/chessmatch-backend/internal/apperror"
	"github.com/rocketscienceinc/chessmatch-backend/internal/chessengine"
	"github.com/rocketscienceinc/chessmatch-backend/internal/entity"
)

// Tuning for the long-poll wait loop and the inactivity forfeit.
type GamePlayConfig struct {
	PollInterval  time.Duration
	PollCeiling   time.Duration
	PlayerTimeout time.Duration
}

type GamePlayService interface {
	GetGame(ctx context.Context, gameID string) (*entity.Game, error)
	MakeTurn(ctx context.Context, gameID, playerID, move string) (*entity.Game, error)
	Forfeit(ctx context.Context, gameID, leaverID, outcome string) (*entity.Game, error)
	WaitUpdate(ctx context.Context, gameID, playerID, knownFEN string) (*entity.Game, error)
}

type gamePlayService struct {
	logger *slog.Logger
	engine chessengine.Engine

	registry *Registry
	conf     GamePlayConfig
}

func NewGamePlayService(logger *slog.Logger, engine chessengine.Engine, registry *Registry, conf GamePlayConfig) GamePlayService {
	return &gamePlayService{
		logger:   logger.With("component", "gameplay"),
		engine:   engine,
		registry: registry,
		conf:     conf,
	}
}

func (that *gamePlayService) GetGame(ctx context.Context, gameID string) (*entity.Game, error) {
	session, err := that.registry.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}

	return session.Snapshot(), nil
}

// MakeTurn applies one move. Turn check, legality check and state replacement
// happen under the session lock, so concurrent moves on one game serialize
// and a stale base state is never overwritten.
func (that *gamePlayService) MakeTurn(ctx context.Context, gameID, playerID, move string) (*entity.Game, error) {
	log := that.logger.With("method", "MakeTurn", "gameID", gameID, "playerID", playerID)

	session, err := that.registry.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	snapshot, err := that.applyTurn(session.game, playerID, move)
	if err != nil {
		session.mu.Unlock()
		return nil, err
	}
	session.markChanged()
	session.mu.Unlock()

	that.registry.Persist(ctx, snapshot)

	if snapshot.IsFinished() {
		that.registry.Retire(ctx, gameID)
		log.Info("game finished", "outcome", snapshot.Outcome)
		return snapshot, nil
	}

	log.Info("move accepted", "move", move, "turn", snapshot.Turn)

	return snapshot, nil
}

// applyTurn mutates game in place on success and leaves it untouched on any
// rejection. Callers hold the session lock.
func (that *gamePlayService) applyTurn(game *entity.Game, playerID, move string) (*entity.Game, error) {
	if err := game.ConfirmOngoingState(); err != nil {
		return nil, err
	}

	color, ok := game.ColorOf(playerID)
	if !ok {
		return nil, apperror.ErrNotInGame
	}

	if game.Turn != color {
		return nil, apperror.ErrNotYourTurn
	}

	newFEN, err := that.engine.ApplyMove(game.FEN, move)
	if err != nil {
		return nil, err
	}

	newTurn, err := that.engine.Turn(newFEN)
	if err != nil {
		return nil, fmt.Errorf("failed to read turn from new state: %w", err)
	}

	game.FEN = newFEN
	game.Turn = newTurn
	game.LastActivity = time.Now()

	terminal, err := that.engine.IsTerminal(newFEN)
	if err != nil {
		return nil, fmt.Errorf("failed to check termination: %w", err)
	}

	if terminal {
		outcome, err := that.engine.Outcome(newFEN)
		if err != nil {
			return nil, fmt.Errorf("failed to describe outcome: %w", err)
		}
		game.Finish(outcome)
	}

	return game.Clone(), nil
}

// Forfeit ends an unfinished game with the given outcome, e.g. when a player
// disconnects or times out. Finishing an already finished game is a no-op.
func (that *gamePlayService) Forfeit(ctx context.Context, gameID, leaverID, outcome string) (*entity.Game, error) {
	log := that.logger.With("method", "Forfeit", "gameID", gameID)

	session, err := that.registry.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	if session.game.IsFinished() {
		snapshot := session.game.Clone()
		session.mu.Unlock()
		return snapshot, nil
	}

	if _, ok := session.game.ColorOf(leaverID); !ok {
		session.mu.Unlock()
		return nil, apperror.ErrNotInGame
	}

	session.game.Finish(outcome)
	snapshot := session.game.Clone()
	session.markChanged()
	session.mu.Unlock()

	that.registry.Persist(ctx, snapshot)
	that.registry.Retire(ctx, gameID)

	log.Info("game forfeited", "leaverID", leaverID, "outcome", outcome)

	return snapshot, nil
}

// WaitUpdate is the long-poll wait: it returns as soon as the state differs
// from knownFEN, the game ends, or the opponent times out, and otherwise holds
// the request until the poll ceiling elapses. A waiting game (no opponent yet)
// is reported immediately so the caller can re-poll.
func (that *gamePlayService) WaitUpdate(ctx context.Context, gameID, playerID, knownFEN string) (*entity.Game, error) {
	session, err := that.registry.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}

	if playerID != "" {
		session.Touch(playerID)
	}

	ceiling := time.NewTimer(that.conf.PollCeiling)
	defer ceiling.Stop()

	ticker := time.NewTicker(that.conf.PollInterval)
	defer ticker.Stop()

	for {
		snapshot, changed, done := that.checkUpdate(ctx, session, playerID, knownFEN)
		if done {
			return snapshot, nil
		}

		select {
		case <-changed:
		case <-ticker.C:
			// re-run the opponent inactivity check
		case <-ceiling.C:
			return session.Snapshot(), nil
		case <-ctx.Done():
			return session.Snapshot(), nil
		}
	}
}

// checkUpdate decides whether the poll can be answered now. It returns the
// current snapshot, the channel to wait on otherwise, and whether to answer.
func (that *gamePlayService) checkUpdate(ctx context.Context, session *Session, playerID, knownFEN string) (*entity.Game, <-chan struct{}, bool) {
	session.mu.Lock()
	snapshot := session.game.Clone()
	changed := session.changed
	opponentSeen, opponentID, opponentColor := that.opponentActivity(session, playerID)
	session.mu.Unlock()

	if snapshot.IsFinished() || snapshot.IsWaiting() {
		return snapshot, changed, true
	}

	if opponentID != "" && time.Since(opponentSeen) > that.conf.PlayerTimeout {
		forfeited, err := that.Forfeit(ctx, snapshot.ID, opponentID,
			fmt.Sprintf("Opponent (%s) timed out. You win!", opponentColor))
		if err != nil {
			that.logger.Error("failed to forfeit timed out game", "gameID", snapshot.ID, "error", err)
			return snapshot, changed, true
		}
		return forfeited, changed, true
	}

	// a caller without a known state learns the current one right away
	if knownFEN == "" || snapshot.FEN != knownFEN {
		return snapshot, changed, true
	}

	return snapshot, changed, false
}

// opponentActivity reports when the caller's opponent last polled, falling
// back to the game's last activity for opponents that never polled.
// Callers hold the session lock.
func (that *gamePlayService) opponentActivity(session *Session, playerID string) (time.Time, string, string) {
	if playerID == "" || !session.game.IsOngoing() {
		return time.Time{}, "", ""
	}

	color, ok := session.game.ColorOf(playerID)
	if !ok {
		return time.Time{}, "", ""
	}

	opponentColor := entity.OpponentColor(color)
	opponentID := session.game.Players[opponentColor]
	if opponentID == "" {
		return time.Time{}, "", ""
	}

	seen, ok := session.lastSeenOf(opponentID)
	if !ok {
		seen = session.game.LastActivity
	}

	return seen, opponentID, opponentColor
}
