package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/chessmatch-backend/internal/chessengine"
	"github.com/rocketscienceinc/chessmatch-backend/internal/entity"
	"github.com/rocketscienceinc/chessmatch-backend/internal/pkg"
)

const (
	JoinStatusWaiting = "waiting"
	JoinStatusStarted = "started"
)

// JoinResult is what a joining player learns: whether they wait or play, the
// game they are in, and the side they were assigned.
type JoinResult struct {
	Status string
	Color  string
	Game   *entity.Game
}

type MatchmakerService interface {
	Join(ctx context.Context, playerID string) (*JoinResult, error)
	CancelWaiting(ctx context.Context, playerID string) bool
}

// waitingTicket is the single pending unmatched player.
type waitingTicket struct {
	gameID   string
	playerID string
}

type matchmakerService struct {
	logger *slog.Logger
	engine chessengine.Engine

	registry *Registry

	mu      sync.Mutex
	waiting *waitingTicket
}

func NewMatchmakerService(logger *slog.Logger, engine chessengine.Engine, registry *Registry) MatchmakerService {
	return &matchmakerService{
		logger:   logger.With("component", "matchmaker"),
		engine:   engine,
		registry: registry,
	}
}

// Join pairs the caller with the waiting player, or makes the caller the
// waiting player. The first joiner of every pairing is seated as white.
// The ticket lock covers the pairing decision only, never storage or network.
func (that *matchmakerService) Join(ctx context.Context, playerID string) (*JoinResult, error) {
	log := that.logger.With("method", "Join", "playerID", playerID)

	that.mu.Lock()

	if that.waiting == nil {
		game := entity.NewGame(pkg.GenerateGameID(), that.engine.InitialFEN(), playerID)
		session := that.registry.Add(game)
		that.waiting = &waitingTicket{gameID: game.ID, playerID: playerID}
		that.mu.Unlock()

		snapshot := session.Snapshot()
		that.registry.Persist(ctx, snapshot)

		log.Info("player is waiting for an opponent", "gameID", game.ID)

		return &JoinResult{Status: JoinStatusWaiting, Color: entity.ColorWhite, Game: snapshot}, nil
	}

	if that.waiting.playerID == playerID {
		gameID := that.waiting.gameID
		that.mu.Unlock()

		// duplicate join from the waiting player: same answer, no new game
		session, err := that.registry.Get(ctx, gameID)
		if err != nil {
			return nil, err
		}

		return &JoinResult{Status: JoinStatusWaiting, Color: entity.ColorWhite, Game: session.Snapshot()}, nil
	}

	ticket := that.waiting
	that.waiting = nil
	that.mu.Unlock()

	session, err := that.registry.Get(ctx, ticket.gameID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	session.game.Players[entity.ColorBlack] = playerID
	session.game.Status = entity.StatusOngoing
	session.game.LastActivity = time.Now()
	snapshot := session.game.Clone()
	session.markChanged()
	session.mu.Unlock()

	that.registry.Persist(ctx, snapshot)

	log.Info("players matched", "gameID", snapshot.ID,
		"white", snapshot.Players[entity.ColorWhite], "black", snapshot.Players[entity.ColorBlack])

	return &JoinResult{Status: JoinStatusStarted, Color: entity.ColorBlack, Game: snapshot}, nil
}

// CancelWaiting clears the ticket if playerID is the unmatched waiter, and
// reports whether it did. The waiter's empty game is dropped with it.
func (that *matchmakerService) CancelWaiting(ctx context.Context, playerID string) bool {
	that.mu.Lock()

	if that.waiting == nil || that.waiting.playerID != playerID {
		that.mu.Unlock()
		return false
	}

	gameID := that.waiting.gameID
	that.waiting = nil
	that.mu.Unlock()

	that.registry.Remove(ctx, gameID)
	that.logger.Info("removed a waiting player from the lobby", "playerID", playerID, "gameID", gameID)

	return true
}
