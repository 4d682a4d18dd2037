package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/chessmatch-backend/internal/entity"
)

type gameRepo interface {
	CreateOrUpdate(ctx context.Context, game *entity.Game) error
	GetByID(ctx context.Context, id string) (*entity.Game, error)
	ExpireByID(ctx context.Context, id string, ttl time.Duration) error
	DeleteByID(ctx context.Context, id string) error
}

// Session owns one game's authoritative state. All reads and writes of the
// embedded game go through mu, which is what serializes concurrent moves on
// the same session.
type Session struct {
	mu       sync.Mutex
	game     *entity.Game
	lastSeen map[string]time.Time
	changed  chan struct{}
}

func newSession(game *entity.Game) *Session {
	return &Session{
		game:     game,
		lastSeen: make(map[string]time.Time),
		changed:  make(chan struct{}),
	}
}

// Snapshot returns a copy of the current game state.
func (that *Session) Snapshot() *entity.Game {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.game.Clone()
}

// markChanged wakes every watcher. Callers must hold mu.
func (that *Session) markChanged() {
	close(that.changed)
	that.changed = make(chan struct{})
}

// Changed returns a channel that is closed on the next state change.
func (that *Session) Changed() <-chan struct{} {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.changed
}

// Touch records that the player was just seen polling.
func (that *Session) Touch(playerID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.lastSeen[playerID] = time.Now()
}

func (that *Session) lastSeenOf(playerID string) (time.Time, bool) {
	seen, ok := that.lastSeen[playerID]
	return seen, ok
}

// Registry maps game ids to live sessions. Lookups fall back to the redis
// snapshot so a game survives eviction of its in-memory session.
type Registry struct {
	logger   *slog.Logger
	gameRepo gameRepo

	retention time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry(logger *slog.Logger, gameRepo gameRepo, retention time.Duration) *Registry {
	return &Registry{
		logger:    logger.With("component", "registry"),
		gameRepo:  gameRepo,
		retention: retention,
		sessions:  make(map[string]*Session),
	}
}

// Add registers a freshly created game and returns its session.
func (that *Registry) Add(game *entity.Game) *Session {
	session := newSession(game)

	that.mu.Lock()
	that.sessions[game.ID] = session
	that.mu.Unlock()

	return session
}

// Get returns the live session for id, rehydrating it from storage when the
// in-memory entry is gone.
func (that *Registry) Get(ctx context.Context, id string) (*Session, error) {
	that.mu.RLock()
	session, ok := that.sessions[id]
	that.mu.RUnlock()

	if ok {
		return session, nil
	}

	game, err := that.gameRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	// another request may have rehydrated it first
	if session, ok = that.sessions[id]; ok {
		return session, nil
	}

	session = newSession(game)
	that.sessions[id] = session

	return session, nil
}

// Persist writes the game snapshot through to storage.
func (that *Registry) Persist(ctx context.Context, game *entity.Game) {
	if err := that.gameRepo.CreateOrUpdate(ctx, game); err != nil {
		that.logger.Error("failed to persist game", "gameID", game.ID, "error", err)
	}
}

// Retire schedules a finished session for eviction and puts the retention on
// its snapshot, so the registry does not grow for the process lifetime.
func (that *Registry) Retire(ctx context.Context, gameID string) {
	log := that.logger.With("method", "Retire", "gameID", gameID)

	if err := that.gameRepo.ExpireByID(ctx, gameID, that.retention); err != nil {
		log.Error("failed to expire game snapshot", "error", err)
	}

	time.AfterFunc(that.retention, func() {
		that.mu.Lock()
		delete(that.sessions, gameID)
		that.mu.Unlock()

		log.Info("finished session evicted")
	})
}

// Remove drops a session and its snapshot immediately. Used when the only
// participant of a waiting game goes away.
func (that *Registry) Remove(ctx context.Context, gameID string) {
	that.mu.Lock()
	delete(that.sessions, gameID)
	that.mu.Unlock()

	if err := that.gameRepo.DeleteByID(ctx, gameID); err != nil {
		that.logger.Error("failed to delete game", "gameID", gameID, "error", err)
	}
}
