package tcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/rocketscienceinc/chessmatch-backend/internal/entity"
	"github.com/rocketscienceinc/chessmatch-backend/internal/service"
)

type matchmakerService interface {
	Join(ctx context.Context, playerID string) (*service.JoinResult, error)
	CancelWaiting(ctx context.Context, playerID string) bool
}

type gamePlayService interface {
	GetGame(ctx context.Context, gameID string) (*entity.Game, error)
	MakeTurn(ctx context.Context, gameID, playerID, move string) (*entity.Game, error)
	Forfeit(ctx context.Context, gameID, leaverID, outcome string) (*entity.Game, error)
}

// Server terminates the push-protocol transport: one goroutine per accepted
// connection, cross-connection delivery by enqueueing onto the recipient's
// outbound channel.
type Server struct {
	logger     *slog.Logger
	matchmaker matchmakerService
	gameplay   gamePlayService

	mu      sync.RWMutex
	clients map[string]*client // player id -> connection
}

func New(logger *slog.Logger, matchmaker matchmakerService, gameplay gamePlayService) *Server {
	return &Server{
		logger:     logger.With("component", "tcp"),
		matchmaker: matchmaker,
		gameplay:   gameplay,
		clients:    make(map[string]*client),
	}
}

// Start - starts the push-protocol server.
func (that *Server) Start(ctx context.Context, port string) error {
	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", port, err)
	}

	return that.serve(ctx, listener)
}

func (that *Server) serve(ctx context.Context, listener net.Listener) error {
	log := that.logger.With("method", "serve")

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	log.Info("push-protocol server listening", "addr", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}

			log.Error("failed to accept connection", "error", err)
			continue
		}

		go that.handleConnection(ctx, conn)
	}
}

// handleConnection runs one connection's read loop from accept to disconnect.
func (that *Server) handleConnection(ctx context.Context, conn net.Conn) {
	log := that.logger.With("method", "handleConnection", "remote", conn.RemoteAddr().String())

	connected := newClient(conn)
	go connected.writeLoop(that.logger)

	that.mu.Lock()
	that.clients[connected.id] = connected
	that.mu.Unlock()

	defer that.handleDisconnect(ctx, connected)

	log.Info("client connected", "clientID", connected.id)

	if err := that.handleJoin(ctx, connected); err != nil {
		log.Error("failed to join", "error", err)
		connected.send(msgError + " Could not join the lobby.")
		return
	}

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			log.Info("client read ended", "clientID", connected.id, "error", err)
			return
		}

		command := strings.TrimRight(line, "\r\n")
		if command == "" {
			continue
		}

		that.processCommand(ctx, connected, command)
	}
}

// handleJoin enters the caller into matchmaking. On pairing the START message
// goes to both sides: directly to this connection and via the outbound
// channel of the one that was waiting.
func (that *Server) handleJoin(ctx context.Context, connected *client) error {
	result, err := that.matchmaker.Join(ctx, connected.id)
	if err != nil {
		return fmt.Errorf("matchmaking failed: %w", err)
	}

	connected.gameID = result.Game.ID

	if result.Status == service.JoinStatusWaiting {
		connected.send(msgInfo + " Waiting for an opponent...")
		return nil
	}

	for color, playerID := range result.Game.Players {
		that.sendToPlayer(playerID, fmt.Sprintf("%s %s %s", msgStart, color, result.Game.FEN))
	}

	return nil
}

func (that *Server) processCommand(ctx context.Context, connected *client, command string) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return
	}

	if strings.ToUpper(fields[0]) != cmdMove {
		connected.send(msgError + " Unknown command.")
		return
	}

	if len(fields) != 2 {
		connected.send(msgError + " Usage: MOVE <move>")
		return
	}

	that.handleMove(ctx, connected, fields[1])
}

func (that *Server) handleDisconnect(ctx context.Context, connected *client) {
	log := that.logger.With("method", "handleDisconnect", "clientID", connected.id)

	that.mu.Lock()
	delete(that.clients, connected.id)
	that.mu.Unlock()

	connected.close()

	if that.matchmaker.CancelWaiting(ctx, connected.id) {
		log.Info("waiting client disconnected, ticket cleared")
		return
	}

	if connected.gameID == "" {
		return
	}

	game, err := that.gameplay.GetGame(ctx, connected.gameID)
	if err != nil || !game.IsOngoing() {
		return
	}

	forfeited, err := that.gameplay.Forfeit(ctx, connected.gameID, connected.id, "Your opponent has disconnected.")
	if err != nil {
		log.Error("failed to forfeit game after disconnect", "gameID", connected.gameID, "error", err)
		return
	}

	for _, playerID := range forfeited.Players {
		if playerID == connected.id {
			continue
		}
		that.sendToPlayer(playerID, msgGameEnd+" "+forfeited.Outcome)
	}

	log.Info("client disconnected mid-game, opponent notified", "gameID", connected.gameID)
}

func (that *Server) sendToPlayer(playerID, message string) {
	that.mu.RLock()
	recipient, ok := that.clients[playerID]
	that.mu.RUnlock()

	if !ok {
		that.logger.Warn("connection not found for player", "playerID", playerID)
		return
	}

	recipient.send(message)
}

// broadcast delivers one message to every participant of the game.
func (that *Server) broadcast(game *entity.Game, message string) {
	for _, playerID := range game.Players {
		if playerID == "" {
			continue
		}
		that.sendToPlayer(playerID, message)
	}
}
