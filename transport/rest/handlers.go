package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rocketscienceinc/chessmatch-backend/internal/apperror"
	"github.com/rocketscienceinc/chessmatch-backend/internal/entity"
	"github.com/rocketscienceinc/chessmatch-backend/internal/service"
)

const (
	statusWaiting  = "waiting"
	statusStarted  = "started"
	statusUpdate   = "update"
	statusFinished = "finished"
)

type joinResponse struct {
	Status string `json:"status"`
	GameID string `json:"game_id"`
	Color  string `json:"color"`
	FEN    string `json:"fen,omitempty"`
	Turn   string `json:"turn,omitempty"`
}

type gameStateResponse struct {
	Status  string `json:"status"`
	FEN     string `json:"fen"`
	Turn    string `json:"turn,omitempty"`
	Outcome string `json:"outcome,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	FEN   string `json:"fen,omitempty"`
}

// handleJoinGame seats the caller into a session: the first joiner opens a
// new game and waits, the second one starts it.
func (that *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("player_id")
	if playerID == "" {
		that.writeError(w, http.StatusBadRequest, "player_id is required", "")
		return
	}

	result, err := that.matchmaker.Join(r.Context(), playerID)
	if err != nil {
		that.logger.Error("failed to join game", "error", err)
		that.writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}

	resp := joinResponse{
		GameID: result.Game.ID,
		Color:  result.Color,
	}

	if result.Status == service.JoinStatusStarted {
		resp.Status = statusStarted
		resp.FEN = result.Game.FEN
		resp.Turn = result.Game.Turn
	} else {
		resp.Status = statusWaiting
	}

	that.writeJSON(w, http.StatusOK, resp)
}

// handleGetUpdate is the long-poll endpoint: it holds the request open until
// the position no longer matches the fen the caller already knows, the game
// ends, or the poll ceiling elapses.
func (that *Server) handleGetUpdate(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	gameID := query.Get("game_id")
	if gameID == "" {
		that.writeError(w, http.StatusBadRequest, "game_id is required", "")
		return
	}

	// player_id is optional here: anonymous polls still observe the state,
	// they just don't feed the inactivity tracking
	game, err := that.gameplay.WaitUpdate(r.Context(), gameID, query.Get("player_id"), query.Get("fen"))
	if err != nil {
		that.writeServiceError(r.Context(), w, gameID, err)
		return
	}

	that.writeJSON(w, http.StatusOK, stateOf(game))
}

// handleMove applies one move and answers with the resulting position. The
// opponent learns about it through their own pending get_update request.
func (that *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	gameID := query.Get("game_id")
	playerID := query.Get("player_id")
	move := query.Get("move")

	if gameID == "" || playerID == "" || move == "" {
		that.writeError(w, http.StatusBadRequest, "game_id, player_id and move are required", "")
		return
	}

	game, err := that.gameplay.MakeTurn(r.Context(), gameID, playerID, move)
	if err != nil {
		that.writeServiceError(r.Context(), w, gameID, err)
		return
	}

	that.writeJSON(w, http.StatusOK, stateOf(game))
}

func stateOf(game *entity.Game) gameStateResponse {
	resp := gameStateResponse{
		FEN:  game.FEN,
		Turn: game.Turn,
	}

	switch {
	case game.IsFinished():
		resp.Status = statusFinished
		resp.Outcome = game.Outcome
	case game.IsWaiting():
		resp.Status = statusWaiting
	default:
		resp.Status = statusUpdate
	}

	return resp
}

// writeServiceError maps gameplay errors onto HTTP statuses. Rejections that
// leave the game in play carry the current fen so the client can resync.
func (that *Server) writeServiceError(ctx context.Context, w http.ResponseWriter, gameID string, err error) {
	switch {
	case errors.Is(err, apperror.ErrGameNotFound):
		that.writeError(w, http.StatusNotFound, "game not found", "")
	case errors.Is(err, apperror.ErrNotYourTurn):
		that.writeError(w, http.StatusForbidden, "Not your turn", that.currentFEN(ctx, gameID))
	case errors.Is(err, apperror.ErrNotInGame):
		that.writeError(w, http.StatusForbidden, "You are not part of this game", "")
	case errors.Is(err, apperror.ErrMalformedMove), errors.Is(err, apperror.ErrIllegalMove):
		that.writeError(w, http.StatusBadRequest, "Invalid or illegal move", that.currentFEN(ctx, gameID))
	case errors.Is(err, apperror.ErrGameIsNotStarted):
		that.writeError(w, http.StatusBadRequest, "Game has not started yet", "")
	case errors.Is(err, apperror.ErrGameFinished):
		that.writeError(w, http.StatusBadRequest, "Game is already over", that.currentFEN(ctx, gameID))
	default:
		that.logger.Error("failed to process request", "game_id", gameID, "error", err)
		that.writeError(w, http.StatusInternalServerError, "internal error", "")
	}
}

// currentFEN is best effort: an empty string just omits the field.
func (that *Server) currentFEN(ctx context.Context, gameID string) string {
	game, err := that.gameplay.GetGame(ctx, gameID)
	if err != nil {
		return ""
	}

	return game.FEN
}

func (that *Server) writeError(w http.ResponseWriter, status int, message, fen string) {
	that.writeJSON(w, status, errorResponse{Error: message, FEN: fen})
}

func (that *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		that.logger.Error("failed to encode response", "error", err)
	}
}
