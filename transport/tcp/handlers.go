package tcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/chessmatch-backend/internal/apperror"
)

// handleMove applies one MOVE command. Rejections go back to the sender only;
// accepted moves are pushed to both participants.
func (that *Server) handleMove(ctx context.Context, connected *client, move string) {
	log := that.logger.With("method", "handleMove", "clientID", connected.id, "move", move)

	if connected.gameID == "" {
		connected.send(msgError + " Not in a game.")
		return
	}

	game, err := that.gameplay.MakeTurn(ctx, connected.gameID, connected.id, move)
	if err != nil {
		connected.send(msgError + " " + moveRejectionReason(move, err))
		return
	}

	that.broadcast(game, msgState+" "+game.FEN)

	if game.IsFinished() {
		that.broadcast(game, msgGameEnd+" "+game.Outcome)
		log.Info("game finished", "gameID", game.ID, "outcome", game.Outcome)
		return
	}

	log.Info("move broadcast", "gameID", game.ID)
}

func moveRejectionReason(move string, err error) string {
	switch {
	case errors.Is(err, apperror.ErrGameNotFound),
		errors.Is(err, apperror.ErrGameIsNotStarted),
		errors.Is(err, apperror.ErrNotInGame):
		return "Not in a game."
	case errors.Is(err, apperror.ErrGameFinished):
		return "Game is already over."
	case errors.Is(err, apperror.ErrNotYourTurn):
		return "Not your turn."
	case errors.Is(err, apperror.ErrMalformedMove),
		errors.Is(err, apperror.ErrIllegalMove):
		return fmt.Sprintf("Invalid or illegal move: %s", move)
	default:
		return fmt.Sprintf("Could not process move %s", move)
	}
}
