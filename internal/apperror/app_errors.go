package apperror

import "errors"

var (
	ErrGameNotFound     = errors.New("game not found")
	ErrGameFinished     = errors.New("game is already finished")
	ErrGameIsNotStarted = errors.New("game is not started")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrNotInGame        = errors.New("player is not part of this game")
	ErrMalformedMove    = errors.New("malformed move")
	ErrIllegalMove      = errors.New("illegal move")
)
