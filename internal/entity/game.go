package entity

import (
	"fmt"
	"time"

	"github.com/rocketscienceinc/chessmatch-backend/internal/apperror"
)

const (
	StatusFinished = "finished"
	StatusOngoing  = "ongoing"
	StatusWaiting  = "waiting"

	ColorWhite = "white"
	ColorBlack = "black"
)

// Game holds the authoritative state of one chess session. The board itself
// is opaque to this package: FEN is replaced wholesale on every accepted move
// and Turn always mirrors what the rules engine reports for that FEN.
type Game struct {
	ID           string            `json:"id"`
	FEN          string            `json:"fen"`
	Turn         string            `json:"turn"`
	Status       string            `json:"status"`
	Outcome      string            `json:"outcome,omitempty"`
	Players      map[string]string `json:"players"` // color -> player id
	LastActivity time.Time         `json:"last_activity"`
}

func NewGame(id, initialFEN, playerID string) *Game {
	return &Game{
		ID:     id,
		FEN:    initialFEN,
		Turn:   ColorWhite,
		Status: StatusWaiting,
		Players: map[string]string{
			ColorWhite: playerID,
		},
		LastActivity: time.Now(),
	}
}

func OpponentColor(color string) string {
	if color == ColorWhite {
		return ColorBlack
	}
	return ColorWhite
}

// ColorOf reports which side the given player occupies.
func (that *Game) ColorOf(playerID string) (string, bool) {
	for color, id := range that.Players {
		if id == playerID && id != "" {
			return color, true
		}
	}
	return "", false
}

func (that *Game) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Game) IsOngoing() bool {
	return that.Status == StatusOngoing
}

func (that *Game) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Game) ConfirmOngoingState() error {
	switch {
	case that.IsWaiting():
		return apperror.ErrGameIsNotStarted
	case that.IsFinished():
		return apperror.ErrGameFinished
	case that.IsOngoing():
		return nil
	default:
		return fmt.Errorf("unknown game status: %s", that.Status)
	}
}

// Clone returns a deep copy. Handlers get copies so the session-owned state
// can only change under the session lock.
func (that *Game) Clone() *Game {
	copied := *that
	copied.Players = make(map[string]string, len(that.Players))
	for color, id := range that.Players {
		copied.Players[color] = id
	}
	return &copied
}

// Finish marks the game terminal with the given outcome description.
// Further moves must be rejected by callers via ConfirmOngoingState.
func (that *Game) Finish(outcome string) {
	that.Status = StatusFinished
	that.Outcome = outcome
	that.Turn = ""
	that.LastActivity = time.Now()
}
