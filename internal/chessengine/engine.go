package chessengine

import (
	"fmt"

	"github.com/notnil/chess"
	"github.com/rocketscienceinc/chessmatch-backend/internal/apperror"
	"github.com/rocketscienceinc/chessmatch-backend/internal/entity"
)

// Engine is the rules-engine boundary. The coordination core only forwards
// FEN strings through it and never inspects board internals.
type Engine interface {
	InitialFEN() string
	Turn(fen string) (string, error)
	LegalMoves(fen string) ([]string, error)
	ApplyMove(fen, move string) (string, error)
	IsTerminal(fen string) (bool, error)
	Outcome(fen string) (string, error)
}

type engine struct{}

func New() Engine {
	return &engine{}
}

func (that *engine) InitialFEN() string {
	return chess.NewGame().Position().String()
}

func (that *engine) Turn(fen string) (string, error) {
	pos, err := parseFEN(fen)
	if err != nil {
		return "", err
	}

	if pos.Turn() == chess.White {
		return entity.ColorWhite, nil
	}

	return entity.ColorBlack, nil
}

func (that *engine) LegalMoves(fen string) ([]string, error) {
	game, err := gameFromFEN(fen)
	if err != nil {
		return nil, err
	}

	valid := game.ValidMoves()
	moves := make([]string, 0, len(valid))
	for _, move := range valid {
		moves = append(moves, move.String())
	}

	return moves, nil
}

// ApplyMove validates move against the legal-move set of fen and returns the
// resulting FEN. The input state is never modified.
func (that *engine) ApplyMove(fen, move string) (string, error) {
	game, err := gameFromFEN(fen)
	if err != nil {
		return "", err
	}

	candidate, err := chess.UCINotation{}.Decode(game.Position(), move)
	if err != nil {
		return "", fmt.Errorf("%w: %s", apperror.ErrMalformedMove, move)
	}

	for _, legal := range game.ValidMoves() {
		if legal.String() != candidate.String() {
			continue
		}

		if err = game.Move(legal); err != nil {
			return "", fmt.Errorf("failed to apply move %s: %w", move, err)
		}

		return game.Position().String(), nil
	}

	return "", fmt.Errorf("%w: %s", apperror.ErrIllegalMove, move)
}

func (that *engine) IsTerminal(fen string) (bool, error) {
	pos, err := parseFEN(fen)
	if err != nil {
		return false, err
	}

	return pos.Status() != chess.NoMethod, nil
}

// Outcome describes a terminal position in human-readable form.
func (that *engine) Outcome(fen string) (string, error) {
	pos, err := parseFEN(fen)
	if err != nil {
		return "", err
	}

	switch pos.Status() {
	case chess.Checkmate:
		winner := entity.ColorBlack
		if pos.Turn() == chess.Black {
			winner = entity.ColorWhite
		}
		return fmt.Sprintf("Checkmate! %s wins.", capitalize(winner)), nil
	case chess.Stalemate:
		return "Draw by stalemate.", nil
	default:
		return "", fmt.Errorf("position is not terminal: %s", fen)
	}
}

func gameFromFEN(fen string) (*chess.Game, error) {
	option, err := chess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fen %q: %w", fen, err)
	}

	return chess.NewGame(option), nil
}

func parseFEN(fen string) (*chess.Position, error) {
	game, err := gameFromFEN(fen)
	if err != nil {
		return nil, err
	}

	return game.Position(), nil
}

func capitalize(color string) string {
	if color == "" {
		return color
	}

	return string(color[0]-'a'+'A') + color[1:]
}
