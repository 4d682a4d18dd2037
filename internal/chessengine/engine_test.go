package chessengine

import (
	"testing"

	"github.com/rocketscienceinc/chessmatch-backend/internal/apperror"
	"github.com/rocketscienceinc/chessmatch-backend/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A classic stalemate: black to move, not in check, no legal moves.
const stalemateFEN = "k7/8/1Q6/8/8/8/8/7K b - - 0 1"

func foolsMate(t *testing.T, eng Engine) string {
	t.Helper()

	fen := eng.InitialFEN()
	for _, move := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		next, err := eng.ApplyMove(fen, move)
		require.NoError(t, err)
		fen = next
	}

	return fen
}

func TestEngine_InitialFEN(t *testing.T) {
	t.Run("Initial position has white to move and 20 legal moves", func(t *testing.T) {
		// Given: a fresh engine
		eng := New()
		fen := eng.InitialFEN()

		// When: querying turn and legal moves of the initial position
		turn, err := eng.Turn(fen)
		require.NoError(t, err)

		moves, err := eng.LegalMoves(fen)
		require.NoError(t, err)

		// Then: white moves first and the standard 20 openings are legal
		assert.Equal(t, entity.ColorWhite, turn)
		assert.Len(t, moves, 20)
		assert.Contains(t, moves, "e2e4")
	})
}

func TestEngine_ApplyMove(t *testing.T) {
	t.Run("Applying a legal move yields a new state with black to move", func(t *testing.T) {
		// Given: the initial position
		eng := New()
		fen := eng.InitialFEN()

		// When: white plays e2e4
		next, err := eng.ApplyMove(fen, "e2e4")

		// Then: the state is replaced and the turn passes to black
		require.NoError(t, err)
		assert.NotEqual(t, fen, next)

		turn, err := eng.Turn(next)
		require.NoError(t, err)
		assert.Equal(t, entity.ColorBlack, turn)
	})

	t.Run("Applying a move is deterministic", func(t *testing.T) {
		// Given: the initial position
		eng := New()
		fen := eng.InitialFEN()

		// When: the same move is applied to the same base state twice
		first, err := eng.ApplyMove(fen, "g1f3")
		require.NoError(t, err)
		second, err := eng.ApplyMove(fen, "g1f3")
		require.NoError(t, err)

		// Then: both applications produce the same resulting state
		assert.Equal(t, first, second)
	})

	t.Run("Returns ErrMalformedMove for unparseable text", func(t *testing.T) {
		// Given: the initial position
		eng := New()
		fen := eng.InitialFEN()

		// When: applying garbage move text
		_, err := eng.ApplyMove(fen, "xx99zz")

		// Then: the move is rejected as malformed
		assert.ErrorIs(t, err, apperror.ErrMalformedMove)
	})

	t.Run("Returns ErrIllegalMove for a well-formed but illegal move", func(t *testing.T) {
		// Given: the initial position
		eng := New()
		fen := eng.InitialFEN()

		// When: black's pawn tries to jump to e4 out of turn
		_, err := eng.ApplyMove(fen, "e7e4")

		// Then: the move is rejected as illegal
		assert.ErrorIs(t, err, apperror.ErrIllegalMove)
	})
}

func TestEngine_Terminal(t *testing.T) {
	t.Run("Fool's mate is terminal with black as the winner", func(t *testing.T) {
		// Given: the position after fool's mate
		eng := New()
		fen := foolsMate(t, eng)

		// When: querying termination and outcome
		terminal, err := eng.IsTerminal(fen)
		require.NoError(t, err)
		outcome, err := eng.Outcome(fen)
		require.NoError(t, err)

		// Then: the game is over and black wins by checkmate
		assert.True(t, terminal)
		assert.Equal(t, "Checkmate! Black wins.", outcome)

		// And: no further moves are legal
		moves, err := eng.LegalMoves(fen)
		require.NoError(t, err)
		assert.Empty(t, moves)
	})

	t.Run("Stalemate is terminal and described as a draw", func(t *testing.T) {
		// Given: a stalemate position
		eng := New()

		// When: querying termination and outcome
		terminal, err := eng.IsTerminal(stalemateFEN)
		require.NoError(t, err)
		outcome, err := eng.Outcome(stalemateFEN)
		require.NoError(t, err)

		// Then: the game is drawn
		assert.True(t, terminal)
		assert.Equal(t, "Draw by stalemate.", outcome)
	})

	t.Run("The initial position is not terminal", func(t *testing.T) {
		// Given: the initial position
		eng := New()

		// When: querying termination
		terminal, err := eng.IsTerminal(eng.InitialFEN())

		// Then: the game is still on
		require.NoError(t, err)
		assert.False(t, terminal)

		// And: asking for an outcome fails
		_, err = eng.Outcome(eng.InitialFEN())
		assert.Error(t, err)
	})
}
