package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/chessmatch-backend/internal/chessengine"
	"github.com/rocketscienceinc/chessmatch-backend/internal/repository"
	"github.com/rocketscienceinc/chessmatch-backend/internal/service"
	"github.com/rocketscienceinc/chessmatch-backend/testing/suite"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	_, st := suite.New(t)

	gameRepo := repository.NewGameRepository(st.Storage)
	registry := service.NewRegistry(st.Logger, gameRepo, time.Minute)
	engine := chessengine.New()

	matchmaker := service.NewMatchmakerService(st.Logger, engine, registry)
	gameplay := service.NewGamePlayService(st.Logger, engine, registry, service.GamePlayConfig{
		PollInterval:  10 * time.Millisecond,
		PollCeiling:   500 * time.Millisecond,
		PlayerTimeout: time.Minute,
	})

	server := New(st.Logger, matchmaker, gameplay, "")

	return server.router()
}

func doGet(t *testing.T, router http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	body := map[string]any{}
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}

	return rec, body
}

func joinGame(t *testing.T, router http.Handler) (gameID string) {
	t.Helper()

	rec, body := doGet(t, router, "/api/join_game?player_id=alice")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, started := doGet(t, router, "/api/join_game?player_id=bob")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "started", started["status"])
	require.Equal(t, body["game_id"], started["game_id"])

	return body["game_id"].(string)
}

func TestHandleJoinGame(t *testing.T) {
	router := newTestRouter(t)

	// Given: an empty matchmaking slot.
	// When: the first player joins.
	rec, body := doGet(t, router, "/api/join_game?player_id=alice")

	// Then: they wait as white, with a game id but no position yet.
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "waiting", body["status"])
	require.Equal(t, "white", body["color"])
	require.NotEmpty(t, body["game_id"])
	require.NotContains(t, body, "fen")

	// When: a second player joins.
	rec, second := doGet(t, router, "/api/join_game?player_id=bob")

	// Then: the game starts, black is assigned and the position is the
	// standard starting one with white to move.
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "started", second["status"])
	require.Equal(t, "black", second["color"])
	require.Equal(t, body["game_id"], second["game_id"])
	require.Equal(t, startFEN, second["fen"])
	require.Equal(t, "white", second["turn"])
}

func TestHandleJoinGame_MissingPlayerID(t *testing.T) {
	router := newTestRouter(t)

	// When: joining without a player_id.
	rec, body := doGet(t, router, "/api/join_game")

	// Then: the request is rejected as malformed.
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, body["error"], "player_id")
}

func TestHandleMove(t *testing.T) {
	router := newTestRouter(t)

	// Given: a started game.
	gameID := joinGame(t, router)

	// When: white plays an opening move.
	rec, body := doGet(t, router, "/api/move?game_id="+gameID+"&player_id=alice&move=e2e4")

	// Then: the move is accepted and the turn passes to black.
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "update", body["status"])
	require.Equal(t, "black", body["turn"])
	require.NotEqual(t, startFEN, body["fen"])
	movedFEN := body["fen"].(string)

	// When: white tries to move again out of turn.
	rec, body = doGet(t, router, "/api/move?game_id="+gameID+"&player_id=alice&move=d2d4")

	// Then: the move is refused and the current position is echoed back.
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "Not your turn", body["error"])
	require.Equal(t, movedFEN, body["fen"])

	// When: black answers with an illegal move.
	rec, body = doGet(t, router, "/api/move?game_id="+gameID+"&player_id=bob&move=e7e4")

	// Then: the move is refused as illegal, again with the current position.
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Invalid or illegal move", body["error"])
	require.Equal(t, movedFEN, body["fen"])

	// When: black plays a legal reply.
	rec, body = doGet(t, router, "/api/move?game_id="+gameID+"&player_id=bob&move=e7e5")

	// Then: it is accepted and the turn returns to white.
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "white", body["turn"])
}

func TestHandleMove_MissingParams(t *testing.T) {
	router := newTestRouter(t)

	// When: calling move without the move parameter.
	rec, _ := doGet(t, router, "/api/move?game_id=g&player_id=alice")

	// Then: the request is rejected as malformed.
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMove_UnknownGame(t *testing.T) {
	router := newTestRouter(t)

	// When: moving in a game that does not exist.
	rec, _ := doGet(t, router, "/api/move?game_id=no-such-game&player_id=alice&move=e2e4")

	// Then: the session is reported as unknown.
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleMove_Outsider(t *testing.T) {
	router := newTestRouter(t)

	// Given: a started game between alice and bob.
	gameID := joinGame(t, router)

	// When: a third player tries to move in it.
	rec, body := doGet(t, router, "/api/move?game_id="+gameID+"&player_id=mallory&move=e2e4")

	// Then: they are refused.
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, body["error"], "not part of this game")
}

func TestHandleGetUpdate(t *testing.T) {
	router := newTestRouter(t)

	// Given: a started game.
	gameID := joinGame(t, router)

	// When: black polls while already knowing the current position, and
	// white moves shortly after.
	go func() {
		time.Sleep(50 * time.Millisecond)
		req := httptest.NewRequest(http.MethodGet, "/api/move?game_id="+gameID+"&player_id=alice&move=e2e4", nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}()

	started := time.Now()
	rec, body := doGet(t, router, "/api/get_update?game_id="+gameID+"&player_id=bob&fen="+queryEscape(startFEN))

	// Then: the poll is held until the move lands and answers with the new
	// position.
	require.Equal(t, http.StatusOK, rec.Code)
	require.GreaterOrEqual(t, time.Since(started), 40*time.Millisecond)
	require.Equal(t, "update", body["status"])
	require.NotEqual(t, startFEN, body["fen"])
	require.Equal(t, "black", body["turn"])
}

func TestHandleGetUpdate_StaleFENAnswersImmediately(t *testing.T) {
	router := newTestRouter(t)

	// Given: a game where white already moved.
	gameID := joinGame(t, router)
	rec, _ := doGet(t, router, "/api/move?game_id="+gameID+"&player_id=alice&move=e2e4")
	require.Equal(t, http.StatusOK, rec.Code)

	// When: black polls with the position from before the move.
	started := time.Now()
	rec, body := doGet(t, router, "/api/get_update?game_id="+gameID+"&player_id=bob&fen="+queryEscape(startFEN))

	// Then: the answer comes back without waiting for the ceiling.
	require.Equal(t, http.StatusOK, rec.Code)
	require.Less(t, time.Since(started), 200*time.Millisecond)
	require.NotEqual(t, startFEN, body["fen"])
}

func TestHandleGetUpdate_AnonymousPoll(t *testing.T) {
	router := newTestRouter(t)

	// Given: a game where white already moved.
	gameID := joinGame(t, router)
	rec, _ := doGet(t, router, "/api/move?game_id="+gameID+"&player_id=alice&move=e2e4")
	require.Equal(t, http.StatusOK, rec.Code)

	// When: polling without a player_id.
	rec, body := doGet(t, router, "/api/get_update?game_id="+gameID+"&fen="+queryEscape(startFEN))

	// Then: the current state is still observable.
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "update", body["status"])
	require.NotEqual(t, startFEN, body["fen"])
}

func TestHandleGetUpdate_UnknownGame(t *testing.T) {
	router := newTestRouter(t)

	// When: polling a game that does not exist.
	rec, _ := doGet(t, router, "/api/get_update?game_id=no-such-game&player_id=alice")

	// Then: the session is reported as unknown.
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	router := newTestRouter(t)

	// When: calling an API route with a method other than GET.
	req := httptest.NewRequest(http.MethodPost, "/api/move", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// Then: the request is rejected with 405 and the connection still closes.
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Equal(t, "close", rec.Header().Get("Connection"))
}

func TestConnectionCloseHeader(t *testing.T) {
	router := newTestRouter(t)

	// When: hitting any endpoint.
	rec, _ := doGet(t, router, "/ping")

	// Then: the response tells the client to close the connection.
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "close", rec.Header().Get("Connection"))
	require.Equal(t, "pong", rec.Body.String())
}

func queryEscape(s string) string {
	return url.QueryEscape(s)
}
