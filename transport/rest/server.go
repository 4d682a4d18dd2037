package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rocketscienceinc/chessmatch-backend/internal/entity"
	"github.com/rocketscienceinc/chessmatch-backend/internal/service"
	"github.com/rocketscienceinc/chessmatch-backend/pkg/handlers"
)

type matchmakerService interface {
	Join(ctx context.Context, playerID string) (*service.JoinResult, error)
}

type gamePlayService interface {
	GetGame(ctx context.Context, gameID string) (*entity.Game, error)
	MakeTurn(ctx context.Context, gameID, playerID, move string) (*entity.Game, error)
	WaitUpdate(ctx context.Context, gameID, playerID, knownFEN string) (*entity.Game, error)
}

// Server terminates the long-poll HTTP transport. Every API response is
// answered with Connection: close, so no HTTP connection outlives its
// request/response exchange.
type Server struct {
	logger     *slog.Logger
	matchmaker matchmakerService
	gameplay   gamePlayService

	staticDir string
}

func New(logger *slog.Logger, matchmaker matchmakerService, gameplay gamePlayService, staticDir string) *Server {
	return &Server{
		logger:     logger.With("component", "rest"),
		matchmaker: matchmaker,
		gameplay:   gameplay,
		staticDir:  staticDir,
	}
}

// Start - starts the HTTP server.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     that.router(),
		ReadTimeout: 10 * time.Second,
		// long-poll requests are held up to the poll ceiling, so the write
		// timeout has to outlast it
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) router() *mux.Router {
	router := mux.NewRouter()
	router.Use(that.withCommonHeaders, that.withRequestLogging)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/join_game", that.handleJoinGame).Methods(http.MethodGet)
	api.HandleFunc("/get_update", that.handleGetUpdate).Methods(http.MethodGet)
	api.HandleFunc("/move", that.handleMove).Methods(http.MethodGet)

	router.HandleFunc("/ping", handlers.PingHandler).Methods(http.MethodGet)

	if that.staticDir != "" {
		router.PathPrefix("/").Handler(http.FileServer(http.Dir(that.staticDir))).Methods(http.MethodGet)
	}

	// mux middleware does not run for this handler, so the header is set here
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Connection", "close")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	return router
}

// withCommonHeaders closes the transport after every response.
func (that *Server) withCommonHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Connection", "close")
		w.Header().Set("Server", "chessmatch/1.0")
		next.ServeHTTP(w, r)
	})
}

func (that *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		that.logger.Info("request handled",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(started).String())
	})
}
