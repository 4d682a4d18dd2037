package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rocketscienceinc/chessmatch-backend/internal/chessengine"
	"github.com/rocketscienceinc/chessmatch-backend/internal/config"
	"github.com/rocketscienceinc/chessmatch-backend/internal/repository"
	"github.com/rocketscienceinc/chessmatch-backend/internal/repository/storage"
	"github.com/rocketscienceinc/chessmatch-backend/internal/service"
	"github.com/rocketscienceinc/chessmatch-backend/transport/rest"
	"github.com/rocketscienceinc/chessmatch-backend/transport/tcp"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.New(ctx, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	gameRepo := repository.NewGameRepository(redisStorage)
	registry := service.NewRegistry(logger, gameRepo, conf.Game.Retention())
	engine := chessengine.New()

	// Each transport owns its own lobby: a pairing always produces a game
	// whose both participants speak the same protocol, so the push transport
	// can reach both sides of every game it pairs. A shared lobby would let
	// an HTTP poller and a TCP connection end up in one game, with no way to
	// push STATE to the TCP side for moves applied over HTTP.
	restMatchmaker := service.NewMatchmakerService(logger, engine, registry)
	tcpMatchmaker := service.NewMatchmakerService(logger, engine, registry)

	gameplay := service.NewGamePlayService(logger, engine, registry, service.GamePlayConfig{
		PollInterval:  conf.Game.PollInterval(),
		PollCeiling:   conf.Game.PollCeiling(),
		PlayerTimeout: conf.Game.PlayerTimeout(),
	})

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		restServer := rest.New(logger, restMatchmaker, gameplay, conf.StaticDir)
		if httpErr := restServer.Start(ctx, conf.HTTPPort); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run TCP server
	tcpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting TCP server", "port", conf.TCPPort)
		tcpServer := tcp.New(logger, tcpMatchmaker, gameplay)
		if tcpErr := tcpServer.Start(ctx, conf.TCPPort); tcpErr != nil {
			log.Error("TCP server error", "error", tcpErr)
			tcpErrCh <- tcpErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-tcpErrCh:
		return fmt.Errorf("TCP server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}
