package tcp

import (
	"log/slog"
	"net"
	"sync"

	"github.com/rocketscienceinc/chessmatch-backend/internal/pkg"
)

// client is one connected player. All outbound writes go through the out
// channel and a single writer goroutine, so a handler reacting to its own
// command and the opponent's handler broadcasting never interleave bytes on
// the socket.
type client struct {
	id     string
	gameID string

	conn net.Conn
	out  chan string

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(conn net.Conn) *client {
	return &client{
		id:   pkg.GenerateNewPlayerID(),
		conn: conn,
		out:  make(chan string, 16),
		done: make(chan struct{}),
	}
}

// send enqueues one protocol line for the writer goroutine. Sends to a closed
// client are dropped.
func (that *client) send(message string) {
	select {
	case that.out <- message:
	case <-that.done:
	}
}

func (that *client) writeLoop(logger *slog.Logger) {
	for {
		select {
		case message := <-that.out:
			if _, err := that.conn.Write([]byte(message + lineTerminator)); err != nil {
				logger.Warn("failed to write to client, closing", "clientID", that.id, "error", err)
				that.close()
				return
			}
		case <-that.done:
			return
		}
	}
}

func (that *client) close() {
	that.closeOnce.Do(func() {
		close(that.done)
		_ = that.conn.Close()
	})
}
