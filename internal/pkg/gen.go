package pkg

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/google/uuid"
)

// GenerateGameID - generates a unique identifier for a new game session.
func GenerateGameID() string {
	return uuid.NewString()
}

// GenerateNewPlayerID - generates an identity token for a connection that did
// not supply one (the push protocol carries no player ids).
func GenerateNewPlayerID() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "error-generating-player-id"
	}

	return base64.RawURLEncoding.EncodeToString(b)
}
