// internal/handlers/health.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/slithercade/server/internal/session"
)

// HealthHandler reports liveness plus the registry sizes.
func HealthHandler(m *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		players, lobbies := m.Counts()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": "Snake game server running",
			"players": players,
			"lobbies": lobbies,
		})
	}
}
