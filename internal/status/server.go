package status

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/idanmel/skyarena/internal/world"
)

// SessionCounter reports live control-channel sessions.
type SessionCounter interface {
	SessionCount() int
}

// Server is the operations HTTP endpoint: liveness plus a small snapshot of
// session and world counts. It never exposes the game protocol.
type Server struct {
	router *mux.Router
}

// StatusResponse is the /statusz payload.
type StatusResponse struct {
	Sessions     int `json:"sessions"`
	WorldPlayers int `json:"world_players"`
	BoundAddrs   int `json:"bound_addrs"`
}

// New creates the ops endpoint router.
func New(logger *slog.Logger, registry *world.Registry, sessions SessionCounter) *Server {
	router := mux.NewRouter()
	router.Use(recovery(logger))
	router.Use(logging(logger))

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	router.HandleFunc("/statusz", func(w http.ResponseWriter, r *http.Request) {
		players, bound := registry.Counts()
		resp := StatusResponse{
			Sessions:     sessions.SessionCount(),
			WorldPlayers: players,
			BoundAddrs:   bound,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}).Methods(http.MethodGet)

	return &Server{router: router}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
