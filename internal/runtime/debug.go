package runtime

import (
	"net/http"

	"github.com/drblury/routewire/internal/runtime/jsoncodec"
)

func (e *Engine) registerDebugEndpoint() {
	if !e.Conf.DebugEnabled {
		return
	}

	port := e.Conf.DebugPort
	if port == 0 {
		port = 8081
	}

	e.RegisterHTTPHandler(port, "/api/routes", http.HandlerFunc(e.handleGetRoutes))
}

func (e *Engine) handleGetRoutes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := jsoncodec.Encode(w, e.Routes()); err != nil {
		e.Logger.Error("Failed to encode routes", err, nil)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
