package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ToolConfigHandler serves GET /lti/config/{id}, the XML a consumer imports
// to install the tool.
func ToolConfigHandler(tools ToolConfigs) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "bad id", http.StatusBadRequest)
			return
		}
		cfg, ok := tools.Tool(id)
		if !ok {
			http.NotFound(w, r)
			return
		}
		body, err := cfg.CartridgeXML()
		if err != nil {
			log.Ctx(r.Context()).Error().Err(err).Int64("tool_id", id).Msg("tool.config.render")
			http.Error(w, "render failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.Header().Set("Cache-Control", "max-age=900")
		_, _ = w.Write(body)
	}
}
