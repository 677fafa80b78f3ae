package server

import (
	"embed"
	"net/http"
)

//go:embed static/index.html
var staticFS embed.FS

// handleIndex serves the embedded query editor page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "editor page unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}
