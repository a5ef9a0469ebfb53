package web

import (
	"io/fs"
	"net/http"
)

// RegisterRoutes registers all web GUI routes on the provided mux.
// Web routes serve HTML at / and /app/* paths.
// Static assets are served from the embedded filesystem at /static/*.
func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	// Static assets (embedded via go:embed).
	staticFS, _ := fs.Sub(StaticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	// Page routes.
	mux.HandleFunc("GET /{$}", h.Dashboard)
	mux.HandleFunc("GET /app/applications/{id}", h.ApplicationDetail)

	// Form actions. Each redirects back to the dashboard.
	mux.HandleFunc("POST /app/login", h.Login)
	mux.HandleFunc("POST /app/logout", h.Logout)
	mux.HandleFunc("POST /app/filter", h.Filter)
	mux.HandleFunc("POST /app/refresh", h.Refresh)
}
