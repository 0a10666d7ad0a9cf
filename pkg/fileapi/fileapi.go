package fileapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// API implements the HTTP surface described above Config.
type API struct {
	config Config
}

// New validates cfg and constructs an API.
func New(cfg Config) (*API, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &API{config: cfg}, nil
}

// Mux returns an http.Handler routing every /api/ endpoint, using the
// same Go 1.22+ ServeMux method+wildcard patterns pkg/handler.Mux uses.
func (a *API) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+a.config.BasePath+"files", a.listFiles)
	mux.HandleFunc("GET "+a.config.BasePath+"files/{id}", a.getFile)
	mux.HandleFunc("GET "+a.config.BasePath+"files/{id}/info/download", a.downloadInfo)
	mux.HandleFunc("GET "+a.config.BasePath+"files/{id}/download", a.download)
	mux.HandleFunc("DELETE "+a.config.BasePath+"files/{id}", a.deleteFile)
	mux.HandleFunc("POST "+a.config.BasePath+"files/cleanup", a.cleanupNow)
	mux.HandleFunc("GET "+a.config.BasePath+"storage", a.storageStatus)
	mux.HandleFunc("GET "+a.config.BasePath+"health", a.health)

	return a.logRequests(mux)
}

// logRequests wraps every request with a structured start/finish log
// line, mirroring pkg/handler's middleware without taking on its
// TUS-specific version precondition and deadline plumbing.
func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := a.config.Logger.With("method", r.Method, "path", r.URL.Path)
		log.Info("RequestIncoming")
		next.ServeHTTP(w, r)
		log.Info("ResponseOutgoing")
	})
}

// apiError is the JSON shape every non-2xx response from this package
// takes, the fileapi analogue of pkg/handler.Error.
type apiError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (a *API) writeError(w http.ResponseWriter, log *slog.Logger, status int, code, message string) {
	if status >= 500 {
		log.Error(code, "message", message)
	}
	a.writeJSON(w, status, apiError{Code: code, Message: message})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
