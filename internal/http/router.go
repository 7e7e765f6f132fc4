package httpserver

import "net/http"

// Routes groups handlers.
type Routes struct {
	Sessions       http.HandlerFunc
	ActiveSessions http.HandlerFunc
	Fills          http.HandlerFunc
	Anomalies      http.HandlerFunc
	AnomalyResolve http.HandlerFunc
	AnomalyScan    http.HandlerFunc
	Telemetry      http.HandlerFunc
	Health         http.HandlerFunc
}

// NewRouter registers endpoints. auth, when non-nil, wraps the read/write API
// surface; the telemetry ingest and health endpoints stay open.
func NewRouter(routes Routes, auth func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()

	api := func(expected string, handler http.HandlerFunc) http.Handler {
		var h http.Handler = method(expected, handler)
		if auth != nil {
			h = auth(h)
		}
		return h
	}

	if routes.Sessions != nil {
		mux.Handle("/api/sessions", api(http.MethodGet, routes.Sessions))
	}
	if routes.ActiveSessions != nil {
		mux.Handle("/api/sessions/active", api(http.MethodGet, routes.ActiveSessions))
	}
	if routes.Fills != nil {
		mux.Handle("/api/fills", api(http.MethodGet, routes.Fills))
	}
	if routes.Anomalies != nil {
		mux.Handle("/api/anomalies", api(http.MethodGet, routes.Anomalies))
	}
	if routes.AnomalyResolve != nil {
		mux.Handle("/api/anomalies/resolve", api(http.MethodPost, routes.AnomalyResolve))
	}
	if routes.AnomalyScan != nil {
		mux.Handle("/api/anomalies/scan", api(http.MethodPost, routes.AnomalyScan))
	}
	if routes.Telemetry != nil {
		mux.Handle("/ws/telemetry", routes.Telemetry)
	}
	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health))
	}
	return mux
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}
