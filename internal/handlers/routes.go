package handlers

import (
	"net/http"

	"carecoins/internal/metrics"
)

// NewRouter registers every route and wraps the mux in the middleware chain.
// Metrics instrumentation sits directly on the mux so it sees the matched
// route pattern.
func NewRouter(m *Middleware, health *HealthHandler, families *FamilyHandler, activities *ActivityHandler) http.Handler {
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("GET /health", health.Health)
	mux.Handle("GET /metrics", metrics.Handler())

	// Families
	mux.HandleFunc("GET /api/families", m.RequireAuth(families.List))
	mux.HandleFunc("POST /api/families", m.RequireAuth(families.Create))
	mux.HandleFunc("POST /api/families/{id}/join", m.RequireAuth(families.Join))
	mux.HandleFunc("GET /api/families/{id}/ledger", m.RequireAuth(families.Ledger))
	mux.HandleFunc("GET /api/families/{id}/ledger/reconcile", m.RequireAuth(families.Reconcile))

	// Activities
	mux.HandleFunc("GET /api/activities", m.RequireAuth(activities.List))
	mux.HandleFunc("POST /api/activities", m.RequireAuth(activities.Propose))
	mux.HandleFunc("POST /api/activities/{id}/approve", m.RequireAuth(activities.Approve))

	var handler http.Handler = metrics.InstrumentHandler(mux)
	handler = m.RateLimit(handler)
	handler = m.Recover(handler)
	handler = m.Logging(handler)
	return handler
}
