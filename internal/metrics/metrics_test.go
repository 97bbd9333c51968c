package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentHandlerUsesRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/activities/{id}/approve", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("POST", "/api/activities/{id}/approve", "409"))

	h := InstrumentHandler(mux)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/activities/17/approve", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	after := testutil.ToFloat64(httpRequests.WithLabelValues("POST", "/api/activities/{id}/approve", "409"))
	assert.Equal(t, before+1, after)
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "unmatched", routeLabel(""))
	assert.Equal(t, "/health", routeLabel("GET /health"))
	assert.Equal(t, "/api/", routeLabel("/api/"))
}

func TestRecordOperationAndHandler(t *testing.T) {
	RecordOperation("approve", "ok", 20*time.Millisecond)
	RecordCoinsCredited(30)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `carecoins_lifecycle_operations_total{operation="approve",outcome="ok"}`))
	assert.True(t, strings.Contains(body, "carecoins_ledger_coins_credited_total"))
}
