package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/apptreply/internal/dialogue"
	"github.com/wolfman30/apptreply/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/apptreply/internal/http/middleware"
	"github.com/wolfman30/apptreply/internal/observability/metrics"
	"github.com/wolfman30/apptreply/pkg/logging"
)

type echoService struct{}

func (echoService) HandleMessage(_ context.Context, id, text string) (dialogue.Result, error) {
	if id == "missing" {
		return dialogue.Result{}, dialogue.ErrAppointmentNotFound
	}
	return dialogue.Result{Reply: "echo: " + text, Outcome: dialogue.OutcomeFallback}, nil
}

func (echoService) Unlock(context.Context, string) error { return nil }

func newTestRouter(t *testing.T, limiter *httpmiddleware.RateLimiter) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.NewDialogueMetrics(reg)
	m.ObserveMessage("CONFIRM", "confirmed")

	logger := logging.Discard()
	return New(&Config{
		Logger:          logger,
		DialogueHandler: handlers.NewDialogueHandler(echoService{}, logger),
		MetricsHandler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		MessageLimiter:  limiter,
	})
}

func TestRouterHealthEndpoint(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestRouterMetricsEndpoint(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(t, nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "apptreply_dialogue_messages_total")
}

func TestRouterMessages(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/appointments/1/messages", strings.NewReader(`{"message":"oi"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "echo: oi")

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/appointments/missing/messages", strings.NewReader(`{"message":"oi"}`)))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/appointments/1/messages", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRouterThrottlesPerAppointment(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	router := newTestRouter(t, httpmiddleware.NewRateLimiter(ctx, 0, 1))

	send := func(id string) int {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/appointments/"+id+"/messages", strings.NewReader(`{"message":"oi"}`)))
		return rr.Code
	}
	assert.Equal(t, http.StatusOK, send("1"))
	assert.Equal(t, http.StatusTooManyRequests, send("1"))
	assert.Equal(t, http.StatusOK, send("2"))
}
