package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"progression/internal/engine"
	"progression/internal/ledger"
	"progression/internal/metrics"
	"progression/internal/profile"
	"progression/internal/score"
)

// TokenHeader carries the shared ingest token of write requests.
const TokenHeader = "X-Ingest-Token"

// maxBodySize limits day metrics request bodies.
const maxBodySize = 1 << 20

// Engine is the part of the scoring engine served over HTTP.
type Engine interface {
	ScoreDay(ctx context.Context, m metrics.DayMetrics) (score.Entry, error)
	Backfill(ctx context.Context, m metrics.DayMetrics, reason string) (ledger.BackfillResult, error)
	Preview(ctx context.Context, m metrics.DayMetrics) (score.Entry, error)
	Ledger(ctx context.Context) (*ledger.Ledger, error)
	Entry(ctx context.Context, date string) (score.Entry, error)
	Profile(ctx context.Context) (profile.Profile, error)
}

// ApiV1Router manages routes for API version 1.
// Reads are open; writes require the ingest token.
type ApiV1Router struct {
	// engine — scoring engine over the persisted ledger.
	engine Engine
	// token — shared ingest token expected in TokenHeader.
	token string
}

// Mux returns a configured *http.ServeMux with registered handlers.
// Registers the following routes:
// - GET /api/v1/profile — latest derived profile
// - GET /api/v1/ledger — all entries and aggregates
// - GET /api/v1/entries/{date} — one entry
// - POST /api/v1/days — scores a new day
// - POST /api/v1/preview — computes a day without storing it
// - POST /api/v1/backfill?reason=... — corrects a past day
// - GET /metrics — Prometheus metrics
func (ar *ApiV1Router) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/profile", ar.profileHandler)
	mux.HandleFunc("GET /api/v1/ledger", ar.ledgerHandler)
	mux.HandleFunc("GET /api/v1/entries/{date}", ar.entryHandler)
	mux.HandleFunc("POST /api/v1/days", ar.authorized(ar.dayHandler))
	mux.HandleFunc("POST /api/v1/preview", ar.authorized(ar.previewHandler))
	mux.HandleFunc("POST /api/v1/backfill", ar.authorized(ar.backfillHandler))
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// authorized rejects requests without the ingest token.
func (ar *ApiV1Router) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(TokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(ar.token)) != 1 {
			slog.Warn("Rejected request without valid token", "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, errors.New("invalid ingest token"))
			return
		}
		next(w, r)
	}
}

func (ar *ApiV1Router) profileHandler(w http.ResponseWriter, r *http.Request) {
	p, err := ar.engine.Profile(r.Context())
	if err != nil {
		slog.Error("Unable to project profile", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (ar *ApiV1Router) ledgerHandler(w http.ResponseWriter, r *http.Request) {
	l, err := ar.engine.Ledger(r.Context())
	if err != nil {
		slog.Error("Unable to load ledger", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (ar *ApiV1Router) entryHandler(w http.ResponseWriter, r *http.Request) {
	e, err := ar.engine.Entry(r.Context(), r.PathValue("date"))
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// dayHandler handles POST requests with one day of metrics.
// 201 with the entry, 409 for duplicate or out-of-order dates, 422 for invalid input.
func (ar *ApiV1Router) dayHandler(w http.ResponseWriter, r *http.Request) {
	m, err := readMetrics(r)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}

	e, err := ar.engine.ScoreDay(r.Context(), m)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (ar *ApiV1Router) previewHandler(w http.ResponseWriter, r *http.Request) {
	m, err := readMetrics(r)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}

	e, err := ar.engine.Preview(r.Context(), m)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (ar *ApiV1Router) backfillHandler(w http.ResponseWriter, r *http.Request) {
	m, err := readMetrics(r)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}

	res, err := ar.engine.Backfill(r.Context(), m, r.URL.Query().Get("reason"))
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func readMetrics(r *http.Request) (metrics.DayMetrics, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return metrics.DayMetrics{}, metrics.NewInputError("", "unreadable body: %v", err)
	}
	return metrics.Decode(body)
}

// statusOf maps engine errors to HTTP statuses.
func statusOf(err error) int {
	var inputErr *metrics.InputError
	switch {
	case errors.As(err, &inputErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrDuplicateDate), errors.Is(err, ledger.ErrOutOfOrder):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrReasonRequired):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrLocked):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Unable to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// NewApiV1Router creates a new API v1 router.
// Parameters:
// - engine: scoring engine
// - token: shared ingest token for write endpoints
func NewApiV1Router(engine Engine, token string) *ApiV1Router {
	return &ApiV1Router{engine: engine, token: token}
}
