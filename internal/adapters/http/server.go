package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"threatscope/internal/domain"
	"threatscope/internal/ports"
	historysvc "threatscope/internal/services/history"
)

// Server exposes the analyzer and the history read side over HTTP.
// history may be nil when no database is configured; read routes then answer 503.
type Server struct {
	analyzer ports.Analyzer
	history  ports.History
	metrics  http.Handler
	log      logrus.FieldLogger
}

func New(analyzer ports.Analyzer, history ports.History, metrics http.Handler, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{analyzer: analyzer, history: history, metrics: metrics, log: log}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.requestLogger, middleware.Recoverer)

	r.Get("/healthz", s.getHealthz)
	r.Post("/analyze", s.postAnalyze)
	r.Route("/analyses", func(r chi.Router) {
		r.Get("/", s.getRecent)
		r.Get("/latest", s.getLatest)
		r.Get("/summary", s.getSummary)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

func (s *Server) getHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type analyzeRequest struct {
	URL string `json:"url"`
}

type analyzeResponse struct {
	domain.Report
	Warning string `json:"warning,omitempty"`
}

func (s *Server) postAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		s.writeError(w, r, &runtimeError{code: http.StatusBadRequest, msg: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.writeError(w, r, &runtimeError{code: http.StatusBadRequest, msg: "url is required"})
		return
	}

	rep, err := s.analyzer.Report(r.Context(), req.URL)
	var pe *domain.PersistenceError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, analyzeResponse{Report: rep})
	case errors.As(err, &pe):
		writeJSON(w, http.StatusOK, analyzeResponse{Report: rep, Warning: "analysis was not fully persisted"})
	default:
		s.writeError(w, r, err)
	}
}

type storedView struct {
	ID                string                `json:"id"`
	RegistrableDomain string                `json:"registrable_domain"`
	Analysis          domain.AnalysisRecord `json:"analysis"`
}

func toView(a domain.StoredAnalysis) storedView {
	return storedView{ID: a.ID, RegistrableDomain: a.RegistrableDomain, Analysis: a.Record}
}

func (s *Server) getRecent(w http.ResponseWriter, r *http.Request) {
	if !s.readable(w, r) {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, r, &runtimeError{code: http.StatusBadRequest, msg: "limit must be an integer"})
			return
		}
		limit = n
	}
	rows, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]storedView, 0, len(rows))
	for _, a := range rows {
		out = append(out, toView(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getLatest(w http.ResponseWriter, r *http.Request) {
	if !s.readable(w, r) {
		return
	}
	q := r.URL.Query()
	var (
		a   domain.StoredAnalysis
		err error
	)
	switch {
	case q.Get("url") != "":
		a, err = s.history.LatestForAddress(r.Context(), q.Get("url"))
	case q.Get("domain") != "":
		a, err = s.history.LatestForDomain(r.Context(), q.Get("domain"))
	default:
		err = historysvc.ErrInvalidQuery
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toView(a))
}

func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	if !s.readable(w, r) {
		return
	}
	counts, err := s.history.TierDistribution(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]map[domain.Tier]int{"risk_levels": counts})
}

func (s *Server) readable(w http.ResponseWriter, r *http.Request) bool {
	if s.history == nil {
		s.writeError(w, r, &runtimeError{code: http.StatusServiceUnavailable, msg: "history is unavailable without a database"})
		return false
	}
	return true
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"took":       time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Info("request")
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.WithError(err).WithField("request_id", middleware.GetReqID(r.Context())).Error("request failed")
	}
	writeJSON(w, code, map[string]string{"error": msg})
}

func statusFor(err error) (int, string) {
	var (
		re *runtimeError
		fe *domain.FetchError
	)
	switch {
	case errors.As(err, &re):
		return re.code, re.msg
	case errors.As(err, &fe):
		return http.StatusBadGateway, fe.Error()
	case errors.Is(err, historysvc.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, historysvc.ErrInvalidQuery):
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusInternalServerError, "internal error"
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type runtimeError struct {
	code int
	msg  string
}

func (e *runtimeError) Error() string { return e.msg }
