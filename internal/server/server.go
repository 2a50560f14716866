// Package server exposes a transcript session over HTTP: live state,
// exports, analysis and event injection.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	transcript "github.com/koscakluka/ema-transcript/core"
	"github.com/koscakluka/ema-transcript/core/analysis"
	"github.com/koscakluka/ema-transcript/core/export"
	"github.com/koscakluka/ema-transcript/internal/archive"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxEventSize = 1 << 20

// Archive is the read side of the transcript archive.
type Archive interface {
	List(ctx context.Context, limit int) ([]archive.Summary, error)
	Get(ctx context.Context, id int64) (archive.Record, error)
}

type Server struct {
	session  *transcript.Session
	analyzer analysis.Analyzer
	archive  Archive
	now      func() time.Time
}

type ServerOption func(*Server)

// WithAnalyzer enables analysis. Without one POST /analysis answers with the
// failure report.
func WithAnalyzer(analyzer analysis.Analyzer) ServerOption {
	return func(s *Server) {
		s.analyzer = analyzer
	}
}

func WithArchive(archive Archive) ServerOption {
	return func(s *Server) {
		s.archive = archive
	}
}

func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

func New(session *transcript.Session, opts ...ServerOption) *Server {
	s := &Server{session: session, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router wrapped in otelhttp instrumentation.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/status", s.status)
	r.Get("/items", s.items)
	r.Get("/items/{id}", s.item)
	r.Get("/transcript.txt", s.transcriptText)
	r.Get("/transcript.pdf", s.transcriptPDF)
	r.Post("/analysis", s.analysis)
	r.Post("/events", s.injectEvent)

	if s.archive != nil {
		r.Route("/archive", func(r chi.Router) {
			r.Get("/", s.listArchive)
			r.Get("/{id}", s.getArchive)
		})
	}

	return otelhttp.NewHandler(r, "ema-transcript")
}

type statusResponse struct {
	SessionID       string `json:"session_id"`
	Generation      uint64 `json:"generation"`
	CallStatus      string `json:"call_status"`
	ExportAvailable bool   `json:"export_available"`
	Items           int    `json:"items"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		SessionID:       s.session.SessionID(),
		Generation:      s.session.Generation(),
		CallStatus:      string(s.session.CallStatus()),
		ExportAvailable: s.session.ExportAvailable(),
		Items:           len(s.session.Snapshot()),
	})
}

func (s *Server) items(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) item(w http.ResponseWriter, r *http.Request) {
	item, ok := s.session.Item(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) transcriptText(w http.ResponseWriter, r *http.Request) {
	if !s.exportAvailable(w) {
		return
	}

	body := export.Text(s.session.Snapshot())
	writeAttachment(w, "text/plain; charset=utf-8", export.Filename(export.TranscriptPrefix, "txt", s.now()), []byte(body))
}

func (s *Server) transcriptPDF(w http.ResponseWriter, r *http.Request) {
	if !s.exportAvailable(w) {
		return
	}

	now := s.now()
	var body bytes.Buffer
	if err := export.PDF(&body, s.session.Snapshot(), now); err != nil {
		logger.ErrorContext(r.Context(), "Failed to render transcript pdf", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to render transcript")
		return
	}
	writeAttachment(w, "application/pdf", export.Filename(export.TranscriptPrefix, "pdf", now), body.Bytes())
}

func (s *Server) analysis(w http.ResponseWriter, r *http.Request) {
	if !s.exportAvailable(w) {
		return
	}

	report := analysis.Run(r.Context(), s.analyzer, s.session.Snapshot())
	writeAttachment(w, "text/plain; charset=utf-8", export.Filename(export.AnalysisPrefix, "txt", s.now()), []byte(report))
}

func (s *Server) injectEvent(w http.ResponseWriter, r *http.Request) {
	msg, err := io.ReadAll(io.LimitReader(r.Body, maxEventSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed reading request body")
		return
	}

	if err := s.session.HandleRaw(r.Context(), msg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) listArchive(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	summaries, err := s.archive.List(r.Context(), limit)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to list archive", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list archive")
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) getArchive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid archive id")
		return
	}

	record, err := s.archive.Get(r.Context(), id)
	if errors.Is(err, archive.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	} else if err != nil {
		logger.ErrorContext(r.Context(), "Failed to read archive", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read archive")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) exportAvailable(w http.ResponseWriter) bool {
	if s.session.ExportAvailable() {
		return true
	}
	writeError(w, http.StatusConflict, "transcript is not available yet")
	return false
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.DebugContext(r.Context(), "Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
