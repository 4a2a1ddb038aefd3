// Package backend is a development stand-in for the tutoring service. It
// serves the same endpoints the client uses, backed by a SQLite problem
// catalogue and template-rendered responses.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/codetrek/codetrek/internal/api"
	"github.com/codetrek/codetrek/internal/problems"
)

const defaultHistoryLimit = 50

// Server handles the tutoring API.
type Server struct {
	problems  *problems.Store
	history   *History
	responder *Responder
	logger    *clog.Logger
	server    *http.Server
}

// NewServer wires the handlers. logger may be nil.
func NewServer(ps *problems.Store, history *History, responder *Responder, logger *clog.Logger) *Server {
	if logger == nil {
		logger = clog.New(io.Discard)
	}
	s := &Server{
		problems:  ps,
		history:   history,
		responder: responder,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/ping/{$}", s.handlePing)
	mux.HandleFunc("GET /api/problem-by-topic/{$}", s.handleProblemByTopic)
	mux.HandleFunc("GET /api/problems/{$}", s.handleProblems)
	mux.HandleFunc("POST /api/guide-me/{$}", s.handleGuide)
	mux.HandleFunc("POST /api/evaluate-code/{$}", s.handleEvaluate)
	mux.HandleFunc("POST /api/chat/{$}", s.handleChat)
	mux.HandleFunc("GET /api/chat/history/{$}", s.handleHistory)

	s.server = &http.Server{
		Handler:           s.logRequests(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for use with httptest.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("backend: serving: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// --- Handlers ---

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.PingResponse{Message: "pong"})
}

func (s *Server) handleProblemByTopic(w http.ResponseWriter, r *http.Request) {
	topic := strings.TrimSpace(r.URL.Query().Get("topic"))
	difficulty := r.URL.Query().Get("difficulty")
	if difficulty == "" {
		difficulty = "Easy"
	}
	if topic == "" {
		writeError(w, http.StatusBadRequest, "Topic is required")
		return
	}

	p, err := s.problems.Pick(r.Context(), topic, difficulty)
	if errors.Is(err, problems.ErrNotFound) {
		writeError(w, http.StatusNotFound, "No matching questions found")
		return
	}
	if err != nil {
		s.logger.Error("problem lookup failed", "topic", topic, "err", err)
		writeError(w, http.StatusInternalServerError, "Problem lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, api.Problem{
		Title:       p.Title,
		Description: p.Description,
		Difficulty:  p.Difficulty,
		Topic:       p.Topic,
	})
}

func (s *Server) handleProblems(w http.ResponseWriter, r *http.Request) {
	list, err := s.problems.List(r.Context(), strings.TrimSpace(r.URL.Query().Get("topic")))
	if err != nil {
		s.logger.Error("problem listing failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Problem listing failed")
		return
	}
	out := make([]api.ProblemSummary, 0, len(list))
	for _, p := range list {
		out = append(out, api.ProblemSummary{ID: p.ID, Title: p.Title, Topic: p.Topic, Difficulty: p.Difficulty})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGuide(w http.ResponseWriter, r *http.Request) {
	var req api.GuideRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Title == "" || req.Description == "" {
		writeError(w, http.StatusBadRequest, "Title and description are required.")
		return
	}
	guide, err := s.responder.Guide(req.Title, req.Description, req.Difficulty)
	if err != nil {
		s.logger.Error("guide failed", "title", req.Title, "err", err)
		writeError(w, http.StatusInternalServerError, "Guidance failed")
		return
	}
	writeJSON(w, http.StatusOK, api.GuideResponse{Guide: guide})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req api.EvaluateRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Title == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "Title and code are required")
		return
	}
	feedback, err := s.responder.Evaluate(r.Context(), req.Title, req.Description, req.Code)
	if err != nil {
		s.logger.Error("evaluation failed", "title", req.Title, "err", err)
		writeError(w, http.StatusInternalServerError, "Evaluation failed")
		return
	}
	writeJSON(w, http.StatusOK, api.EvaluateResponse{Feedback: feedback})
}

type chatMessage struct {
	Content string `json:"content"`
}

type chatReply struct {
	UserMessage chatMessage `json:"user_message"`
	BotResponse chatMessage `json:"bot_response"`
	ID          string      `json:"id,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req api.ChatRequest
	if !readJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message cannot be empty")
		return
	}
	reply, err := s.responder.Chat(req.Message, req.Topic, req.Level)
	if err != nil {
		s.logger.Error("chat failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Chat failed")
		return
	}
	rec, err := s.history.Record(r.Context(), req.Message, reply, req.Topic, req.Level)
	if err != nil {
		// The reply is still useful without history.
		s.logger.Warn("recording chat failed", "err", err)
	}
	writeJSON(w, http.StatusOK, chatReply{
		UserMessage: chatMessage{Content: req.Message},
		BotResponse: chatMessage{Content: reply},
		ID:          rec.ID,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	recs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("history lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "History lookup failed")
		return
	}
	if recs == nil {
		recs = []api.ChatRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// --- Helpers ---

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "took", time.Since(start))
	})
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.ErrorBody{Error: msg})
}
