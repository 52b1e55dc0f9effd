package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"auto_social_post_publisher/pipeline"
)

const (
	maxStoredRuns = 50
	runTimeout    = 3 * time.Minute
)

// Runner is the part of the pipeline the server drives.
type Runner interface {
	Run(ctx context.Context) pipeline.Result
	Preview(ctx context.Context) pipeline.Result
}

type Server struct {
	runner Runner
	store  *runStore
	logger *zap.Logger
	// mu serializes runs: one post at a time, like a scheduled invocation.
	mu sync.Mutex
}

// runStore keeps the most recent results in memory, newest last.
type runStore struct {
	mu   sync.Mutex
	runs []pipeline.Result
}

func (s *runStore) add(res pipeline.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, res)
	if len(s.runs) > maxStoredRuns {
		s.runs = s.runs[len(s.runs)-maxStoredRuns:]
	}
}

func (s *runStore) get(id string) (pipeline.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.RunID == id {
			return r, true
		}
	}
	return pipeline.Result{}, false
}

// list returns results newest first.
func (s *runStore) list() []pipeline.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]pipeline.Result, 0, len(s.runs))
	for i := len(s.runs) - 1; i >= 0; i-- {
		out = append(out, s.runs[i])
	}
	return out
}

func New(runner Runner, logger *zap.Logger) (*Server, error) {
	if runner == nil {
		return nil, errors.New("pipeline runner required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		runner: runner,
		store:  &runStore{},
		logger: logger,
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/", s.handleRunByID)
	return s.logMiddleware(mux)
}

// --- Handlers ---

type runReq struct {
	DryRun bool `json:"dry_run"`
}

type runsResp struct {
	Runs []pipeline.Result `json:"runs"`
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, runsResp{Runs: s.store.list()})
	case http.MethodPost:
		var req runReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		res := s.trigger(r.Context(), req.DryRun)
		status := http.StatusOK
		if res.Status == pipeline.StatusFailed {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, res)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	res, ok := s.store.get(id)
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) trigger(ctx context.Context, dryRun bool) pipeline.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	var res pipeline.Result
	if dryRun {
		res = s.runner.Preview(ctx)
	} else {
		res = s.runner.Run(ctx)
	}
	s.store.add(res)
	return res
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}
