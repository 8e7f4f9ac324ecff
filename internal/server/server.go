// Package server exposes the retrieval core over a small JSON HTTP API.
// Answer generation lives outside this module; the ask endpoint returns
// the gate decision and the ranked passages for an external generator.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/openhouse/property-assistant/internal/db"
	"github.com/openhouse/property-assistant/internal/documents"
	"github.com/openhouse/property-assistant/internal/gaps"
	"github.com/openhouse/property-assistant/internal/harness"
	"github.com/openhouse/property-assistant/internal/logger"
	"github.com/openhouse/property-assistant/internal/retrieval"
)

// Server wires the HTTP surface to the core components.
type Server struct {
	retriever *retrieval.Retriever
	gate      *retrieval.Gate
	pipeline  *documents.Pipeline
	gapStore  gaps.Store
	runner    *harness.Runner

	mux *http.ServeMux
}

// New creates a server over the core components. pipeline and gapStore
// may be nil; the matching endpoints then return 503.
func New(retriever *retrieval.Retriever, gate *retrieval.Gate, pipeline *documents.Pipeline, gapStore gaps.Store) *Server {
	s := &Server{
		retriever: retriever,
		gate:      gate,
		pipeline:  pipeline,
		gapStore:  gapStore,
		runner:    harness.NewRunner(retriever, gate),
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("/api/ask", s.handleAsk)
	s.mux.HandleFunc("/api/ingest", s.handleIngest)
	s.mux.HandleFunc("/api/gaps", s.handleGaps)
	s.mux.HandleFunc("/api/tests", s.handleTests)
	s.mux.HandleFunc("/api/health", s.handleHealth)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe runs the server on addr until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	logger.Info("listening on %s", addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

type scopeRequest struct {
	TenantID      string `json:"tenant_id"`
	SchemeID      string `json:"scheme_id"`
	HouseTypeCode string `json:"house_type_code,omitempty"`
}

func (sr scopeRequest) scope() (db.Scope, error) {
	tenantID, err := uuid.Parse(sr.TenantID)
	if err != nil {
		return db.Scope{}, errors.New("tenant_id must be a valid uuid")
	}
	schemeID, err := uuid.Parse(sr.SchemeID)
	if err != nil {
		return db.Scope{}, errors.New("scheme_id must be a valid uuid")
	}
	scope := db.Scope{
		TenantID:      tenantID,
		DevelopmentID: schemeID,
		HouseTypeCode: sr.HouseTypeCode,
	}
	return scope, scope.Validate()
}

type askRequest struct {
	scopeRequest
	Question  string  `json:"question"`
	TopK      int     `json:"top_k,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

type askResponse struct {
	Answerable    bool                `json:"answerable"`
	GapReason     string              `json:"gap_reason,omitempty"`
	TopSimilarity float64             `json:"top_similarity"`
	ChunksUsed    int                 `json:"chunks_used"`
	Passages      []retrieval.Passage `json:"passages"`
	// Context is the same passages pre-formatted as one prompt-ready
	// block for the external answer generator.
	Context string `json:"context,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	scope, err := req.scope()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	threshold := req.Threshold
	if threshold == 0 {
		threshold = -1
	}
	result, retrieveErr := s.retriever.Retrieve(r.Context(), scope, req.Question, req.TopK, threshold)
	if errors.Is(retrieveErr, retrieval.ErrEmptyQuery) {
		writeError(w, http.StatusBadRequest, retrieveErr.Error())
		return
	}

	decision := s.gate.Evaluate(scope, req.Question, result, retrieveErr)
	writeJSON(w, http.StatusOK, askResponse{
		Answerable:    decision.Answerable,
		GapReason:     decision.GapReason,
		TopSimilarity: decision.TopSimilarity,
		ChunksUsed:    len(decision.Chunks),
		Passages:      retrieval.Passages(decision.Chunks),
		Context:       retrieval.FormatContext(decision.Chunks, 0),
	})
}

type ingestRequest struct {
	scopeRequest
	Path string `json:"path"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	if s.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "ingestion is not configured")
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	scope, err := req.scope()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	result, err := s.pipeline.IngestFile(r.Context(), scope, req.Path)
	if err != nil {
		logger.Warn("ingest failed for %s: %v", req.Path, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type gapGroupResponse struct {
	UserQuestion string    `json:"user_question"`
	IntentType   string    `json:"intent_type"`
	GapReason    string    `json:"gap_reason"`
	SchemeID     uuid.UUID `json:"scheme_id"`
	Count        int       `json:"count"`
	LastAsked    time.Time `json:"last_asked"`
}

func (s *Server) handleGaps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	if s.gapStore == nil {
		writeError(w, http.StatusServiceUnavailable, "gap store is not configured")
		return
	}

	schemeID, err := optionalUUID(r.URL.Query().Get("schemeId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "schemeId must be a valid uuid")
		return
	}
	tenantID, err := optionalUUID(r.URL.Query().Get("tenantId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "tenantId must be a valid uuid")
		return
	}
	if schemeID == uuid.Nil && tenantID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "schemeId or tenantId is required")
		return
	}

	groups, err := gaps.ListGroups(r.Context(), s.gapStore, schemeID, tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]gapGroupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, gapGroupResponse{
			UserQuestion: g.UserQuestion,
			IntentType:   g.IntentType,
			GapReason:    g.GapReason,
			SchemeID:     g.SchemeID,
			Count:        g.Count,
			LastAsked:    g.LastAsked,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"gaps": out})
}

type testsRequest struct {
	scopeRequest
	Action     string   `json:"action"`
	Categories []string `json:"categories,omitempty"`
	TestIDs    []string `json:"test_ids,omitempty"`
	TestID     string   `json:"test_id,omitempty"`
	UnitID     string   `json:"unit_id,omitempty"`
}

func (s *Server) handleTests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleTestCatalog(w)
	case http.MethodPost:
		s.handleTestRun(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "GET or POST required")
	}
}

func (s *Server) handleTestCatalog(w http.ResponseWriter) {
	cases, err := harness.Suite()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	categories, err := harness.Categories()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": categories,
		"tests":      cases,
	})
}

func (s *Server) handleTestRun(w http.ResponseWriter, r *http.Request) {
	var req testsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	scope, err := req.scope()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch req.Action {
	case "run_suite", "":
		card, err := s.runner.RunSuite(r.Context(), scope, harness.Options{
			Categories: req.Categories,
			TestIDs:    req.TestIDs,
			UnitID:     req.UnitID,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"scorecard": card})
	case "run_single":
		tc, err := harness.FindCase(req.TestID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if tc == nil {
			writeError(w, http.StatusNotFound, "unknown test_id")
			return
		}
		result := s.runner.RunSingle(r.Context(), scope, *tc, req.UnitID)
		writeJSON(w, http.StatusOK, map[string]any{"result": result})
	default:
		writeError(w, http.StatusBadRequest, "action must be run_suite or run_single")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func optionalUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(raw)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
