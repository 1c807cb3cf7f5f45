package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ekagra1602/NeuraVault-MCP/config"
	"github.com/ekagra1602/NeuraVault-MCP/pkg/api/events"
	"github.com/ekagra1602/NeuraVault-MCP/pkg/api/middleware"
	"github.com/ekagra1602/NeuraVault-MCP/pkg/api/response"
	"github.com/ekagra1602/NeuraVault-MCP/pkg/memory"
)

// MemoryHandler handles memory timeline and retrieval endpoints.
type MemoryHandler struct {
	engine      *memory.Engine
	retrieval   config.RetrievalConfig
	broadcaster *events.Broadcaster
	logger      memoryLogger
	metrics     StoreMetricsRecorder
	storeType   string
}

type memoryLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// StoreMetricsRecorder counts store mutations.
type StoreMetricsRecorder interface {
	RecordItemStored(backend string)
	RecordItemsDeleted(n int)
}

// NewMemoryHandler creates a new memory handler. The broadcaster is
// optional; pass nil to disable event emission.
func NewMemoryHandler(engine *memory.Engine, retrieval config.RetrievalConfig, broadcaster *events.Broadcaster, log memoryLogger) *MemoryHandler {
	return &MemoryHandler{
		engine:      engine,
		retrieval:   retrieval,
		broadcaster: broadcaster,
		logger:      log,
	}
}

// WithStoreMetrics attaches a mutation counter. Returns the handler for
// chaining at construction time.
func (h *MemoryHandler) WithStoreMetrics(m StoreMetricsRecorder, storeType string) *MemoryHandler {
	h.metrics = m
	h.storeType = storeType
	return h
}

// --- Request/Response types ---

type storeRequest struct {
	LLM     string `json:"llm"`
	Content string `json:"content"`
}

type storeResponse struct {
	Stored bool   `json:"stored"`
	UserID string `json:"user_id"`
}

type itemsResponse struct {
	Items []memory.MemoryItem `json:"items"`
	Count int                 `json:"count"`
}

type packResponse struct {
	Items   []memory.MemoryItem `json:"items"`
	Context string              `json:"context"`
	Chars   int                 `json:"chars"`
}

type deleteResponse struct {
	Deleted int `json:"deleted"`
}

// getRequestID extracts the request ID from context.
func getRequestID(ctx context.Context) string {
	if id := middleware.GetRequestID(ctx); id != "" {
		return id
	}
	return "unknown"
}

// StoreMemory handles POST /api/v1/memory/{userID}
func (h *MemoryHandler) StoreMemory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	if userID == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "User ID is required", getRequestID(ctx))
		return
	}

	var req storeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}

	if req.Content == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Content is required", getRequestID(ctx))
		return
	}
	if req.LLM == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "LLM name is required", getRequestID(ctx))
		return
	}

	item := memory.MemoryItem{
		UserID:  userID,
		LLM:     req.LLM,
		Content: req.Content,
	}
	if err := h.engine.Append(ctx, item); err != nil {
		h.logger.Error("Failed to store memory", "user_id", userID, "error", err)
		response.HandleError(w, err, getRequestID(ctx))
		return
	}

	if h.broadcaster != nil {
		h.broadcaster.BroadcastMemoryStored(userID, req.LLM, req.Content, time.Now().UTC())
	}
	if h.metrics != nil {
		h.metrics.RecordItemStored(h.storeType)
	}

	response.JSON(w, http.StatusCreated, storeResponse{Stored: true, UserID: userID})
}

// GetTimeline handles GET /api/v1/memory/{userID}
func (h *MemoryHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	if userID == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "User ID is required", getRequestID(ctx))
		return
	}

	items, err := h.engine.Timeline(ctx, userID)
	if err != nil {
		h.logger.Error("Failed to fetch timeline", "user_id", userID, "error", err)
		response.HandleError(w, err, getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, itemsResponse{Items: items, Count: len(items)})
}

// SearchMemory handles GET /api/v1/memory/{userID}/search
func (h *MemoryHandler) SearchMemory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	if userID == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "User ID is required", getRequestID(ctx))
		return
	}

	q := r.URL.Query().Get("q")
	if q == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Query parameter q is required", getRequestID(ctx))
		return
	}

	items, err := h.engine.Search(ctx, userID, q, r.URL.Query().Get("llm"))
	if err != nil {
		h.logger.Error("Failed to search memory", "user_id", userID, "error", err)
		response.HandleError(w, err, getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, itemsResponse{Items: items, Count: len(items)})
}

// Relevant handles GET /api/v1/memory/{userID}/relevant
func (h *MemoryHandler) Relevant(w http.ResponseWriter, r *http.Request) {
	h.serveRanked(w, r, func(ctx context.Context, userID string, q memory.Query) ([]memory.MemoryItem, error) {
		return h.engine.Relevant(ctx, userID, q)
	})
}

// RelevantDiverse handles GET /api/v1/memory/{userID}/relevant_diverse
func (h *MemoryHandler) RelevantDiverse(w http.ResponseWriter, r *http.Request) {
	h.serveRanked(w, r, func(ctx context.Context, userID string, q memory.Query) ([]memory.MemoryItem, error) {
		return h.engine.RelevantDiverse(ctx, userID, q)
	})
}

// RelevantDecay handles GET /api/v1/memory/{userID}/relevant_decay
func (h *MemoryHandler) RelevantDecay(w http.ResponseWriter, r *http.Request) {
	h.serveRanked(w, r, func(ctx context.Context, userID string, q memory.Query) ([]memory.MemoryItem, error) {
		return h.engine.RelevantTimeDecay(ctx, userID, q)
	})
}

// RelevantWindow handles GET /api/v1/memory/{userID}/relevant_window
func (h *MemoryHandler) RelevantWindow(w http.ResponseWriter, r *http.Request) {
	h.serveRanked(w, r, func(ctx context.Context, userID string, q memory.Query) ([]memory.MemoryItem, error) {
		return h.engine.RelevantWindow(ctx, userID, q)
	})
}

// serveRanked validates shared ranking parameters and delegates to the
// selected engine strategy.
func (h *MemoryHandler) serveRanked(w http.ResponseWriter, r *http.Request, retrieve func(context.Context, string, memory.Query) ([]memory.MemoryItem, error)) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	if userID == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "User ID is required", getRequestID(ctx))
		return
	}

	q, err := h.parseQuery(r.URL.Query())
	if err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, err.Error(), getRequestID(ctx))
		return
	}

	items, err := retrieve(ctx, userID, q)
	if err != nil {
		h.logger.Error("Failed to retrieve memories", "user_id", userID, "error", err)
		response.HandleError(w, err, getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, itemsResponse{Items: items, Count: len(items)})
}

// RelevantPack handles GET /api/v1/memory/{userID}/relevant_pack
func (h *MemoryHandler) RelevantPack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	if userID == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "User ID is required", getRequestID(ctx))
		return
	}

	values := r.URL.Query()
	q, err := h.parseQuery(values)
	if err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, err.Error(), getRequestID(ctx))
		return
	}

	budget := h.retrieval.MaxBudgetChars
	if raw := values.Get("budget_chars"); raw != "" {
		budget, err = strconv.Atoi(raw)
		if err != nil || budget < 1 || budget > h.retrieval.MaxBudgetChars {
			response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed,
				fmt.Sprintf("budget_chars must be an integer in [1, %d]", h.retrieval.MaxBudgetChars), getRequestID(ctx))
			return
		}
	}

	strategy, err := memory.ParseStrategy(values.Get("strategy"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, err.Error(), getRequestID(ctx))
		return
	}

	multiplier := h.retrieval.CandidateMultiplier
	if raw := values.Get("candidate_multiplier"); raw != "" {
		multiplier, err = strconv.Atoi(raw)
		if err != nil || multiplier < 1 {
			response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "candidate_multiplier must be a positive integer", getRequestID(ctx))
			return
		}
	}

	pq := memory.PackQuery{
		Query:               q,
		BudgetChars:         budget,
		Strategy:            strategy,
		CandidateMultiplier: multiplier,
		Separator:           values.Get("separator"),
	}

	items, packed, err := h.engine.RelevantPack(ctx, userID, pq)
	if err != nil {
		h.logger.Error("Failed to pack memories", "user_id", userID, "error", err)
		response.HandleError(w, err, getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, packResponse{Items: items, Context: packed, Chars: len([]rune(packed))})
}

// GetStats handles GET /api/v1/memory/{userID}/stats
func (h *MemoryHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	if userID == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "User ID is required", getRequestID(ctx))
		return
	}

	stats, err := h.engine.GetStats(ctx, userID)
	if err != nil {
		h.logger.Error("Failed to get memory stats", "user_id", userID, "error", err)
		response.HandleError(w, err, getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, stats)
}

// DeleteAll handles DELETE /api/v1/memory/{userID}
func (h *MemoryHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	if userID == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "User ID is required", getRequestID(ctx))
		return
	}

	count, err := h.engine.DeleteAll(ctx, userID)
	if err != nil {
		h.logger.Error("Failed to delete memories", "user_id", userID, "error", err)
		response.HandleError(w, err, getRequestID(ctx))
		return
	}

	if h.broadcaster != nil {
		h.broadcaster.BroadcastMemoryDeleted(userID, count)
	}
	if h.metrics != nil {
		h.metrics.RecordItemsDeleted(count)
	}

	response.JSON(w, http.StatusOK, deleteResponse{Deleted: count})
}

// ListUsers handles GET /api/v1/users
func (h *MemoryHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	counts, err := h.engine.UserCounts(ctx)
	if err != nil {
		h.logger.Error("Failed to list users", "error", err)
		response.HandleError(w, err, getRequestID(ctx))
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"users": counts,
		"count": len(counts),
	})
}

// parseQuery extracts and validates the shared ranking parameters.
func (h *MemoryHandler) parseQuery(values url.Values) (memory.Query, error) {
	q := memory.Query{
		Prompt:        values.Get("prompt"),
		LLM:           values.Get("llm"),
		K:             h.retrieval.DefaultK,
		LambdaMult:    h.retrieval.DefaultLambda,
		HalfLifeHours: h.retrieval.DefaultHalfLifeHours,
	}

	if raw := values.Get("k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil || k < 1 || k > h.retrieval.MaxK {
			return q, fmt.Errorf("k must be an integer in [1, %d]", h.retrieval.MaxK)
		}
		q.K = k
	}

	if raw := values.Get("min_score"); raw != "" {
		minScore, err := strconv.ParseFloat(raw, 64)
		if err != nil || minScore < 0 || minScore > 1 {
			return q, fmt.Errorf("min_score must be a number in [0, 1]")
		}
		q.MinScore = minScore
	}

	if raw := values.Get("lambda_mult"); raw != "" {
		lambda, err := strconv.ParseFloat(raw, 64)
		if err != nil || lambda < 0 || lambda > 1 {
			return q, fmt.Errorf("lambda_mult must be a number in [0, 1]")
		}
		q.LambdaMult = lambda
	}

	if raw := values.Get("half_life_hours"); raw != "" {
		halfLife, err := strconv.ParseFloat(raw, 64)
		if err != nil || halfLife <= 0 {
			return q, fmt.Errorf("half_life_hours must be a positive number")
		}
		q.HalfLifeHours = halfLife
	}

	if raw := values.Get("window_count"); raw != "" {
		count, err := strconv.Atoi(raw)
		if err != nil || count < 0 {
			return q, fmt.Errorf("window_count must be a non-negative integer")
		}
		q.WindowCount = count
	}

	if raw := values.Get("window_hours"); raw != "" {
		hours, err := strconv.ParseFloat(raw, 64)
		if err != nil || hours < 0 {
			return q, fmt.Errorf("window_hours must be a non-negative number")
		}
		q.WindowHours = hours
	}

	return q, nil
}
