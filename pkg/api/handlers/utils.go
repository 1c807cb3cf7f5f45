package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/ekagra1602/NeuraVault-MCP/pkg/api/response"
)

// UtilsHandler handles small text utility endpoints.
type UtilsHandler struct{}

// NewUtilsHandler creates a utils handler.
func NewUtilsHandler() *UtilsHandler {
	return &UtilsHandler{}
}

type textStatsRequest struct {
	Text string `json:"text"`
}

type textStatsResponse struct {
	Chars int `json:"chars"`
	Words int `json:"words"`
	Lines int `json:"lines"`
}

// TextStats handles POST /api/v1/utils/text-stats. Character counts are
// rune counts, matching the packing budget semantics.
func (h *UtilsHandler) TextStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req textStatsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}

	lines := 0
	if req.Text != "" {
		lines = strings.Count(req.Text, "\n") + 1
	}

	response.JSON(w, http.StatusOK, textStatsResponse{
		Chars: utf8.RuneCountInString(req.Text),
		Words: len(strings.Fields(req.Text)),
		Lines: lines,
	})
}
