package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kozaktomas/photo-curator/internal/compose"
	"github.com/kozaktomas/photo-curator/internal/constants"
	"github.com/kozaktomas/photo-curator/internal/logging"
	"github.com/kozaktomas/photo-curator/internal/pipeline"
	"github.com/kozaktomas/photo-curator/internal/query"
	"go.uber.org/zap"
)

const searchSucceeded = "Image searching completed successfully"

// Searcher runs the retrieval pipeline.
type Searcher interface {
	Run(ctx context.Context, projectID, queryStr string) *pipeline.Result
	RunVoice(ctx context.Context, projectID string, audio []byte, filename string) (string, *pipeline.Result, error)
}

// SearchHandler handles text and voice search.
type SearchHandler struct {
	searcher Searcher
	logger   *zap.Logger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(searcher Searcher, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{
		searcher: searcher,
		logger:   logging.OrNop(logger).Named("search"),
	}
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	ProjectID string `json:"project_id"`
	Query     string `json:"query"`
}

// SearchResponse is returned by a successful search.
type SearchResponse struct {
	Message       string            `json:"message"`
	RequestID     string            `json:"request_id"`
	Result        *compose.ImageSet `json:"result"`
	Extraction    query.Extraction  `json:"extraction"`
	Transcription string            `json:"transcription,omitempty"`
}

// ErrorsResponse is returned when the pipeline recorded errors.
type ErrorsResponse struct {
	RequestID string   `json:"request_id"`
	Errors    []string `json:"errors"`
}

// Search accepts a JSON body or a form with project_id and query.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
	} else {
		req.ProjectID = r.FormValue("project_id")
		req.Query = r.FormValue("query")
	}

	req.ProjectID = strings.TrimSpace(req.ProjectID)
	if req.ProjectID == "" {
		respondError(w, http.StatusBadRequest, "project_id is required")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(w, http.StatusBadRequest, "query is required")
		return
	}

	h.logger.Debug("search", zap.String("project_id", req.ProjectID), zap.String("query", sanitizeForLog(req.Query)))
	h.respondResult(w, h.searcher.Run(r.Context(), req.ProjectID, req.Query), "")
}

// Voice accepts a multipart form with project_id and an audio file.
func (h *SearchHandler) Voice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxAudioSize+1<<20)
	if err := r.ParseMultipartForm(constants.MaxAudioSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse form")
		return
	}

	projectID := strings.TrimSpace(r.FormValue("project_id"))
	if projectID == "" {
		respondError(w, http.StatusBadRequest, "project_id is required")
		return
	}

	audio, header, err := readFormFile(r, "audio", constants.MaxAudioSize)
	if err != nil {
		respondErr(w, err)
		return
	}

	text, res, err := h.searcher.RunVoice(r.Context(), projectID, audio, header.Filename)
	if err != nil {
		respondErr(w, err)
		return
	}
	h.respondResult(w, res, text)
}

func (h *SearchHandler) respondResult(w http.ResponseWriter, res *pipeline.Result, transcription string) {
	if res.Failed() {
		respondJSON(w, http.StatusInternalServerError, ErrorsResponse{RequestID: res.RequestID, Errors: res.Errors})
		return
	}
	respondJSON(w, http.StatusOK, SearchResponse{
		Message:       searchSucceeded,
		RequestID:     res.RequestID,
		Result:        res.SearchResults,
		Extraction:    res.Extraction,
		Transcription: transcription,
	})
}
