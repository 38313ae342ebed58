package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/photo-curator/internal/albums"
	"github.com/kozaktomas/photo-curator/internal/constants"
	"github.com/kozaktomas/photo-curator/internal/database"
	"github.com/kozaktomas/photo-curator/internal/errs"
	"github.com/kozaktomas/photo-curator/internal/logging"
	"go.uber.org/zap"
)

// AlbumBuilder builds a person album from a reference image.
type AlbumBuilder interface {
	Build(ctx context.Context, projectID, personName string, referenceImage []byte) (*albums.Result, error)
}

// AlbumStore reads and deletes albums.
type AlbumStore interface {
	database.AlbumReader
	DeleteAlbum(ctx context.Context, id string) error
	GetImageURLs(ctx context.Context, ids []string) (map[string]string, error)
}

// AlbumsHandler handles album endpoints.
type AlbumsHandler struct {
	builder AlbumBuilder
	store   AlbumStore
	logger  *zap.Logger
}

// NewAlbumsHandler creates a new albums handler.
func NewAlbumsHandler(builder AlbumBuilder, store AlbumStore, logger *zap.Logger) *AlbumsHandler {
	return &AlbumsHandler{
		builder: builder,
		store:   store,
		logger:  logging.OrNop(logger).Named("albums"),
	}
}

// AlbumResponse represents an album in API responses.
type AlbumResponse struct {
	ID         string            `json:"id"`
	ProjectID  string            `json:"project_id"`
	PersonName string            `json:"person_name"`
	ImageGroup []string          `json:"image_group"`
	ImageLinks map[string]string `json:"image_links,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

func toAlbumResponse(a *database.Album) AlbumResponse {
	group := a.ImageGroup
	if group == nil {
		group = []string{}
	}
	return AlbumResponse{
		ID:         a.ID,
		ProjectID:  a.ProjectID,
		PersonName: a.PersonName,
		ImageGroup: group,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// BuildResponse is returned after a successful album build.
type BuildResponse struct {
	Status  string   `json:"status"`
	AlbumID string   `json:"album_id"`
	Created bool     `json:"created"`
	Data    []string `json:"data"`
}

// Create builds or extends the album of person_name from an uploaded image.
func (h *AlbumsHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse form")
		return
	}

	projectID := strings.TrimSpace(r.FormValue("project_id"))
	personName := r.FormValue("person_name")
	if projectID == "" {
		respondError(w, http.StatusBadRequest, "project_id is required")
		return
	}
	if strings.TrimSpace(personName) == "" {
		respondError(w, http.StatusBadRequest, "person_name is required")
		return
	}

	image, _, err := readFormFile(r, "image", constants.MaxUploadSize)
	if err != nil {
		respondErr(w, err)
		return
	}

	res, err := h.builder.Build(r.Context(), projectID, personName, image)
	if err != nil {
		respondErr(w, err)
		return
	}

	respondJSON(w, http.StatusOK, BuildResponse{
		Status:  "success",
		AlbumID: res.Album.ID,
		Created: res.Created,
		Data:    res.Album.ImageGroup,
	})
}

// List returns every album of the project given by ?project_id=.
func (h *AlbumsHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID := strings.TrimSpace(r.URL.Query().Get("project_id"))
	if projectID == "" {
		respondError(w, http.StatusBadRequest, "project_id is required")
		return
	}

	list, err := h.store.ListAlbums(r.Context(), projectID)
	if err != nil {
		h.logger.Error("listing albums", zap.Error(err))
		respondError(w, http.StatusBadGateway, "failed to list albums")
		return
	}

	out := make([]AlbumResponse, 0, len(list))
	for i := range list {
		out = append(out, toAlbumResponse(&list[i]))
	}
	respondJSON(w, http.StatusOK, out)
}

// Get returns one album with the URLs of its images.
func (h *AlbumsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	album, err := h.store.GetAlbum(r.Context(), id)
	if err != nil {
		h.logger.Error("getting album", zap.String("id", sanitizeForLog(id)), zap.Error(err))
		respondError(w, http.StatusBadGateway, "failed to get album")
		return
	}
	if album == nil {
		respondErr(w, errs.ErrAlbumNotFound)
		return
	}

	resp := toAlbumResponse(album)
	if len(album.ImageGroup) > 0 {
		links, err := h.store.GetImageURLs(r.Context(), album.ImageGroup)
		if err != nil {
			h.logger.Error("getting image urls", zap.String("id", album.ID), zap.Error(err))
			respondError(w, http.StatusBadGateway, "failed to get image urls")
			return
		}
		resp.ImageLinks = links
	}
	respondJSON(w, http.StatusOK, resp)
}

// Delete removes an album. Deleting a missing album returns 404.
func (h *AlbumsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	album, err := h.store.GetAlbum(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusBadGateway, "failed to get album")
		return
	}
	if album == nil {
		respondErr(w, errs.ErrAlbumNotFound)
		return
	}

	if err := h.store.DeleteAlbum(r.Context(), id); err != nil {
		h.logger.Error("deleting album", zap.String("id", album.ID), zap.Error(err))
		respondError(w, http.StatusBadGateway, "failed to delete album")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
