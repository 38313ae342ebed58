// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/photo-curator/internal/database"
)

// MockStore is an in-memory database.Store
type MockStore struct {
	mu     sync.RWMutex
	images map[string]database.StoredImage
	order  []string // image insertion order
	faces  []database.FaceRecord
	albums []database.Album
	nextID int64

	// Error injection
	GetImagesError    error
	GetImageURLsError error
	GetFacesError     error
	ListNamesError    error
	GetAlbumError     error
	ListAlbumsError   error
	InsertAlbumError  error
	UpdateAlbumError  error
	DeleteAlbumError  error
	SaveImageError    error
	SaveFaceError     error

	// Call counters
	InsertCalls int
	UpdateCalls int
}

// NewMockStore creates a new empty mock store
func NewMockStore() *MockStore {
	return &MockStore{
		images: make(map[string]database.StoredImage),
	}
}

// AddImage adds an image with a raw embedding
func (m *MockStore) AddImage(img database.StoredImage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.images[img.ID]; !ok {
		m.order = append(m.order, img.ID)
	}
	m.images[img.ID] = img
}

// AddFace adds a face, assigning the next id when ID is zero
func (m *MockStore) AddFace(face database.FaceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addFaceLocked(&face)
}

func (m *MockStore) addFaceLocked(face *database.FaceRecord) {
	if face.ID == 0 {
		m.nextID++
		face.ID = m.nextID
	} else if face.ID > m.nextID {
		m.nextID = face.ID
	}
	m.faces = append(m.faces, *face)
}

// AddAlbum adds an album as is
func (m *MockStore) AddAlbum(a database.Album) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	m.albums = append(m.albums, a)
}

// Albums returns a copy of all stored albums
func (m *MockStore) Albums() []database.Album {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.Album, len(m.albums))
	for i, a := range m.albums {
		a.ImageGroup = slices.Clone(a.ImageGroup)
		out[i] = a
	}
	return out
}

func (m *MockStore) GetImagesWithEmbeddings(ctx context.Context, projectID string) ([]database.StoredImage, error) {
	if m.GetImagesError != nil {
		return nil, m.GetImagesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.StoredImage
	for _, id := range m.order {
		img := m.images[id]
		if img.ProjectID == projectID && img.RawEmbedding != "" {
			out = append(out, img)
		}
	}
	return out, nil
}

func (m *MockStore) GetImageURLs(ctx context.Context, ids []string) (map[string]string, error) {
	if m.GetImageURLsError != nil {
		return nil, m.GetImageURLsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if img, ok := m.images[id]; ok {
			out[id] = img.URL
		}
	}
	return out, nil
}

func (m *MockStore) GetFaceEmbeddings(ctx context.Context, projectID string) ([]database.FaceRecord, error) {
	if m.GetFacesError != nil {
		return nil, m.GetFacesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.FaceRecord
	for _, f := range m.faces {
		if f.ProjectID == projectID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockStore) ListPersonNames(ctx context.Context, projectID string) ([]string, error) {
	if m.ListNamesError != nil {
		return nil, m.ListNamesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	seen := make(map[string]struct{})
	for _, a := range m.albums {
		if a.ProjectID != projectID || a.PersonName == "" {
			continue
		}
		if _, ok := seen[a.PersonName]; ok {
			continue
		}
		seen[a.PersonName] = struct{}{}
		names = append(names, a.PersonName)
	}
	return names, nil
}

func (m *MockStore) GetAlbumByPerson(ctx context.Context, projectID, personName string) (*database.Album, error) {
	if m.GetAlbumError != nil {
		return nil, m.GetAlbumError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.albums {
		if a.ProjectID == projectID && a.PersonName == personName {
			a.ImageGroup = slices.Clone(a.ImageGroup)
			return &a, nil
		}
	}
	return nil, nil
}

func (m *MockStore) ListAlbums(ctx context.Context, projectID string) ([]database.Album, error) {
	if m.ListAlbumsError != nil {
		return nil, m.ListAlbumsError
	}
	var out []database.Album
	for _, a := range m.Albums() {
		if a.ProjectID == projectID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MockStore) GetAlbum(ctx context.Context, id string) (*database.Album, error) {
	if m.GetAlbumError != nil {
		return nil, m.GetAlbumError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.albums {
		if a.ID == id {
			a.ImageGroup = slices.Clone(a.ImageGroup)
			return &a, nil
		}
	}
	return nil, nil
}

func (m *MockStore) InsertAlbum(ctx context.Context, album *database.Album) error {
	if m.InsertAlbumError != nil {
		return m.InsertAlbumError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCalls++
	now := time.Now()
	if album.ID == "" {
		album.ID = uuid.NewString()
	}
	if album.CreatedAt.IsZero() {
		album.CreatedAt = now
	}
	if album.UpdatedAt.IsZero() {
		album.UpdatedAt = now
	}
	stored := *album
	stored.ImageGroup = slices.Clone(album.ImageGroup)
	m.albums = append(m.albums, stored)
	return nil
}

func (m *MockStore) UpdateAlbumImages(ctx context.Context, id string, imageIDs []string) error {
	if m.UpdateAlbumError != nil {
		return m.UpdateAlbumError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	for i := range m.albums {
		if m.albums[i].ID == id {
			m.albums[i].ImageGroup = slices.Clone(imageIDs)
			m.albums[i].UpdatedAt = time.Now()
			return nil
		}
	}
	return nil
}

func (m *MockStore) DeleteAlbum(ctx context.Context, id string) error {
	if m.DeleteAlbumError != nil {
		return m.DeleteAlbumError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.albums = slices.DeleteFunc(m.albums, func(a database.Album) bool { return a.ID == id })
	return nil
}

func (m *MockStore) SaveImage(ctx context.Context, img database.StoredImage) error {
	if m.SaveImageError != nil {
		return m.SaveImageError
	}
	m.AddImage(img)
	return nil
}

func (m *MockStore) SaveFace(ctx context.Context, face *database.FaceRecord) error {
	if m.SaveFaceError != nil {
		return m.SaveFaceError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addFaceLocked(face)
	return nil
}

func (m *MockStore) Close() error {
	return nil
}

var _ database.Store = (*MockStore)(nil)
