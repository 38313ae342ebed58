package database

import (
	"context"
)

// ImageReader provides read-only access to project images
type ImageReader interface {
	// GetImagesWithEmbeddings returns all images of a project that have a stored scene embedding
	GetImagesWithEmbeddings(ctx context.Context, projectID string) ([]StoredImage, error)
	// GetImageURLs maps image ids to storage URLs; unknown ids are omitted
	GetImageURLs(ctx context.Context, ids []string) (map[string]string, error)
}

// FaceReader provides read-only access to face embeddings
type FaceReader interface {
	// GetFaceEmbeddings returns all faces of a project ordered by face id
	GetFaceEmbeddings(ctx context.Context, projectID string) ([]FaceRecord, error)
}

// AlbumReader provides read-only access to person albums
type AlbumReader interface {
	// ListPersonNames returns the distinct person names with an album in the project
	ListPersonNames(ctx context.Context, projectID string) ([]string, error)
	// GetAlbumByPerson returns the first album for a normalized person name, nil if none exists
	GetAlbumByPerson(ctx context.Context, projectID, personName string) (*Album, error)
	// ListAlbums returns all albums of a project ordered by creation
	ListAlbums(ctx context.Context, projectID string) ([]Album, error)
	// GetAlbum returns an album by id, nil if not found
	GetAlbum(ctx context.Context, id string) (*Album, error)
}

// AlbumWriter provides write access to person albums
type AlbumWriter interface {
	AlbumReader

	// InsertAlbum stores a new album; ID, CreatedAt and UpdatedAt are filled in when empty
	InsertAlbum(ctx context.Context, album *Album) error
	// UpdateAlbumImages replaces the image group of an existing album
	UpdateAlbumImages(ctx context.Context, id string, imageIDs []string) error
	// DeleteAlbum removes an album; deleting a missing album is not an error
	DeleteAlbum(ctx context.Context, id string) error
}

// ImageWriter stores images and faces. Ingestion normally happens outside this
// service; the writer exists for seeding and tests.
type ImageWriter interface {
	SaveImage(ctx context.Context, img StoredImage) error
	SaveFace(ctx context.Context, face *FaceRecord) error
}

// Store combines every capability a backend provides.
type Store interface {
	ImageReader
	FaceReader
	AlbumWriter
	ImageWriter
	Close() error
}
