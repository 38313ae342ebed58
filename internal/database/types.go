package database

import (
	"time"
)

// StoredImage is a project image with its raw scene embedding as persisted by
// the ingestion service. RawEmbedding is parsed with ParseEmbedding.
type StoredImage struct {
	ID           string
	ProjectID    string
	URL          string
	RawEmbedding string
	CreatedAt    time.Time
}

// FaceRecord is one detected face cropped from a project image.
type FaceRecord struct {
	ID             int64
	ImageID        string
	ProjectID      string
	CroppedFaceURL string
	Embedding      []float32
	CreatedAt      time.Time
}

// Album groups the images in which a person appears.
// PersonName is stored normalized (see NormalizePersonName).
type Album struct {
	ID         string
	ProjectID  string
	PersonName string
	ImageGroup []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
