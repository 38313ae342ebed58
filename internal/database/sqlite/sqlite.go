// Package sqlite implements the identity and image store on an embedded
// SQLite database. Vectors and image groups are stored as JSON text.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/photo-curator/internal/database"
	_ "modernc.org/sqlite"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS images (
		id          TEXT PRIMARY KEY,
		project_id  TEXT NOT NULL,
		image_url   TEXT NOT NULL DEFAULT '',
		embedding   TEXT,
		created_at  TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_images_project ON images (project_id)`,
	`CREATE TABLE IF NOT EXISTS cropped_faces (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		image_id          TEXT NOT NULL REFERENCES images (id) ON DELETE CASCADE,
		project_id        TEXT NOT NULL,
		cropped_face_url  TEXT NOT NULL DEFAULT '',
		embedding         TEXT NOT NULL,
		created_at        TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cropped_faces_project ON cropped_faces (project_id)`,
	`CREATE TABLE IF NOT EXISTS albums (
		id           TEXT PRIMARY KEY,
		project_id   TEXT NOT NULL,
		person_name  TEXT NOT NULL,
		image_group  TEXT NOT NULL DEFAULT '[]',
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_albums_project_person ON albums (project_id, person_name)`,
}

// Store implements database.Store.
type Store struct {
	db *sql.DB
}

var _ database.Store = (*Store)(nil)

// Open opens (or creates) the database at dsn and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	for _, stmt := range append([]string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"}, schemaStatements...) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func (s *Store) GetImagesWithEmbeddings(ctx context.Context, projectID string) ([]database.StoredImage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, image_url, embedding, created_at
		FROM images
		WHERE project_id = ? AND embedding IS NOT NULL
		ORDER BY rowid
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()

	var images []database.StoredImage
	for rows.Next() {
		var img database.StoredImage
		var created string
		if err := rows.Scan(&img.ID, &img.ProjectID, &img.URL, &img.RawEmbedding, &created); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		img.CreatedAt = parseTime(created)
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	return images, nil
}

func (s *Store) GetImageURLs(ctx context.Context, ids []string) (map[string]string, error) {
	urls := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return urls, nil
	}

	list, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("encode ids: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, image_url FROM images WHERE id IN (SELECT value FROM json_each(?))
	`, string(list))
	if err != nil {
		return nil, fmt.Errorf("query image urls: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, url string
		if err := rows.Scan(&id, &url); err != nil {
			return nil, fmt.Errorf("scan image url: %w", err)
		}
		urls[id] = url
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate image urls: %w", err)
	}
	return urls, nil
}

func (s *Store) GetFaceEmbeddings(ctx context.Context, projectID string) ([]database.FaceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, image_id, project_id, cropped_face_url, embedding, created_at
		FROM cropped_faces
		WHERE project_id = ?
		ORDER BY id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query faces: %w", err)
	}
	defer rows.Close()

	var faces []database.FaceRecord
	for rows.Next() {
		var f database.FaceRecord
		var raw, created string
		if err := rows.Scan(&f.ID, &f.ImageID, &f.ProjectID, &f.CroppedFaceURL, &raw, &created); err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		if f.Embedding, err = database.ParseEmbedding(raw); err != nil {
			return nil, fmt.Errorf("face %d: %w", f.ID, err)
		}
		f.CreatedAt = parseTime(created)
		faces = append(faces, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return faces, nil
}

func (s *Store) ListPersonNames(ctx context.Context, projectID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT person_name
		FROM albums
		WHERE project_id = ? AND person_name <> ''
		GROUP BY person_name
		ORDER BY MIN(rowid)
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query person names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan person name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate person names: %w", err)
	}
	return names, nil
}

const albumColumns = `id, project_id, person_name, image_group, created_at, updated_at`

func scanAlbum(row interface{ Scan(...any) error }) (*database.Album, error) {
	var a database.Album
	var group, created, updated string
	if err := row.Scan(&a.ID, &a.ProjectID, &a.PersonName, &group, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(group), &a.ImageGroup); err != nil {
		return nil, fmt.Errorf("album %s: decode image group: %w", a.ID, err)
	}
	a.CreatedAt = parseTime(created)
	a.UpdatedAt = parseTime(updated)
	return &a, nil
}

func (s *Store) getAlbum(ctx context.Context, query string, args ...any) (*database.Album, error) {
	a, err := scanAlbum(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get album: %w", err)
	}
	return a, nil
}

func (s *Store) GetAlbumByPerson(ctx context.Context, projectID, personName string) (*database.Album, error) {
	return s.getAlbum(ctx, `
		SELECT `+albumColumns+` FROM albums
		WHERE project_id = ? AND person_name = ?
		ORDER BY rowid LIMIT 1
	`, projectID, personName)
}

func (s *Store) GetAlbum(ctx context.Context, id string) (*database.Album, error) {
	return s.getAlbum(ctx, `SELECT `+albumColumns+` FROM albums WHERE id = ?`, id)
}

func (s *Store) ListAlbums(ctx context.Context, projectID string) ([]database.Album, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+albumColumns+` FROM albums WHERE project_id = ? ORDER BY rowid
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query albums: %w", err)
	}
	defer rows.Close()

	var albums []database.Album
	for rows.Next() {
		a, err := scanAlbum(rows)
		if err != nil {
			return nil, fmt.Errorf("scan album: %w", err)
		}
		albums = append(albums, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate albums: %w", err)
	}
	return albums, nil
}

func encodeGroup(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode image group: %w", err)
	}
	return string(b), nil
}

func (s *Store) InsertAlbum(ctx context.Context, album *database.Album) error {
	now := time.Now().UTC()
	if album.ID == "" {
		album.ID = uuid.NewString()
	}
	if album.CreatedAt.IsZero() {
		album.CreatedAt = now
	}
	if album.UpdatedAt.IsZero() {
		album.UpdatedAt = now
	}
	group, err := encodeGroup(album.ImageGroup)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO albums (id, project_id, person_name, image_group, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, album.ID, album.ProjectID, album.PersonName, group, formatTime(album.CreatedAt), formatTime(album.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert album: %w", err)
	}
	return nil
}

func (s *Store) UpdateAlbumImages(ctx context.Context, id string, imageIDs []string) error {
	group, err := encodeGroup(imageIDs)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE albums SET image_group = ?, updated_at = ? WHERE id = ?
	`, group, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("update album: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update album %s: no such album", id)
	}
	return nil
}

func (s *Store) DeleteAlbum(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM albums WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete album: %w", err)
	}
	return nil
}

func (s *Store) SaveImage(ctx context.Context, img database.StoredImage) error {
	var raw sql.NullString
	if img.RawEmbedding != "" {
		raw = sql.NullString{String: img.RawEmbedding, Valid: true}
	}
	created := img.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO images (id, project_id, image_url, embedding, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET project_id = excluded.project_id, image_url = excluded.image_url, embedding = excluded.embedding
	`, img.ID, img.ProjectID, img.URL, raw, formatTime(created))
	if err != nil {
		return fmt.Errorf("save image: %w", err)
	}
	return nil
}

func (s *Store) SaveFace(ctx context.Context, face *database.FaceRecord) error {
	if len(face.Embedding) == 0 {
		return errors.New("save face: empty embedding")
	}
	if face.CreatedAt.IsZero() {
		face.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO cropped_faces (image_id, project_id, cropped_face_url, embedding, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, face.ImageID, face.ProjectID, face.CroppedFaceURL, database.FormatEmbedding(face.Embedding), formatTime(face.CreatedAt))
	if err != nil {
		return fmt.Errorf("save face: %w", err)
	}
	if face.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("save face: %w", err)
	}
	return nil
}
