package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/photo-curator/internal/database"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// Store implements database.Store.
type Store struct {
	pool *Pool
}

var _ database.Store = (*Store)(nil)

func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() error {
	return s.pool.Close()
}

// Pool exposes the connection pool, used by the migrate command.
func (s *Store) Pool() *Pool {
	return s.pool
}

func (s *Store) GetImagesWithEmbeddings(ctx context.Context, projectID string) ([]database.StoredImage, error) {
	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT id, project_id, image_url, embedding, created_at
		FROM images
		WHERE project_id = $1 AND embedding IS NOT NULL
		ORDER BY created_at, id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", err)
	}
	defer rows.Close()

	var images []database.StoredImage
	for rows.Next() {
		var img database.StoredImage
		if err := rows.Scan(&img.ID, &img.ProjectID, &img.URL, &img.RawEmbedding, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
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

	rows, err := s.pool.db.QueryContext(ctx, `SELECT id, image_url FROM images WHERE id = ANY($1)`, pq.Array(ids))
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
	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT id, image_id, project_id, cropped_face_url, embedding, created_at
		FROM cropped_faces
		WHERE project_id = $1
		ORDER BY id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query faces: %w", err)
	}
	defer rows.Close()

	var faces []database.FaceRecord
	for rows.Next() {
		var f database.FaceRecord
		var vec pgvector.Vector
		if err := rows.Scan(&f.ID, &f.ImageID, &f.ProjectID, &f.CroppedFaceURL, &vec, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		f.Embedding = vec.Slice()
		faces = append(faces, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return faces, nil
}

func (s *Store) ListPersonNames(ctx context.Context, projectID string) ([]string, error) {
	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT person_name
		FROM albums
		WHERE project_id = $1 AND person_name <> ''
		GROUP BY person_name
		ORDER BY MIN(created_at), person_name
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
	var group pq.StringArray
	if err := row.Scan(&a.ID, &a.ProjectID, &a.PersonName, &group, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.ImageGroup = []string(group)
	return &a, nil
}

func (s *Store) GetAlbumByPerson(ctx context.Context, projectID, personName string) (*database.Album, error) {
	row := s.pool.db.QueryRowContext(ctx, `
		SELECT `+albumColumns+`
		FROM albums
		WHERE project_id = $1 AND person_name = $2
		ORDER BY created_at, id
		LIMIT 1
	`, projectID, personName)
	a, err := scanAlbum(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get album by person: %w", err)
	}
	return a, nil
}

func (s *Store) ListAlbums(ctx context.Context, projectID string) ([]database.Album, error) {
	rows, err := s.pool.db.QueryContext(ctx, `
		SELECT `+albumColumns+`
		FROM albums
		WHERE project_id = $1
		ORDER BY created_at, id
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

func (s *Store) GetAlbum(ctx context.Context, id string) (*database.Album, error) {
	if _, err := uuid.Parse(id); err != nil {
		// Not a uuid, so it cannot exist; avoids a cast error from postgres.
		return nil, nil
	}
	row := s.pool.db.QueryRowContext(ctx, `SELECT `+albumColumns+` FROM albums WHERE id = $1`, id)
	a, err := scanAlbum(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get album: %w", err)
	}
	return a, nil
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
	group := album.ImageGroup
	if group == nil {
		group = []string{}
	}

	_, err := s.pool.db.ExecContext(ctx, `
		INSERT INTO albums (id, project_id, person_name, image_group, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, album.ID, album.ProjectID, album.PersonName, pq.Array(group), album.CreatedAt, album.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert album: %w", err)
	}
	return nil
}

func (s *Store) UpdateAlbumImages(ctx context.Context, id string, imageIDs []string) error {
	if imageIDs == nil {
		imageIDs = []string{}
	}
	res, err := s.pool.db.ExecContext(ctx, `
		UPDATE albums SET image_group = $2, updated_at = NOW() WHERE id = $1
	`, id, pq.Array(imageIDs))
	if err != nil {
		return fmt.Errorf("update album: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update album %s: no such album", id)
	}
	return nil
}

func (s *Store) DeleteAlbum(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	if _, err := s.pool.db.ExecContext(ctx, `DELETE FROM albums WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete album: %w", err)
	}
	return nil
}

func (s *Store) SaveImage(ctx context.Context, img database.StoredImage) error {
	var raw sql.NullString
	if img.RawEmbedding != "" {
		raw = sql.NullString{String: img.RawEmbedding, Valid: true}
	}
	_, err := s.pool.db.ExecContext(ctx, `
		INSERT INTO images (id, project_id, image_url, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET project_id = EXCLUDED.project_id, image_url = EXCLUDED.image_url, embedding = EXCLUDED.embedding
	`, img.ID, img.ProjectID, img.URL, raw)
	if err != nil {
		return fmt.Errorf("save image: %w", err)
	}
	return nil
}

func (s *Store) SaveFace(ctx context.Context, face *database.FaceRecord) error {
	err := s.pool.db.QueryRowContext(ctx, `
		INSERT INTO cropped_faces (image_id, project_id, cropped_face_url, embedding)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, face.ImageID, face.ProjectID, face.CroppedFaceURL, pgvector.NewVector(face.Embedding)).Scan(&face.ID, &face.CreatedAt)
	if err != nil {
		return fmt.Errorf("save face: %w", err)
	}
	return nil
}
