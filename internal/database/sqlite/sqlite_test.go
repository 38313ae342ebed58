package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/photo-curator/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestImages(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveImage(ctx, database.StoredImage{ID: "1", ProjectID: "p1", URL: "u/1", RawEmbedding: "[0.1,0.2]"}))
	require.NoError(t, s.SaveImage(ctx, database.StoredImage{ID: "2", ProjectID: "p1", URL: "u/2"}))
	require.NoError(t, s.SaveImage(ctx, database.StoredImage{ID: "3", ProjectID: "p1", URL: "u/3", RawEmbedding: `"0.3, 0.4"`}))
	require.NoError(t, s.SaveImage(ctx, database.StoredImage{ID: "4", ProjectID: "p2", URL: "u/4", RawEmbedding: "[1,1]"}))

	images, err := s.GetImagesWithEmbeddings(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "1", images[0].ID)
	assert.Equal(t, "3", images[1].ID)
	assert.Equal(t, `"0.3, 0.4"`, images[1].RawEmbedding)
	assert.False(t, images[0].CreatedAt.IsZero())

	// Saving again updates in place.
	require.NoError(t, s.SaveImage(ctx, database.StoredImage{ID: "1", ProjectID: "p1", URL: "u/1b", RawEmbedding: "[0.1,0.2]"}))

	urls, err := s.GetImageURLs(ctx, []string{"1", "2", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"1": "u/1b", "2": "u/2"}, urls)

	empty, err := s.GetImageURLs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveImage(ctx, database.StoredImage{ID: "1", ProjectID: "p1"}))
	require.NoError(t, s.SaveImage(ctx, database.StoredImage{ID: "2", ProjectID: "p2"}))

	a := &database.FaceRecord{ImageID: "1", ProjectID: "p1", CroppedFaceURL: "f/a", Embedding: []float32{0.1, -0.25, 3}}
	b := &database.FaceRecord{ImageID: "1", ProjectID: "p1", Embedding: []float32{1, 0, 0}}
	c := &database.FaceRecord{ImageID: "2", ProjectID: "p2", Embedding: []float32{0, 1, 0}}
	for _, f := range []*database.FaceRecord{a, b, c} {
		require.NoError(t, s.SaveFace(ctx, f))
	}
	assert.Less(t, a.ID, b.ID)

	faces, err := s.GetFaceEmbeddings(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, faces, 2)
	assert.Equal(t, a.ID, faces[0].ID)
	assert.Equal(t, []float32{0.1, -0.25, 3}, faces[0].Embedding)
	assert.Equal(t, "f/a", faces[0].CroppedFaceURL)

	assert.Error(t, s.SaveFace(ctx, &database.FaceRecord{ImageID: "1", ProjectID: "p1"}), "empty embedding")
	assert.Error(t, s.SaveFace(ctx, &database.FaceRecord{ImageID: "nope", ProjectID: "p1", Embedding: []float32{1}}), "unknown image")
}

func TestAlbums(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	alice := &database.Album{ProjectID: "p1", PersonName: "alice", ImageGroup: []string{"1", "2"}}
	require.NoError(t, s.InsertAlbum(ctx, alice))
	require.NotEmpty(t, alice.ID)
	require.NoError(t, s.InsertAlbum(ctx, &database.Album{ProjectID: "p1", PersonName: "bob"}))
	require.NoError(t, s.InsertAlbum(ctx, &database.Album{ProjectID: "p1", PersonName: "alice", ImageGroup: []string{"9"}}))
	require.NoError(t, s.InsertAlbum(ctx, &database.Album{ProjectID: "p2", PersonName: "carol"}))

	names, err := s.ListPersonNames(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, names)

	// The first album wins when a person has several.
	got, err := s.GetAlbumByPerson(ctx, "p1", "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, alice.ID, got.ID)
	assert.Equal(t, []string{"1", "2"}, got.ImageGroup)

	bob, err := s.GetAlbumByPerson(ctx, "p1", "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{}, bob.ImageGroup)

	none, err := s.GetAlbumByPerson(ctx, "p2", "alice")
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, s.UpdateAlbumImages(ctx, alice.ID, []string{"1", "2", "5"}))
	got, err = s.GetAlbum(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "5"}, got.ImageGroup)
	assert.Error(t, s.UpdateAlbumImages(ctx, "missing", []string{"1"}))

	albums, err := s.ListAlbums(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, albums, 3)

	require.NoError(t, s.DeleteAlbum(ctx, alice.ID))
	require.NoError(t, s.DeleteAlbum(ctx, alice.ID))
	got, err = s.GetAlbum(ctx, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOpen_PersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curator.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.InsertAlbum(ctx, &database.Album{ProjectID: "p1", PersonName: "alice"}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	names, err := s.ListPersonNames(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, names)
}
