package albums

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/kozaktomas/photo-curator/internal/config"
	"github.com/kozaktomas/photo-curator/internal/database"
	"github.com/kozaktomas/photo-curator/internal/database/mock"
	"github.com/kozaktomas/photo-curator/internal/embedding"
	"github.com/kozaktomas/photo-curator/internal/errs"
	"github.com/kozaktomas/photo-curator/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	faces      []embedding.Face
	extractErr error
	embedErr   error
	calls      int
}

func (g *fakeGateway) ExtractFaces(ctx context.Context, imageData []byte) ([]embedding.Face, error) {
	g.calls++
	return g.faces, g.extractErr
}

func (g *fakeGateway) EmbedFace(ctx context.Context, face embedding.Face) ([]float32, error) {
	if g.embedErr != nil {
		return nil, g.embedErr
	}
	return face.Embedding, nil
}

func oneFace(vec ...float32) *fakeGateway {
	return &fakeGateway{faces: []embedding.Face{{Embedding: vec}}}
}

func testImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newStore(faces ...database.FaceRecord) *mock.MockStore {
	s := mock.NewMockStore()
	for _, f := range faces {
		if f.ProjectID == "" {
			f.ProjectID = "p1"
		}
		s.AddFace(f)
	}
	return s
}

func TestBuild_ThresholdBoundary(t *testing.T) {
	// Similarity of [2 4 2 1] to [1 0 0 0] is exactly 0.4; "below" scores about 0.39992.
	store := newStore(
		database.FaceRecord{ImageID: "at-threshold", Embedding: []float32{2, 4, 2, 1}},
		database.FaceRecord{ImageID: "below", Embedding: []float32{0.3999, 0.9165, 0, 0}},
		database.FaceRecord{ImageID: "identical", Embedding: []float32{3, 0, 0, 0}},
	)
	b := NewBuilder(oneFace(1, 0, 0, 0), store, Options{}, nil, nil)

	res, err := b.Build(context.Background(), "p1", "Alice", testImage(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"at-threshold", "identical"}, res.Matched)
	assert.True(t, res.Created)
	assert.Equal(t, "alice", res.Album.PersonName)
	assert.Equal(t, []string{"at-threshold", "identical"}, res.Album.ImageGroup)
}

func TestBuild_DeduplicatesImagesInFaceOrder(t *testing.T) {
	store := newStore(
		database.FaceRecord{ImageID: "img-2", Embedding: []float32{1, 0}},
		database.FaceRecord{ImageID: "img-1", Embedding: []float32{1, 0.1}},
		database.FaceRecord{ImageID: "img-2", Embedding: []float32{1, 0.2}},
		database.FaceRecord{ImageID: "img-3", Embedding: []float32{0, 1}},
	)
	b := NewBuilder(oneFace(1, 0), store, Options{}, nil, nil)

	res, err := b.Build(context.Background(), "p1", "alice", testImage(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"img-2", "img-1"}, res.Matched)
}

func TestBuild_ScaleInvariant(t *testing.T) {
	store := newStore(database.FaceRecord{ImageID: "img-1", Embedding: []float32{100, 0}})
	b := NewBuilder(oneFace(0.001, 0), store, Options{}, nil, nil)

	res, err := b.Build(context.Background(), "p1", "alice", testImage(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"img-1"}, res.Matched)
}

func TestBuild_OnlyProjectFaces(t *testing.T) {
	store := newStore(
		database.FaceRecord{ImageID: "mine", Embedding: []float32{1, 0}},
		database.FaceRecord{ImageID: "theirs", ProjectID: "p2", Embedding: []float32{1, 0}},
	)
	b := NewBuilder(oneFace(1, 0), store, Options{}, nil, nil)

	res, err := b.Build(context.Background(), "p1", "alice", testImage(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"mine"}, res.Matched)
}

func TestBuild_Failures(t *testing.T) {
	faces := []database.FaceRecord{{ImageID: "img-1", Embedding: []float32{1, 0}}}

	tests := []struct {
		name     string
		project  string
		person   string
		image    func(t *testing.T) []byte
		gateway  *fakeGateway
		store    func() *mock.MockStore
		sentinel error
		kind     errs.Kind
	}{
		{
			name: "empty image", project: "p1", person: "alice",
			image:    func(t *testing.T) []byte { return nil },
			gateway:  oneFace(1, 0),
			store:    func() *mock.MockStore { return newStore(faces...) },
			sentinel: errs.ErrEmptyImage, kind: errs.KindValidation,
		},
		{
			name: "undecodable image", project: "p1", person: "alice",
			image:    func(t *testing.T) []byte { return []byte("definitely not an image") },
			gateway:  oneFace(1, 0),
			store:    func() *mock.MockStore { return newStore(faces...) },
			sentinel: errs.ErrUndecodableImage, kind: errs.KindValidation,
		},
		{
			name: "no face", project: "p1", person: "alice",
			image:    testImage,
			gateway:  &fakeGateway{},
			store:    func() *mock.MockStore { return newStore(faces...) },
			sentinel: errs.ErrNoFaceDetected, kind: errs.KindValidation,
		},
		{
			name: "multiple faces", project: "p1", person: "alice",
			image:    testImage,
			gateway:  &fakeGateway{faces: []embedding.Face{{Embedding: []float32{1, 0}}, {Embedding: []float32{0, 1}}}},
			store:    func() *mock.MockStore { return newStore(faces...) },
			sentinel: errs.ErrMultipleFacesDetected, kind: errs.KindValidation,
		},
		{
			name: "no stored faces", project: "p1", person: "alice",
			image:    testImage,
			gateway:  oneFace(1, 0),
			store:    func() *mock.MockStore { return newStore() },
			sentinel: errs.ErrNoEmbeddingsAvailable, kind: errs.KindNotFound,
		},
		{
			name: "no matching faces", project: "p1", person: "alice",
			image:    testImage,
			gateway:  oneFace(0, 1),
			store:    func() *mock.MockStore { return newStore(faces...) },
			sentinel: errs.ErrNoMatchingFaces, kind: errs.KindNotFound,
		},
		{
			name: "gateway failure", project: "p1", person: "alice",
			image:   testImage,
			gateway: &fakeGateway{extractErr: errors.New("connection refused")},
			store:   func() *mock.MockStore { return newStore(faces...) },
			kind:    errs.KindUpstream,
		},
		{
			name: "embed failure", project: "p1", person: "alice",
			image:   testImage,
			gateway: &fakeGateway{faces: []embedding.Face{{}}, embedErr: errors.New("timeout")},
			store:   func() *mock.MockStore { return newStore(faces...) },
			kind:    errs.KindUpstream,
		},
		{
			name: "store failure", project: "p1", person: "alice",
			image:   testImage,
			gateway: oneFace(1, 0),
			store: func() *mock.MockStore {
				s := newStore(faces...)
				s.GetFacesError = errors.New("db down")
				return s
			},
			kind: errs.KindUpstream,
		},
		{
			name: "missing project", project: "", person: "alice",
			image:   testImage,
			gateway: oneFace(1, 0),
			store:   func() *mock.MockStore { return newStore(faces...) },
			kind:    errs.KindValidation,
		},
		{
			name: "blank person", project: "p1", person: "   ",
			image:   testImage,
			gateway: oneFace(1, 0),
			store:   func() *mock.MockStore { return newStore(faces...) },
			kind:    errs.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := tt.store()
			b := NewBuilder(tt.gateway, store, Options{}, nil, nil)

			res, err := b.Build(context.Background(), tt.project, tt.person, tt.image(t))
			require.Error(t, err)
			assert.Nil(t, res)
			if tt.sentinel != nil {
				assert.True(t, errors.Is(err, tt.sentinel), "expected %v, got %v", tt.sentinel, err)
			}
			assert.Equal(t, tt.kind, errs.KindOf(err))
			assert.Empty(t, store.Albums(), "nothing may be written on failure")
		})
	}
}

func TestBuild_MergePolicies(t *testing.T) {
	existing := database.Album{ID: "album-1", ProjectID: "p1", PersonName: "alice", ImageGroup: []string{"old", "img-2"}}

	tests := []struct {
		policy      string
		wantAlbums  int
		wantGroup   []string
		wantCreated bool
	}{
		{config.MergeAppend, 1, []string{"old", "img-2", "img-1"}, false},
		{config.MergeReplace, 1, []string{"img-1", "img-2"}, false},
		{config.MergeInsert, 2, []string{"img-1", "img-2"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			store := newStore(
				database.FaceRecord{ImageID: "img-1", Embedding: []float32{1, 0}},
				database.FaceRecord{ImageID: "img-2", Embedding: []float32{1, 0.1}},
			)
			store.AddAlbum(existing)
			b := NewBuilder(oneFace(1, 0), store, Options{MergePolicy: tt.policy}, nil, nil)

			res, err := b.Build(context.Background(), "p1", "Alice", testImage(t))
			require.NoError(t, err)

			albums := store.Albums()
			assert.Len(t, albums, tt.wantAlbums)
			assert.Equal(t, tt.wantCreated, res.Created)
			assert.Equal(t, tt.wantGroup, res.Album.ImageGroup)
			if !tt.wantCreated {
				assert.Equal(t, "album-1", res.Album.ID)
				assert.Equal(t, tt.wantGroup, albums[0].ImageGroup)
			}
		})
	}
}

func TestBuild_Idempotent(t *testing.T) {
	store := newStore(
		database.FaceRecord{ImageID: "img-1", Embedding: []float32{1, 0}},
		database.FaceRecord{ImageID: "img-2", Embedding: []float32{0, 1}},
	)
	b := NewBuilder(oneFace(1, 0), store, Options{}, nil, nil)

	first, err := b.Build(context.Background(), "p1", "alice", testImage(t))
	require.NoError(t, err)
	second, err := b.Build(context.Background(), "p1", "alice", testImage(t))
	require.NoError(t, err)

	assert.Equal(t, first.Matched, second.Matched)
	assert.Len(t, store.Albums(), 1)
	assert.Equal(t, []string{"img-1"}, store.Albums()[0].ImageGroup)
}

func TestBuild_WriteFailure(t *testing.T) {
	store := newStore(database.FaceRecord{ImageID: "img-1", Embedding: []float32{1, 0}})
	store.InsertAlbumError = errors.New("constraint violation")
	m := metrics.New()
	b := NewBuilder(oneFace(1, 0), store, Options{}, nil, m)

	_, err := b.Build(context.Background(), "p1", "alice", testImage(t))
	require.Error(t, err)
	assert.Equal(t, errs.KindUpstream, errs.KindOf(err))
}

func TestBuild_CustomThreshold(t *testing.T) {
	store := newStore(database.FaceRecord{ImageID: "img-1", Embedding: []float32{1, 1}})
	threshold := 0.9
	b := NewBuilder(oneFace(1, 0), store, Options{Threshold: &threshold}, nil, nil)

	_, err := b.Build(context.Background(), "p1", "alice", testImage(t))
	assert.True(t, errors.Is(err, errs.ErrNoMatchingFaces))
}

func TestBuild_ZeroThresholdIsHonored(t *testing.T) {
	faces := []database.FaceRecord{
		{ImageID: "orthogonal", Embedding: []float32{0, 1}},
		{ImageID: "opposite", Embedding: []float32{-1, 0}},
	}
	zero := 0.0

	b := NewBuilder(oneFace(1, 0), newStore(faces...), Options{Threshold: &zero}, nil, nil)
	res, err := b.Build(context.Background(), "p1", "alice", testImage(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"orthogonal"}, res.Matched)

	b = NewBuilder(oneFace(1, 0), newStore(faces...), Options{}, nil, nil)
	_, err = b.Build(context.Background(), "p1", "alice", testImage(t))
	assert.True(t, errors.Is(err, errs.ErrNoMatchingFaces))
}

func TestUnion(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Union([]string{"a", "b"}, []string{"b", "c", "a"}))
	assert.Equal(t, []string{"x"}, Union(nil, []string{"x", "x"}))
	assert.Empty(t, Union(nil, nil))
}
