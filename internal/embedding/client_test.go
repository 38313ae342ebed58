package embedding

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46, 0x49, 0x46}

func TestExtractFaces(t *testing.T) {
	var gotStrict, gotMIME string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed/face" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotStrict = r.URL.Query().Get("strict")
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file: %v", err)
			return
		}
		defer file.Close()
		gotMIME = header.Header.Get("Content-Type")

		json.NewEncoder(w).Encode(map[string]any{
			"faces_count": 2,
			"faces": []map[string]any{
				{"face_index": 0, "embedding": []float32{1, 0}, "bbox": []float64{0, 0, 10, 10}, "det_score": 0.99},
				{"face_index": 1, "crop": base64.StdEncoding.EncodeToString([]byte("crop")), "det_score": 0.9},
			},
			"model": "arcface",
		})
	}))
	defer server.Close()

	faces, err := NewClient(server.URL).ExtractFaces(context.Background(), jpegHeader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotStrict != "true" {
		t.Errorf("expected strict detection, got %q", gotStrict)
	}
	if gotMIME != "image/jpeg" {
		t.Errorf("expected image/jpeg part, got %q", gotMIME)
	}
	if len(faces) != 2 {
		t.Fatalf("expected 2 faces, got %d", len(faces))
	}
	if len(faces[0].Embedding) != 2 || faces[0].DetScore != 0.99 {
		t.Errorf("unexpected first face %+v", faces[0])
	}
	if string(faces[1].Crop) != "crop" {
		t.Errorf("expected decoded crop, got %q", faces[1].Crop)
	}
}

func TestExtractFaces_NoFaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"faces_count":0,"faces":[]}`))
	}))
	defer server.Close()

	faces, err := NewClient(server.URL).ExtractFaces(context.Background(), jpegHeader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(faces) != 0 {
		t.Errorf("expected no faces, got %d", len(faces))
	}
}

func TestExtractFaces_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).ExtractFaces(context.Background(), jpegHeader)
	if err == nil || !strings.Contains(err.Error(), "status 503") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestEmbedFace(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/embed/face/aligned" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"embedding":[0.5,0.5],"dim":2}`))
	}))
	defer server.Close()
	c := NewClient(server.URL)

	t.Run("inline embedding", func(t *testing.T) {
		emb, err := c.EmbedFace(context.Background(), Face{Embedding: []float32{1, 2}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(emb) != 2 || emb[0] != 1 {
			t.Errorf("unexpected embedding %v", emb)
		}
		if calls != 0 {
			t.Errorf("expected no server call, got %d", calls)
		}
	})

	t.Run("from crop", func(t *testing.T) {
		emb, err := c.EmbedFace(context.Background(), Face{Crop: jpegHeader})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(emb) != 2 || emb[0] != 0.5 {
			t.Errorf("unexpected embedding %v", emb)
		}
	})

	t.Run("nothing to embed", func(t *testing.T) {
		if _, err := c.EmbedFace(context.Background(), Face{}); err == nil {
			t.Error("expected error")
		}
	})
}

func TestEmbedText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req textEmbeddingRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("invalid body: %v", err)
			return
		}
		if req.Text != "a wedding" {
			t.Errorf("unexpected text %q", req.Text)
		}
		w.Write([]byte(`{"embedding":[0.1,0.2,0.3],"dim":3}`))
	}))
	defer server.Close()

	emb, err := NewClient(server.URL).EmbedText(context.Background(), "a wedding")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(emb) != 3 {
		t.Errorf("expected 3 dims, got %d", len(emb))
	}
}

func TestEmbedText_EmptyEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embedding":[]}`))
	}))
	defer server.Close()

	if _, err := NewClient(server.URL).EmbedText(context.Background(), "x"); err == nil {
		t.Error("expected error for empty embedding")
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", jpegHeader, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"gif", []byte("GIF89a\x00\x00"), "image/gif"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "image/webp"},
		{"short", []byte{0xFF}, "application/octet-stream"},
		{"unknown", []byte("hello world"), "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectMIMEType(tt.data); got != tt.expected {
				t.Errorf("DetectMIMEType() = %q, want %q", got, tt.expected)
			}
		})
	}
}
