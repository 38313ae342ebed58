package ai

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func chatCompletionJSON(content string, promptTokens, completionTokens int) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4.1-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
		},
	})
	return string(b)
}

func newTestOpenAIServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *OpenAIModel) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	model := NewOpenAIModel(OpenAIOptions{
		APIKey:      "test-key",
		BaseURL:     server.URL + "/",
		Model:       "openai/gpt-oss-20b:free",
		Temperature: 0.5,
		JSONMode:    true,
		MaxRetries:  -1,
		Pricing:     RequestPricing{Input: 1, Output: 2},
	})
	return server, model
}

func TestOpenAIModel_Complete(t *testing.T) {
	var gotBody map[string]any
	var gotAuth string
	_, model := newTestOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, chatCompletionJSON(`{"people":[],"emotions":[],"scene":"beach"}`, 1000, 500))
	})

	out, err := model.Complete(context.Background(), "find beach photos")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"people":[],"emotions":[],"scene":"beach"}` {
		t.Errorf("unexpected content %q", out)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}
	if gotBody["model"] != "openai/gpt-oss-20b:free" {
		t.Errorf("unexpected model %v", gotBody["model"])
	}
	if gotBody["temperature"] != 0.5 {
		t.Errorf("unexpected temperature %v", gotBody["temperature"])
	}
	if rf, ok := gotBody["response_format"].(map[string]any); !ok || rf["type"] != "json_object" {
		t.Errorf("expected json_object response format, got %v", gotBody["response_format"])
	}

	usage := model.GetUsage()
	if usage.Requests != 1 || usage.InputTokens != 1000 || usage.OutputTokens != 500 {
		t.Errorf("unexpected usage %+v", usage)
	}
	// 1000/1M * $1 + 500/1M * $2
	if math.Abs(usage.TotalCost-0.002) > 1e-12 {
		t.Errorf("unexpected cost %v", usage.TotalCost)
	}

	model.ResetUsage()
	if model.GetUsage() != (Usage{}) {
		t.Errorf("expected usage reset, got %+v", model.GetUsage())
	}
}

func TestOpenAIModel_NoChoices(t *testing.T) {
	_, model := newTestOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`)
	})

	if _, err := model.Complete(context.Background(), "q"); err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestOpenAIModel_APIError(t *testing.T) {
	_, model := newTestOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"invalid key","type":"invalid_request_error"}}`)
	})

	_, err := model.Complete(context.Background(), "q")
	if err == nil || !strings.Contains(err.Error(), "OpenAI API error") {
		t.Errorf("expected API error, got %v", err)
	}
}

func TestOpenAIModel_DefaultModel(t *testing.T) {
	model := NewOpenAIModel(OpenAIOptions{APIKey: "k"})
	if model.Name() != DefaultOpenAIModel {
		t.Errorf("expected default model, got %q", model.Name())
	}
}

func TestOpenAITranscriber(t *testing.T) {
	var gotModel, gotFilename string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("invalid multipart body: %v", err)
			return
		}
		gotModel = r.FormValue("model")
		if _, header, err := r.FormFile("file"); err == nil {
			gotFilename = header.Filename
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":"  photos of Alice at the beach \n"}`)
	}))
	defer server.Close()

	tr := NewOpenAITranscriber("k", server.URL+"/")
	text, err := tr.Transcribe(context.Background(), []byte("fake-audio"), "query.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "photos of Alice at the beach" {
		t.Errorf("unexpected transcript %q", text)
	}
	if gotModel != "whisper-1" {
		t.Errorf("unexpected model %q", gotModel)
	}
	if gotFilename != "query.mp3" {
		t.Errorf("unexpected filename %q", gotFilename)
	}
}

func TestOpenAITranscriber_EmptyAudio(t *testing.T) {
	tr := NewOpenAITranscriber("k", "")
	if _, err := tr.Transcribe(context.Background(), nil, "a.wav"); err == nil {
		t.Error("expected error for empty audio")
	}
}

func TestAudioContentType(t *testing.T) {
	tests := map[string]string{
		"a.mp3":  "audio/mpeg",
		"a.WAV":  "audio/wav",
		"a.m4a":  "audio/mp4",
		"a.ogg":  "audio/ogg",
		"a.webm": "audio/webm",
		"a":      "audio/webm",
	}
	for name, expected := range tests {
		t.Run(name, func(t *testing.T) {
			if got := audioContentType(name); got != expected {
				t.Errorf("audioContentType(%q) = %q, want %q", name, got, expected)
			}
		})
	}
}

func TestGeminiModel_Name(t *testing.T) {
	model, err := NewGeminiModel(context.Background(), "test-key", "", 0.5, RequestPricing{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.Name() != DefaultGeminiModel {
		t.Errorf("expected default model, got %q", model.Name())
	}
}

func TestUsageTracker(t *testing.T) {
	u := &usageTracker{pricing: RequestPricing{Input: 0.4, Output: 1.6}}
	u.trackUsage(1_000_000, 1_000_000)
	u.trackUsage(0, 0)

	got := u.GetUsage()
	if got.Requests != 2 {
		t.Errorf("expected 2 requests, got %d", got.Requests)
	}
	if math.Abs(got.TotalCost-2.0) > 1e-9 {
		t.Errorf("expected cost 2.0, got %v", got.TotalCost)
	}
}
