package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"snapflow/internal/services"
)

func writeMedia(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("fake-image-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func completionResponse(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	encoded, _ := json.Marshal(resp)
	return string(encoded)
}

func TestAnalyzeParsesLabelsAndCategory(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		fmt.Fprint(w, completionResponse(`{"labels":["Sunset","beach","sunset"],"confidence":{"sunset":0.94,"beach":0.81},"category":"travel"}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Model: "vision-1"})
	analysis, err := client.Analyze(context.Background(), writeMedia(t, "sunset.jpg"), "image")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if gotAuth != "Bearer key" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotBody["model"] != "vision-1" {
		t.Fatalf("model = %v", gotBody["model"])
	}
	if len(analysis.Labels) != 2 || analysis.Labels[0] != "sunset" || analysis.Labels[1] != "beach" {
		t.Fatalf("labels not normalized: %v", analysis.Labels)
	}
	if analysis.Category != "travel" {
		t.Fatalf("category = %q", analysis.Category)
	}
	if analysis.Confidence["sunset"] != 0.94 {
		t.Fatalf("confidence = %v", analysis.Confidence)
	}
}

func TestAnalyzeToleratesFencedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fenced := "```json\n{\"labels\":[\"dog\"],\"confidence\":{\"dog\":0.9},\"category\":\"pets\"}\n```"
		fmt.Fprint(w, completionResponse(fenced))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Model: "vision-1"})
	analysis, err := client.Analyze(context.Background(), writeMedia(t, "dog.jpg"), "image")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if analysis.Category != "pets" {
		t.Fatalf("category = %q", analysis.Category)
	}
}

func TestAnalyzeUnknownCategoryFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionResponse(`{"labels":["thing"],"confidence":{"thing":0.5},"category":"cryptozoology"}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Model: "vision-1"})
	analysis, err := client.Analyze(context.Background(), writeMedia(t, "x.jpg"), "image")
	if err != nil {
		t.Fatal(err)
	}
	if analysis.Category != "general" {
		t.Fatalf("unknown category must fall back to general, got %q", analysis.Category)
	}
}

func TestAnalyzeStatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		permanent bool
	}{
		{http.StatusUnauthorized, true},
		{http.StatusForbidden, true},
		{http.StatusBadRequest, true},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
		{http.StatusBadGateway, false},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("status_%d", tc.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer server.Close()

			client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Model: "vision-1"})
			_, err := client.Analyze(context.Background(), writeMedia(t, "x.jpg"), "image")
			if err == nil {
				t.Fatal("expected error")
			}
			if services.IsPermanent(err) != tc.permanent {
				t.Fatalf("status %d: IsPermanent = %v, want %v (err=%v)", tc.status, services.IsPermanent(err), tc.permanent, err)
			}
		})
	}
}

func TestAnalyzeMissingFileIsPermanent(t *testing.T) {
	client := NewClient(Config{APIKey: "key", BaseURL: "http://127.0.0.1:0", Model: "vision-1"})
	_, err := client.Analyze(context.Background(), filepath.Join(t.TempDir(), "gone.jpg"), "image")
	if err == nil || !services.IsPermanent(err) {
		t.Fatalf("missing file must be permanent, got %v", err)
	}
}

func TestAnalyzeMissingAPIKeyIsConfiguration(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:0", Model: "vision-1"})
	_, err := client.Analyze(context.Background(), writeMedia(t, "x.jpg"), "image")
	if err == nil || !services.IsPermanent(err) {
		t.Fatalf("missing api key must be permanent, got %v", err)
	}
	if !strings.Contains(err.Error(), "api key") {
		t.Fatalf("error should mention the api key: %v", err)
	}
}
