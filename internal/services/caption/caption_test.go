package caption

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"snapflow/internal/services"
)

func completionResponse(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	encoded, _ := json.Marshal(resp)
	return string(encoded)
}

func captionServer(t *testing.T, content string, capture *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			if err := json.NewDecoder(r.Body).Decode(capture); err != nil {
				t.Fatalf("decode request: %v", err)
			}
		}
		fmt.Fprint(w, completionResponse(content))
	}))
}

func baseRequest() services.CaptionRequest {
	return services.CaptionRequest{
		Analysis: services.Analysis{
			Labels:   []string{"sunset", "beach"},
			Category: "travel",
		},
		User:      "alice",
		Style:     StyleProfessional,
		MediaKind: "image",
		MaxLength: 2200,
	}
}

func TestGenerateCaptionAssemblesBodyAndHashtags(t *testing.T) {
	var got map[string]any
	server := captionServer(t, "Caption: Golden hour at the coast.", &got)
	defer server.Close()

	client := NewClient(Config{
		APIKey:      "key",
		BaseURL:     server.URL,
		Model:       "writer-1",
		UseHashtags: true,
		MaxHashtags: 5,
	})
	text, err := client.GenerateCaption(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("GenerateCaption: %v", err)
	}

	parts := strings.SplitN(text, "\n\n", 2)
	if len(parts) != 2 {
		t.Fatalf("expected body and hashtag block, got %q", text)
	}
	if parts[0] != "Golden hour at the coast." {
		t.Fatalf("body = %q", parts[0])
	}
	tags := strings.Fields(parts[1])
	if len(tags) != 5 {
		t.Fatalf("hashtags = %d, want 5: %q", len(tags), parts[1])
	}
	if tags[0] != "#travel" {
		t.Fatalf("first tag should be category pool head, got %q", tags[0])
	}

	prompt := got["messages"].([]any)[1].(map[string]any)["content"].(string)
	if !strings.Contains(prompt, "professional") || !strings.Contains(prompt, "travel") {
		t.Fatalf("prompt missing style or category: %q", prompt)
	}
	if !strings.Contains(prompt, "sunset, beach") {
		t.Fatalf("prompt missing labels: %q", prompt)
	}
}

func TestGenerateCaptionStripsModelHashtags(t *testing.T) {
	server := captionServer(t, "Great #sunset with @friends!", nil)
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Model: "m"})
	text, err := client.GenerateCaption(context.Background(), baseRequest())
	if err != nil {
		t.Fatal(err)
	}
	if strings.ContainsAny(text, "#@") {
		t.Fatalf("model hashtags/mentions must be stripped: %q", text)
	}
}

func TestGenerateCaptionEngagingStyleAppendsSuffix(t *testing.T) {
	server := captionServer(t, "What a view.", nil)
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Model: "m"})
	req := baseRequest()
	req.Style = StyleEngaging

	first, err := client.GenerateCaption(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if first == "What a view." {
		t.Fatal("engaging style should append an engagement line")
	}

	// The suffix is stable for the same user and content.
	second, err := client.GenerateCaption(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("engagement suffix not stable: %q vs %q", first, second)
	}
}

func TestGenerateCaptionTruncatesAtWordBoundary(t *testing.T) {
	long := strings.Repeat("wonderful view of the coastline ", 20)
	server := captionServer(t, long, nil)
	defer server.Close()

	client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Model: "m"})
	req := baseRequest()
	req.MaxLength = 100

	text, err := client.GenerateCaption(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len([]rune(text)) > 100 {
		t.Fatalf("caption exceeds limit: %d runes", len([]rune(text)))
	}
	if strings.HasSuffix(text, " ") {
		t.Fatalf("truncation left trailing space: %q", text)
	}
}

func TestGenerateCaptionStatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		permanent bool
	}{
		{http.StatusUnauthorized, true},
		{http.StatusTooManyRequests, false},
		{http.StatusServiceUnavailable, false},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("status_%d", tc.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer server.Close()

			client := NewClient(Config{APIKey: "key", BaseURL: server.URL, Model: "m"})
			_, err := client.GenerateCaption(context.Background(), baseRequest())
			if err == nil {
				t.Fatal("expected error")
			}
			if services.IsPermanent(err) != tc.permanent {
				t.Fatalf("IsPermanent = %v, want %v (err=%v)", services.IsPermanent(err), tc.permanent, err)
			}
		})
	}
}

func TestGenerateCaptionWithoutLabelsIsPermanent(t *testing.T) {
	client := NewClient(Config{APIKey: "key", BaseURL: "http://127.0.0.1:0", Model: "m"})
	req := baseRequest()
	req.Analysis.Labels = nil
	_, err := client.GenerateCaption(context.Background(), req)
	if err == nil || !services.IsPermanent(err) {
		t.Fatalf("caption without labels must be permanent, got %v", err)
	}
}

func TestBuildHashtagsDeduplicatesLabelTags(t *testing.T) {
	tags := BuildHashtags("travel", []string{"travel", "mountain lake"}, 12)
	fields := strings.Fields(tags)
	seen := make(map[string]int)
	for _, tag := range fields {
		seen[tag]++
	}
	for tag, n := range seen {
		if n > 1 {
			t.Fatalf("duplicate tag %q", tag)
		}
	}
	found := false
	for _, tag := range fields {
		if tag == "#mountainlake" {
			found = true
		}
	}
	if !found {
		t.Fatalf("label-derived tag missing: %q", tags)
	}
}

func TestNormalizeStyle(t *testing.T) {
	if NormalizeStyle(" Funny ") != StyleFunny {
		t.Fatal("known style not normalized")
	}
	if NormalizeStyle("poetic") != StyleEngaging {
		t.Fatal("unknown style must fall back to engaging")
	}
}
