package instagram

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

func writeMedia(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sunset.jpg")
	if err := os.WriteFile(path, []byte("jpeg-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func publishRequest(path string) services.PublishRequest {
	return services.PublishRequest{
		FilePath:  path,
		MediaKind: "image",
		Caption:   "Golden hour.",
		Credentials: services.Credentials{
			AccountID:   "acct-1",
			AccessToken: "token",
		},
	}
}

func TestPublishTwoStepFlow(t *testing.T) {
	var calls []string
	var publishBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		switch {
		case strings.HasSuffix(r.URL.Path, "/media"):
			if auth := r.Header.Get("Authorization"); auth != "Bearer token" {
				t.Fatalf("auth header = %q", auth)
			}
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Fatalf("parse multipart: %v", err)
			}
			if got := r.FormValue("caption"); got != "Golden hour." {
				t.Fatalf("caption = %q", got)
			}
			if got := r.FormValue("media_type"); got != "IMAGE" {
				t.Fatalf("media_type = %q", got)
			}
			if _, _, err := r.FormFile("source"); err != nil {
				t.Fatalf("media part missing: %v", err)
			}
			fmt.Fprint(w, `{"id":"container-9"}`)
		case strings.HasSuffix(r.URL.Path, "/media_publish"):
			if err := json.NewDecoder(r.Body).Decode(&publishBody); err != nil {
				t.Fatalf("decode publish body: %v", err)
			}
			fmt.Fprint(w, `{"id":"post-42"}`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	result, err := client.Publish(context.Background(), publishRequest(writeMedia(t)))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if result.PostID != "post-42" {
		t.Fatalf("post id = %q", result.PostID)
	}
	if len(calls) != 2 || !strings.Contains(calls[0], "/acct-1/media") || !strings.Contains(calls[1], "/acct-1/media_publish") {
		t.Fatalf("call sequence wrong: %v", calls)
	}
	if publishBody["creation_id"] != "container-9" {
		t.Fatalf("creation_id = %q", publishBody["creation_id"])
	}
}

func TestPublishStatusClassification(t *testing.T) {
	tests := []struct {
		status      int
		permanent   bool
		rateLimited bool
	}{
		{http.StatusUnauthorized, true, false},
		{http.StatusForbidden, true, false},
		{http.StatusTooManyRequests, false, true},
		{http.StatusInternalServerError, false, false},
		{http.StatusUnprocessableEntity, true, false},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("status_%d", tc.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tc.status)
			}))
			defer server.Close()

			client := NewClient(Config{BaseURL: server.URL})
			_, err := client.Publish(context.Background(), publishRequest(writeMedia(t)))
			if err == nil {
				t.Fatal("expected error")
			}
			if services.IsPermanent(err) != tc.permanent {
				t.Fatalf("IsPermanent = %v, want %v (err=%v)", services.IsPermanent(err), tc.permanent, err)
			}
			if services.IsRateLimited(err) != tc.rateLimited {
				t.Fatalf("IsRateLimited = %v, want %v (err=%v)", services.IsRateLimited(err), tc.rateLimited, err)
			}
		})
	}
}

func TestPublishFailureAfterContainerReturnsNoPostID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/media") {
			fmt.Fprint(w, `{"id":"container-9"}`)
			return
		}
		http.Error(w, "backend down", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	result, err := client.Publish(context.Background(), publishRequest(writeMedia(t)))
	if err == nil {
		t.Fatal("expected error when publish step fails")
	}
	if result.PostID != "" {
		t.Fatalf("no post id may be reported on failure, got %q", result.PostID)
	}
	if services.IsPermanent(err) {
		t.Fatalf("5xx on publish step must be transient: %v", err)
	}
}

func TestPublishMissingCredentialsIsPermanent(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:0"})
	req := publishRequest(writeMedia(t))
	req.Credentials = services.Credentials{}
	_, err := client.Publish(context.Background(), req)
	if err == nil || !services.IsPermanent(err) {
		t.Fatalf("missing credentials must be permanent, got %v", err)
	}
}

func TestPublishVideoUsesReelsMediaType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/media") {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Fatalf("parse multipart: %v", err)
			}
			if got := r.FormValue("media_type"); got != "REELS" {
				t.Fatalf("media_type = %q", got)
			}
			fmt.Fprint(w, `{"id":"c"}`)
			return
		}
		fmt.Fprint(w, `{"id":"p"}`)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	req := publishRequest(writeMedia(t))
	req.MediaKind = "video"
	if _, err := client.Publish(context.Background(), req); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}
