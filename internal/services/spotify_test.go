package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/cratedig/internal/shared"
)

func newTestService(t *testing.T, baseURL string, opts ...SpotifyOption) *SpotifyService {
	t.Helper()

	base := []SpotifyOption{
		WithBaseURL(baseURL),
		WithHTTPClient(http.DefaultClient),
		WithRequestRate(1000),
		WithSleep(func(ctx context.Context, d time.Duration) error { return nil }),
	}

	svc, err := NewSpotifyService(map[string]string{
		"client_id":     "test-client",
		"client_secret": "test-secret",
	}, append(base, opts...)...)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	return svc
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatalf("failed to encode response: %v", err)
	}
}

func TestRetryPolicy(t *testing.T) {
	t.Run("Exponential Backoff", func(t *testing.T) {
		policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 60 * time.Second}

		want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
		for i, expected := range want {
			if got := policy.Delay(i+1, 0); got != expected {
				t.Errorf("attempt %d: expected %v, got %v", i+1, expected, got)
			}
		}
	})

	t.Run("Capped At MaxDelay", func(t *testing.T) {
		policy := RetryPolicy{MaxAttempts: 20, BaseDelay: time.Second, MaxDelay: 60 * time.Second}

		if got := policy.Delay(10, 0); got != 60*time.Second {
			t.Errorf("expected cap of 60s, got %v", got)
		}
	})

	t.Run("RetryAfter Overrides", func(t *testing.T) {
		policy := DefaultRetryPolicy()

		if got := policy.Delay(1, 7*time.Second); got != 7*time.Second {
			t.Errorf("Retry-After should override computed delay, got %v", got)
		}
		if got := policy.Delay(1, 300*time.Second); got != 60*time.Second {
			t.Errorf("Retry-After should still be capped, got %v", got)
		}
	})

	t.Run("Defaults", func(t *testing.T) {
		policy := DefaultRetryPolicy()
		if policy.MaxAttempts != 5 || policy.BaseDelay != time.Second || policy.MaxDelay != 60*time.Second {
			t.Errorf("unexpected default policy: %+v", policy)
		}
	})
}

func TestLikedTracksPagination(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/me/tracks") && r.URL.Query().Get("offset") == "":
			next := server.URL + "/me/tracks?offset=50&limit=50"
			writeJSON(t, w, map[string]any{
				"items": []map[string]any{{"added_at": "2024-01-01T00:00:00Z", "track": map[string]any{"id": "t1", "name": "One"}}},
				"total": 2,
				"next":  next,
			})
		case strings.HasPrefix(r.URL.Path, "/me/tracks"):
			writeJSON(t, w, map[string]any{
				"items": []map[string]any{{"added_at": "2024-01-02T00:00:00Z", "track": map[string]any{"id": "t2", "name": "Two"}}},
				"total": 2,
				"next":  nil,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	svc := newTestService(t, server.URL)
	ctx := context.Background()

	first, err := svc.LikedTracks(ctx, "")
	if err != nil {
		t.Fatalf("first page failed: %v", err)
	}
	if len(first.Items) != 1 || first.Items[0].Track.ID != "t1" {
		t.Errorf("unexpected first page: %+v", first.Items)
	}
	if first.Next == "" {
		t.Fatal("expected a next cursor")
	}

	second, err := svc.LikedTracks(ctx, first.Next)
	if err != nil {
		t.Fatalf("second page failed: %v", err)
	}
	if len(second.Items) != 1 || second.Items[0].Track.ID != "t2" {
		t.Errorf("unexpected second page: %+v", second.Items)
	}
	if second.Next != "" {
		t.Errorf("last page should have no cursor, got %q", second.Next)
	}
}

func TestRateLimitRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeJSON(t, w, map[string]any{"items": []any{}, "next": nil})
	}))
	defer server.Close()

	var slept []time.Duration
	svc := newTestService(t, server.URL, WithSleep(func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}))

	if _, err := svc.LikedTracks(context.Background(), ""); err != nil {
		t.Fatalf("expected recovery after 429, got %v", err)
	}

	if calls.Load() != 2 {
		t.Errorf("expected 2 requests, got %d", calls.Load())
	}
	if len(slept) != 1 || slept[0] != 3*time.Second {
		t.Errorf("expected one 3s Retry-After wait, got %v", slept)
	}
}

func TestAuthExpired(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	svc := newTestService(t, server.URL)

	_, err := svc.LikedTracks(context.Background(), "")
	if !errors.Is(err, shared.ErrAuthExpired) {
		t.Fatalf("expected auth expired sentinel, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("401 must not be retried, got %d requests", calls.Load())
	}
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := newTestService(t, server.URL, WithRetryPolicy(RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    60 * time.Second,
	}))

	cursor := server.URL + "/me/tracks?offset=100&limit=50"
	_, err := svc.LikedTracks(context.Background(), cursor)
	if err == nil {
		t.Fatal("expected failure after retries exhausted")
	}

	if !errors.Is(err, shared.ErrRemoteUnavailable) {
		t.Errorf("expected remote unavailable sentinel, got %v", err)
	}

	var unavailable *RemoteUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected *RemoteUnavailableError, got %T", err)
	}
	if unavailable.Cursor != cursor {
		t.Errorf("error should carry the failing page's cursor, got %q", unavailable.Cursor)
	}

	if calls.Load() != 3 {
		t.Errorf("expected exactly MaxAttempts requests, got %d", calls.Load())
	}
}

func TestCreatePlaylist(t *testing.T) {
	t.Run("Chunks Track Additions", func(t *testing.T) {
		var addCalls int
		var addedURIs []string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == "/me":
				writeJSON(t, w, map[string]any{"id": "user-1"})
			case r.URL.Path == "/users/user-1/playlists" && r.Method == http.MethodPost:
				var body map[string]any
				json.NewDecoder(r.Body).Decode(&body)
				if body["public"] != false {
					t.Error("created playlists must be private")
				}
				writeJSON(t, w, map[string]any{"id": "pl-1", "name": body["name"]})
			case r.URL.Path == "/playlists/pl-1/tracks" && r.Method == http.MethodPost:
				addCalls++
				var body struct {
					URIs []string `json:"uris"`
				}
				json.NewDecoder(r.Body).Decode(&body)
				addedURIs = append(addedURIs, body.URIs...)
				writeJSON(t, w, map[string]any{"snapshot_id": "rev-1"})
			default:
				http.NotFound(w, r)
			}
		}))
		defer server.Close()

		svc := newTestService(t, server.URL)

		trackIDs := make([]string, 150)
		for i := range trackIDs {
			trackIDs[i] = fmt.Sprintf("track-%03d", i)
		}

		playlist, err := svc.CreatePlaylist(context.Background(), "jazz - vol. 03", "desc", trackIDs)
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if playlist.ID != "pl-1" {
			t.Errorf("unexpected playlist: %+v", playlist)
		}

		if addCalls != 2 {
			t.Errorf("150 tracks should need 2 chunked additions, got %d", addCalls)
		}
		if len(addedURIs) != 150 {
			t.Fatalf("expected 150 URIs, got %d", len(addedURIs))
		}
		if addedURIs[0] != "spotify:track:track-000" {
			t.Errorf("unexpected URI format: %s", addedURIs[0])
		}
	})

	t.Run("Write Failure Carries Track List", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == "/me":
				writeJSON(t, w, map[string]any{"id": "user-1"})
			case r.URL.Path == "/users/user-1/playlists":
				writeJSON(t, w, map[string]any{"id": "pl-1"})
			default:
				w.WriteHeader(http.StatusForbidden)
			}
		}))
		defer server.Close()

		svc := newTestService(t, server.URL)

		trackIDs := []string{"t1", "t2", "t3"}
		_, err := svc.CreatePlaylist(context.Background(), "doomed", "", trackIDs)
		if err == nil {
			t.Fatal("expected write failure")
		}

		if !errors.Is(err, shared.ErrRemoteWrite) {
			t.Errorf("expected remote write sentinel, got %v", err)
		}

		var writeErr *RemoteWriteError
		if !errors.As(err, &writeErr) {
			t.Fatalf("expected *RemoteWriteError, got %T", err)
		}
		if writeErr.PlaylistName != "doomed" || len(writeErr.TrackIDs) != 3 {
			t.Errorf("error should preserve the intended playlist, got %+v", writeErr)
		}
	})
}

func TestSeveralArtistsBatching(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		if len(ids) > 50 {
			t.Errorf("batch exceeds API limit: %d ids", len(ids))
		}

		artists := make([]map[string]any, len(ids))
		for i, id := range ids {
			artists[i] = map[string]any{"id": id, "name": "Artist " + id}
		}
		writeJSON(t, w, map[string]any{"artists": artists})
	}))
	defer server.Close()

	svc := newTestService(t, server.URL)

	ids := make([]string, 120)
	for i := range ids {
		ids[i] = fmt.Sprintf("a%03d", i)
	}

	artists, err := svc.SeveralArtists(context.Background(), ids)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(artists) != 120 {
		t.Errorf("expected 120 artists, got %d", len(artists))
	}
	if calls != 3 {
		t.Errorf("120 ids should need 3 batches, got %d", calls)
	}
}

func TestAudioFeaturesNullEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"audio_features": []any{
				map[string]any{"id": "t1", "tempo": 120.0},
				nil, // track without features
			},
		})
	}))
	defer server.Close()

	svc := newTestService(t, server.URL)

	features, err := svc.AudioFeatures(context.Background(), []string{"t1", "t2"})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(features) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(features))
	}
	if features[0] == nil || features[0].ID != "t1" {
		t.Errorf("unexpected first entry: %+v", features[0])
	}
	if features[1] != nil {
		t.Error("missing features should stay nil")
	}
}

func TestGetAuthURL(t *testing.T) {
	svc, err := NewSpotifyService(map[string]string{
		"client_id":     "test-client",
		"client_secret": "test-secret",
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	raw := svc.GetAuthURL("state-123")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("auth URL does not parse: %v", err)
	}

	q := u.Query()
	if got := q.Get("client_id"); got != "test-client" {
		t.Errorf("expected client_id test-client, got %q", got)
	}
	if got := q.Get("state"); got != "state-123" {
		t.Errorf("expected state state-123, got %q", got)
	}
	if got := q.Get("redirect_uri"); got != "http://localhost:8888/callback" {
		t.Errorf("unexpected redirect_uri %q", got)
	}
	if scope := q.Get("scope"); !strings.Contains(scope, "user-library-read") {
		t.Errorf("scope should request library access, got %q", scope)
	}
}
