// Spotify API implementation of [Library]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cratedig/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	pageLimit        = 50  // Items per page for paginated reads
	artistBatchSize  = 50  // IDs per /artists request
	featureBatchSize = 100 // IDs per /audio-features request
	addTracksChunk   = 100 // URIs per playlist-add request
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyArtist represents a Spotify artist. Genre and popularity fields are
// only populated on full artist objects (the /artists endpoint), not on the
// simplified artists embedded in track payloads.
type SpotifyArtist struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Popularity int            `json:"popularity"`
	Genres     []string       `json:"genres"`
	Images     []SpotifyImage `json:"images"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	AlbumType   string         `json:"album_type"`
	ReleaseDate string         `json:"release_date"` // YYYY, YYYY-MM, or YYYY-MM-DD
	TotalTracks int            `json:"total_tracks"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	Explicit    bool            `json:"explicit"`
	Popularity  int             `json:"popularity"`
	PreviewURL  string          `json:"preview_url"`
	TrackNumber int             `json:"track_number"`
}

// SpotifySavedTrack represents a track saved in the user's library.
type SpotifySavedTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
// Track may be null for removed or unavailable items.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

type playlistOwner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTrackRef struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Owner         playlistOwner    `json:"owner"`
	Public        bool             `json:"public"`
	Collaborative bool             `json:"collaborative"`
	SnapshotID    string           `json:"snapshot_id"`
	Tracks        playlistTrackRef `json:"tracks"`
	Images        []SpotifyImage   `json:"images"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyPlaylist represents a full playlist object.
type SpotifyPlaylist struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Owner        playlistOwner `json:"owner"`
	Public       bool          `json:"public"`
	SnapshotID   string        `json:"snapshot_id"`
	ExternalURLs externalURLs  `json:"external_urls"`
}

// SpotifyAudioFeatures represents the audio feature record for one track.
type SpotifyAudioFeatures struct {
	ID               string  `json:"id"`
	Tempo            float64 `json:"tempo"`
	Key              int     `json:"key"`
	Mode             int     `json:"mode"`
	Energy           float64 `json:"energy"`
	Danceability     float64 `json:"danceability"`
	Valence          float64 `json:"valence"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	Loudness         float64 `json:"loudness"`
	Speechiness      float64 `json:"speechiness"`
	TimeSignature    int     `json:"time_signature"`
}

// paginated is the generic Spotify pagination envelope.
type paginated[T any] struct {
	Items []T     `json:"items"`
	Total int     `json:"total"`
	Next  *string `json:"next"`
}

// SpotifyService implements [Library] against the Spotify Web API.
//
// Requests are paced with a [rate.Limiter] and retried per [RetryPolicy].
// Cursors are the opaque `next` URLs from pagination envelopes.
type SpotifyService struct {
	config     *oauth2.Config
	token      *oauth2.Token
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryPolicy
	sleep      sleepFunc
	baseURL    string
	logger     *log.Logger
}

// SpotifyOption configures a SpotifyService.
type SpotifyOption func(*SpotifyService)

// WithBaseURL overrides the API base URL. Used by tests against a local server.
func WithBaseURL(u string) SpotifyOption {
	return func(s *SpotifyService) { s.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient overrides the HTTP client (bypassing oauth2 transport).
func WithHTTPClient(c *http.Client) SpotifyOption {
	return func(s *SpotifyService) { s.httpClient = c }
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) SpotifyOption {
	return func(s *SpotifyService) { s.retry = p }
}

// WithRequestRate sets the request pacing in requests per second.
func WithRequestRate(rps float64) SpotifyOption {
	return func(s *SpotifyService) { s.limiter = rate.NewLimiter(rate.Limit(rps), 1) }
}

// WithSleep overrides the backoff sleep for tests with a fake clock.
func WithSleep(fn func(context.Context, time.Duration) error) SpotifyOption {
	return func(s *SpotifyService) { s.sleep = fn }
}

// WithLogger attaches a logger for retry and pagination diagnostics.
func WithLogger(l *log.Logger) SpotifyOption {
	return func(s *SpotifyService) { s.logger = l }
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := credentials["redirect_uri"]
	if redirectURI == "" {
		redirectURI = "http://localhost:8888/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-library-read",
			"playlist-read-private",
			"playlist-read-collaborative",
			"playlist-modify-private",
			"playlist-modify-public",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	s := &SpotifyService{
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(5), 1),
		retry:   DefaultRetryPolicy(),
		sleep:   sleepFor,
		baseURL: spotifyBaseURL,
		logger:  shared.NewLogger(nil),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Authenticate wires up the authenticated HTTP client from stored tokens.
//
// Expects "access_token" and/or "refresh_token" in credentials. With a refresh
// token present the oauth2 transport refreshes transparently; a failed refresh
// surfaces as [shared.ErrAuthExpired] on the next request.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	accessToken := credentials["access_token"]
	refreshToken := credentials["refresh_token"]

	if accessToken == "" && refreshToken == "" {
		return fmt.Errorf("%w: missing access_token or refresh_token", shared.ErrMissingCredentials)
	}

	s.token = &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}
	if refreshToken != "" && accessToken == "" {
		// Force a refresh on first use
		s.token.Expiry = time.Now().Add(-time.Minute)
	}

	if s.httpClient == nil {
		s.httpClient = s.config.Client(ctx, s.token)
	}

	return nil
}

// doRequest performs one authenticated HTTP request and decodes the JSON
// response. Returns the Retry-After duration alongside retryable errors.
func (s *SpotifyService) doRequest(ctx context.Context, method, requestURL string, body, result any) (retryable bool, retryAfter time.Duration, err error) {
	if s.httpClient == nil {
		return false, 0, fmt.Errorf("not authenticated: call Authenticate first")
	}

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return false, 0, fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reqBody)
	if err != nil {
		return false, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			// Token refresh rejected: not retryable here, the refresh
			// collaborator owns recovery.
			return false, 0, fmt.Errorf("%w: token refresh rejected: %v", shared.ErrAuthExpired, retrieveErr)
		}
		if ctx.Err() != nil {
			return false, 0, ctx.Err()
		}
		return true, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return false, 0, fmt.Errorf("%w: status 401", shared.ErrAuthExpired)
	case resp.StatusCode == http.StatusTooManyRequests:
		return true, parseRetryAfter(resp.Header.Get("Retry-After")), fmt.Errorf("rate limited: status 429")
	case resp.StatusCode >= 500:
		return true, 0, fmt.Errorf("spotify API error: status %d", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return false, 0, fmt.Errorf("spotify API error: status %d", resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return false, 0, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return false, 0, nil
}

// parseRetryAfter reads a Retry-After header value in seconds.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// doRetried performs a request under the retry policy. cursor identifies the
// page for resume purposes: after the attempt budget is spent the caller gets
// a [RemoteUnavailableError] carrying it.
func (s *SpotifyService) doRetried(ctx context.Context, method, requestURL, cursor string, body, result any) error {
	var lastErr error

	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		retryable, retryAfter, err := s.doRequest(ctx, method, requestURL, body, result)
		if err == nil {
			return nil
		}
		if !retryable {
			return err
		}

		lastErr = err
		if attempt == s.retry.MaxAttempts {
			break
		}

		delay := s.retry.Delay(attempt, retryAfter)
		s.logger.Warn("retrying request", "url", requestURL, "attempt", attempt, "delay", delay, "error", err)
		if err := s.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return &RemoteUnavailableError{Cursor: cursor, Err: lastErr}
}

// fetchPage fetches one page of a paginated collection. An empty cursor
// addresses the collection's first page at endpoint; otherwise the cursor is
// the absolute next URL from a previous page.
func fetchPage[T any](ctx context.Context, s *SpotifyService, endpoint, cursor string) (*Page[T], error) {
	pageURL := cursor
	if pageURL == "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		pageURL = fmt.Sprintf("%s%s%slimit=%d", s.baseURL, endpoint, sep, pageLimit)
	}

	var envelope paginated[T]
	if err := s.doRetried(ctx, http.MethodGet, pageURL, cursor, nil, &envelope); err != nil {
		return nil, err
	}

	page := &Page[T]{Items: envelope.Items}
	if envelope.Next != nil {
		page.Next = *envelope.Next
	}
	return page, nil
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRetried(ctx, http.MethodGet, s.baseURL+"/me", "", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// LikedTracks fetches one page of the user's saved tracks.
func (s *SpotifyService) LikedTracks(ctx context.Context, cursor string) (*Page[SpotifySavedTrack], error) {
	return fetchPage[SpotifySavedTrack](ctx, s, "/me/tracks", cursor)
}

// Playlists fetches one page of the user's playlists.
func (s *SpotifyService) Playlists(ctx context.Context, cursor string) (*Page[SpotifySimplePlaylist], error) {
	return fetchPage[SpotifySimplePlaylist](ctx, s, "/me/playlists", cursor)
}

// PlaylistTracks fetches one page of a playlist's membership.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID, cursor string) (*Page[SpotifyPlaylistTrack], error) {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return fetchPage[SpotifyPlaylistTrack](ctx, s, endpoint, cursor)
}

// SeveralArtists retrieves full artist records in batches of 50.
func (s *SpotifyService) SeveralArtists(ctx context.Context, ids []string) ([]SpotifyArtist, error) {
	artists := make([]SpotifyArtist, 0, len(ids))

	for start := 0; start < len(ids); start += artistBatchSize {
		end := min(start+artistBatchSize, len(ids))
		batch := strings.Join(ids[start:end], ",")

		var response struct {
			Artists []SpotifyArtist `json:"artists"`
		}
		requestURL := fmt.Sprintf("%s/artists?ids=%s", s.baseURL, url.QueryEscape(batch))
		if err := s.doRetried(ctx, http.MethodGet, requestURL, "", nil, &response); err != nil {
			return nil, err
		}

		artists = append(artists, response.Artists...)
	}

	return artists, nil
}

// AudioFeatures retrieves audio features in batches of 100. Entries are nil
// for tracks without available features.
func (s *SpotifyService) AudioFeatures(ctx context.Context, ids []string) ([]*SpotifyAudioFeatures, error) {
	features := make([]*SpotifyAudioFeatures, 0, len(ids))

	for start := 0; start < len(ids); start += featureBatchSize {
		end := min(start+featureBatchSize, len(ids))
		batch := strings.Join(ids[start:end], ",")

		var response struct {
			AudioFeatures []*SpotifyAudioFeatures `json:"audio_features"`
		}
		requestURL := fmt.Sprintf("%s/audio-features?ids=%s", s.baseURL, url.QueryEscape(batch))
		if err := s.doRetried(ctx, http.MethodGet, requestURL, "", nil, &response); err != nil {
			return nil, err
		}

		features = append(features, response.AudioFeatures...)
	}

	return features, nil
}

// CreatePlaylist creates a private playlist for the current user and adds the
// given tracks in order, chunked per the API's 100-URI limit.
//
// The write is fire-and-forget from the sync core's perspective; any failure
// comes back as a [RemoteWriteError] carrying the full intended track list.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name, description string, trackIDs []string) (*SpotifyPlaylist, error) {
	user, err := s.UserProfile(ctx)
	if err != nil {
		return nil, &RemoteWriteError{PlaylistName: name, TrackIDs: trackIDs, Err: err}
	}

	createURL := fmt.Sprintf("%s/users/%s/playlists", s.baseURL, url.PathEscape(user.ID))
	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      false,
	}

	var playlist SpotifyPlaylist
	if err := s.doRetried(ctx, http.MethodPost, createURL, "", body, &playlist); err != nil {
		return nil, &RemoteWriteError{PlaylistName: name, TrackIDs: trackIDs, Err: err}
	}

	addURL := fmt.Sprintf("%s/playlists/%s/tracks", s.baseURL, url.PathEscape(playlist.ID))
	for start := 0; start < len(trackIDs); start += addTracksChunk {
		end := min(start+addTracksChunk, len(trackIDs))

		uris := make([]string, 0, end-start)
		for _, id := range trackIDs[start:end] {
			uris = append(uris, "spotify:track:"+id)
		}

		if err := s.doRetried(ctx, http.MethodPost, addURL, "", map[string]any{"uris": uris}, nil); err != nil {
			return nil, &RemoteWriteError{PlaylistName: name, TrackIDs: trackIDs, Err: err}
		}
	}

	return &playlist, nil
}
