// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnauthorized = errors.New("engine session expired")
	ErrEmptyMagnet  = errors.New("magnet link is empty")
)

// Feature minimum engine versions. The engine reports its version through
// the health endpoint; older engines lack some of the surface.
var (
	searchMinVersion        = semver.MustParse("1.1.0")
	speedHistoryMinVersion  = semver.MustParse("1.2.0")
	fileSelectionMinVersion = semver.MustParse("1.3.0")
)

// APIError is a non-2xx response from the engine.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("engine returned status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("engine returned status %d", e.Status)
}

const (
	defaultTimeout    = 30 * time.Second
	getRetryAttempts  = 3
	getRetryBaseDelay = 200 * time.Millisecond
)

// Client talks to the torrentedge engine REST API. A bearer token is
// attached to every authenticated request; a 401 response clears the stored
// token and surfaces ErrUnauthorized.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string

	tokens TokenStore

	mu            sync.RWMutex
	token         string
	engineVersion string

	supportsSearch        bool
	supportsSpeedHistory  bool
	supportsFileSelection bool
}

func NewClient(engineURL string, tokens TokenStore, userAgent string) (*Client, error) {
	base, err := parseBaseURL(engineURL)
	if err != nil {
		return nil, err
	}

	if tokens == nil {
		tokens = &MemoryTokenStore{}
	}

	c := &Client{
		baseURL:   base,
		http:      &http.Client{Timeout: defaultTimeout},
		userAgent: userAgent,
		tokens:    tokens,
	}

	token, err := tokens.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load persisted engine token")
	} else {
		c.token = token
	}

	return c, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("engine URL is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse engine URL %q: %w", raw, err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// PushURL derives the WebSocket push endpoint from the engine base URL.
func (c *Client) PushURL() string {
	u := *c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = u.Path + "/events"
	return u.String()
}

// Token returns the current bearer token, empty when logged out.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	if token == "" {
		if err := c.tokens.Clear(); err != nil {
			log.Warn().Err(err).Msg("Failed to clear persisted engine token")
		}
		return
	}
	if err := c.tokens.Save(token); err != nil {
		log.Warn().Err(err).Msg("Failed to persist engine token")
	}
}

// EngineVersion returns the last version reported by the health endpoint.
func (c *Client) EngineVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.engineVersion
}

func (c *Client) SupportsSearch() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.supportsSearch
}

func (c *Client) SupportsSpeedHistory() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.supportsSpeedHistory
}

func (c *Client) SupportsFileSelection() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.supportsFileSelection
}

// RefreshCapabilities fetches the engine version and recalculates feature
// support flags.
func (c *Client) RefreshCapabilities(ctx context.Context) error {
	health, err := c.Health(ctx)
	if err != nil {
		return err
	}

	version := strings.TrimSpace(health.Version)
	if version == "" {
		return fmt.Errorf("engine version is empty")
	}

	c.mu.Lock()
	previous := c.engineVersion
	c.applyCapabilitiesLocked(version)
	c.mu.Unlock()

	if previous != version {
		log.Debug().
			Str("previousEngineVersion", previous).
			Str("engineVersion", version).
			Msg("Refreshed engine capabilities")
	}

	return nil
}

func (c *Client) applyCapabilitiesLocked(version string) {
	c.engineVersion = version

	v, err := semver.NewVersion(version)
	if err != nil {
		log.Warn().
			Str("engineVersion", version).
			Err(err).
			Msg("Failed to parse engine version; leaving capability flags unchanged")
		return
	}

	c.supportsSearch = !v.LessThan(searchMinVersion)
	c.supportsSpeedHistory = !v.LessThan(speedHistoryMinVersion)
	c.supportsFileSelection = !v.LessThan(fileSelectionMinVersion)
}

// Health checks engine reachability. Unauthenticated.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var payload HealthStatus
	if err := c.get(ctx, "/api/health", &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Login authenticates against the engine and stores the returned token.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	var payload struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", body, &payload); err != nil {
		return err
	}
	if payload.Token == "" {
		return fmt.Errorf("engine returned empty token")
	}
	c.setToken(payload.Token)
	return nil
}

// Register creates a new engine account.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	body := map[string]string{"username": username, "email": email, "password": password}
	return c.doJSON(ctx, http.MethodPost, "/api/auth/register", body, nil)
}

// Logout drops the stored token. Local only; the engine keeps no session
// state beyond the token itself.
func (c *Client) Logout() {
	c.setToken("")
}

// Profile fetches the account owning the current session.
func (c *Client) Profile(ctx context.Context) (*User, error) {
	var payload User
	if err := c.get(ctx, "/api/user/profile", &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// UpdateProfile updates mutable account fields.
func (c *Client) UpdateProfile(ctx context.Context, email string) (*User, error) {
	body := map[string]string{"email": email}
	var payload User
	if err := c.doJSON(ctx, http.MethodPut, "/api/user/profile", body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// ListTorrents fetches the full torrent list.
func (c *Client) ListTorrents(ctx context.Context) ([]TorrentSummary, error) {
	var payload struct {
		Torrents []TorrentSummary `json:"torrents"`
	}
	if err := c.get(ctx, "/api/torrents", &payload); err != nil {
		return nil, err
	}
	return payload.Torrents, nil
}

// GetTorrent fetches a single torrent by id.
func (c *Client) GetTorrent(ctx context.Context, id string) (*TorrentSummary, error) {
	var payload TorrentSummary
	if err := c.get(ctx, "/api/torrents/"+url.PathEscape(id), &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetTorrentStats fetches live per-torrent counters.
func (c *Client) GetTorrentStats(ctx context.Context, id string) (*TorrentLiveStats, error) {
	var payload TorrentLiveStats
	if err := c.get(ctx, "/api/torrents/"+url.PathEscape(id)+"/stats", &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// AddMagnet submits a magnet link. Empty input is rejected client-side
// before any request is made.
func (c *Client) AddMagnet(ctx context.Context, magnet string) (*TorrentSummary, error) {
	if strings.TrimSpace(magnet) == "" {
		return nil, ErrEmptyMagnet
	}
	body := map[string]string{"magnet": magnet}
	var payload TorrentSummary
	if err := c.doJSON(ctx, http.MethodPost, "/api/torrents/magnet", body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// AddTorrentFile uploads a single .torrent file.
func (c *Client) AddTorrentFile(ctx context.Context, filename string, r io.Reader) (*TorrentSummary, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("torrent", filename)
	if err != nil {
		return nil, fmt.Errorf("create multipart: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("copy torrent payload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/torrents", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var payload TorrentSummary
	if err := c.send(req, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Upload is one named payload of a batch add.
type Upload struct {
	Name string
	Data io.Reader
}

// AddTorrentFiles uploads several .torrent files. Each file succeeds or
// fails independently; the caller gets one result per input.
func (c *Client) AddTorrentFiles(ctx context.Context, uploads []Upload) []AddResult {
	results := make([]AddResult, 0, len(uploads))
	for _, up := range uploads {
		added, err := c.AddTorrentFile(ctx, up.Name, up.Data)
		if err != nil {
			results = append(results, AddResult{Name: up.Name, Err: err.Error()})
			continue
		}
		results = append(results, AddResult{Name: up.Name, ID: added.ID, OK: true})
	}
	return results
}

// StartTorrent asks the engine to start a queued or paused torrent.
func (c *Client) StartTorrent(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/torrents/"+url.PathEscape(id)+"/start", nil, nil)
}

// PauseTorrent pauses an active torrent.
func (c *Client) PauseTorrent(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/torrents/"+url.PathEscape(id)+"/pause", nil, nil)
}

// ResumeTorrent resumes a paused torrent.
func (c *Client) ResumeTorrent(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/torrents/"+url.PathEscape(id)+"/resume", nil, nil)
}

// DeleteTorrent removes a torrent, optionally deleting downloaded files.
func (c *Client) DeleteTorrent(ctx context.Context, id string, deleteFiles bool) error {
	path := "/api/torrents/" + url.PathEscape(id)
	if deleteFiles {
		path += "?deleteFiles=true"
	}
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// Search runs a server-side torrent search.
func (c *Client) Search(ctx context.Context, query string) ([]TorrentSummary, error) {
	values := url.Values{}
	values.Set("q", query)
	var payload struct {
		Results []TorrentSummary `json:"results"`
	}
	if err := c.get(ctx, "/api/torrents/search?"+values.Encode(), &payload); err != nil {
		return nil, err
	}
	return payload.Results, nil
}

// TorrentFiles lists the files inside a torrent.
func (c *Client) TorrentFiles(ctx context.Context, id string) ([]TorrentFile, error) {
	var payload struct {
		Files []TorrentFile `json:"files"`
	}
	if err := c.get(ctx, "/api/torrents/"+url.PathEscape(id)+"/files", &payload); err != nil {
		return nil, err
	}
	return payload.Files, nil
}

// SelectFiles marks which files of a torrent should be downloaded.
func (c *Client) SelectFiles(ctx context.Context, id string, indices []int) error {
	body := map[string][]int{"files": indices}
	return c.doJSON(ctx, http.MethodPut, "/api/torrents/"+url.PathEscape(id)+"/files", body, nil)
}

// SystemStats fetches the engine-wide aggregate counters.
func (c *Client) SystemStats(ctx context.Context) (*SystemStats, error) {
	var payload SystemStats
	if err := c.get(ctx, "/api/stats", &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// SpeedHistory fetches the engine-side bandwidth history snapshot.
func (c *Client) SpeedHistory(ctx context.Context) ([]SpeedSample, error) {
	var payload struct {
		Samples []SpeedSample `json:"samples"`
	}
	if err := c.get(ctx, "/api/stats/speed", &payload); err != nil {
		return nil, err
	}
	return payload.Samples, nil
}

// GetSettings fetches the engine settings.
func (c *Client) GetSettings(ctx context.Context) (*Settings, error) {
	var payload Settings
	if err := c.get(ctx, "/api/settings", &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// UpdateSettings replaces the engine settings.
func (c *Client) UpdateSettings(ctx context.Context, s *Settings) (*Settings, error) {
	var payload Settings
	if err := c.doJSON(ctx, http.MethodPut, "/api/settings", s, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// get performs an idempotent GET with bounded retries on transport errors.
func (c *Client) get(ctx context.Context, path string, dest any) error {
	return retry.Do(
		func() error {
			req, err := c.newRequest(ctx, http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			return c.send(req, dest)
		},
		retry.Context(ctx),
		retry.Attempts(getRetryAttempts),
		retry.Delay(getRetryBaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isTransient),
	)
}

// isTransient reports whether a request is worth retrying. API errors,
// including 401, are authoritative and never retried.
func isTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, dest)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	// The engine may live under a path prefix. Absolute-path resolution
	// would drop it, so the base path is prepended verbatim.
	endpoint := c.baseURL.Scheme + "://" + c.baseURL.Host + c.baseURL.EscapedPath() + path

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req, nil
}

func (c *Client) send(req *http.Request, dest any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Mirror of the browser behavior: a 401 invalidates the session
		// outright, there is no refresh flow.
		c.setToken("")
		return ErrUnauthorized
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var body struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil {
			if body.Error != "" {
				apiErr.Message = body.Error
			} else {
				apiErr.Message = body.Message
			}
		}
		return apiErr
	}

	if dest == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
