// HTTP client for a running crowdq control server
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/desertthunder/crowdq/internal/models"
	"github.com/desertthunder/crowdq/internal/shared"
)

// DefaultServerURL is where the CLI looks for a control server when none is given.
const DefaultServerURL = "http://127.0.0.1:3000"

// APIService makes requests against the control server's JSON API.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a client for the control server at baseURL.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = DefaultServerURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.do(ctx, http.MethodPost, path, data)
}

func (a *APIService) do(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &APIResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: raw}, nil
}

// call sends in as JSON (when non-nil) and decodes a 2xx response into out.
func (a *APIService) call(ctx context.Context, method, path string, in, out any) error {
	var data []byte
	if in != nil {
		var err error
		if data, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	resp, err := a.do(ctx, method, path, data)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(resp.Body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%w: %s", shared.ErrAPIRequest, apiErr.Error)
		}
		return fmt.Errorf("%w: %s %s: status %d", shared.ErrAPIRequest, method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Queue returns the ranked collaborative queue.
func (a *APIService) Queue(ctx context.Context) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	if err := a.call(ctx, http.MethodGet, "/api/queue", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// NowPlaying returns the last observed playback.
func (a *APIService) NowPlaying(ctx context.Context) (*models.NowPlaying, error) {
	var np models.NowPlaying
	if err := a.call(ctx, http.MethodGet, "/api/now-playing", nil, &np); err != nil {
		return nil, err
	}
	return &np, nil
}

// AddSong submits a song request.
func (a *APIService) AddSong(ctx context.Context, req models.AddSongRequest) (*models.AddResult, error) {
	var result models.AddResult
	if err := a.call(ctx, http.MethodPost, "/api/songs", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Vote casts userID's vote for the song at the 1-based position.
func (a *APIService) Vote(ctx context.Context, position int, userID string) (bool, error) {
	var result models.VoteResult
	req := models.VoteRequest{Position: position, UserID: userID}
	if err := a.call(ctx, http.MethodPost, "/api/votes", req, &result); err != nil {
		return false, err
	}
	return result.Accepted, nil
}

// Skip retires count songs and returns their titles.
func (a *APIService) Skip(ctx context.Context, count int) ([]string, error) {
	var result models.SkipResult
	if err := a.call(ctx, http.MethodPost, "/api/skip", models.SkipRequest{Count: count}, &result); err != nil {
		return nil, err
	}
	return result.Retired, nil
}
