package structurer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Lunexa-AI/right-line-sub002/internal/cache"
	"github.com/Lunexa-AI/right-line-sub002/internal/config"
)

// Service is the surface of the remote document-structuring service the
// ingestion engine depends on
type Service interface {
	Submit(ctx context.Context, filename string, data []byte) (string, error)
	GetStatus(ctx context.Context, jobID string) (*JobState, error)
	FetchTree(ctx context.Context, jobID string) ([]TreeNode, error)
	FetchOCRNodes(ctx context.Context, jobID string) ([]OCRNode, error)
	FetchRawText(ctx context.Context, jobID string) (string, error)
	FetchPages(ctx context.Context, jobID string) ([]Page, error)
}

// Client is an HTTP client for the structuring service with rate limiting
// and an optional cache for completed-job artifact reads
type Client struct {
	httpClient    *http.Client
	apiKey        string
	baseURL       string
	cache         cache.Cache
	cacheTTL      time.Duration
	requestTicker *time.Ticker
	requestChan   chan struct{}
}

// New creates a new structuring service client. The cache may be nil, in
// which case artifact reads always go to the service.
func New(cfg config.StructurerConfig, artifactCache cache.Cache) *Client {
	rpm := cfg.RequestsPerMinute
	if rpm <= 1 {
		rpm = 60
	}
	interval := time.Minute / time.Duration(rpm-1)

	log.Info().
		Int("requests_per_minute", rpm).
		Dur("request_interval", interval).
		Str("base_url", cfg.BaseURL).
		Bool("cache_enabled", cfg.Cache && artifactCache != nil).
		Msg("Initializing structuring service client")

	ticker := time.NewTicker(interval)

	// Buffer of 1 allows one immediate request; the ticker goroutine tops
	// the token back up at the allowed rate
	requestChan := make(chan struct{}, 1)
	requestChan <- struct{}{}

	go func() {
		for range ticker.C {
			select {
			case requestChan <- struct{}{}:
			default:
			}
		}
	}()

	c := &Client{
		httpClient:    &http.Client{Timeout: time.Second * 60},
		apiKey:        cfg.APIKey,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		requestTicker: ticker,
		requestChan:   requestChan,
	}

	if cfg.Cache && artifactCache != nil {
		c.cache = artifactCache
		c.cacheTTL = time.Duration(cfg.DefaultCacheTTL) * time.Second
		if c.cacheTTL <= 0 {
			c.cacheTTL = time.Hour
		}
	}

	return c
}

// Submit uploads one document and returns the job id the service assigned
func (c *Client) Submit(ctx context.Context, filename string, data []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("error building upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("error writing upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("error closing upload form: %w", err)
	}

	if err := c.waitForToken(ctx); err != nil {
		return "", err
	}

	url := c.baseURL + "/v1/documents"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", fmt.Errorf("error creating submit request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	respBody, err := c.do(req)
	if err != nil {
		return "", err
	}

	var parsed submitResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("error parsing submit response: %w", err)
	}
	if parsed.JobID == "" {
		return "", fmt.Errorf("submit response missing job_id")
	}

	log.Debug().
		Str("filename", filename).
		Str("job_id", parsed.JobID).
		Int("size", len(data)).
		Dur("duration", time.Since(start)).
		Msg("Document submitted")

	return parsed.JobID, nil
}

// GetStatus returns the current remote state of a job
func (c *Client) GetStatus(ctx context.Context, jobID string) (*JobState, error) {
	body, err := c.get(ctx, fmt.Sprintf("/v1/documents/%s", jobID))
	if err != nil {
		return nil, err
	}

	var state JobState
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, fmt.Errorf("error parsing status response: %w", err)
	}
	if state.Status == "" {
		return nil, fmt.Errorf("status response missing status field")
	}
	return &state, nil
}

// FetchTree retrieves the structural tree for a completed job
func (c *Client) FetchTree(ctx context.Context, jobID string) ([]TreeNode, error) {
	body, err := c.getArtifact(ctx, jobID, KindTree)
	if err != nil {
		return nil, err
	}
	var parsed treeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("error parsing tree response: %w", err)
	}
	return parsed.Tree, nil
}

// FetchOCRNodes retrieves the OCR-derived node list for a completed job
func (c *Client) FetchOCRNodes(ctx context.Context, jobID string) ([]OCRNode, error) {
	body, err := c.getArtifact(ctx, jobID, KindOCRNodes)
	if err != nil {
		return nil, err
	}
	var parsed ocrResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("error parsing ocr response: %w", err)
	}
	return parsed.Nodes, nil
}

// FetchRawText retrieves the full text of a completed job in one read
func (c *Client) FetchRawText(ctx context.Context, jobID string) (string, error) {
	body, err := c.getArtifact(ctx, jobID, KindRawText)
	if err != nil {
		return "", err
	}
	var parsed textResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("error parsing text response: %w", err)
	}
	return parsed.Text, nil
}

// FetchPages retrieves per-page text for a completed job
func (c *Client) FetchPages(ctx context.Context, jobID string) ([]Page, error) {
	body, err := c.getArtifact(ctx, jobID, KindPages)
	if err != nil {
		return nil, err
	}
	var parsed pagesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("error parsing pages response: %w", err)
	}
	return parsed.Pages, nil
}

// getArtifact reads one artifact of a completed job, going through the
// cache when enabled. Terminal results are immutable on the service side,
// so serving from cache is safe.
func (c *Client) getArtifact(ctx context.Context, jobID, kind string) ([]byte, error) {
	endpoint := fmt.Sprintf("/v1/documents/%s/%s", jobID, kind)
	cacheKey := fmt.Sprintf("structurer:%s:%s", jobID, kind)

	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, cacheKey); err == nil {
			log.Trace().Str("job_id", jobID).Str("kind", kind).Msg("Artifact cache hit")
			return cached, nil
		}
	}

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, body, c.cacheTTL); err != nil {
			log.Warn().Err(err).Str("job_id", jobID).Str("kind", kind).Msg("Failed to cache artifact")
		}
	}

	return body, nil
}

// get performs a rate-limited GET against the service
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.waitForToken(ctx); err != nil {
		return nil, err
	}

	url := c.baseURL + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("url", req.URL.String()).Msg("Error executing request")
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseAPIError(resp.StatusCode, respBody)
		log.Error().
			Err(apiErr).
			Str("url", req.URL.String()).
			Int("status_code", resp.StatusCode).
			Dur("duration", time.Since(start)).
			Msg("Structuring service returned error response")
		return nil, apiErr
	}

	log.Trace().
		Str("url", req.URL.String()).
		Int("status_code", resp.StatusCode).
		Int("response_size", len(respBody)).
		Dur("duration", time.Since(start)).
		Msg("Request completed")

	return respBody, nil
}

// waitForToken blocks until the rate limiter allows another request
func (c *Client) waitForToken(ctx context.Context) error {
	select {
	case <-c.requestChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// parseAPIError extracts error information from a non-2xx response
func parseAPIError(statusCode int, respBody []byte) error {
	var errResp struct {
		Errors []struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}

	if err := json.Unmarshal(respBody, &errResp); err == nil && len(errResp.Errors) > 0 {
		return fmt.Errorf("API error: %s - %s",
			errResp.Errors[0].Title,
			errResp.Errors[0].Detail)
	}

	body := strings.TrimSpace(string(respBody))
	if len(body) > 512 {
		body = body[:512]
	}
	if body == "" {
		return fmt.Errorf("API error: status code %d", statusCode)
	}
	return fmt.Errorf("API error: status code %d: %s", statusCode, body)
}

// Close stops the rate limiter ticker
func (c *Client) Close() {
	if c.requestTicker != nil {
		c.requestTicker.Stop()
	}
}
