package sabnzbd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/trackarr/trackarr/internal/config"
)

// Client wraps direct SABnzbd API HTTP calls
type Client struct {
	baseURL      string
	apiKey       string
	historyLimit int
	httpClient   *http.Client
	logger       *logrus.Logger
}

// NewClient creates a new SABnzbd client
func NewClient(cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	if cfg.SABnzbdURL == "" {
		return nil, fmt.Errorf("SABnzbd URL is required")
	}
	if cfg.SABnzbdAPIKey == "" {
		return nil, fmt.Errorf("SABnzbd API key is required")
	}

	return &Client{
		baseURL:      cfg.SABnzbdURL,
		apiKey:       cfg.SABnzbdAPIKey,
		historyLimit: cfg.HistoryLimit,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}, nil
}

// apiRequest performs a SABnzbd API call and decodes the JSON response
func (c *Client) apiRequest(ctx context.Context, mode string, extra url.Values, result interface{}) error {
	apiURL, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid SABnzbd URL: %w", err)
	}

	if apiURL.Path == "" || apiURL.Path == "/" {
		apiURL.Path = "/api"
	}

	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("output", "json")
	params.Set("mode", mode)
	for key, values := range extra {
		for _, value := range values {
			params.Add(key, value)
		}
	}
	apiURL.RawQuery = params.Encode()

	c.logger.WithFields(logrus.Fields{
		"mode": mode,
	}).Debug("Performing SABnzbd API request")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "trackarr/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("SABnzbd API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"body":        string(body),
		}).Error("SABnzbd API returned non-OK status")
		return fmt.Errorf("SABnzbd API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to parse SABnzbd response: %w", err)
	}

	return nil
}

// FetchQueue retrieves the current queue as standardized items
func (c *Client) FetchQueue(ctx context.Context) ([]Item, error) {
	var resp queueResponse
	if err := c.apiRequest(ctx, "queue", nil, &resp); err != nil {
		return nil, err
	}

	items := parseQueueSlots(resp.Queue)
	c.logger.WithField("count", len(items)).Debug("SABnzbd queue fetched")
	return items, nil
}

// FetchHistory retrieves recent history as standardized items
func (c *Client) FetchHistory(ctx context.Context) ([]Item, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(c.historyLimit))

	var resp historyResponse
	if err := c.apiRequest(ctx, "history", params, &resp); err != nil {
		return nil, err
	}

	items := parseHistorySlots(resp.History)
	c.logger.WithField("count", len(items)).Debug("SABnzbd history fetched")
	return items, nil
}

// SetPriority changes the priority of a queued download
func (c *Client) SetPriority(ctx context.Context, nzoID string, code int) error {
	params := url.Values{}
	params.Set("name", "priority")
	params.Set("value", nzoID)
	params.Set("value2", strconv.Itoa(code))

	var resp struct {
		Status bool   `json:"status"`
		Error  string `json:"error"`
	}
	if err := c.apiRequest(ctx, "queue", params, &resp); err != nil {
		return err
	}

	if !resp.Status {
		return fmt.Errorf("SABnzbd rejected priority change: %s", resp.Error)
	}

	c.logger.WithFields(logrus.Fields{
		"nzo_id":   nzoID,
		"priority": code,
	}).Info("Priority updated in SABnzbd")
	return nil
}
