package arr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"github.com/trackarr/trackarr/internal/models"
	"github.com/trackarr/trackarr/internal/utils"
)

const libraryCacheTTL = 5 * time.Minute

// Match is a confirmed metadata match from a Radarr/Sonarr library
type Match struct {
	Title     string
	Year      int
	Type      models.MediaType
	PosterURL string
	Instance  string
}

// libraryItem is a movie or series entry from the Radarr/Sonarr v3 API
type libraryItem struct {
	Title  string         `json:"title"`
	Year   int            `json:"year"`
	Images []libraryImage `json:"images"`
}

type libraryImage struct {
	CoverType string `json:"coverType"`
	URL       string `json:"url"`
	RemoteURL string `json:"remoteUrl"`
}

// Client handles one Radarr or Sonarr instance
type Client struct {
	name       string
	baseURL    string
	apiKey     string
	mediaType  models.MediaType
	category   string
	minScore   float64
	httpClient *http.Client
	cache      *cache.Cache
	logger     *logrus.Logger
}

// NewClient creates a client for one metadata instance
func NewClient(name, baseURL, apiKey, category string, mediaType models.MediaType, minScore float64, logger *logrus.Logger) *Client {
	return &Client{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		mediaType:  mediaType,
		category:   category,
		minScore:   minScore,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      cache.New(libraryCacheTTL, 10*time.Minute),
		logger:     logger,
	}
}

// Category returns the SABnzbd category this instance is responsible for
func (c *Client) Category() string {
	return c.category
}

// library returns the instance's full catalog, served from cache when fresh.
// A burst of enrichment lookups fetches the listing once per TTL.
func (c *Client) library(ctx context.Context) ([]libraryItem, error) {
	if cached, found := c.cache.Get("library"); found {
		return cached.([]libraryItem), nil
	}

	endpoint := "movie"
	if c.mediaType == models.MediaTypeTV {
		endpoint = "series"
	}

	var items []libraryItem
	operation := func() error {
		return c.fetchLibrary(ctx, endpoint, &items)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("failed to fetch %s library from %s: %w", endpoint, c.name, err)
	}

	c.cache.Set("library", items, cache.DefaultExpiration)
	c.logger.WithFields(logrus.Fields{
		"instance": c.name,
		"count":    len(items),
	}).Debug("Library listing fetched")

	return items, nil
}

func (c *Client) fetchLibrary(ctx context.Context, endpoint string, items *[]libraryItem) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/v3/%s", c.baseURL, endpoint), nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s returned status %d", c.name, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(items)
}

// Search finds the best-scoring library entry for a cleaned title. Returns
// nil when no candidate reaches the minimum score.
func (c *Client) Search(ctx context.Context, title string, year int) (*Match, error) {
	items, err := c.library(ctx)
	if err != nil {
		return nil, err
	}

	var best *libraryItem
	bestScore := 0.0
	for i := range items {
		score := utils.MatchScore(title, year, utils.CleanTitle(items[i].Title), items[i].Year)
		if score > bestScore {
			best = &items[i]
			bestScore = score
		}
	}

	if best == nil || bestScore < c.minScore {
		c.logger.WithFields(logrus.Fields{
			"instance": c.name,
			"title":    title,
			"score":    bestScore,
		}).Debug("No library match above threshold")
		return nil, nil
	}

	return &Match{
		Title:     best.Title,
		Year:      best.Year,
		Type:      c.mediaType,
		PosterURL: c.posterURL(best),
		Instance:  c.name,
	}, nil
}

// posterURL extracts the poster image URL, preferring the remote URL and
// absolutizing instance-relative paths
func (c *Client) posterURL(item *libraryItem) string {
	for _, image := range item.Images {
		if image.CoverType != "poster" {
			continue
		}
		if image.RemoteURL != "" {
			return image.RemoteURL
		}
		if image.URL != "" {
			if strings.HasPrefix(image.URL, "/") {
				return c.baseURL + image.URL
			}
			return image.URL
		}
	}
	return ""
}
