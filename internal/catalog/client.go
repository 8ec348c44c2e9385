package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Plant ids at or above this are behind the paid tier and return stub data.
const maxFreeTierID = 3000

// Benchmark is the recommended watering cadence, e.g. {Value: "7-10", Unit: "days"}.
type Benchmark struct {
	Value string
	Unit  string
}

// Entry is a catalog species, either a search hit or a detail record.
type Entry struct {
	ID              int
	Name            string
	ScientificNames []string
	Watering        string
	Benchmark       Benchmark
	Sunlight        []string
	Description     string
	ImageURL        string
}

// Client queries a Perenual-style species API. Failures are expected and
// callers degrade to manual entry, so the client never retries.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether the client is configured at all.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != "" && c.apiKey != ""
}

type searchResponse struct {
	Data []struct {
		ID             int      `json:"id"`
		CommonName     string   `json:"common_name"`
		ScientificName []string `json:"scientific_name"`
		DefaultImage   *struct {
			Thumbnail string `json:"thumbnail"`
			SmallURL  string `json:"small_url"`
		} `json:"default_image"`
	} `json:"data"`
}

// Search finds species by name. Entries outside the free tier are dropped.
func (c *Client) Search(ctx context.Context, query string) ([]Entry, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/species-list?q=%s&key=%s", c.baseURL, url.QueryEscape(query), url.QueryEscape(c.apiKey))
	var payload searchResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("search species: %w", err)
	}

	var entries []Entry
	for _, item := range payload.Data {
		if item.ID >= maxFreeTierID {
			continue
		}
		entry := Entry{
			ID:              item.ID,
			Name:            item.CommonName,
			ScientificNames: item.ScientificName,
		}
		if item.DefaultImage != nil {
			entry.ImageURL = item.DefaultImage.Thumbnail
			if entry.ImageURL == "" {
				entry.ImageURL = item.DefaultImage.SmallURL
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

type detailsResponse struct {
	ID                       int      `json:"id"`
	CommonName               string   `json:"common_name"`
	ScientificName           []string `json:"scientific_name"`
	Watering                 string   `json:"watering"`
	WateringGeneralBenchmark *struct {
		Value string `json:"value"`
		Unit  string `json:"unit"`
	} `json:"watering_general_benchmark"`
	Sunlight     []string `json:"sunlight"`
	Description  string   `json:"description"`
	DefaultImage *struct {
		Thumbnail string `json:"thumbnail"`
		SmallURL  string `json:"small_url"`
	} `json:"default_image"`
}

// Details fetches care metadata for one species.
func (c *Client) Details(ctx context.Context, id int) (*Entry, error) {
	if id <= 0 || id >= maxFreeTierID {
		return nil, fmt.Errorf("species id %d is not available", id)
	}

	endpoint := fmt.Sprintf("%s/species/details/%d?key=%s", c.baseURL, id, url.QueryEscape(c.apiKey))
	var payload detailsResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("species details: %w", err)
	}

	entry := &Entry{
		ID:              payload.ID,
		Name:            payload.CommonName,
		ScientificNames: payload.ScientificName,
		Watering:        payload.Watering,
		Benchmark:       Benchmark{Value: "7", Unit: "days"},
		Sunlight:        payload.Sunlight,
		Description:     payload.Description,
	}
	if payload.WateringGeneralBenchmark != nil {
		// The API wraps values in literal quotes, e.g. "\"5-7\"".
		value := strings.ReplaceAll(payload.WateringGeneralBenchmark.Value, `"`, "")
		if value != "" {
			entry.Benchmark.Value = value
		}
		if payload.WateringGeneralBenchmark.Unit != "" {
			entry.Benchmark.Unit = payload.WateringGeneralBenchmark.Unit
		}
	}
	if payload.DefaultImage != nil {
		entry.ImageURL = payload.DefaultImage.Thumbnail
		if entry.ImageURL == "" {
			entry.ImageURL = payload.DefaultImage.SmallURL
		}
	}
	return entry, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
